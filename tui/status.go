package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// shortID trims a session id to its first group.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// renderStatusBar produces a full-width inverted status line showing the
// session, fact and admissible-command counts, and the move count. The
// constraints broken by the last command replace the counts when present.
func (m Model) renderStatusBar() string {
	s := m.session

	left := fmt.Sprintf(" %s | Facts: %d | Commands: %d",
		shortID(s.ID()), len(s.Facts()), len(s.Admissible()))
	right := fmt.Sprintf("Moves: %d ", s.Moves())

	style := styleStatusBar
	if vs := s.Violations(); len(vs) > 0 {
		candidate := fmt.Sprintf(" %s | Broke: %s", shortID(s.ID()), strings.Join(vs, ","))
		if lipgloss.Width(candidate)+lipgloss.Width(right)+2 < m.width {
			left = candidate
			style = styleStatusAlert
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return style.Width(m.width).Render(bar)
}
