package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// entry is one unstyled transcript line. Styling happens at render time so
// the transcript can be re-wrapped when the terminal is resized.
type entry struct {
	text  string
	kind  lineKind
	input bool
}

// transcript is the scrollback of a play session.
type transcript struct {
	entries []entry
}

// add appends one move: the echoed input (if any), its output lines, and
// a blank separator. System output is bracketed and never classified.
func (t *transcript) add(input string, lines []string, system bool) {
	if input != "" {
		t.entries = append(t.entries, entry{text: "> " + input, input: true})
	}
	for _, l := range lines {
		e := entry{text: l, kind: classifyLine(l)}
		if system && l != "" {
			e.text, e.kind = "["+l+"]", kindSystem
		}
		t.entries = append(t.entries, e)
	}
	t.entries = append(t.entries, entry{})
}

// render wraps and styles every entry for the given width.
func (t *transcript) render(width int) string {
	if width < 10 {
		width = 10
	}
	wrap := lipgloss.NewStyle().Width(width)
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		if e.text == "" {
			continue
		}
		text := wrap.Render(e.text)
		if e.input {
			out[i] = stylePlayerInput.Render(text)
		} else {
			out[i] = renderLineKind(text, e.kind)
		}
	}
	return strings.Join(out, "\n")
}

// texts returns the unstyled non-blank lines, newest last.
func (t *transcript) texts() []string {
	var out []string
	for _, e := range t.entries {
		if e.text != "" {
			out = append(out, e.text)
		}
	}
	return out
}
