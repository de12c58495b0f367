package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorBar     = lipgloss.Color("236")
	colorText    = lipgloss.Color("252")
	colorAlert   = lipgloss.Color("160")
	colorPlayer  = lipgloss.Color("71")
	colorFact    = lipgloss.Color("110")
	colorMuted   = lipgloss.Color("244")
	colorFaint   = lipgloss.Color("239")
	colorNarrate = lipgloss.Color("255")
)

var (
	styleStatusBar   = lipgloss.NewStyle().Background(colorBar).Foreground(colorText).Bold(true)
	styleStatusAlert = styleStatusBar.Foreground(colorAlert)
	styleInputPrompt = lipgloss.NewStyle().Foreground(colorPlayer)
	stylePlayerInput = styleInputPrompt.Bold(true)
)

// lineKind selects how a transcript line is styled.
type lineKind int

const (
	kindNarration lineKind = iota
	kindFact
	kindNothing
	kindSystem
	kindViolation
	kindTrace
)

// classifyLine infers a line's kind from its text.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "You can't"):
		return kindViolation
	case line == "Nothing happens.", line == "What do you want to do?", line == "Done.":
		return kindNothing
	case strings.HasPrefix(line, "The "):
		return kindFact
	default:
		return kindNarration
	}
}

// kindStyles is indexed by lineKind.
var kindStyles = [...]lipgloss.Style{
	kindNarration: lipgloss.NewStyle().Foreground(colorNarrate),
	kindFact:      lipgloss.NewStyle().Foreground(colorFact),
	kindNothing:   lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
	kindSystem:    lipgloss.NewStyle().Foreground(colorMuted),
	kindViolation: lipgloss.NewStyle().Foreground(colorAlert),
	kindTrace:     lipgloss.NewStyle().Foreground(colorFaint),
}

func renderLineKind(line string, kind lineKind) string {
	if int(kind) >= len(kindStyles) {
		kind = kindNarration
	}
	return kindStyles[kind].Render(line)
}
