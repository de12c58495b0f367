package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/ifkit/engine"
	"github.com/nathoo/ifkit/engine/save"
	"github.com/nathoo/ifkit/engine/state"
)

// Model is the Bubble Tea model for a play session.
type Model struct {
	session *engine.Session

	viewport viewport.Model
	input    textinput.Model
	history  *History
	log      *transcript

	width, height int
	ready         bool
	trace         bool
	quitting      bool
	lastCmd       string
	saveDir       string
}

// outputMsg carries session output into the Update loop.
type outputMsg struct {
	input  string
	lines  []string
	system bool
}

// New creates a TUI model wired to the given session. An empty saveDir
// defaults to ~/.ifkit/saves.
func New(s *engine.Session, saveDir string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.CharLimit = 256
	ti.Focus()

	if saveDir == "" {
		home, _ := os.UserHomeDir()
		saveDir = filepath.Join(home, ".ifkit", "saves")
	}
	return Model{
		session: s,
		input:   ti,
		history: NewHistory(100),
		log:     &transcript{},
		saveDir: saveDir,
	}
}

// Run starts the Bubble Tea program.
func Run(s *engine.Session, saveDir string) error {
	_, err := tea.NewProgram(New(s, saveDir), tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
	return err
}

// Init prints the opening world.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initialOutput())
}

func (m Model) initialOutput() tea.Cmd {
	return func() tea.Msg {
		lines := append([]string{
			fmt.Sprintf("[Session %s. Type /help for commands.]", m.session.ID()),
			"",
		}, m.describeWorld()...)
		return outputMsg{lines: lines}
	}
}

func (m Model) describeWorld() []string {
	facts := m.session.Facts()
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = m.session.Describe(f) + "."
	}
	return lines
}

// Update handles key presses, resizes and session output.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case outputMsg:
		m.print(msg)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Submit):
			return m.submit()
		case key.Matches(msg, keys.Complete):
			m.complete()
			return m, nil
		case key.Matches(msg, keys.Older):
			if cmd, ok := m.history.Prev(); ok {
				m.setInput(cmd)
			}
			return m, nil
		case key.Matches(msg, keys.Newer):
			cmd, _ := m.history.Next()
			m.setInput(cmd)
			return m, nil
		case key.Matches(msg, keys.Scroll):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	vh := max(h-2, 1) // status bar + input line
	if !m.ready {
		m.viewport = viewport.New(w, vh)
		m.viewport.KeyMap = scrollKeys()
		m.ready = true
	} else {
		m.viewport.Width, m.viewport.Height = w, vh
	}
	m.refresh()
}

func (m *Model) setInput(s string) {
	m.input.SetValue(s)
	m.input.CursorEnd()
}

// complete replaces the input with the first admissible command it
// prefixes.
func (m *Model) complete() {
	prefix := strings.ToLower(strings.TrimSpace(m.input.Value()))
	if prefix == "" {
		return
	}
	for _, c := range m.session.Admissible() {
		if strings.HasPrefix(c.Text, prefix) {
			m.setInput(c.Text)
			return
		}
	}
}

// submit runs the input line as a meta-command or a session step.
func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if input == "" {
		return m, nil
	}
	m.history.Push(input)

	if l := strings.ToLower(input); l == "again" || l == "g" {
		if m.lastCmd == "" {
			m.print(outputMsg{input: input, lines: []string{"Nothing to repeat."}, system: true})
			return m, nil
		}
		input = m.lastCmd
	}

	if strings.HasPrefix(input, "/") {
		lines, quit := m.handleMeta(input)
		m.print(outputMsg{input: input, lines: lines, system: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	m.lastCmd = input
	res := m.session.Step(input)
	lines := res.Output
	if m.trace {
		lines = append(lines, formatTrace(res)...)
	}
	m.print(outputMsg{input: input, lines: lines})
	return m, nil
}

func (m *Model) print(msg outputMsg) {
	m.log.add(msg.input, msg.lines, msg.system)
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.log.render(m.width))
	m.viewport.GotoBottom()
}

// View renders the transcript, the status bar and the input line.
func (m Model) View() string {
	switch {
	case m.quitting:
		return ""
	case !m.ready:
		return "Loading..."
	}
	return strings.Join([]string{m.viewport.View(), m.renderStatusBar(), m.input.View()}, "\n")
}

// metaCommands maps each slash command to its handler. Handlers return
// the lines to print.
var metaCommands = map[string]func(m *Model, arg string) []string{
	"/save":  (*Model).cmdSave,
	"/load":  (*Model).cmdLoad,
	"/help":  func(m *Model, _ string) []string { return m.cmdHelp() },
	"/facts": func(m *Model, _ string) []string { return m.describeWorld() },
	"/commands": func(m *Model, _ string) []string {
		cmds := m.session.Admissible()
		if len(cmds) == 0 {
			return []string{"No admissible commands."}
		}
		lines := make([]string, len(cmds))
		for i, c := range cmds {
			lines[i] = "  " + c.Text
		}
		return lines
	},
	"/violations": func(m *Model, _ string) []string {
		if vs := m.session.Violations(); len(vs) > 0 {
			return []string{"Violated: " + strings.Join(vs, ", ")}
		}
		return []string{"No violations."}
	},
	"/state": func(m *Model, _ string) []string {
		lines := []string{
			fmt.Sprintf("Session: %s", m.session.ID()),
			fmt.Sprintf("Moves: %d", m.session.Moves()),
		}
		var ins []string
		for _, in := range m.session.Instances() {
			ins = append(ins, in.ID+":"+in.Type)
		}
		lines = append(lines, "Instances: "+strings.Join(ins, " "))
		for _, f := range m.session.Facts() {
			lines = append(lines, "  "+state.FormatFact(f))
		}
		return lines
	},
	"/trace": func(m *Model, _ string) []string {
		m.trace = !m.trace
		if m.trace {
			return []string{"Trace output enabled."}
		}
		return []string{"Trace output disabled."}
	},
}

// handleMeta runs a slash command. It reports true when the session should
// end.
func (m *Model) handleMeta(input string) ([]string, bool) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	if name == "/quit" || name == "/exit" {
		return []string{"Goodbye."}, true
	}
	run, ok := metaCommands[name]
	if !ok {
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", name)}, false
	}
	return run(m, arg), false
}

func slotName(slot string) string {
	if slot == "" {
		return save.DefaultSlot
	}
	return slot
}

func (m *Model) cmdSave(slot string) []string {
	if err := save.WriteSlot(m.saveDir, slot, m.session.Snapshot()); err != nil {
		return []string{"Save failed: " + err.Error()}
	}
	return []string{fmt.Sprintf("Session saved to %s.", slotName(slot))}
}

func (m *Model) cmdLoad(slot string) []string {
	d, err := save.ReadSlot(m.saveDir, slot)
	if err == nil {
		err = m.session.Restore(d)
	}
	if err != nil {
		return []string{"Load failed: " + err.Error()}
	}
	return append([]string{fmt.Sprintf("Session loaded from %s (move %d).", slotName(slot), d.Moves)}, m.describeWorld()...)
}

func (m *Model) cmdHelp() []string {
	lines := []string{
		"System:",
		"  /save [name]   Save session (default: quicksave)",
		"  /load [name]   Load session (default: quicksave)",
		"  /facts         Describe what holds",
		"  /commands      List admissible commands",
		"  /violations    Constraints broken by the last command",
		"  /state         Debug: dump raw facts",
		"  /trace         Toggle rule trace output",
		"  /quit          Exit",
		"",
		"Commands:",
	}
	for _, p := range m.session.Grammar().Patterns() {
		lines = append(lines, "  "+p.Phrase)
	}
	return append(lines,
		"  again (g)      Repeat your last command",
		"",
		"Tab completes an admissible command, PgUp/PgDn scroll, Up/Down recall history",
	)
}

func formatTrace(res engine.StepResult) []string {
	if res.Result == nil {
		return []string{"[trace] no rule applied"}
	}
	var lines []string
	for _, l := range res.Result.Trace() {
		lines = append(lines, "[trace] "+l)
	}
	return lines
}
