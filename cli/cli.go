// Package cli provides the plain terminal REPL for play sessions: output
// formatting, meta-command dispatch, and the random agent.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nathoo/ifkit/engine"
	"github.com/nathoo/ifkit/engine/save"
	"github.com/nathoo/ifkit/engine/state"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	Session   *engine.Session
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	Trace     bool
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI wired to the given session.
func New(s *engine.Session) *CLI {
	home, _ := os.UserHomeDir()
	return &CLI{
		Session: s,
		In:      os.Stdin,
		Out:     os.Stdout,
		SaveDir: filepath.Join(home, ".ifkit", "saves"),
	}
}

// Run starts the loop: prompt, input, dispatch, output. It returns at end of
// input or on /quit.
func (c *CLI) Run() {
	c.intro()

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return
			}
			continue
		}

		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}
		c.step(input)
	}
}

// RunRandom plays up to n admissible commands chosen by the session RNG,
// stopping early when none remain.
func (c *CLI) RunRandom(n int) {
	c.intro()
	for i := 0; i < n; i++ {
		cmd, ok := c.Session.RandomCommand()
		if !ok {
			c.printSystem("No admissible commands.")
			return
		}
		c.printLine("> " + cmd.Text)
		c.step(cmd.Text)
	}
}

func (c *CLI) intro() {
	c.printSystem(fmt.Sprintf("Session %s: %d instance(s), %d fact(s). Type /help for commands.",
		c.Session.ID(), len(c.Session.Instances()), len(c.Session.Facts())))
}

func (c *CLI) step(input string) {
	res := c.Session.Step(input)
	for _, line := range res.Output {
		c.printLine(line)
	}
	if c.Trace {
		c.printTrace(res)
	}
}

// handleMeta dispatches meta-commands. Returns true if the session should end.
func (c *CLI) handleMeta(input string) bool {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true
	case "/save":
		c.cmdSave(arg)
	case "/load":
		c.cmdLoad(arg)
	case "/help":
		c.cmdHelp()
	case "/facts":
		c.cmdFacts()
	case "/commands":
		c.cmdCommands()
	case "/violations":
		c.cmdViolations()
	case "/state":
		c.cmdState()
	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}
	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}
	return false
}

func (c *CLI) cmdSave(slot string) {
	if err := save.WriteSlot(c.SaveDir, slot, c.Session.Snapshot()); err != nil {
		c.printSystem("Save failed: " + err.Error())
		return
	}
	c.printSystem(fmt.Sprintf("Session saved to %s.", slotName(slot)))
}

func (c *CLI) cmdLoad(slot string) {
	d, err := save.ReadSlot(c.SaveDir, slot)
	if err == nil {
		err = c.Session.Restore(d)
	}
	if err != nil {
		c.printSystem("Load failed: " + err.Error())
		return
	}
	c.printSystem(fmt.Sprintf("Session loaded from %s (move %d).", slotName(slot), d.Moves))
}

func slotName(slot string) string {
	if slot == "" {
		return save.DefaultSlot
	}
	return slot
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /save [name]   Save session (default: quicksave)",
		"  /load [name]   Load session (default: quicksave)",
		"  /facts         List the facts that hold, as sentences",
		"  /commands      List admissible commands",
		"  /violations    Constraints broken by the last command",
		"  /state         Debug: dump raw facts and instances",
		"  /trace         Toggle rule trace output",
		"  /quit          Exit",
		"  /help          Show this help",
		"",
		"Commands:",
	}
	for _, line := range help {
		c.printLine(line)
	}
	for _, p := range c.Session.Grammar().Patterns() {
		c.printLine("  " + p.Phrase)
	}
	c.printLine("  again (g)      Repeat your last command")
}

func (c *CLI) cmdFacts() {
	facts := c.Session.Facts()
	if len(facts) == 0 {
		c.printSystem("Nothing holds.")
		return
	}
	for _, f := range facts {
		c.printLine(c.Session.Describe(f) + ".")
	}
}

func (c *CLI) cmdCommands() {
	cmds := c.Session.Admissible()
	if len(cmds) == 0 {
		c.printSystem("No admissible commands.")
		return
	}
	for _, cmd := range cmds {
		c.printLine("  " + cmd.Text)
	}
}

func (c *CLI) cmdViolations() {
	vs := c.Session.Violations()
	if len(vs) == 0 {
		c.printSystem("No violations.")
		return
	}
	c.printSystem("Violated: " + strings.Join(vs, ", "))
}

func (c *CLI) cmdState() {
	c.printSystem(fmt.Sprintf("Session: %s", c.Session.ID()))
	c.printSystem(fmt.Sprintf("Moves: %d", c.Session.Moves()))
	var ins []string
	for _, in := range c.Session.Instances() {
		ins = append(ins, in.ID+":"+in.Type)
	}
	c.printSystem(fmt.Sprintf("Instances: %s", strings.Join(ins, " ")))
	for _, f := range c.Session.Facts() {
		c.printSystem("  " + state.FormatFact(f))
	}
}

func (c *CLI) printTrace(res engine.StepResult) {
	if res.Result == nil {
		c.printLine("[trace] no rule applied")
		return
	}
	for _, line := range res.Result.Trace() {
		c.printLine("[trace] " + line)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
