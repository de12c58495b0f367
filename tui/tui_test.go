package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/nathoo/ifkit/engine"
	"github.com/nathoo/ifkit/engine/enginetest"
	"github.com/nathoo/ifkit/types"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"Inserting the apple into the box.", kindNarration},
		{"The apple is in the box.", kindFact},
		{"Nothing happens.", kindNothing},
		{"What do you want to do?", kindNothing},
		{"Done.", kindNothing},
		{"You can't do that: it would break eaten1.", kindViolation},
		{"[Session saved to test.]", kindSystem},
		{"[trace] f.eat {I=player_inventory, f=apple} violated", kindTrace},
		{"", kindNarration},
	}
	for _, tt := range tests {
		if got := classifyLine(tt.line); got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestTranscript(t *testing.T) {
	var tr transcript
	tr.add("", []string{"[Session abc.]", "", "The box is open."}, false)
	tr.add("/save slot", []string{"Session saved to slot."}, true)
	tr.add("eat apple", []string{"You can't do that: it would break eaten1."}, false)

	want := []string{
		"[Session abc.]",
		"The box is open.",
		"> /save slot",
		"[Session saved to slot.]",
		"> eat apple",
		"You can't do that: it would break eaten1.",
	}
	if diff := cmp.Diff(want, tr.texts()); diff != "" {
		t.Errorf("texts() mismatch (-want +got):\n%s", diff)
	}

	kinds := map[string]lineKind{}
	for _, e := range tr.entries {
		kinds[e.text] = e.kind
	}
	if kinds["[Session saved to slot.]"] != kindSystem {
		t.Error("system output should be classified as system")
	}
	if kinds["You can't do that: it would break eaten1."] != kindViolation {
		t.Error("rollback message should be classified as a violation")
	}

	out := tr.render(20)
	for _, word := range []string{"eaten1", "slot", "box"} {
		if !strings.Contains(out, word) {
			t.Errorf("render() missing %q:\n%s", word, out)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("1b4e28ba-2fa1-11d2-883f-0016d3cca427"); got != "1b4e28ba" {
		t.Errorf("shortID() = %q, want 1b4e28ba", got)
	}
	if got := shortID("plain"); got != "plain" {
		t.Errorf("shortID(plain) = %q", got)
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory(2)
	if _, ok := h.Prev(); ok {
		t.Error("Prev() on empty history should report false")
	}
	h.Push("eat apple")
	h.Push("eat apple") // consecutive duplicate skipped
	h.Push("put apple into box")
	h.Push("eat cake1") // evicts "eat apple"

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	for _, want := range []string{"eat cake1", "put apple into box", "put apple into box"} {
		if got, _ := h.Prev(); got != want {
			t.Errorf("Prev() = %q, want %q", got, want)
		}
	}
	if got, ok := h.Next(); !ok || got != "eat cake1" {
		t.Errorf("Next() = %q, %v, want eat cake1", got, ok)
	}
	if _, ok := h.Next(); ok {
		t.Error("Next() past the newest entry should report false")
	}

	h.Prev()
	h.ResetCursor()
	if got, _ := h.Prev(); got != "eat cake1" {
		t.Errorf("Prev() after reset = %q, want eat cake1", got)
	}
}

func newModel(t *testing.T) Model {
	t.Helper()
	s := engine.New(enginetest.Model(t))
	scen := types.ScenarioDecl{
		Instances: []types.InstanceDecl{
			{ID: "apple", Type: "f"},
			{ID: "box", Type: "c"},
			{ID: "player_inventory", Type: "I"},
		},
		Facts: []types.Atom{
			{Predicate: "in", Args: []string{"apple", "player_inventory"}},
			{Predicate: "open", Args: []string{"box"}},
		},
	}
	if err := s.Seed(scen); err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
	m := New(s, t.TempDir())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func enter(t *testing.T, m Model, input string) Model {
	t.Helper()
	m.input.SetValue(input)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model)
}

func lastLines(m Model, n int) []string {
	out := m.log.texts()
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func TestInitialOutput(t *testing.T) {
	m := newModel(t)
	msg := m.initialOutput()()
	out, ok := msg.(outputMsg)
	if !ok {
		t.Fatalf("initialOutput() produced %T", msg)
	}
	joined := strings.Join(out.lines, "\n")
	for _, want := range []string{"The apple is in the player inventory.", "The box is open."} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in opening output:\n%s", want, joined)
		}
	}
}

func TestEnter_Step(t *testing.T) {
	m := newModel(t)
	m = enter(t, m, "put apple into box")

	got := lastLines(m, 3)
	want := []string{"> put apple into box", "Inserting the apple into the box.", "The apple is in the box."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("output = %q, want %q", got, want)
	}
	if m.session.Moves() != 1 {
		t.Errorf("Moves() = %d, want 1", m.session.Moves())
	}

	m = enter(t, m, "g")
	if got := lastLines(m, 1); got[0] != "Nothing happens." {
		t.Errorf("repeat output = %q, want Nothing happens.", got)
	}
}

func TestEnter_Trace(t *testing.T) {
	m := newModel(t)
	m = enter(t, m, "/trace")
	m = enter(t, m, "eat apple")

	joined := strings.Join(lastLines(m, 4), "\n")
	if !strings.Contains(joined, "[trace] f.eat {I=player_inventory, f=apple} violated") {
		t.Errorf("expected trace header, got:\n%s", joined)
	}
	if !strings.Contains(joined, "[trace]   + eaten(apple)") {
		t.Errorf("expected staged fact in trace, got:\n%s", joined)
	}
}

func TestStatusBar(t *testing.T) {
	m := newModel(t)
	bar := m.renderStatusBar()
	for _, want := range []string{"Facts: 2", "Commands: 2", "Moves: 0"} {
		if !strings.Contains(bar, want) {
			t.Errorf("status bar %q missing %q", bar, want)
		}
	}

	m = enter(t, m, "eat apple")
	bar = m.renderStatusBar()
	if !strings.Contains(bar, "Broke: eaten1") || !strings.Contains(bar, "Moves: 0") {
		t.Errorf("status bar after rollback = %q", bar)
	}
}

func TestComplete(t *testing.T) {
	m := newModel(t)
	m.input.SetValue("pu")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if got := m.input.Value(); got != "put apple into box" {
		t.Errorf("completed input = %q, want put apple into box", got)
	}
}

func TestHandleMeta(t *testing.T) {
	tests := []struct {
		input string
		want  string
		quit  bool
	}{
		{"/quit", "Goodbye.", true},
		{"/exit", "Goodbye.", true},
		{"/help", "put {o} into {c}", false},
		{"/facts", "The box is open.", false},
		{"/commands", "  eat apple", false},
		{"/violations", "No violations.", false},
		{"/state", "open(box)", false},
		{"/load nonexistent", "Load failed", false},
		{"/bogus", "Unknown command", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m := newModel(t)
			output, quit := m.handleMeta(tt.input)
			if quit != tt.quit {
				t.Errorf("quit = %v, want %v", quit, tt.quit)
			}
			if joined := strings.Join(output, "\n"); !strings.Contains(joined, tt.want) {
				t.Errorf("output %q missing %q", joined, tt.want)
			}
		})
	}
}

func TestHandleMeta_SaveLoad(t *testing.T) {
	m := newModel(t)
	m = enter(t, m, "put apple into box")

	out, _ := m.handleMeta("/save slot")
	if !strings.Contains(out[0], "Session saved to slot.") {
		t.Fatalf("save output = %v", out)
	}

	other := newModel(t)
	other.saveDir = m.saveDir
	out, _ = other.handleMeta("/load slot")
	if !strings.Contains(out[0], "Session loaded from slot (move 1).") {
		t.Errorf("load output = %v", out)
	}
	if !other.session.Query("in", "apple", "box") {
		t.Error("loaded session should have the apple in the box")
	}
}

func TestHandleMeta_Trace(t *testing.T) {
	m := newModel(t)
	if out, _ := m.handleMeta("/trace"); !m.trace || !strings.Contains(out[0], "enabled") {
		t.Errorf("first /trace: trace=%v output=%v", m.trace, out)
	}
	if out, _ := m.handleMeta("/trace"); m.trace || !strings.Contains(out[0], "disabled") {
		t.Errorf("second /trace: trace=%v output=%v", m.trace, out)
	}
}

func TestView(t *testing.T) {
	m := New(engine.New(enginetest.Model(t)), t.TempDir())
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() before sizing = %q", got)
	}
	m = newModel(t)
	if !strings.Contains(m.View(), "> ") {
		t.Error("View() should include the input prompt")
	}
}
