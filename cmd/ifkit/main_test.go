package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/ifkit/engine/diag"
)

const (
	kitchenDir = "../../loader/testdata/kitchen"
	brokenDir  = "../../loader/testdata/broken"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	out, err := run(t, "", "check", kitchenDir)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if !strings.HasPrefix(out, "ok: ") || !strings.HasSuffix(out, "6 instance(s), 6 fact(s) in 2 file(s)\n") {
		t.Errorf("check output = %q", out)
	}
	if strings.Contains(out, "warning:") {
		t.Errorf("kitchen world should have no warnings:\n%s", out)
	}
}

func TestCheck_Broken(t *testing.T) {
	_, err := run(t, "", "check", brokenDir)
	if err == nil {
		t.Fatal("check of a broken world should fail")
	}
	if !errors.Is(err, diag.ErrUnknownParentType) || !errors.Is(err, diag.ErrSyntax) {
		t.Errorf("check error should carry every diagnostic kind, got: %v", err)
	}
}

func TestCheck_BadConfig(t *testing.T) {
	_, err := run(t, "", "check", "--config", filepath.Join(t.TempDir(), "missing.yaml"), kitchenDir)
	if err == nil {
		t.Error("a missing --config file should fail")
	}
	_, err = run(t, "", "check", "--log-level", "loud", kitchenDir)
	if err == nil || !strings.Contains(err.Error(), "log.level") {
		t.Errorf("bad --log-level error = %v", err)
	}
}

func TestEmit(t *testing.T) {
	out, err := run(t, "", "emit", kitchenDir)
	if err != nil {
		t.Fatalf("emit error: %v", err)
	}
	for _, want := range []string{
		"A food is a kind of object.",
		"A cake is a kind of food.",
		`Understand "eat [something]" as eating.`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("emit output missing %q:\n%s", want, out)
		}
	}
}

func TestEmit_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.ni")
	out, err := run(t, "", "emit", kitchenDir, "-o", path)
	if err != nil {
		t.Fatalf("emit error: %v", err)
	}
	if out != "" {
		t.Errorf("emit -o should not write to stdout, got %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), "A container is a kind of object.") {
		t.Errorf("emitted file:\n%s", data)
	}
}

func TestPlay_Script(t *testing.T) {
	script := filepath.Join(t.TempDir(), "walk.txt")
	content := "# open box, apple in hand\nput apple into box\neat apple\n/quit\n"
	if err := os.WriteFile(script, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "play", kitchenDir, "--script", script)
	if err != nil {
		t.Fatalf("play error: %v", err)
	}
	for _, want := range []string{
		"> put apple into box\n",
		"The apple is in the box.",
		"Nothing happens.",
		"[Goodbye.]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("play output missing %q:\n%s", want, out)
		}
	}
}

func TestPlay_PlainStdin(t *testing.T) {
	out, err := run(t, "eat the apple\n/violations\n", "play", kitchenDir, "--plain", "--trace")
	if err != nil {
		t.Fatalf("play error: %v", err)
	}
	for _, want := range []string{
		"You can't do that: it would break eaten1.",
		"[trace] f.eat {I=player_inventory, f=apple} violated",
		"[Violated: eaten1]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("play output missing %q:\n%s", want, out)
		}
	}
}

func TestPlay_RandomIsDeterministic(t *testing.T) {
	first, err := run(t, "", "play", kitchenDir, "--random", "4", "--seed", "9")
	if err != nil {
		t.Fatalf("play error: %v", err)
	}
	second, err := run(t, "", "play", kitchenDir, "--random", "4", "--seed", "9")
	if err != nil {
		t.Fatalf("play error: %v", err)
	}
	strip := func(s string) string {
		// The first line names the session id, which differs per run.
		_, rest, _ := strings.Cut(s, "\n")
		return rest
	}
	if strip(first) != strip(second) {
		t.Errorf("same seed gave different runs:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(first, "> ") {
		t.Errorf("random run chose no command:\n%s", first)
	}
}

func TestPlay_MissingScript(t *testing.T) {
	_, err := run(t, "", "play", kitchenDir, "--script", "nope.txt")
	if err == nil || !strings.Contains(err.Error(), "opening script") {
		t.Errorf("error = %v, want opening script failure", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(out, "ifkit dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestArgs(t *testing.T) {
	if _, err := run(t, "", "check"); err == nil {
		t.Error("check without DIR should fail")
	}
}
