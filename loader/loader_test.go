package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nathoo/ifkit/engine/diag"
	"github.com/nathoo/ifkit/types"
)

func TestLoad_Kitchen(t *testing.T) {
	p, err := Load("testdata/kitchen", Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if diff := cmp.Diff([]string{"kitchen.twl", "scenario.lua"}, p.Files); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
	for _, name := range []string{"r", "I", "o", "c", "s", "f", "cake"} {
		if p.Model.Type(name) == nil {
			t.Errorf("type %q not found", name)
		}
	}
	if !p.Model.IsSubtype("cake", "o") {
		t.Error("cake should be a subtype of o")
	}
	if got := len(p.Scenario.Instances); got != 6 {
		t.Errorf("instances = %d, want 6", got)
	}
	if got := len(p.Scenario.Facts); got != 6 {
		t.Errorf("facts = %d, want 6", got)
	}
	if len(p.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", p.Warnings)
	}

	first := p.Scenario.Facts[0]
	want := types.Pos{File: filepath.Join("testdata", "kitchen", "scenario.lua"), Line: 9}
	if first.Pos != want {
		t.Errorf("fact position = %+v, want %+v", first.Pos, want)
	}
}

func TestLoad_LuaMatchesBlocks(t *testing.T) {
	blocks, err := Load("testdata/kitchen", Options{})
	if err != nil {
		t.Fatalf("Load(kitchen) failed: %v", err)
	}
	luaOnly, err := Load("testdata/kitchen_lua", Options{})
	if err != nil {
		t.Fatalf("Load(kitchen_lua) failed: %v", err)
	}

	opts := cmp.Options{cmpopts.IgnoreTypes(types.Pos{}), cmpopts.EquateEmpty()}
	if diff := cmp.Diff(blocks.Decls, luaOnly.Decls, opts); diff != "" {
		t.Errorf("Lua and block front ends disagree (-twl +lua):\n%s", diff)
	}
}

func TestLoad_CollectsEveryError(t *testing.T) {
	_, err := Load("testdata/broken", Options{})
	if err == nil {
		t.Fatal("expected load to fail")
	}
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("error type = %T, want *LoadError", err)
	}

	kinds := []error{
		diag.ErrSyntax,
		diag.ErrUnknownParentType,
		diag.ErrUnknownPredicate,
		diag.ErrUnboundVariable,
		diag.ErrMissingMapping,
		diag.ErrUnknownType,
		diag.ErrUnknownInstance,
		diag.ErrArityMismatch,
	}
	for _, k := range kinds {
		if !errors.Is(err, k) {
			t.Errorf("errors.Is(err, %v) = false\n%v", k, err)
		}
	}
	if !strings.Contains(err.Error(), "b_syntax.twl:2:") {
		t.Errorf("syntax error should point at b_syntax.twl:2, got:\n%v", err)
	}
}

func TestLoad_Strict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "world.twl", `
type o {
    predicates { in(o, t); shiny(o); }
    rules { drop :: in(o, t) -> in(o, t); }
    inform7 {
        type { kind :: "object"; }
        predicates {
            in(o, t) :: "The {o} is in the {t}";
            shiny(o) :: "The {o} is shiny";
        }
        commands { drop :: "drop {o}" :: "dropping the {o}"; }
    }
}
`)

	p, err := Load(dir, Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(p.Warnings) != 1 || !strings.Contains(p.Warnings[0], "shiny") {
		t.Errorf("Warnings = %v, want one about shiny", p.Warnings)
	}

	_, err = Load(dir, Options{Strict: true})
	if !errors.Is(err, ErrStrict) {
		t.Fatalf("strict Load error = %v, want ErrStrict", err)
	}
}

func TestLoad_NoSourceFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "nothing here")
	if _, err := Load(dir, Options{}); err == nil {
		t.Fatal("expected error for a directory without sources")
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent"), Options{}); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}

func TestLoad_LuaRuntimeError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.lua", `Type "o" (42)`)
	_, err := Load(dir, Options{})
	if !errors.Is(err, diag.ErrSyntax) {
		t.Fatalf("error = %v, want ErrSyntax", err)
	}
}

func TestLoad_SandboxEnforced(t *testing.T) {
	L, _ := newTestVM()
	defer L.Close()

	for _, src := range []string{
		`os.execute("echo pwned")`,
		`io.open("/etc/passwd")`,
		`dofile("x.lua")`,
		`load("return 1")`,
		`math.randomseed(4)`,
	} {
		if err := L.DoString(src); err == nil {
			t.Errorf("expected sandbox to block %s", src)
		}
	}
}

func TestLoad_FileOrdering(t *testing.T) {
	files := sortedSourceFiles([]string{"z.lua", "world.twl", "notes.txt", "a.lua", "base.twl"})
	want := []string{"base.twl", "world.twl", "a.lua", "z.lua"}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("sortedSourceFiles mismatch (-want +got):\n%s", diff)
	}
}

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}
