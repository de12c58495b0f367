package model_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nathoo/ifkit/engine/diag"
	"github.com/nathoo/ifkit/engine/enginetest"
	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/loader/dsl"
	"github.com/nathoo/ifkit/types"
)

func parse(t *testing.T, src string) []types.TypeDecl {
	t.Helper()
	f, err := dsl.Parse("test.twl", []byte(src))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return f.Types
}

func predicateNames(ps []model.Predicate) []string {
	var out []string
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func ruleNames(rs []model.Rule) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.Name)
	}
	return out
}

func TestInheritedSetsAppearOnce(t *testing.T) {
	m := enginetest.Model(t)
	cake := m.Type("cake")
	if cake == nil {
		t.Fatal("type cake not found")
	}

	wantPreds := []string{"in", "on", "at", "edible", "eaten"}
	if diff := cmp.Diff(wantPreds, predicateNames(cake.Predicates())); diff != "" {
		t.Errorf("cake predicates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"eat"}, ruleNames(cake.Rules())); diff != "" {
		t.Errorf("cake rules mismatch (-want +got):\n%s", diff)
	}
	if n := len(cake.Constraints()); n != 4 {
		t.Errorf("cake has %d constraints, want 4", n)
	}

	eat, ok := cake.Rule("eat")
	if !ok {
		t.Fatal("cake.Rule(eat) not found")
	}
	if eat.Owner != "f" || eat.Var != "f" {
		t.Errorf("inherited eat owner/var = %s/%s, want f/f", eat.Owner, eat.Var)
	}
}

func TestSubtypeAndKind(t *testing.T) {
	m := enginetest.Model(t)
	tests := []struct {
		typ, ancestor string
		want          bool
	}{
		{"cake", "f", true},
		{"cake", "o", true},
		{"cake", model.RootType, true},
		{"f", "f", true},
		{"f", "cake", false},
		{"c", "f", false},
		{"missing", "f", false},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"<"+tt.ancestor, func(t *testing.T) {
			if got := m.IsSubtype(tt.typ, tt.ancestor); got != tt.want {
				t.Errorf("IsSubtype(%s, %s) = %v, want %v", tt.typ, tt.ancestor, got, tt.want)
			}
		})
	}

	if k := m.Type("f").Kind(); k != "food" {
		t.Errorf("f.Kind() = %q, want food", k)
	}
	if k := m.Type(model.RootType).Kind(); k != model.RootKind {
		t.Errorf("root Kind() = %q, want %q", k, model.RootKind)
	}
	if p := m.Type("cake").ParentType(); p == nil || p.Name != "f" {
		t.Errorf("cake parent = %v, want f", p)
	}
}

func TestParentsInAnyOrder(t *testing.T) {
	m, err := model.Build(parse(t, `
type cake : food {}
type food(f) : thing2 { predicates { eaten(f); } }
type thing2 {}
`))
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !m.IsSubtype("cake", "thing2") {
		t.Error("cake should inherit from thing2")
	}
	if got := m.Lookup("f"); got == nil || got.Name != "food" {
		t.Errorf("Lookup(f) = %v, want food", got)
	}
	if _, ok := m.Type("cake").Predicate("eaten"); !ok {
		t.Error("cake should see eaten")
	}
}

func TestShadowing(t *testing.T) {
	m, err := model.Build(parse(t, `
type a {
    predicates { p(a); q(a); }
    rules { go :: p(a) -> q(a); }
}
type b : a {
    predicates { p(b); }
    rules { go :: q(b) -> p(b); }
}
`))
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	b := m.Type("b")
	if diff := cmp.Diff([]string{"q", "p"}, predicateNames(b.Predicates())); diff != "" {
		t.Errorf("b predicates mismatch (-want +got):\n%s", diff)
	}
	p, _ := b.Predicate("p")
	if p.Owner != "b" {
		t.Errorf("p owner = %s, want b", p.Owner)
	}
	rules := b.Rules()
	if len(rules) != 1 || rules[0].Owner != "b" {
		t.Errorf("b rules = %+v, want only its own go", rules)
	}
	if got := len(m.RulesNamed("go")); got != 2 {
		t.Errorf("RulesNamed(go) returned %d decls, want 2", got)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind error
	}{
		{"duplicate name", "type a {}\ntype a {}", diag.ErrDuplicateTypeName},
		{"var collides with name", "type a {}\ntype b(a) {}", diag.ErrDuplicateTypeName},
		{"unknown parent", "type a : ghost {}", diag.ErrUnknownParentType},
		{"cycle", "type a : b {}\ntype b : a {}", diag.ErrInheritanceCycle},
		{"self parent", "type a : a {}", diag.ErrInheritanceCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := model.Build(parse(t, tt.src))
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Build() error = %v, want %v", err, tt.kind)
			}
			if m == nil {
				t.Fatal("Build() returned nil model alongside error")
			}
			for _, typ := range m.Types() {
				if !m.IsSubtype(typ.Name, model.RootType) {
					t.Errorf("type %s is not rooted after error recovery", typ.Name)
				}
			}
		})
	}
}

func TestBuildCollectsAllErrors(t *testing.T) {
	_, err := model.Build(parse(t, "type a : ghost {}\ntype b {}\ntype b {}\ntype c : d {}\ntype d : c {}"))
	ds := diag.Diagnostics(err)
	if len(ds) != 3 {
		t.Fatalf("got %d diagnostics, want 3: %v", len(ds), err)
	}
	for _, kind := range []error{diag.ErrUnknownParentType, diag.ErrDuplicateTypeName, diag.ErrInheritanceCycle} {
		if !errors.Is(err, kind) {
			t.Errorf("error does not carry %v", kind)
		}
	}
}

func TestVarType(t *testing.T) {
	m := enginetest.Model(t)
	tests := []struct {
		sym, want string
	}{
		{"c", "c"},
		{"c2", "c"},
		{"o'", "o"},
		{"I", "I"},
		{"zz", ""},
		{"2", ""},
	}
	for _, tt := range tests {
		t.Run(tt.sym, func(t *testing.T) {
			got := ""
			if typ := m.VarType(tt.sym); typ != nil {
				got = typ.Name
			}
			if got != tt.want {
				t.Errorf("VarType(%q) = %q, want %q", tt.sym, got, tt.want)
			}
		})
	}
}
