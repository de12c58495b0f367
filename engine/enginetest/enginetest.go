// Package enginetest provides the kitchen fixture shared by engine tests: a
// small object hierarchy with food, an eat rule, and the four eaten
// constraints.
package enginetest

import (
	"testing"

	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/engine/state"
	"github.com/nathoo/ifkit/loader/dsl"
	"github.com/nathoo/ifkit/types"
)

// Source is the kitchen world in block syntax.
const Source = `
type r {
    inform7 { type { kind :: "room"; } }
}

type I {
    inform7 { type { kind :: "inventory"; } }
}

type o {
    predicates { in(o, t); on(o, t); at(o, r); }
    inform7 {
        type { kind :: "object"; }
        predicates {
            in(o, t) :: "The {o} is in the {t}";
            on(o, t) :: "The {o} is on the {t}";
            at(o, r) :: "The {o} is in {r}";
        }
    }
}

type c : o {
    predicates { open(c); }
    rules { put :: in(o, I) & open(c) -> in(o, c) & !in(o, I); }
    inform7 {
        type { kind :: "container"; }
        predicates { open(c) :: "The {c} is open"; }
        commands { put :: "put {o} into {c}" :: "inserting the {o} into the {c}"; }
    }
}

type s : o {
    inform7 { type { kind :: "supporter"; } }
}

type f : o {
    predicates { edible(f); eaten(f); }
    rules { eat :: in(f, I) -> eaten(f); }
    constraints {
        eaten1 :: eaten(f) & in(f, I) -> fail();
        eaten2 :: eaten(f) & in(f, c) -> fail();
        eaten3 :: eaten(f) & on(f, s) -> fail();
        eaten4 :: eaten(f) & at(f, r) -> fail();
    }
    inform7 {
        type { kind :: "food"; definition :: "food is edible."; }
        predicates {
            edible(f) :: "The {f} is edible";
            eaten(f) :: "The {f} is eaten";
        }
        commands { eat :: "eat {f}" :: "eating the {f}"; }
    }
}

type cake : f {
    inform7 { type { kind :: "cake"; } }
}
`

// GiftSource is a two-type world whose command slot names an upper-case
// variable: "give {o} to {I}".
const GiftSource = `
type o {
    inform7 { type { kind :: "object"; } }
}

type I {
    predicates { holds(o, I); given(o, I); }
    rules { give :: holds(o, I) -> given(o, I); }
    inform7 {
        type { kind :: "inventory"; }
        commands { give :: "give {o} to {I}" :: "giving the {o} to the {I}"; }
    }
}
`

// Decls parses Source.
func Decls(t testing.TB) []types.TypeDecl {
	t.Helper()
	return parse(t, Source)
}

// ModelFrom builds a model from block-syntax source.
func ModelFrom(t testing.TB, src string) *model.Model {
	t.Helper()
	m, err := model.Build(parse(t, src))
	if err != nil {
		t.Fatalf("building fixture model: %v", err)
	}
	return m
}

func parse(t testing.TB, src string) []types.TypeDecl {
	t.Helper()
	f, err := dsl.Parse("fixture.twl", []byte(src))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return f.Types
}

// Model builds the kitchen model.
func Model(t testing.TB) *model.Model {
	t.Helper()
	return ModelFrom(t, Source)
}

// World returns a world with the kitchen instances declared and no facts:
// apple (f), cake1 (cake), box (c), table (s), kitchen (r), and
// player_inventory (I).
func World(t testing.TB) *state.World {
	t.Helper()
	w := state.New()
	for _, in := range [][2]string{
		{"apple", "f"},
		{"cake1", "cake"},
		{"box", "c"},
		{"table", "s"},
		{"kitchen", "r"},
		{"player_inventory", "I"},
	} {
		if err := w.Declare(in[0], in[1]); err != nil {
			t.Fatalf("declaring %s: %v", in[0], err)
		}
	}
	return w
}

// Fact builds a ground fact.
func Fact(pred string, args ...string) types.Fact {
	return types.Fact{Predicate: pred, Args: args}
}
