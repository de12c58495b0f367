// Package state holds the world state of a play session: the set of ground
// facts, kept in a Mangle in-memory fact store, and the registry of live
// instances with their types.
package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/factstore"

	"github.com/nathoo/ifkit/types"
)

// ErrDuplicateInstance is returned when an instance id is declared twice.
var ErrDuplicateInstance = errors.New("duplicate instance")

// ErrUnbound is returned when grounding an atom whose variable has no binding.
var ErrUnbound = errors.New("unbound variable")

// World is a set of ground facts plus the instance registry. The zero value
// is not usable; call New.
type World struct {
	store     factstore.FactStore
	instances map[string]string // instance id → type name
}

// New returns an empty world.
func New() *World {
	return &World{
		store:     factstore.NewSimpleInMemoryStore(),
		instances: map[string]string{},
	}
}

// Declare registers a live instance of typ.
func (w *World) Declare(id, typ string) error {
	if prev, ok := w.instances[id]; ok {
		return fmt.Errorf("%w: %q is already a %s", ErrDuplicateInstance, id, prev)
	}
	w.instances[id] = typ
	return nil
}

// TypeOf returns the declared type of an instance.
func (w *World) TypeOf(id string) (string, bool) {
	t, ok := w.instances[id]
	return t, ok
}

// Instances returns every instance id, sorted.
func (w *World) Instances() []string {
	ids := make([]string, 0, len(w.instances))
	for id := range w.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Add asserts f. Returns false if f already held.
func (w *World) Add(f types.Fact) bool {
	return w.store.Add(toAtom(f))
}

// Remove retracts f. Returns false if f did not hold. The backing store is
// rebuilt without f; worlds are small and retraction is rare.
func (w *World) Remove(f types.Fact) bool {
	target := toAtom(f)
	if !w.store.Contains(target) {
		return false
	}
	next := factstore.NewSimpleInMemoryStore()
	w.each(func(a ast.Atom) {
		if !sameFact(fromAtom(a), f) {
			next.Add(a)
		}
	})
	w.store = next
	return true
}

// Contains reports whether f holds.
func (w *World) Contains(f types.Fact) bool {
	return w.store.Contains(toAtom(f))
}

// Lookup returns the facts of pred whose arguments match pattern, sorted.
// An empty string in pattern matches any argument; a nil pattern matches
// every fact of pred.
func (w *World) Lookup(pred string, pattern []string) []types.Fact {
	var out []types.Fact
	for _, sym := range w.store.ListPredicates() {
		if sym.Symbol != pred || (pattern != nil && sym.Arity != len(pattern)) {
			continue
		}
		_ = w.store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
			f := fromAtom(a)
			if matches(f.Args, pattern) {
				out = append(out, f)
			}
			return nil
		})
	}
	SortFacts(out)
	return out
}

func sameFact(a, b types.Fact) bool {
	if a.Predicate != b.Predicate || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return false
		}
	}
	return true
}

func matches(args, pattern []string) bool {
	for i, p := range pattern {
		if p != "" && args[i] != p {
			return false
		}
	}
	return true
}

// Facts returns every fact, sorted.
func (w *World) Facts() []types.Fact {
	var out []types.Fact
	w.each(func(a ast.Atom) { out = append(out, fromAtom(a)) })
	SortFacts(out)
	return out
}

// Len returns the number of facts.
func (w *World) Len() int {
	n := 0
	w.each(func(ast.Atom) { n++ })
	return n
}

// Clone returns an independent copy of the world. Changes to the copy are
// not visible in w.
func (w *World) Clone() *World {
	store := factstore.NewSimpleInMemoryStore()
	store.Merge(w.store)
	inst := make(map[string]string, len(w.instances))
	for k, v := range w.instances {
		inst[k] = v
	}
	return &World{store: store, instances: inst}
}

func (w *World) each(fn func(ast.Atom)) {
	for _, sym := range w.store.ListPredicates() {
		_ = w.store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
			fn(a)
			return nil
		})
	}
}

// Ground substitutes bindings into a. Every argument must be bound.
func Ground(a types.Atom, b types.Bindings) (types.Fact, error) {
	args := make([]string, len(a.Args))
	for i, v := range a.Args {
		id, ok := b[v]
		if !ok {
			return types.Fact{}, fmt.Errorf("%w: %s in %s", ErrUnbound, v, a.Predicate)
		}
		args[i] = id
	}
	return types.Fact{Predicate: a.Predicate, Args: args}, nil
}

// FormatFact renders f as in(apple, player_inventory).
func FormatFact(f types.Fact) string {
	return f.Predicate + "(" + strings.Join(f.Args, ", ") + ")"
}

// SortFacts orders facts by predicate, then arguments.
func SortFacts(fs []types.Fact) {
	sort.Slice(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		for k := 0; k < len(a.Args) && k < len(b.Args); k++ {
			if a.Args[k] != b.Args[k] {
				return a.Args[k] < b.Args[k]
			}
		}
		return len(a.Args) < len(b.Args)
	})
}

func toAtom(f types.Fact) ast.Atom {
	terms := make([]ast.BaseTerm, len(f.Args))
	for i, a := range f.Args {
		terms[i] = ast.String(a)
	}
	return ast.NewAtom(f.Predicate, terms...)
}

func fromAtom(a ast.Atom) types.Fact {
	args := make([]string, len(a.Args))
	for i, t := range a.Args {
		if c, ok := t.(ast.Constant); ok {
			args[i] = c.Symbol
		} else {
			args[i] = t.String()
		}
	}
	return types.Fact{Predicate: a.Predicate.Symbol, Args: args}
}
