package rules

import (
	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/engine/state"
	"github.com/nathoo/ifkit/types"
)

// Matcher enumerates the substitutions under which a guard holds.
type Matcher struct {
	// Model, when set, restricts each pattern variable to declared instances
	// of the type it ranges over. Without a model any constant binds.
	Model *model.Model
}

// Match returns every extension of partial under which all conjuncts of
// guard hold in w. Results are in world order and never share maps with
// partial.
func (m Matcher) Match(guard types.Expr, partial types.Bindings, w *state.World) []types.Bindings {
	atoms := model.Atoms(guard)
	var out []types.Bindings
	b := make(types.Bindings, len(partial))
	for k, v := range partial {
		b[k] = v
	}
	m.join(atoms, b, w, func(found types.Bindings) {
		cp := make(types.Bindings, len(found))
		for k, v := range found {
			cp[k] = v
		}
		out = append(out, cp)
	})
	return out
}

// Match is Matcher{}.Match.
func Match(guard types.Expr, partial types.Bindings, w *state.World) []types.Bindings {
	return Matcher{}.Match(guard, partial, w)
}

// join binds atoms left to right, backtracking over the facts each one
// matches.
func (m Matcher) join(atoms []types.Atom, b types.Bindings, w *state.World, emit func(types.Bindings)) {
	if len(atoms) == 0 {
		emit(b)
		return
	}
	a := atoms[0]
	pattern := make([]string, len(a.Args))
	for i, v := range a.Args {
		pattern[i] = b[v]
	}
	for _, f := range w.Lookup(a.Predicate, pattern) {
		var bound []string
		ok := true
		for i, v := range a.Args {
			id := f.Args[i]
			if cur, has := b[v]; has {
				if cur != id {
					ok = false
					break
				}
				continue
			}
			if !m.admits(v, id, w) {
				ok = false
				break
			}
			b[v] = id
			bound = append(bound, v)
		}
		if ok {
			m.join(atoms[1:], b, w, emit)
		}
		for _, v := range bound {
			delete(b, v)
		}
	}
}

// admits reports whether instance id may bind variable v.
func (m Matcher) admits(v, id string, w *state.World) bool {
	if m.Model == nil {
		return true
	}
	want := m.Model.VarType(v)
	if want == nil {
		return false
	}
	typ, ok := w.TypeOf(id)
	return ok && m.Model.IsSubtype(typ, want.Name)
}
