// Package effects stages the effect of a fired rule. Every effect atom is one
// assertion or retraction; effects carry no logic of their own.
package effects

import (
	"fmt"

	"github.com/nathoo/ifkit/engine/state"
	"github.com/nathoo/ifkit/types"
)

// Result is a staged world together with the facts that changed.
type Result struct {
	World   *state.World
	Added   []types.Fact
	Removed []types.Fact
}

// Apply grounds each effect atom with b and applies it to a copy of w, in
// order. w itself is never modified. Asserting a fact that already holds and
// retracting one that does not are no-ops and do not appear in the result.
func Apply(w *state.World, atoms []types.Atom, b types.Bindings) (Result, error) {
	staged := w.Clone()
	res := Result{World: staged}
	for _, a := range atoms {
		f, err := state.Ground(a, b)
		if err != nil {
			return Result{}, fmt.Errorf("effect %s: %w", a.Predicate, err)
		}
		if a.Negated {
			if staged.Remove(f) {
				res.Removed = append(res.Removed, f)
			}
			continue
		}
		if staged.Add(f) {
			res.Added = append(res.Added, f)
		}
	}
	return res, nil
}

// Changed reports whether the result differs from the world it was staged from.
func (r Result) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}
