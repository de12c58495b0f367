package rules

import (
	"errors"
	"fmt"

	"github.com/nathoo/ifkit/engine/effects"
	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/engine/state"
	"github.com/nathoo/ifkit/types"
)

// ErrMissingBinding is returned when Apply is called without a binding for
// every variable of the rule. The world is left untouched.
var ErrMissingBinding = errors.New("missing binding")

// Transition is the outcome of applying one rule instantiation. When Fired
// is false World is nil and nothing changed.
type Transition struct {
	Rule     model.Rule
	Bindings types.Bindings
	Fired    bool
	Added    []types.Fact
	Removed  []types.Fact
	World    *state.World // staged; the caller decides whether to commit
}

// Apply evaluates r under b against w. A false guard yields an unfired
// transition. A true guard stages the effect on a copy of w; w is never
// modified.
func Apply(r model.Rule, b types.Bindings, w *state.World) (Transition, error) {
	for _, v := range Vars(r) {
		if _, ok := b[v]; !ok {
			return Transition{}, fmt.Errorf("rule %s: %w for %s", r.Name, ErrMissingBinding, v)
		}
	}

	tr := Transition{Rule: r, Bindings: b}
	ok, err := EvalGuard(r.Guard, b, w)
	if err != nil {
		return Transition{}, fmt.Errorf("rule %s guard: %w", r.Name, err)
	}
	if !ok {
		return tr, nil
	}

	res, err := effects.Apply(w, model.Atoms(r.Effect), b)
	if err != nil {
		return Transition{}, fmt.Errorf("rule %s: %w", r.Name, err)
	}
	tr.Fired = true
	tr.Added = res.Added
	tr.Removed = res.Removed
	tr.World = res.World
	return tr, nil
}
