// Package rules implements the rule engine: guard evaluation, substitution
// matching, and rule application against a world state.
package rules

import (
	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/engine/state"
	"github.com/nathoo/ifkit/types"
)

// EvalGuard tests a guard under complete bindings. Every conjunct must hold.
func EvalGuard(guard types.Expr, b types.Bindings, w *state.World) (bool, error) {
	for _, a := range model.Atoms(guard) {
		f, err := state.Ground(a, b)
		if err != nil {
			return false, err
		}
		if !w.Contains(f) {
			return false, nil
		}
	}
	return true, nil
}

// Vars returns the variables of a rule in first-use order: the instance
// variable, then guard variables, then any effect-only variables.
func Vars(r model.Rule) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	add(r.Var)
	for _, a := range model.Atoms(r.Guard) {
		for _, v := range a.Args {
			add(v)
		}
	}
	for _, a := range model.Atoms(r.Effect) {
		for _, v := range a.Args {
			add(v)
		}
	}
	return out
}
