// Package constraints re-validates a world against every constraint that
// applies to its live instances.
package constraints

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/engine/rules"
	"github.com/nathoo/ifkit/engine/state"
	"github.com/nathoo/ifkit/types"
)

// Violation is one constraint whose guard holds for a live instance.
type Violation struct {
	Constraint string
	Owner      string // type that declares the constraint
	Instance   string
	Witness    types.Bindings // substitution under which the guard holds
}

func (v Violation) String() string {
	keys := make([]string, 0, len(v.Witness))
	for k, id := range v.Witness {
		keys = append(keys, k+"="+id)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s on %s [%s]", v.Constraint, v.Instance, strings.Join(keys, " "))
}

// Check reports whether constraint c is violated by instance id in w, and
// if so the first witnessing substitution.
func Check(m *model.Model, c model.Constraint, id string, w *state.World) (types.Bindings, bool) {
	found := rules.Matcher{Model: m}.Match(c.Guard, types.Bindings{c.Var: id}, w)
	if len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

// CheckAll checks every live instance of w, in id order, against every
// constraint of its type, inherited ones first. All violations are
// returned; an empty result means w is legal.
func CheckAll(m *model.Model, w *state.World) []Violation {
	var out []Violation
	for _, id := range w.Instances() {
		typ, _ := w.TypeOf(id)
		t := m.Type(typ)
		if t == nil {
			continue
		}
		for _, c := range t.Constraints() {
			if witness, ok := Check(m, c, id, w); ok {
				out = append(out, Violation{
					Constraint: c.Name,
					Owner:      c.Owner,
					Instance:   id,
					Witness:    witness,
				})
			}
		}
	}
	return out
}

// Names returns the distinct constraint names of vs in first-seen order.
func Names(vs []Violation) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range vs {
		if !seen[v.Constraint] {
			seen[v.Constraint] = true
			out = append(out, v.Constraint)
		}
	}
	return out
}

