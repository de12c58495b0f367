package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/ifkit/emit"
	"github.com/nathoo/ifkit/engine/diag"
	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/engine/resolve"
	"github.com/nathoo/ifkit/types"
)

// ErrStrict marks a warning reported as an error under Options.Strict.
var ErrStrict = errors.New("warning in strict mode")

// LoadError collects all load-time diagnostics and warnings.
type LoadError struct {
	Diagnostics []diag.Diagnostic
	Warnings    []string
}

func (e *LoadError) Error() string {
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.Error()
	}
	return fmt.Sprintf("load failed with %d error(s):\n  %s",
		len(e.Diagnostics), strings.Join(lines, "\n  "))
}

// Unwrap exposes every diagnostic so errors.Is matches any collected kind.
func (e *LoadError) Unwrap() []error {
	errs := make([]error, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		errs[i] = d
	}
	return errs
}

func (e *LoadError) add(err error) {
	e.Diagnostics = append(e.Diagnostics, diag.Diagnostics(err)...)
}

// checkModel runs the resolver and the closed-world mapping check.
func checkModel(ctx context.Context, m *model.Model, opts Options) error {
	var ds []diag.Diagnostic
	if err := resolve.Check(ctx, m, resolve.Options{Parallelism: opts.Parallelism}); err != nil {
		found := diag.Diagnostics(err)
		if found == nil {
			return err
		}
		ds = append(ds, found...)
	}
	ds = append(ds, emit.CheckMappings(m)...)
	return diag.AsError(ds)
}

// validateScenario checks instances and seed facts against the model.
func validateScenario(m *model.Model, scen types.ScenarioDecl) []diag.Diagnostic {
	var ds []diag.Diagnostic
	declared := map[string]types.InstanceDecl{}
	for _, in := range scen.Instances {
		if prev, ok := declared[in.ID]; ok {
			ds = append(ds, diag.Errorf(diag.ErrDuplicateDeclaration, "", "instance "+in.ID, in.Pos,
				"instance %q already declared at %s:%d", in.ID, prev.Pos.File, prev.Pos.Line))
			continue
		}
		if m.Type(in.Type) == nil {
			ds = append(ds, diag.Errorf(diag.ErrUnknownType, "", "instance "+in.ID, in.Pos,
				"type %q is not declared", in.Type))
		}
		declared[in.ID] = in
	}

	for _, f := range scen.Facts {
		decl := "fact " + f.Predicate
		p, ok := m.PredicateNamed(f.Predicate)
		if !ok {
			ds = append(ds, diag.Errorf(diag.ErrUnknownPredicate, "", decl, f.Pos,
				"%q is not declared by any type", f.Predicate))
			continue
		}
		if len(f.Args) != len(p.Params) {
			ds = append(ds, diag.Errorf(diag.ErrArityMismatch, "", decl, f.Pos,
				"%s takes %d argument(s), got %d", f.Predicate, len(p.Params), len(f.Args)))
			continue
		}
		for i, arg := range f.Args {
			in, ok := declared[arg]
			if !ok {
				ds = append(ds, diag.Errorf(diag.ErrUnknownInstance, "", decl, f.Pos,
					"%q is not a declared instance", arg))
				continue
			}
			want := m.VarType(p.Params[i])
			if want != nil && m.Type(in.Type) != nil && !m.IsSubtype(in.Type, want.Name) {
				ds = append(ds, diag.Errorf(diag.ErrTypeMismatch, "", decl, f.Pos,
					"%q is a %s, not a %s", arg, in.Type, want.Name))
			}
		}
	}
	return ds
}

// warnings reports predicates that no rule, constraint or fact ever uses,
// and types without instances when a scenario is present.
func warnings(m *model.Model, scen types.ScenarioDecl) []string {
	used := map[string]bool{}
	for _, t := range m.Types() {
		for _, r := range t.Decl().Rules {
			for _, a := range append(model.Atoms(r.Guard), model.Atoms(r.Effect)...) {
				used[a.Predicate] = true
			}
		}
		for _, c := range t.Decl().Constraints {
			for _, a := range model.Atoms(c.Guard) {
				used[a.Predicate] = true
			}
		}
	}
	for _, f := range scen.Facts {
		used[f.Predicate] = true
	}

	var ws []string
	for _, t := range m.Types() {
		for _, p := range t.Decl().Predicates {
			if !used[p.Name] {
				ws = append(ws, fmt.Sprintf("type %s: predicate %s is never used by a rule, constraint or fact", t.Name, p.Name))
			}
		}
	}

	if len(scen.Instances) > 0 {
		populated := map[string]bool{}
		for _, in := range scen.Instances {
			for x := m.Type(in.Type); x != nil; x = x.ParentType() {
				populated[x.Name] = true
			}
		}
		for _, t := range m.Types() {
			if !t.Builtin && !populated[t.Name] {
				ws = append(ws, fmt.Sprintf("type %s has no instances", t.Name))
			}
		}
	}
	sort.Strings(ws)
	return ws
}
