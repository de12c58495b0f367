// Package resolve validates every predicate reference in the model: rule
// guards, rule effects, and constraint guards are checked against the
// predicate set visible from their type.
package resolve

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nathoo/ifkit/engine/diag"
	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/types"
)

// Options tunes the resolver pass.
type Options struct {
	// Parallelism bounds the number of types checked concurrently.
	// Zero or negative means unbounded.
	Parallelism int
}

// Check resolves every type of m and returns all findings as one
// *diag.Error. The type table is complete before Check runs, so per-type
// checks share no mutable state and run in parallel.
func Check(ctx context.Context, m *model.Model, opts Options) error {
	ts := m.Types()
	results := make([][]diag.Diagnostic, len(ts))

	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	for i, t := range ts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = CheckType(m, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("resolving predicates: %w", err)
	}

	var all []diag.Diagnostic
	for _, r := range results {
		all = append(all, r...)
	}
	return diag.AsError(all)
}

// CheckType validates the declarations visible from t. An inherited body is
// re-checked only when t shadows a predicate it uses, since otherwise its
// owner's check already covers it.
func CheckType(m *model.Model, t *model.Type) []diag.Diagnostic {
	var ds []diag.Diagnostic
	ds = append(ds, checkDuplicates(t)...)

	for _, p := range t.Decl().Predicates {
		for _, sym := range p.Params {
			if m.Lookup(sym) == nil {
				ds = append(ds, diag.Errorf(diag.ErrUnboundVariable, t.Name, "predicate "+p.Name, p.Pos,
					"parameter %q names no declared type", sym))
			}
		}
	}

	for _, r := range t.Rules() {
		if r.Owner == t.Name || shadows(m, t, r.Owner, r.Guard, r.Effect) {
			ds = append(ds, checkRule(m, t, r)...)
		}
	}
	for _, c := range t.Constraints() {
		if c.Owner == t.Name || shadows(m, t, c.Owner, c.Guard) {
			ds = append(ds, checkConstraint(m, t, c)...)
		}
	}
	return ds
}

// shadows reports whether any predicate used in exprs resolves differently
// in t than in the owning type.
func shadows(m *model.Model, t *model.Type, owner string, exprs ...types.Expr) bool {
	o := m.Type(owner)
	if o == nil {
		return true
	}
	for _, e := range exprs {
		for _, a := range model.Atoms(e) {
			p1, ok1 := o.Predicate(a.Predicate)
			p2, ok2 := t.Predicate(a.Predicate)
			if ok1 != ok2 || p1.Owner != p2.Owner {
				return true
			}
		}
	}
	return false
}

func checkDuplicates(t *model.Type) []diag.Diagnostic {
	var ds []diag.Diagnostic
	d := t.Decl()
	seen := map[string]bool{}
	for _, p := range d.Predicates {
		if seen[p.Name] {
			ds = append(ds, diag.Errorf(diag.ErrDuplicateDeclaration, t.Name, "predicate "+p.Name, p.Pos,
				"predicate %q declared twice", p.Name))
		}
		seen[p.Name] = true
	}
	seen = map[string]bool{}
	for _, r := range d.Rules {
		if seen[r.Name] {
			ds = append(ds, diag.Errorf(diag.ErrDuplicateDeclaration, t.Name, "rule "+r.Name, r.Pos,
				"rule %q declared twice", r.Name))
		}
		seen[r.Name] = true
	}
	seen = map[string]bool{}
	for _, c := range d.Constraints {
		if seen[c.Name] {
			ds = append(ds, diag.Errorf(diag.ErrDuplicateDeclaration, t.Name, "constraint "+c.Name, c.Pos,
				"constraint %q declared twice", c.Name))
		}
		seen[c.Name] = true
	}
	return ds
}

func checkRule(m *model.Model, t *model.Type, r model.Rule) []diag.Diagnostic {
	var ds []diag.Diagnostic
	decl := "rule " + r.Name
	bound := map[string]bool{r.Var: true}

	for _, a := range model.Atoms(r.Guard) {
		ds = append(ds, checkAtom(t, r.Owner, decl, a)...)
		ds = append(ds, bindPattern(m, r.Owner, decl, r.Var, a, bound)...)
	}
	effects := model.Atoms(r.Effect)
	if len(effects) == 0 {
		ds = append(ds, diag.Errorf(diag.ErrUnknownPredicate, r.Owner, decl, r.Pos, "rule has no effect"))
	}
	for _, a := range effects {
		ds = append(ds, checkAtom(t, r.Owner, decl, a)...)
		for _, arg := range a.Args {
			if !bound[arg] {
				ds = append(ds, diag.Errorf(diag.ErrUnboundVariable, r.Owner, decl, pos(a, r.Pos),
					"variable %q in %s is not bound by the guard", arg, a.Predicate))
			}
		}
	}
	return ds
}

func checkConstraint(m *model.Model, t *model.Type, c model.Constraint) []diag.Diagnostic {
	var ds []diag.Diagnostic
	decl := "constraint " + c.Name
	bound := map[string]bool{c.Var: true}
	for _, a := range model.Atoms(c.Guard) {
		ds = append(ds, checkAtom(t, c.Owner, decl, a)...)
		ds = append(ds, bindPattern(m, c.Owner, decl, c.Var, a, bound)...)
	}
	return ds
}

// checkAtom verifies the predicate exists in t's scope with matching arity.
func checkAtom(t *model.Type, owner, decl string, a types.Atom) []diag.Diagnostic {
	scope := ""
	if t.Name != owner {
		scope = " (as inherited by " + t.Name + ")"
	}
	p, ok := t.Predicate(a.Predicate)
	if !ok {
		return []diag.Diagnostic{diag.Errorf(diag.ErrUnknownPredicate, owner, decl, a.Pos,
			"%q is not visible from type %s", a.Predicate, t.Name)}
	}
	if len(p.Params) != len(a.Args) {
		return []diag.Diagnostic{diag.Errorf(diag.ErrArityMismatch, owner, decl, a.Pos,
			"%s takes %d argument(s), got %d%s", a.Predicate, len(p.Params), len(a.Args), scope)}
	}
	return nil
}

// bindPattern binds the variables of a guard atom. A pattern variable must
// range over a declared type.
func bindPattern(m *model.Model, owner, decl, self string, a types.Atom, bound map[string]bool) []diag.Diagnostic {
	var ds []diag.Diagnostic
	for _, arg := range a.Args {
		if arg == self || bound[arg] {
			continue
		}
		if m.VarType(arg) == nil {
			ds = append(ds, diag.Errorf(diag.ErrUnboundVariable, owner, decl, a.Pos,
				"variable %q names no declared type", arg))
			continue
		}
		bound[arg] = true
	}
	return ds
}

func pos(a types.Atom, fallback types.Pos) types.Pos {
	if a.Pos.File == "" && a.Pos.Line == 0 {
		return fallback
	}
	return a.Pos
}
