// Package model builds the Declaration Model: the table of types with their
// inheritance links resolved and their effective predicate, rule, and
// constraint sets computed once and cached.
package model

import (
	"strings"

	"github.com/nathoo/ifkit/engine/diag"
	"github.com/nathoo/ifkit/types"
)

// RootType is the built-in root every parentless type extends.
const RootType = "t"

// RootKind is the target kind of the built-in root.
const RootKind = "thing"

// Predicate is a predicate visible in a type's scope.
type Predicate struct {
	types.PredicateDecl
	Owner      string   // declaring type
	ParamTypes []string // resolved parameter types; "" when a symbol names no type
}

// Rule is a rule visible in a type's scope. Var is the declaring type's
// instance variable.
type Rule struct {
	types.RuleDecl
	Owner string
	Var   string
}

// Constraint is a constraint visible in a type's scope.
type Constraint struct {
	types.ConstraintDecl
	Owner string
	Var   string
}

// Type is a resolved type.
type Type struct {
	Name    string
	Var     string
	Parent  string // empty only for the root
	Mapping *types.MappingDecl
	Pos     types.Pos
	Builtin bool

	decl        types.TypeDecl
	parent      *Type
	predicates  []Predicate
	rules       []Rule
	constraints []Constraint
}

// Model is the validated-by-construction type table.
type Model struct {
	types   map[string]*Type
	symbols map[string]*Type // type names and instance variables
	order   []*Type
}

// Build constructs the model from parsed type blocks in two phases: every
// type shell is registered first, then parents are linked, so blocks may
// appear in any order. On error the returned model is still usable for
// further validation: unknown parents and cycles are re-rooted.
func Build(decls []types.TypeDecl) (*Model, error) {
	m := &Model{
		types:   map[string]*Type{},
		symbols: map[string]*Type{},
	}
	var ds []diag.Diagnostic

	// Phase 1: shells.
	root := &Type{
		Name:    RootType,
		Var:     RootType,
		Builtin: true,
		Mapping: &types.MappingDecl{Kind: RootKind},
	}
	for _, d := range decls {
		if d.Name == RootType && d.Parent == "" {
			root = newType(d)
			break
		}
	}
	m.register(root)

	for _, d := range decls {
		if root.decl.Name == d.Name && !root.Builtin && sameDecl(root.decl, d) {
			continue
		}
		if prev, ok := m.types[d.Name]; ok {
			ds = append(ds, diag.Errorf(diag.ErrDuplicateTypeName, d.Name, "", d.Pos,
				"%q already declared at %s:%d", d.Name, prev.Pos.File, prev.Pos.Line))
			continue
		}
		t := newType(d)
		if other, ok := m.symbols[t.Var]; ok && t.Var != t.Name {
			ds = append(ds, diag.Errorf(diag.ErrDuplicateTypeName, d.Name, "", d.Pos,
				"variable %q already names type %q", t.Var, other.Name))
			continue
		}
		if other, ok := m.symbols[t.Name]; ok {
			ds = append(ds, diag.Errorf(diag.ErrDuplicateTypeName, d.Name, "", d.Pos,
				"%q is already the variable of type %q", t.Name, other.Name))
			continue
		}
		m.register(t)
	}

	// Phase 2: parents.
	for _, t := range m.order {
		if t == root {
			continue
		}
		if t.Parent == "" {
			t.Parent = root.Name
		}
		p := m.Lookup(t.Parent)
		if p == nil {
			ds = append(ds, diag.Errorf(diag.ErrUnknownParentType, t.Name, "", t.Pos,
				"parent %q is not declared", t.Parent))
			p = root
		}
		t.Parent = p.Name
		t.parent = p
	}
	ds = append(ds, m.breakCycles(root)...)

	// Phase 3: effective sets, computed once per type.
	done := map[*Type]bool{}
	for _, t := range m.order {
		m.compose(t, done)
	}

	return m, diag.AsError(ds)
}

func newType(d types.TypeDecl) *Type {
	v := d.Var
	if v == "" {
		v = d.Name
	}
	return &Type{
		Name:    d.Name,
		Var:     v,
		Parent:  d.Parent,
		Mapping: d.Mapping,
		Pos:     d.Pos,
		decl:    d,
	}
}

func sameDecl(a, b types.TypeDecl) bool {
	return a.Name == b.Name && a.Pos == b.Pos
}

func (m *Model) register(t *Type) {
	m.types[t.Name] = t
	m.symbols[t.Name] = t
	m.symbols[t.Var] = t
	m.order = append(m.order, t)
}

// breakCycles reports every inheritance cycle once and re-roots its members.
func (m *Model) breakCycles(root *Type) []diag.Diagnostic {
	var ds []diag.Diagnostic
	state := map[*Type]int{} // 0 unvisited, 1 on path, 2 finished
	for _, start := range m.order {
		var path []*Type
		t := start
		for t != nil && state[t] == 0 {
			state[t] = 1
			path = append(path, t)
			t = t.parent
		}
		if t != nil && state[t] == 1 {
			// t is on the current path: everything from t onward is a cycle.
			var names []string
			cyc := path[indexOf(path, t):]
			for _, c := range cyc {
				names = append(names, c.Name)
			}
			names = append(names, t.Name)
			ds = append(ds, diag.Errorf(diag.ErrInheritanceCycle, t.Name, "", t.Pos,
				"%s", joinArrow(names)))
			for _, c := range cyc {
				c.parent = root
				c.Parent = root.Name
			}
		}
		for _, p := range path {
			state[p] = 2
		}
	}
	return ds
}

func indexOf(path []*Type, t *Type) int {
	for i, p := range path {
		if p == t {
			return i
		}
	}
	return 0
}

func joinArrow(names []string) string {
	return strings.Join(names, " -> ")
}

// compose computes t's effective sets from its parent's cached sets. Own
// declarations shadow inherited ones of the same name.
func (m *Model) compose(t *Type, done map[*Type]bool) {
	if done[t] {
		return
	}
	done[t] = true
	if t.parent != nil {
		m.compose(t.parent, done)
	}

	ownPreds := map[string]bool{}
	for _, p := range t.decl.Predicates {
		ownPreds[p.Name] = true
	}
	ownRules := map[string]bool{}
	for _, r := range t.decl.Rules {
		ownRules[r.Name] = true
	}
	ownCons := map[string]bool{}
	for _, c := range t.decl.Constraints {
		ownCons[c.Name] = true
	}

	if t.parent != nil {
		for _, p := range t.parent.predicates {
			if !ownPreds[p.Name] {
				t.predicates = append(t.predicates, p)
			}
		}
		for _, r := range t.parent.rules {
			if !ownRules[r.Name] {
				t.rules = append(t.rules, r)
			}
		}
		for _, c := range t.parent.constraints {
			if !ownCons[c.Name] {
				t.constraints = append(t.constraints, c)
			}
		}
	}

	for _, p := range t.decl.Predicates {
		pt := make([]string, len(p.Params))
		for i, sym := range p.Params {
			if x := m.Lookup(sym); x != nil {
				pt[i] = x.Name
			}
		}
		t.predicates = append(t.predicates, Predicate{PredicateDecl: p, Owner: t.Name, ParamTypes: pt})
	}
	for _, r := range t.decl.Rules {
		t.rules = append(t.rules, Rule{RuleDecl: r, Owner: t.Name, Var: t.Var})
	}
	for _, c := range t.decl.Constraints {
		t.constraints = append(t.constraints, Constraint{ConstraintDecl: c, Owner: t.Name, Var: t.Var})
	}
}

// Lookup returns the type named or bound to sym, or nil.
func (m *Model) Lookup(sym string) *Type {
	if t, ok := m.types[sym]; ok {
		return t
	}
	return m.symbols[sym]
}

// Type returns the type with the given name, or nil.
func (m *Model) Type(name string) *Type {
	return m.types[name]
}

// Types returns every type in declaration order, root first.
func (m *Model) Types() []*Type {
	out := make([]*Type, len(m.order))
	copy(out, m.order)
	return out
}

// IsSubtype reports whether t is ancestor or inherits from it.
func (m *Model) IsSubtype(t, ancestor string) bool {
	for x := m.Type(t); x != nil; x = x.parent {
		if x.Name == ancestor {
			return true
		}
	}
	return false
}

// RulesNamed returns the distinct rule declarations called name, in type
// declaration order.
func (m *Model) RulesNamed(name string) []Rule {
	var out []Rule
	for _, t := range m.order {
		for _, r := range t.decl.Rules {
			if r.Name == name {
				out = append(out, Rule{RuleDecl: r, Owner: t.Name, Var: t.Var})
			}
		}
	}
	return out
}

// PredicateNamed returns the first declaration of a predicate across all
// types, in declaration order.
func (m *Model) PredicateNamed(name string) (Predicate, bool) {
	for _, t := range m.order {
		for _, p := range t.predicates {
			if p.Name == name && p.Owner == t.Name {
				return p, true
			}
		}
	}
	return Predicate{}, false
}

// Decl returns the parsed block the type was built from.
func (t *Type) Decl() types.TypeDecl { return t.decl }

// ParentType returns the resolved parent, nil for the root.
func (t *Type) ParentType() *Type { return t.parent }

// Predicates returns the effective predicate set: inherited then own.
func (t *Type) Predicates() []Predicate { return t.predicates }

// Rules returns the effective rule set.
func (t *Type) Rules() []Rule { return t.rules }

// Constraints returns the effective constraint set.
func (t *Type) Constraints() []Constraint { return t.constraints }

// Predicate looks up a visible predicate by name.
func (t *Type) Predicate(name string) (Predicate, bool) {
	for _, p := range t.predicates {
		if p.Name == name {
			return p, true
		}
	}
	return Predicate{}, false
}

// Rule looks up a visible rule by name.
func (t *Type) Rule(name string) (Rule, bool) {
	for _, r := range t.rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// Kind returns the target kind of the type, falling back to its name.
func (t *Type) Kind() string {
	if t.Mapping != nil && t.Mapping.Kind != "" {
		return t.Mapping.Kind
	}
	return t.Name
}

// VarType returns the type a pattern variable is bound to: the type named
// by the symbol once trailing digits and primes are removed, so c, c2 and
// c' all range over containers. Returns nil if no such type exists.
func (m *Model) VarType(sym string) *Type {
	base := strings.TrimRightFunc(sym, func(r rune) bool {
		return r == '\'' || (r >= '0' && r <= '9')
	})
	if base == "" {
		return nil
	}
	return m.Lookup(base)
}

// Atoms flattens an expression tree into its conjuncts, left to right.
func Atoms(e types.Expr) []types.Atom {
	switch e.Kind {
	case types.ExprAtom:
		if e.Atom.Predicate == "" {
			return nil
		}
		return []types.Atom{e.Atom}
	case types.ExprAnd:
		var out []types.Atom
		for _, t := range e.Terms {
			out = append(out, Atoms(t)...)
		}
		return out
	}
	return nil
}
