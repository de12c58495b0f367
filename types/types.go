// Package types defines the shared data structures for the ifkit compiler
// and runtime: the declaration tree produced by the front ends and the
// ground facts manipulated by the rule engine.
// This package contains only type definitions: no logic and no methods.
package types

// Pos is a source location of a declaration.
type Pos struct {
	File string
	Line int
}

// ExprKind tags an Expr node.
type ExprKind int

const (
	// ExprAtom is a predicate application leaf.
	ExprAtom ExprKind = iota
	// ExprAnd is a conjunction of its Terms.
	ExprAnd
)

// Atom is a predicate applied to variable symbols, e.g. in(f, I).
type Atom struct {
	Predicate string
	Args      []string
	Negated   bool // effect only: retract instead of assert
	Pos       Pos
}

// Expr is a guard or effect expression tree.
type Expr struct {
	Kind  ExprKind
	Atom  Atom   // ExprAtom
	Terms []Expr // ExprAnd
}

// PredicateDecl declares a predicate and the types of its parameters,
// written as type symbols: in(o, c).
type PredicateDecl struct {
	Name   string
	Params []string
	Pos    Pos
}

// RuleDecl is a state transition: when Guard holds, Effect is asserted.
type RuleDecl struct {
	Name   string
	Guard  Expr
	Effect Expr
	Pos    Pos
}

// ConstraintDecl marks an illegal world configuration. Action is always "fail".
type ConstraintDecl struct {
	Name   string
	Guard  Expr
	Action string
	Pos    Pos
}

// SentenceDecl maps a predicate to a natural-language template with
// {param} slots.
type SentenceDecl struct {
	Params   []string // parameter symbols as written in the mapping key
	Template string
	Pos      Pos
}

// CommandDecl maps a rule to a command phrase and a narration template.
type CommandDecl struct {
	Phrase    string // "eat {f}"
	Narration string // "eating the {f}"
	Pos       Pos
}

// MappingDecl is the inform7 block of a type.
type MappingDecl struct {
	Kind       string
	Definition string
	Predicates map[string]SentenceDecl // predicate name → sentence
	Commands   map[string]CommandDecl  // rule name → command
	Pos        Pos
}

// TypeDecl is one parsed type block.
type TypeDecl struct {
	Name        string
	Var         string // instance variable; empty means Name
	Parent      string // empty means the built-in root
	Predicates  []PredicateDecl
	Rules       []RuleDecl
	Constraints []ConstraintDecl
	Mapping     *MappingDecl // nil if the block has no inform7 section
	Pos         Pos
}

// InstanceDecl declares a live instance of a type for a play session.
type InstanceDecl struct {
	ID   string
	Type string
	Pos  Pos
}

// ScenarioDecl seeds a play session: instances and initial ground facts.
type ScenarioDecl struct {
	Instances []InstanceDecl
	Facts     []Atom
}

// Fact is a ground predicate application.
type Fact struct {
	Predicate string   `json:"predicate"`
	Args      []string `json:"args"`
}

// Bindings maps rule or constraint variables to instance identifiers.
type Bindings map[string]string
