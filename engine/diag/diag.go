// Package diag defines the load-time error kinds and the diagnostic records
// that carry them. Loading collects every diagnostic before failing.
package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/ifkit/types"
)

// Load-time error kinds. Use errors.Is against a Diagnostic or an *Error.
var (
	ErrUnknownParentType = errors.New("unknown parent type")
	ErrDuplicateTypeName = errors.New("duplicate type name")
	ErrInheritanceCycle  = errors.New("inheritance cycle")
	ErrUnknownPredicate  = errors.New("unknown predicate")
	ErrArityMismatch     = errors.New("arity mismatch")
	ErrUnboundVariable   = errors.New("unbound variable")
	ErrMissingMapping    = errors.New("missing mapping")
	ErrSlotMismatch      = errors.New("slot mismatch")

	ErrDuplicateDeclaration = errors.New("duplicate declaration")
	ErrSyntax               = errors.New("syntax error")
	ErrUnknownType          = errors.New("unknown type")
	ErrUnknownInstance      = errors.New("unknown instance")
	ErrTypeMismatch         = errors.New("type mismatch")
)

// Diagnostic is one load-time finding.
type Diagnostic struct {
	Kind   error
	Type   string // owning type
	Decl   string // "rule eat", "constraint eaten1", "predicate in", ...
	Pos    types.Pos
	Detail string
}

func (d Diagnostic) Error() string {
	var b strings.Builder
	if d.Pos.File != "" {
		fmt.Fprintf(&b, "%s:%d: ", d.Pos.File, d.Pos.Line)
	}
	if d.Type != "" {
		fmt.Fprintf(&b, "type %s", d.Type)
		if d.Decl != "" {
			b.WriteString(" " + d.Decl)
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Kind.Error())
	if d.Detail != "" {
		b.WriteString(": " + d.Detail)
	}
	return b.String()
}

func (d Diagnostic) Unwrap() error { return d.Kind }

// Error is a batch of diagnostics returned by a failed pass.
type Error struct {
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.Error()
	}
	return fmt.Sprintf("%d error(s):\n  %s", len(e.Diagnostics), strings.Join(lines, "\n  "))
}

// Unwrap exposes every diagnostic so errors.Is matches any collected kind.
func (e *Error) Unwrap() []error {
	errs := make([]error, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		errs[i] = d
	}
	return errs
}

// Errorf builds a Diagnostic.
func Errorf(kind error, typ, decl string, pos types.Pos, format string, args ...any) Diagnostic {
	return Diagnostic{Kind: kind, Type: typ, Decl: decl, Pos: pos, Detail: fmt.Sprintf(format, args...)}
}

// Sort orders diagnostics by file, line, type, then message, and drops
// exact duplicates.
func Sort(ds []Diagnostic) []Diagnostic {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Pos.File != b.Pos.File {
			return a.Pos.File < b.Pos.File
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Error() < b.Error()
	})
	out := ds[:0]
	seen := map[string]bool{}
	for _, d := range ds {
		key := d.Error()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// AsError returns nil for an empty list, otherwise an *Error.
func AsError(ds []Diagnostic) error {
	if len(ds) == 0 {
		return nil
	}
	return &Error{Diagnostics: Sort(ds)}
}

// Diagnostics extracts the diagnostics carried by err, if any.
func Diagnostics(err error) []Diagnostic {
	var de *Error
	if errors.As(err, &de) {
		return de.Diagnostics
	}
	var d Diagnostic
	if errors.As(err, &d) {
		return []Diagnostic{d}
	}
	return nil
}
