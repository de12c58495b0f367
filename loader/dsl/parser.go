package dsl

import (
	"strings"

	"github.com/nathoo/ifkit/engine/diag"
	"github.com/nathoo/ifkit/types"
)

// File is the parse result of one source file.
type File struct {
	Types    []types.TypeDecl
	Scenario types.ScenarioDecl
}

// bailout unwinds the parser on the first syntax error.
type bailout struct{ d diag.Diagnostic }

type parser struct {
	lex  *lexer
	tok  token
	file string
}

// Parse parses a complete source file. Parsing stops at the first syntax
// error, which is returned as a diag.Diagnostic of kind diag.ErrSyntax.
func Parse(file string, src []byte) (f *File, err error) {
	p := newParser(file, string(src))
	defer p.recover(&err)
	p.next()
	f = &File{}
	for p.tok.kind != tokEOF {
		switch {
		case p.isIdent("type"):
			f.Types = append(f.Types, p.typeBlock())
		case p.isIdent("instance"):
			f.Scenario.Instances = append(f.Scenario.Instances, p.instance())
		case p.isIdent("fact"):
			p.next()
			a := p.atom(false)
			p.expect(";")
			f.Scenario.Facts = append(f.Scenario.Facts, a)
		default:
			p.failf("expected type, instance or fact, found %s", p.tok)
		}
	}
	return f, nil
}

// ParseGuard parses a conjunction of atoms: in(f, I) & on(f, s).
func ParseGuard(src string) (e types.Expr, err error) {
	p := newParser("", src)
	defer p.recover(&err)
	p.next()
	e = p.expr(false)
	p.expectEOF()
	return e, nil
}

// ParseEffect parses an effect: a conjunction of atoms, each optionally
// negated with ! to retract it.
func ParseEffect(src string) (e types.Expr, err error) {
	p := newParser("", src)
	defer p.recover(&err)
	p.next()
	e = p.expr(true)
	p.expectEOF()
	return e, nil
}

// ParseAtom parses a single atom: edible(f).
func ParseAtom(src string) (a types.Atom, err error) {
	p := newParser("", src)
	defer p.recover(&err)
	p.next()
	a = p.atom(false)
	p.expectEOF()
	return a, nil
}

func newParser(file, src string) *parser {
	return &parser{lex: newLexer(file, src), file: file}
}

func (p *parser) recover(err *error) {
	if r := recover(); r != nil {
		b, ok := r.(bailout)
		if !ok {
			panic(r)
		}
		*err = b.d
	}
}

func (p *parser) pos() types.Pos {
	return types.Pos{File: p.file, Line: p.tok.line}
}

func (p *parser) failf(format string, args ...any) {
	panic(bailout{diag.Errorf(diag.ErrSyntax, "", "", p.pos(), format, args...)})
}

func (p *parser) next() {
	p.tok = p.lex.next()
	if p.lex.err != nil {
		panic(bailout{diag.Errorf(diag.ErrSyntax, "", "", *p.lex.err, "%s", p.lex.msg)})
	}
}

func (p *parser) isIdent(s string) bool {
	return p.tok.kind == tokIdent && p.tok.text == s
}

func (p *parser) is(punct string) bool {
	return p.tok.kind == tokPunct && p.tok.text == punct
}

func (p *parser) expect(punct string) {
	if !p.is(punct) {
		p.failf("expected '%s', found %s", punct, p.tok)
	}
	p.next()
}

func (p *parser) expectKeyword(kw string) {
	if !p.isIdent(kw) {
		p.failf("expected %s, found %s", kw, p.tok)
	}
	p.next()
}

func (p *parser) expectEOF() {
	if p.tok.kind != tokEOF {
		p.failf("unexpected %s", p.tok)
	}
}

func (p *parser) ident() string {
	if p.tok.kind != tokIdent {
		p.failf("expected identifier, found %s", p.tok)
	}
	s := p.tok.text
	p.next()
	return s
}

func (p *parser) str() string {
	if p.tok.kind != tokString {
		p.failf("expected string, found %s", p.tok)
	}
	s := p.tok.text
	p.next()
	return s
}

// typeBlock: type NAME [(VAR)] [: PARENT] { sections }
func (p *parser) typeBlock() types.TypeDecl {
	d := types.TypeDecl{Pos: p.pos()}
	p.expectKeyword("type")
	d.Name = p.ident()
	if p.is("(") {
		p.next()
		d.Var = p.ident()
		p.expect(")")
	}
	if p.is(":") {
		p.next()
		d.Parent = p.ident()
	}
	p.expect("{")
	for !p.is("}") {
		switch {
		case p.isIdent("predicates"):
			p.next()
			p.block(func() {
				pos := p.pos()
				a := p.atom(false)
				p.expect(";")
				d.Predicates = append(d.Predicates, types.PredicateDecl{Name: a.Predicate, Params: a.Args, Pos: pos})
			})
		case p.isIdent("rules"):
			p.next()
			p.block(func() { d.Rules = append(d.Rules, p.rule()) })
		case p.isIdent("constraints"):
			p.next()
			p.block(func() { d.Constraints = append(d.Constraints, p.constraint()) })
		case p.isIdent("inform7"):
			if d.Mapping != nil {
				p.failf("type %s has two inform7 sections", d.Name)
			}
			d.Mapping = p.mapping()
		default:
			p.failf("expected predicates, rules, constraints or inform7, found %s", p.tok)
		}
	}
	p.next()
	return d
}

// block parses { item* } calling item until the closing brace.
func (p *parser) block(item func()) {
	p.expect("{")
	for !p.is("}") {
		if p.tok.kind == tokEOF {
			p.failf("unexpected end of file, missing '}'")
		}
		item()
	}
	p.next()
}

// rule: NAME :: guard -> effect ;
func (p *parser) rule() types.RuleDecl {
	r := types.RuleDecl{Pos: p.pos()}
	r.Name = p.ident()
	p.expect("::")
	r.Guard = p.expr(false)
	p.expect("->")
	r.Effect = p.expr(true)
	p.expect(";")
	return r
}

// constraint: NAME :: guard -> fail() ;
func (p *parser) constraint() types.ConstraintDecl {
	c := types.ConstraintDecl{Pos: p.pos()}
	c.Name = p.ident()
	p.expect("::")
	c.Guard = p.expr(false)
	p.expect("->")
	action := p.pos()
	a := p.atom(false)
	if a.Predicate != "fail" || len(a.Args) != 0 {
		panic(bailout{diag.Errorf(diag.ErrSyntax, "", "constraint "+c.Name, action,
			"constraint action must be fail(), found %s(...)", a.Predicate)})
	}
	c.Action = a.Predicate
	p.expect(";")
	return c
}

func (p *parser) mapping() *types.MappingDecl {
	m := &types.MappingDecl{
		Pos:        p.pos(),
		Predicates: map[string]types.SentenceDecl{},
		Commands:   map[string]types.CommandDecl{},
	}
	p.expectKeyword("inform7")
	p.block(func() {
		switch {
		case p.isIdent("type"):
			p.next()
			p.block(func() {
				key := p.ident()
				p.expect("::")
				val := p.str()
				p.expect(";")
				switch key {
				case "kind":
					m.Kind = val
				case "definition":
					m.Definition = val
				default:
					p.failf("unknown inform7 type key %q", key)
				}
			})
		case p.isIdent("predicates"):
			p.next()
			p.block(func() {
				pos := p.pos()
				a := p.atom(false)
				p.expect("::")
				tmpl := p.str()
				p.expect(";")
				m.Predicates[a.Predicate] = types.SentenceDecl{Params: a.Args, Template: tmpl, Pos: pos}
			})
		case p.isIdent("commands"):
			p.next()
			p.block(func() {
				pos := p.pos()
				name := p.ident()
				p.expect("::")
				phrase := p.str()
				p.expect("::")
				narration := p.str()
				p.expect(";")
				m.Commands[name] = types.CommandDecl{Phrase: phrase, Narration: narration, Pos: pos}
			})
		default:
			p.failf("expected type, predicates or commands, found %s", p.tok)
		}
	})
	return m
}

// instance: instance ID : TYPE ;
func (p *parser) instance() types.InstanceDecl {
	in := types.InstanceDecl{Pos: p.pos()}
	p.expectKeyword("instance")
	in.ID = p.ident()
	p.expect(":")
	in.Type = p.ident()
	p.expect(";")
	return in
}

// expr: atom { & atom }. A single atom is returned as an ExprAtom.
func (p *parser) expr(effect bool) types.Expr {
	first := types.Expr{Kind: types.ExprAtom, Atom: p.atom(effect)}
	if !p.is("&") {
		return first
	}
	e := types.Expr{Kind: types.ExprAnd, Terms: []types.Expr{first}}
	for p.is("&") {
		p.next()
		e.Terms = append(e.Terms, types.Expr{Kind: types.ExprAtom, Atom: p.atom(effect)})
	}
	return e
}

// atom: [!] NAME ( [ARG {, ARG}] )
func (p *parser) atom(negatable bool) types.Atom {
	a := types.Atom{Pos: p.pos()}
	if p.is("!") {
		if !negatable {
			p.failf("negation is only allowed in rule effects")
		}
		a.Negated = true
		p.next()
	}
	a.Predicate = p.ident()
	p.expect("(")
	a.Args = []string{}
	if !p.is(")") {
		a.Args = append(a.Args, p.ident())
		for p.is(",") {
			p.next()
			a.Args = append(a.Args, p.ident())
		}
	}
	p.expect(")")
	return a
}

// String renders an atom in source form.
func String(a types.Atom) string {
	s := a.Predicate + "(" + strings.Join(a.Args, ", ") + ")"
	if a.Negated {
		s = "!" + s
	}
	return s
}

// ExprString renders an expression in source form.
func ExprString(e types.Expr) string {
	switch e.Kind {
	case types.ExprAnd:
		parts := make([]string, len(e.Terms))
		for i, t := range e.Terms {
			parts[i] = ExprString(t)
		}
		return strings.Join(parts, " & ")
	default:
		return String(e.Atom)
	}
}
