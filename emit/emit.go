// Package emit compiles the validated declaration model into Inform7 source:
// one kind declaration per type, one say-phrase per predicate sentence, and
// an Understand/Report pair per rule command.
package emit

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/nathoo/ifkit/engine/diag"
	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/engine/rules"
	"github.com/nathoo/ifkit/types"
)

// Section tags an emitted line.
type Section int

const (
	SectionKind Section = iota
	SectionPredicate
	SectionCommand
)

// Line is one emitted Inform7 sentence.
type Line struct {
	Section Section
	Decl    string // predicate or rule name; empty for kind lines
	Text    string
}

// TargetSource is the Inform7 rendition of one type.
type TargetSource struct {
	Type  string
	Kind  string
	Lines []Line
}

// Text renders the source, one sentence per line.
func (s *TargetSource) Text() string {
	var b strings.Builder
	for _, l := range s.Lines {
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Options tunes EmitAll.
type Options struct {
	Parallelism int
}

var slotRe = regexp.MustCompile(`\{([^{}]*)\}`)

// Emit renders one type. Every own predicate and rule must have a mapping
// entry; all gaps are reported together as a *diag.Error.
func Emit(m *model.Model, typeName string) (*TargetSource, error) {
	t := m.Type(typeName)
	if t == nil {
		return nil, fmt.Errorf("emit: unknown type %q", typeName)
	}
	e := &emitter{m: m, t: t}
	src := e.run()
	if err := diag.AsError(e.ds); err != nil {
		return nil, err
	}
	return src, nil
}

// EmitAll renders every declared type in declaration order. Types are
// rendered concurrently; diagnostics from all types are merged.
func EmitAll(ctx context.Context, m *model.Model, opts Options) ([]*TargetSource, error) {
	var ts []*model.Type
	for _, t := range m.Types() {
		if !t.Builtin {
			ts = append(ts, t)
		}
	}
	out := make([]*TargetSource, len(ts))
	found := make([][]diag.Diagnostic, len(ts))

	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	for i, t := range ts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := &emitter{m: m, t: t}
			out[i] = e.run()
			found[i] = e.ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("emitting: %w", err)
	}

	var all []diag.Diagnostic
	for _, ds := range found {
		all = append(all, ds...)
	}
	if err := diag.AsError(all); err != nil {
		return nil, err
	}
	return out, nil
}

// Render joins sources with a blank line between types.
func Render(srcs []*TargetSource) string {
	parts := make([]string, len(srcs))
	for i, s := range srcs {
		parts[i] = s.Text()
	}
	return strings.Join(parts, "\n")
}

// CheckMappings runs the closed-world mapping check over every declared type
// without keeping the output.
func CheckMappings(m *model.Model) []diag.Diagnostic {
	var ds []diag.Diagnostic
	for _, t := range m.Types() {
		if t.Builtin {
			continue
		}
		e := &emitter{m: m, t: t}
		e.run()
		ds = append(ds, e.ds...)
	}
	return ds
}

type emitter struct {
	m  *model.Model
	t  *model.Type
	ds []diag.Diagnostic
}

func (e *emitter) errorf(kind error, decl string, pos types.Pos, format string, args ...any) {
	e.ds = append(e.ds, diag.Errorf(kind, e.t.Name, decl, pos, format, args...))
}

func (e *emitter) run() *TargetSource {
	src := &TargetSource{Type: e.t.Name, Kind: e.t.Kind()}
	decl := e.t.Decl()
	mp := e.t.Mapping
	if mp == nil || mp.Kind == "" {
		e.errorf(diag.ErrMissingMapping, "", e.t.Pos, "no inform7 kind for type %s", e.t.Name)
		mp = &types.MappingDecl{}
	} else {
		src.Lines = append(src.Lines, e.kindLines(mp)...)
	}

	for _, p := range decl.Predicates {
		if l, ok := e.predicateLine(mp, p); ok {
			src.Lines = append(src.Lines, l)
		}
	}
	for _, r := range decl.Rules {
		rule := model.Rule{RuleDecl: r, Owner: e.t.Name, Var: e.t.Var}
		src.Lines = append(src.Lines, e.commandLines(mp, rule)...)
	}
	return src
}

func (e *emitter) kindLines(mp *types.MappingDecl) []Line {
	var out []Line
	if p := e.t.ParentType(); p != nil {
		out = append(out, Line{
			Section: SectionKind,
			Text:    fmt.Sprintf("%s %s is a kind of %s.", capitalize(article(mp.Kind)), mp.Kind, kindOf(p)),
		})
	}
	if mp.Definition != "" {
		out = append(out, Line{Section: SectionKind, Text: capitalize(mp.Definition)})
	}
	return out
}

// kindOf returns the Inform7 kind of t; unmapped types fall back to thing.
func kindOf(t *model.Type) string {
	if t == nil || t.Mapping == nil || t.Mapping.Kind == "" {
		return model.RootKind
	}
	return t.Mapping.Kind
}

func (e *emitter) predicateLine(mp *types.MappingDecl, p types.PredicateDecl) (Line, bool) {
	decl := "predicate " + p.Name
	s, ok := mp.Predicates[p.Name]
	if !ok {
		e.errorf(diag.ErrMissingMapping, decl, p.Pos, "no inform7 sentence for %s", p.Name)
		return Line{}, false
	}
	names := s.Params
	if len(names) == 0 {
		names = p.Params
	}
	if len(names) != len(p.Params) {
		e.errorf(diag.ErrSlotMismatch, decl, s.Pos,
			"sentence key has %d parameter(s), predicate has %d", len(names), len(p.Params))
		return Line{}, false
	}

	locals := map[string]string{}
	var sig []string
	for i, name := range names {
		kind := model.RootKind
		if pt := e.m.Lookup(p.Params[i]); pt != nil && !pt.Builtin {
			kind = kindOf(pt)
		}
		local := fmt.Sprintf("%s-%d", slug(kind), i+1)
		locals[name] = local
		sig = append(sig, fmt.Sprintf("(%s - %s %s)", local, article(kind), kind))
	}

	used := map[string]bool{}
	bad := false
	text := slotRe.ReplaceAllStringFunc(s.Template, func(slot string) string {
		name := slot[1 : len(slot)-1]
		local, ok := locals[name]
		if !ok {
			e.errorf(diag.ErrSlotMismatch, decl, s.Pos, "slot {%s} is not a parameter of %s", name, p.Name)
			bad = true
			return slot
		}
		used[name] = true
		return "[" + local + "]"
	})
	for _, name := range names {
		if !used[name] {
			e.errorf(diag.ErrSlotMismatch, decl, s.Pos, "parameter %s does not appear in the sentence", name)
			bad = true
		}
	}
	if bad {
		return Line{}, false
	}
	head := "To say the " + p.Name + " sentence"
	if len(sig) > 0 {
		head += " for " + strings.Join(sig, " and ")
	}
	return Line{
		Section: SectionPredicate,
		Decl:    p.Name,
		Text:    fmt.Sprintf("%s: say \"%s\".", head, quote(text)),
	}, true
}

func (e *emitter) commandLines(mp *types.MappingDecl, r model.Rule) []Line {
	decl := "rule " + r.Name
	c, ok := mp.Commands[r.Name]
	if !ok {
		e.errorf(diag.ErrMissingMapping, decl, r.Pos, "no inform7 command for %s", r.Name)
		return nil
	}

	vars := map[string]bool{}
	for _, v := range rules.Vars(r) {
		vars[v] = true
	}
	objects := map[string]string{} // variable → noun / second noun
	var order []string
	bad := false
	for _, sm := range slotRe.FindAllStringSubmatch(c.Phrase, -1) {
		v := sm[1]
		if !vars[v] {
			e.errorf(diag.ErrSlotMismatch, decl, c.Pos, "phrase slot {%s} is not a variable of %s", v, r.Name)
			bad = true
			continue
		}
		if _, dup := objects[v]; dup {
			continue
		}
		switch len(order) {
		case 0:
			objects[v] = "noun"
		case 1:
			objects[v] = "second noun"
		default:
			e.errorf(diag.ErrSlotMismatch, decl, c.Pos, "phrase has more than two object slots")
			bad = true
		}
		order = append(order, v)
	}
	for _, sm := range slotRe.FindAllStringSubmatch(c.Narration, -1) {
		if _, ok := objects[sm[1]]; !ok {
			e.errorf(diag.ErrSlotMismatch, decl, c.Pos, "narration slot {%s} does not appear in the phrase", sm[1])
			bad = true
		}
	}
	if bad {
		return nil
	}

	action := ActionName(c.Narration, order)
	if action == "" {
		action = r.Name
	}
	grammar := slotRe.ReplaceAllString(c.Phrase, "[something]")
	report := slotRe.ReplaceAllStringFunc(c.Narration, func(slot string) string {
		return "[" + objects[slot[1:len(slot)-1]] + "]"
	})
	var out []Line
	if !builtinActions[action] {
		out = append(out, Line{Section: SectionCommand, Decl: r.Name,
			Text: fmt.Sprintf("%s is an action applying to %s.", capitalize(action), applyingTo[len(order)])})
	}
	return append(out,
		Line{Section: SectionCommand, Decl: r.Name, Text: fmt.Sprintf("Understand \"%s\" as %s.", quote(grammar), action)},
		Line{Section: SectionCommand, Decl: r.Name, Text: fmt.Sprintf("Report %s: say \"%s\".", action, quote(report))},
	)
}

var applyingTo = [...]string{"nothing", "one thing", "two things"}

// builtinActions are the Standard Rules actions; any other action name must
// be declared before it is understood.
var builtinActions = map[string]bool{
	"taking": true, "dropping": true, "eating": true, "drinking": true,
	"inserting it into": true, "putting it on": true, "removing it from": true,
	"opening": true, "closing": true, "locking it with": true, "unlocking it with": true,
	"examining": true, "searching": true, "looking": true, "waiting": true,
	"wearing": true, "taking off": true, "entering": true, "exiting": true,
	"giving it to": true, "showing it to": true, "throwing it at": true,
	"switching on": true, "switching off": true, "pushing": true, "pulling": true,
	"turning": true, "touching": true, "attacking": true, "cutting": true,
	"tying it to": true, "burning": true, "climbing": true, "smelling": true,
	"tasting": true, "rubbing": true, "squeezing": true, "waving": true,
}

// ActionName derives an Inform7 action name from a narration template: the
// words before the first object slot, minus a trailing article, followed by
// "it" and the words leading to the second slot when there is one.
// "inserting the {o} into the {c}" becomes "inserting it into".
func ActionName(narration string, objects []string) string {
	locs := slotRe.FindAllStringSubmatchIndex(narration, -1)
	if len(locs) == 0 {
		return strings.TrimRight(strings.TrimSpace(narration), ".!?")
	}
	name := dropArticle(narration[:locs[0][0]])
	if len(objects) > 1 && len(locs) > 1 {
		between := dropArticle(narration[locs[0][1]:locs[1][0]])
		name = strings.TrimSpace(name + " it " + between)
	}
	return name
}

func dropArticle(s string) string {
	words := strings.Fields(s)
	if n := len(words); n > 0 {
		switch strings.ToLower(words[n-1]) {
		case "the", "a", "an", "some":
			words = words[:n-1]
		}
	}
	return strings.Join(words, " ")
}

func article(kind string) string {
	if kind != "" && strings.ContainsRune("aeiouAEIOU", rune(kind[0])) {
		return "an"
	}
	return "a"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// slug turns a kind into an Inform7 local name stem: "player bag" becomes
// "player-bag".
func slug(s string) string {
	var b strings.Builder
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if b.Len() > 0 {
			b.WriteByte('-')
		}
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// quote makes text safe inside an Inform7 string: double quotes become the
// single quotes Inform7 prints as double quotes.
func quote(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}
