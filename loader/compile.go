package loader

import (
	"sort"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/ifkit/engine/diag"
	"github.com/nathoo/ifkit/loader/dsl"
	"github.com/nathoo/ifkit/types"
)

// rawType holds a Type table before compilation.
type rawType struct {
	name  string
	table *lua.LTable
	pos   types.Pos
}

// rawInstance holds an Instance declaration before compilation.
type rawInstance struct {
	id  string
	typ string
	pos types.Pos
}

// rawAtom holds an atom still in source form.
type rawAtom struct {
	src string
	pos types.Pos
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getInt returns an integer field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return 0
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	if t, ok := tbl.RawGetString(key).(*lua.LTable); ok {
		return t
	}
	return nil
}

// arrayTables returns the table elements of a Lua array in order.
func arrayTables(tbl *lua.LTable) []*lua.LTable {
	if tbl == nil {
		return nil
	}
	var out []*lua.LTable
	for i := 1; i <= tbl.Len(); i++ {
		if t, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			out = append(out, t)
		}
	}
	return out
}

// compiler converts collected Lua data into declaration trees, recording a
// diagnostic for every malformed entry instead of stopping at the first.
type compiler struct {
	ds []diag.Diagnostic
}

func (c *compiler) syntax(typ, decl string, pos types.Pos, err error) {
	detail := err.Error()
	if d, ok := err.(diag.Diagnostic); ok {
		detail = d.Detail
	}
	c.ds = append(c.ds, diag.Diagnostic{Kind: diag.ErrSyntax, Type: typ, Decl: decl, Pos: pos, Detail: detail})
}

// compile converts all collected Lua data.
func compile(coll *collector) ([]types.TypeDecl, types.ScenarioDecl, []diag.Diagnostic) {
	c := &compiler{}
	var decls []types.TypeDecl
	for _, raw := range coll.types {
		decls = append(decls, c.compileType(raw))
	}

	var scen types.ScenarioDecl
	for _, raw := range coll.instances {
		scen.Instances = append(scen.Instances, types.InstanceDecl{ID: raw.id, Type: raw.typ, Pos: raw.pos})
	}
	for _, raw := range coll.facts {
		a, err := dsl.ParseAtom(raw.src)
		if err != nil {
			c.syntax("", "fact", raw.pos, err)
			continue
		}
		a.Pos = raw.pos
		scen.Facts = append(scen.Facts, a)
	}
	return decls, scen, c.ds
}

func (c *compiler) compileType(raw rawType) types.TypeDecl {
	d := types.TypeDecl{
		Name:   raw.name,
		Var:    getString(raw.table, "var"),
		Parent: getString(raw.table, "parent"),
		Pos:    raw.pos,
	}

	if preds := getTable(raw.table, "predicates"); preds != nil {
		for i := 1; i <= preds.Len(); i++ {
			src, ok := preds.RawGetInt(i).(lua.LString)
			if !ok {
				continue
			}
			a, err := dsl.ParseAtom(string(src))
			if err != nil {
				c.syntax(d.Name, "predicate", raw.pos, err)
				continue
			}
			d.Predicates = append(d.Predicates, types.PredicateDecl{Name: a.Predicate, Params: a.Args, Pos: raw.pos})
		}
	}

	for _, tbl := range arrayTables(getTable(raw.table, "rules")) {
		if r, ok := c.compileRule(d.Name, raw.pos, tbl); ok {
			d.Rules = append(d.Rules, r)
		}
	}
	for _, tbl := range arrayTables(getTable(raw.table, "constraints")) {
		if k, ok := c.compileConstraint(d.Name, raw.pos, tbl); ok {
			d.Constraints = append(d.Constraints, k)
		}
	}
	if m := getTable(raw.table, "inform7"); m != nil {
		d.Mapping = c.compileMapping(d.Name, raw.pos, m)
	}
	return d
}

// at returns pos moved to the line recorded in a helper table.
func at(pos types.Pos, tbl *lua.LTable) types.Pos {
	if line := getInt(tbl, "line"); line > 0 {
		pos.Line = line
	}
	return pos
}

func (c *compiler) compileRule(typ string, pos types.Pos, tbl *lua.LTable) (types.RuleDecl, bool) {
	r := types.RuleDecl{Name: getString(tbl, "name"), Pos: at(pos, tbl)}
	decl := "rule " + r.Name
	guard, err := dsl.ParseGuard(getString(tbl, "guard"))
	if err != nil {
		c.syntax(typ, decl, r.Pos, err)
		return r, false
	}
	effect, err := dsl.ParseEffect(getString(tbl, "effect"))
	if err != nil {
		c.syntax(typ, decl, r.Pos, err)
		return r, false
	}
	r.Guard = withPos(guard, r.Pos)
	r.Effect = withPos(effect, r.Pos)
	return r, true
}

func (c *compiler) compileConstraint(typ string, pos types.Pos, tbl *lua.LTable) (types.ConstraintDecl, bool) {
	k := types.ConstraintDecl{Name: getString(tbl, "name"), Action: "fail", Pos: at(pos, tbl)}
	guard, err := dsl.ParseGuard(getString(tbl, "guard"))
	if err != nil {
		c.syntax(typ, "constraint "+k.Name, k.Pos, err)
		return k, false
	}
	k.Guard = withPos(guard, k.Pos)
	return k, true
}

func (c *compiler) compileMapping(typ string, pos types.Pos, tbl *lua.LTable) *types.MappingDecl {
	m := &types.MappingDecl{
		Kind:       getString(tbl, "kind"),
		Definition: getString(tbl, "definition"),
		Predicates: map[string]types.SentenceDecl{},
		Commands:   map[string]types.CommandDecl{},
		Pos:        pos,
	}
	if preds := getTable(tbl, "predicates"); preds != nil {
		preds.ForEach(func(k, v lua.LValue) {
			key, ok1 := k.(lua.LString)
			tmpl, ok2 := v.(lua.LString)
			if !ok1 || !ok2 {
				return
			}
			a, err := dsl.ParseAtom(string(key))
			if err != nil {
				c.syntax(typ, "inform7 predicate", pos, err)
				return
			}
			m.Predicates[a.Predicate] = types.SentenceDecl{Params: a.Args, Template: string(tmpl), Pos: pos}
		})
	}
	if cmds := getTable(tbl, "commands"); cmds != nil {
		cmds.ForEach(func(k, v lua.LValue) {
			name, ok1 := k.(lua.LString)
			cmd, ok2 := v.(*lua.LTable)
			if !ok1 || !ok2 {
				return
			}
			m.Commands[string(name)] = types.CommandDecl{
				Phrase:    getString(cmd, "phrase"),
				Narration: getString(cmd, "narration"),
				Pos:       at(pos, cmd),
			}
		})
	}
	return m
}

// withPos stamps every atom of an expression parsed from a string with the
// position of its Lua call.
func withPos(e types.Expr, pos types.Pos) types.Expr {
	switch e.Kind {
	case types.ExprAtom:
		e.Atom.Pos = pos
	case types.ExprAnd:
		terms := make([]types.Expr, len(e.Terms))
		for i, t := range e.Terms {
			terms[i] = withPos(t, pos)
		}
		e.Terms = terms
	}
	return e
}

// parseWhere parses the "chunk:line:" prefix produced by LState.Where.
func parseWhere(s, fallback string) types.Pos {
	s = strings.TrimSuffix(strings.TrimSpace(s), ":")
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return types.Pos{File: fallback}
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return types.Pos{File: fallback}
	}
	return types.Pos{File: s[:i], Line: line}
}

// sortedSourceFiles returns block files first, then Lua files, each group
// sorted alphabetically. Other files are dropped.
func sortedSourceFiles(files []string) []string {
	var twl, luaFiles []string
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".twl"):
			twl = append(twl, f)
		case strings.HasSuffix(f, ".lua"):
			luaFiles = append(luaFiles, f)
		}
	}
	sort.Strings(twl)
	sort.Strings(luaFiles)
	return append(twl, luaFiles...)
}
