package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerBodyHelpers(L, coll)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Type "f" { parent = "o", predicates = {...}, ... }: curried.
	L.SetGlobal("Type", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		pos := coll.where(L)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.types = append(coll.types, rawType{name: name, table: tbl, pos: pos})
			return 0
		}))
		return 1
	}))

	// Instance "apple" "f": curried.
	L.SetGlobal("Instance", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		pos := coll.where(L)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			typ := L.CheckString(1)
			coll.instances = append(coll.instances, rawInstance{id: id, typ: typ, pos: pos})
			return 0
		}))
		return 1
	}))

	// Fact "in(apple, player_inventory)"
	L.SetGlobal("Fact", L.NewFunction(func(L *lua.LState) int {
		src := L.CheckString(1)
		coll.facts = append(coll.facts, rawAtom{src: src, pos: coll.where(L)})
		return 0
	}))
}

func registerBodyHelpers(L *lua.LState, coll *collector) {
	// Rule("eat", "in(f, I)", "eaten(f)") returns a marker table.
	L.SetGlobal("Rule", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("__kind", lua.LString("rule"))
		tbl.RawSetString("name", lua.LString(L.CheckString(1)))
		tbl.RawSetString("guard", lua.LString(L.CheckString(2)))
		tbl.RawSetString("effect", lua.LString(L.CheckString(3)))
		tbl.RawSetString("line", lua.LNumber(coll.where(L).Line))
		L.Push(tbl)
		return 1
	}))

	// Constraint("eaten1", "eaten(f) & in(f, I)"): the action is always fail().
	L.SetGlobal("Constraint", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("__kind", lua.LString("constraint"))
		tbl.RawSetString("name", lua.LString(L.CheckString(1)))
		tbl.RawSetString("guard", lua.LString(L.CheckString(2)))
		tbl.RawSetString("line", lua.LNumber(coll.where(L).Line))
		L.Push(tbl)
		return 1
	}))

	// Command("eat {f}", "eating the {f}")
	L.SetGlobal("Command", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("__kind", lua.LString("command"))
		tbl.RawSetString("phrase", lua.LString(L.CheckString(1)))
		tbl.RawSetString("narration", lua.LString(L.CheckString(2)))
		tbl.RawSetString("line", lua.LNumber(coll.where(L).Line))
		L.Push(tbl)
		return 1
	}))
}
