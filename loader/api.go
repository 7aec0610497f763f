package loader

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/btarena/types"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerPolicyHelpers(L)
	registerEffectHelpers(L)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Game { title = "...", turn_limit = 35 }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.game = L.CheckTable(1)
		return 0
	}))

	// Player { hp = 100, mp = 100, ... }
	L.SetGlobal("Player", L.NewFunction(func(L *lua.LState) int {
		coll.player = L.CheckTable(1)
		return 0
	}))

	// Action "id" { ... } is curried: Action("id") returns a function that takes a table.
	L.SetGlobal("Action", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.actions = append(coll.actions, rawDef{id: id, table: tbl})
			return 0
		}))
		return 1
	}))

	// Enemy "id" { ... } is curried like Action.
	L.SetGlobal("Enemy", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.enemies = append(coll.enemies, rawDef{id: id, table: tbl})
			return 0
		}))
		return 1
	}))

	L.SetGlobal("Permanent", lua.LNumber(types.Permanent))

	// Cost.MP(n), Cost.TP(n)
	cost := L.NewTable()
	for _, res := range []types.Resource{types.MP, types.TP} {
		res := res
		cost.RawSetString(string(res), L.NewFunction(func(L *lua.LState) int {
			amount := L.CheckNumber(1)
			tbl := L.NewTable()
			tbl.RawSetString("resource", lua.LString(res))
			tbl.RawSetString("amount", amount)
			L.Push(tbl)
			return 1
		}))
	}
	L.SetGlobal("Cost", cost)
}

func registerPolicyHelpers(L *lua.LState) {
	// Phase { when = "HPPct > 60", moves = {...}, enter = {...} } is a pass-through.
	L.SetGlobal("Phase", L.NewFunction(func(L *lua.LState) int {
		L.Push(L.CheckTable(1))
		return 1
	}))

	// Pick("Slam", 40)
	L.SetGlobal("Pick", L.NewFunction(func(L *lua.LState) int {
		move := L.CheckString(1)
		weight := L.CheckNumber(2)
		tbl := L.NewTable()
		tbl.RawSetString("move", lua.LString(move))
		tbl.RawSetString("weight", weight)
		L.Push(tbl)
		return 1
	}))

	// On("damage_dealt", { when = "...", effects = {...} })
	L.SetGlobal("On", L.NewFunction(func(L *lua.LState) int {
		event := L.CheckString(1)
		tbl := L.OptTable(2, L.NewTable())
		tbl.RawSetString("event", lua.LString(event))
		L.Push(tbl)
		return 1
	}))
}

func registerEffectHelpers(L *lua.LState) {
	// Inflict("Burn", 3, { chance = 25, magnitude = 5 })
	L.SetGlobal("Inflict", L.NewFunction(func(L *lua.LState) int {
		L.Push(statusEffect(L, types.EffectInflict))
		return 1
	}))

	// Buff("Enrage", Permanent)
	L.SetGlobal("Buff", L.NewFunction(func(L *lua.LState) int {
		L.Push(statusEffect(L, types.EffectBuff))
		return 1
	}))

	// Heal(45)
	L.SetGlobal("Heal", L.NewFunction(func(L *lua.LState) int {
		amount := L.CheckNumber(1)
		tbl := effectTable(L, types.EffectHeal)
		tbl.RawSetString("amount", amount)
		L.Push(tbl)
		return 1
	}))

	// Gain("TP", 15)
	L.SetGlobal("Gain", L.NewFunction(func(L *lua.LState) int {
		res := L.CheckString(1)
		amount := L.CheckNumber(2)
		tbl := effectTable(L, types.EffectGain)
		tbl.RawSetString("resource", lua.LString(res))
		tbl.RawSetString("amount", amount)
		L.Push(tbl)
		return 1
	}))

	// Cooldown(3)
	L.SetGlobal("Cooldown", L.NewFunction(func(L *lua.LState) int {
		turns := L.CheckNumber(1)
		tbl := effectTable(L, types.EffectCooldown)
		tbl.RawSetString("turns", turns)
		L.Push(tbl)
		return 1
	}))

	// Scan(), Cleanse(), Dispel()
	for name, kind := range map[string]types.EffectKind{
		"Scan":    types.EffectScan,
		"Cleanse": types.EffectCleanse,
		"Dispel":  types.EffectDispel,
	} {
		kind := kind
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			L.Push(effectTable(L, kind))
			return 1
		}))
	}

	// SetElement("Fire", 3); turns may be omitted for a permanent change.
	L.SetGlobal("SetElement", L.NewFunction(func(L *lua.LState) int {
		element := L.CheckString(1)
		turns := L.OptNumber(2, 0)
		tbl := effectTable(L, types.EffectSetElement)
		tbl.RawSetString("element", lua.LString(element))
		tbl.RawSetString("turns", turns)
		L.Push(tbl)
		return 1
	}))

	// Lifesteal(20) heals a percentage of the damage just dealt.
	L.SetGlobal("Lifesteal", L.NewFunction(func(L *lua.LState) int {
		pct := L.CheckNumber(1)
		tbl := effectTable(L, types.EffectLifesteal)
		tbl.RawSetString("amount", pct)
		L.Push(tbl)
		return 1
	}))
}

func effectTable(L *lua.LState, kind types.EffectKind) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(kind))
	return tbl
}

// statusEffect reads (status, turns, opts) from the stack.
func statusEffect(L *lua.LState, kind types.EffectKind) *lua.LTable {
	status := L.CheckString(1)
	turns := L.OptNumber(2, 1)
	opts := L.OptTable(3, nil)

	tbl := effectTable(L, kind)
	tbl.RawSetString("status", lua.LString(status))
	tbl.RawSetString("turns", turns)
	if opts != nil {
		tbl.RawSetString("chance", opts.RawGetString("chance"))
		tbl.RawSetString("magnitude", opts.RawGetString("magnitude"))
	}
	return tbl
}
