// Package loader loads Lua combat content into Go structs at startup.
// The Lua VM is discarded after loading: zero Lua at runtime.
package loader

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

// rawDef holds an action or enemy table before compilation.
type rawDef struct {
	id    string
	table *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getIntOr returns an int field, or def when the field is absent.
func getIntOr(tbl *lua.LTable, key string, def int) int {
	if tbl.RawGetString(key) == lua.LNil {
		return def
	}
	return getInt(tbl, key)
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// eachTable calls fn for every table in the array part of tbl.
func eachTable(tbl *lua.LTable, fn func(*lua.LTable)) {
	if tbl == nil {
		return
	}
	for i := 1; i <= tbl.MaxN(); i++ {
		if t, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			fn(t)
		}
	}
}

// compile converts all collected Lua data into a Defs struct.
func compile(coll *collector) (*state.Defs, error) {
	defs := &state.Defs{
		Actions:    map[types.ActionID]types.ActionSpec{},
		Archetypes: map[string]types.ArchetypeDef{},
	}

	if coll.game == nil {
		return nil, fmt.Errorf("no Game{} definition found")
	}
	defs.Game = compileGame(coll.game)

	if coll.player == nil {
		return nil, fmt.Errorf("no Player{} definition found")
	}
	defs.Player = compilePlayer(coll.player)

	for _, raw := range coll.actions {
		id := types.ActionID(raw.id)
		if _, dup := defs.Actions[id]; dup {
			return nil, fmt.Errorf("action %q defined twice", raw.id)
		}
		spec, err := compileAction(id, raw.table)
		if err != nil {
			return nil, fmt.Errorf("compiling action %s: %w", raw.id, err)
		}
		defs.Actions[id] = spec
	}

	for _, raw := range coll.enemies {
		if _, dup := defs.Archetypes[raw.id]; dup {
			return nil, fmt.Errorf("enemy %q defined twice", raw.id)
		}
		arch, err := compileEnemy(raw)
		if err != nil {
			return nil, fmt.Errorf("compiling enemy %s: %w", raw.id, err)
		}
		defs.Archetypes[raw.id] = arch
	}

	return defs, nil
}

func compileGame(tbl *lua.LTable) types.GameDef {
	return types.GameDef{
		Title:     getString(tbl, "title"),
		Version:   getString(tbl, "version"),
		TurnLimit: getIntOr(tbl, "turn_limit", state.DefaultTurnLimit),
	}
}

func compilePlayer(tbl *lua.LTable) types.PlayerDef {
	mp := getInt(tbl, "mp")
	tp := getInt(tbl, "tp")
	return types.PlayerDef{
		HP:      getInt(tbl, "hp"),
		MP:      mp,
		MaxMP:   getIntOr(tbl, "max_mp", mp),
		MPRegen: getInt(tbl, "mp_regen"),
		TP:      tp,
		MaxTP:   getIntOr(tbl, "max_tp", tp),
		TPRegen: getInt(tbl, "tp_regen"),
		Defense: getInt(tbl, "defense"),
	}
}

// compileAction compiles a player action or an enemy move.
func compileAction(id types.ActionID, tbl *lua.LTable) (types.ActionSpec, error) {
	spec := types.ActionSpec{
		ID:      id,
		Name:    getString(tbl, "name"),
		Element: types.Element(getString(tbl, "element")),
	}
	if spec.Name == "" {
		spec.Name = string(id)
	}
	if spec.Element == "" {
		spec.Element = types.Neutral
	}

	if c := getTable(tbl, "cost"); c != nil {
		spec.Cost = types.Cost{
			Resource: types.Resource(getString(c, "resource")),
			Amount:   getInt(c, "amount"),
		}
	}

	dmg, err := compileDamage(tbl.RawGetString("damage"))
	if err != nil {
		return spec, err
	}
	spec.Damage = dmg
	spec.Effects = compileEffects(getTable(tbl, "effects"))
	return spec, nil
}

// compileDamage accepts a fixed number or a { min, max } pair.
func compileDamage(v lua.LValue) (types.DamageRange, error) {
	switch d := v.(type) {
	case *lua.LNilType:
		return types.DamageRange{}, nil
	case lua.LNumber:
		return types.DamageRange{Min: int(d), Max: int(d)}, nil
	case *lua.LTable:
		lo, okLo := d.RawGetInt(1).(lua.LNumber)
		hi, okHi := d.RawGetInt(2).(lua.LNumber)
		if !okLo || !okHi || d.MaxN() != 2 {
			return types.DamageRange{}, fmt.Errorf("damage must be a number or { min, max }")
		}
		return types.DamageRange{Min: int(lo), Max: int(hi)}, nil
	}
	return types.DamageRange{}, fmt.Errorf("damage must be a number or { min, max }, got %s", v.Type())
}

func compileEffects(tbl *lua.LTable) []types.Effect {
	var effects []types.Effect
	eachTable(tbl, func(t *lua.LTable) {
		effects = append(effects, compileEffect(t))
	})
	return effects
}

func compileEffect(tbl *lua.LTable) types.Effect {
	return types.Effect{
		Kind:      types.EffectKind(getString(tbl, "type")),
		Status:    types.StatusKind(getString(tbl, "status")),
		Turns:     getInt(tbl, "turns"),
		Chance:    getInt(tbl, "chance"),
		Magnitude: getInt(tbl, "magnitude"),
		Amount:    getInt(tbl, "amount"),
		Resource:  types.Resource(getString(tbl, "resource")),
		Element:   types.Element(getString(tbl, "element")),
	}
}

func compileEnemy(raw rawDef) (types.ArchetypeDef, error) {
	tbl := raw.table
	mp := getInt(tbl, "mp")
	tp := getInt(tbl, "tp")
	arch := types.ArchetypeDef{
		ID:      raw.id,
		Name:    getString(tbl, "name"),
		HP:      getInt(tbl, "hp"),
		MP:      mp,
		MaxMP:   getIntOr(tbl, "max_mp", mp),
		MPRegen: getInt(tbl, "mp_regen"),
		TP:      tp,
		MaxTP:   getIntOr(tbl, "max_tp", tp),
		TPRegen: getInt(tbl, "tp_regen"),
		Defense: getInt(tbl, "defense"),
		Element: types.Element(getString(tbl, "element")),
		Moves:   map[types.ActionID]types.ActionSpec{},
	}
	if arch.Name == "" {
		arch.Name = raw.id
	}
	if arch.Element == "" {
		arch.Element = types.Neutral
	}

	var moveErr error
	if moves := getTable(tbl, "moves"); moves != nil {
		moves.ForEach(func(k, v lua.LValue) {
			ks, ok := k.(lua.LString)
			mt, isTable := v.(*lua.LTable)
			if !ok || !isTable || moveErr != nil {
				return
			}
			id := types.ActionID(ks)
			spec, err := compileAction(id, mt)
			if err != nil {
				moveErr = fmt.Errorf("move %s: %w", id, err)
				return
			}
			arch.Moves[id] = spec
		})
	}
	if moveErr != nil {
		return arch, moveErr
	}

	if tel := getTable(tbl, "telegraph"); tel != nil {
		for i := 1; i <= tel.MaxN(); i++ {
			if s, ok := tel.RawGetInt(i).(lua.LString); ok {
				arch.Telegraph = append(arch.Telegraph, types.ActionID(s))
			}
		}
	}

	eachTable(getTable(tbl, "phases"), func(t *lua.LTable) {
		arch.Phases = append(arch.Phases, compilePhase(t))
	})

	eachTable(getTable(tbl, "handlers"), func(t *lua.LTable) {
		arch.Handlers = append(arch.Handlers, types.EventHandler{
			EventType: getString(t, "event"),
			When:      getString(t, "when"),
			Effects:   compileEffects(getTable(t, "effects")),
		})
	})

	return arch, nil
}

func compilePhase(tbl *lua.LTable) types.PhaseDef {
	ph := types.PhaseDef{
		When:  getString(tbl, "when"),
		Enter: compileEffects(getTable(tbl, "enter")),
	}
	eachTable(getTable(tbl, "moves"), func(t *lua.LTable) {
		ph.Moves = append(ph.Moves, types.WeightedMove{
			Move:   types.ActionID(getString(t, "move")),
			Weight: getInt(t, "weight"),
		})
	})
	return ph
}

// sortedLuaFiles returns .lua files with game.lua first and the rest
// sorted alphabetically.
func sortedLuaFiles(files []string) []string {
	var gameFile string
	var others []string
	for _, f := range files {
		if f == "game.lua" {
			gameFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if gameFile != "" {
		return append([]string{gameFile}, others...)
	}
	return others
}
