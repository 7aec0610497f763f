package loader

import (
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/btarena/types"
)

// newTestVM creates a sandboxed Lua VM with the API registered and a fresh collector.
func newTestVM() (*lua.LState, *collector) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)
	coll := &collector{}
	registerAPI(L, coll)
	return L, coll
}

func TestCompileGame_DefaultTurnLimit(t *testing.T) {
	L, _ := newTestVM()
	defer L.Close()

	if err := L.DoString(`return { title = "Arena", version = "2" }`); err != nil {
		t.Fatal(err)
	}
	game := compileGame(L.CheckTable(-1))
	if game.Title != "Arena" || game.Version != "2" {
		t.Errorf("game = %+v", game)
	}
	if game.TurnLimit != 35 {
		t.Errorf("TurnLimit = %d, want 35", game.TurnLimit)
	}
}

func TestCompilePlayer_MaximaDefaultToStart(t *testing.T) {
	L, _ := newTestVM()
	defer L.Close()

	if err := L.DoString(`return { hp = 90, mp = 60, tp = 40, max_tp = 100, defense = 3 }`); err != nil {
		t.Fatal(err)
	}
	p := compilePlayer(L.CheckTable(-1))
	if p.MaxMP != 60 {
		t.Errorf("MaxMP = %d, want 60", p.MaxMP)
	}
	if p.MaxTP != 100 {
		t.Errorf("MaxTP = %d, want 100", p.MaxTP)
	}
	if p.HP != 90 || p.Defense != 3 {
		t.Errorf("player = %+v", p)
	}
}

func TestCompileAction_Full(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		Action "FireSpell" {
			name = "Fire Spell",
			cost = Cost.MP(20),
			damage = { 26, 30 },
			element = "Fire",
			effects = { Inflict("Burn", 3, { chance = 25, magnitude = 5 }) },
		}
	`); err != nil {
		t.Fatal(err)
	}
	if len(coll.actions) != 1 {
		t.Fatalf("collected %d actions, want 1", len(coll.actions))
	}

	spec, err := compileAction("FireSpell", coll.actions[0].table)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Name != "Fire Spell" {
		t.Errorf("Name = %q", spec.Name)
	}
	if spec.Cost != (types.Cost{Resource: types.MP, Amount: 20}) {
		t.Errorf("Cost = %+v", spec.Cost)
	}
	if spec.Damage != (types.DamageRange{Min: 26, Max: 30}) {
		t.Errorf("Damage = %+v", spec.Damage)
	}
	if spec.Element != types.Fire {
		t.Errorf("Element = %q", spec.Element)
	}
	want := types.Effect{Kind: types.EffectInflict, Status: types.Burn, Turns: 3, Chance: 25, Magnitude: 5}
	if len(spec.Effects) != 1 || spec.Effects[0] != want {
		t.Errorf("Effects = %+v, want [%+v]", spec.Effects, want)
	}
}

func TestCompileAction_Defaults(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`Action "Defend" { effects = { Buff("Defending"), Gain("TP", 20) } }`); err != nil {
		t.Fatal(err)
	}
	spec, err := compileAction("Defend", coll.actions[0].table)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Name != "Defend" {
		t.Errorf("Name = %q, want the id", spec.Name)
	}
	if spec.Element != types.Neutral {
		t.Errorf("Element = %q, want Neutral", spec.Element)
	}
	if spec.Cost != (types.Cost{}) || spec.Damage != (types.DamageRange{}) {
		t.Errorf("expected a free, non-damaging action, got %+v", spec)
	}
	if len(spec.Effects) != 2 {
		t.Fatalf("Effects = %+v", spec.Effects)
	}
	if spec.Effects[0].Turns != 1 {
		t.Errorf("Buff turns = %d, want default 1", spec.Effects[0].Turns)
	}
	if spec.Effects[1] != (types.Effect{Kind: types.EffectGain, Resource: types.TP, Amount: 20}) {
		t.Errorf("Gain = %+v", spec.Effects[1])
	}
}

func TestCompileDamage(t *testing.T) {
	tests := []struct {
		src     string
		want    types.DamageRange
		wantErr bool
	}{
		{"return 21", types.DamageRange{Min: 21, Max: 21}, false},
		{"return { 13, 17 }", types.DamageRange{Min: 13, Max: 17}, false},
		{"return nil", types.DamageRange{}, false},
		{"return { 13 }", types.DamageRange{}, true},
		{"return { 1, 2, 3 }", types.DamageRange{}, true},
		{`return "lots"`, types.DamageRange{}, true},
	}
	for _, tt := range tests {
		L, _ := newTestVM()
		if err := L.DoString(tt.src); err != nil {
			t.Fatal(err)
		}
		got, err := compileDamage(L.Get(-1))
		L.Close()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.src, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.src, got, tt.want)
		}
	}
}

func TestCompileEffects_AllHelpers(t *testing.T) {
	L, _ := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		return {
			Inflict("Paralyze", 2, { chance = 25 }),
			Buff("Enrage", Permanent),
			Heal(45),
			Gain("MP", 10),
			Cooldown(3),
			Scan(),
			Cleanse(),
			Dispel(),
			SetElement("Fire", 3),
			SetElement("Ice"),
			Lifesteal(20),
		}
	`); err != nil {
		t.Fatal(err)
	}

	got := compileEffects(L.CheckTable(-1))
	want := []types.Effect{
		{Kind: types.EffectInflict, Status: types.Paralyze, Turns: 2, Chance: 25},
		{Kind: types.EffectBuff, Status: types.Enrage, Turns: types.Permanent},
		{Kind: types.EffectHeal, Amount: 45},
		{Kind: types.EffectGain, Resource: types.MP, Amount: 10},
		{Kind: types.EffectCooldown, Turns: 3},
		{Kind: types.EffectScan},
		{Kind: types.EffectCleanse},
		{Kind: types.EffectDispel},
		{Kind: types.EffectSetElement, Element: types.Fire, Turns: 3},
		{Kind: types.EffectSetElement, Element: types.Ice},
		{Kind: types.EffectLifesteal, Amount: 20},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d effects, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("effect %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCompileEnemy(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		Enemy "Golem" {
			hp = 120, mp = 40, tp = 50, max_tp = 100,
			moves = {
				Slam = { cost = Cost.TP(10), damage = 21 },
				Rage = { cost = Cost.MP(25), effects = { Buff("RageBuff", 3) } },
			},
			telegraph = { "Rage" },
			phases = {
				Phase { when = "HPPct > 50", moves = { Pick("Slam", 70), Pick("Rage", 30) } },
				Phase { enter = { Buff("Enrage", Permanent) }, moves = { Pick("Slam", 1) } },
			},
			handlers = {
				On("damage_dealt", { when = "HP < 60", effects = { Lifesteal(20) } }),
			},
		}
	`); err != nil {
		t.Fatal(err)
	}

	arch, err := compileEnemy(coll.enemies[0])
	if err != nil {
		t.Fatal(err)
	}
	if arch.ID != "Golem" || arch.Name != "Golem" {
		t.Errorf("ID/Name = %q/%q", arch.ID, arch.Name)
	}
	if arch.MaxMP != 40 || arch.MaxTP != 100 {
		t.Errorf("maxima = %d/%d", arch.MaxMP, arch.MaxTP)
	}
	if arch.Element != types.Neutral {
		t.Errorf("Element = %q", arch.Element)
	}
	if len(arch.Moves) != 2 || arch.Moves["Slam"].Damage.Max != 21 {
		t.Errorf("Moves = %+v", arch.Moves)
	}
	if len(arch.Telegraph) != 1 || arch.Telegraph[0] != "Rage" {
		t.Errorf("Telegraph = %v", arch.Telegraph)
	}
	if len(arch.Phases) != 2 {
		t.Fatalf("Phases = %+v", arch.Phases)
	}
	if arch.Phases[0].When != "HPPct > 50" || len(arch.Phases[0].Moves) != 2 {
		t.Errorf("phase 1 = %+v", arch.Phases[0])
	}
	if arch.Phases[0].Moves[1] != (types.WeightedMove{Move: "Rage", Weight: 30}) {
		t.Errorf("phase 1 move 2 = %+v", arch.Phases[0].Moves[1])
	}
	if arch.Phases[1].When != "" || len(arch.Phases[1].Enter) != 1 {
		t.Errorf("phase 2 = %+v", arch.Phases[1])
	}
	if len(arch.Handlers) != 1 || arch.Handlers[0].EventType != "damage_dealt" || arch.Handlers[0].When != "HP < 60" {
		t.Errorf("Handlers = %+v", arch.Handlers)
	}
}

func TestCompileEnemy_BadMoveDamage(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`Enemy "X" { hp = 1, moves = { Bad = { damage = "high" } } }`); err != nil {
		t.Fatal(err)
	}
	if _, err := compileEnemy(coll.enemies[0]); err == nil {
		t.Fatal("expected error for non-numeric damage")
	}
}

func TestSortedLuaFiles(t *testing.T) {
	got := sortedLuaFiles([]string{"zeta.lua", "game.lua", "alpha.lua"})
	want := []string{"game.lua", "alpha.lua", "zeta.lua"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
