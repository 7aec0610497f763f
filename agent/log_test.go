package agent

import (
	"strings"
	"testing"

	"github.com/nathoo/btarena/types"
)

func sampleOutcome() types.BattleOutcome {
	before := types.CombatState{
		Player: types.Player{HP: 80, MaxHP: 100, MP: 60, MaxMP: 100, TP: 35, MaxTP: 100,
			Statuses: []types.StatusEffect{{Kind: types.Burn, Remaining: 2, Magnitude: 5}}},
		Enemy: types.Enemy{Name: "Fire Golem", HP: 90, MaxHP: 180, Element: types.Fire, ElementTurns: 2,
			Buffs: []types.StatusEffect{{Kind: types.Enrage, Remaining: types.Permanent}}},
		Turn: 4,
	}
	return types.BattleOutcome{
		Archetype: "FireGolem",
		Victor:    types.EnemyVictory,
		Turns:     2,
		Final: types.CombatState{
			Player: types.Player{HP: 0, MaxHP: 100},
			Enemy:  types.Enemy{HP: 48, MaxHP: 180},
		},
		Log: []types.TurnRecord{
			{
				Turn:      4,
				Before:    before,
				Telegraph: "HeavySlam",
				Player: types.ActionResult{Action: types.IceSpell, Cost: types.Cost{Resource: types.MP, Amount: 20},
					Damage: 42, Multiplier: 1.5, Inflicted: []types.StatusKind{types.Freeze}},
				Enemy: types.ActionResult{Action: "HeavySlam", Damage: 37},
				Ticks: []types.DotTick{{Target: "player", Status: types.Burn, Damage: 5}},
			},
			{
				Turn:   5,
				Before: before,
				Player: types.ActionResult{Action: types.Heal, Wasted: true},
				Enemy:  types.ActionResult{Action: "Slam", Skipped: true},
			},
		},
	}
}

func TestFormatLog(t *testing.T) {
	log := FormatLog(sampleOutcome())

	for _, want := range []string{
		"=== COMBAT START ===",
		"Enemy: Fire Golem (Fire)",
		"=== TURN 4 ===",
		"[!] ENEMY TELEGRAPHS: HeavySlam",
		"Player: HP 80%, TP 35, MP 60, Ailments: Burn(2)",
		"Enemy: HP 50%, Element: Fire (2 turns), Buffs: Enrage",
		"Action: IceSpell (MP -20) -> 42 dmg [SUPER EFFECTIVE!] [Freeze]",
		"Enemy: HeavySlam -> 37 dmg",
		"player takes 5 Burn damage",
		"Action: Heal [WASTED]",
		"Enemy: Slam [FROZEN, turn skipped]",
		"=== RESULT: EnemyVictory in 2 turns ===",
		"Final Enemy HP: 48/180",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("log missing %q\n%s", want, log)
		}
	}
	if strings.Count(log, "ENEMY TELEGRAPHS") != 1 {
		t.Errorf("expected one telegraph line\n%s", log)
	}
}

func TestFormatLog_NotEffective(t *testing.T) {
	got := describe(types.ActionResult{Action: types.FireSpell, Damage: 9, Multiplier: 0.5})
	if got != "FireSpell -> 9 dmg [Not effective]" {
		t.Errorf("describe = %q", got)
	}
}

func TestFormatLog_Empty(t *testing.T) {
	log := FormatLog(types.BattleOutcome{Victor: types.Draw})
	if !strings.Contains(log, "=== RESULT: Draw in 0 turns ===") {
		t.Errorf("log = %q", log)
	}
}
