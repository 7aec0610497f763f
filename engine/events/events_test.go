package events

import (
	"testing"

	"github.com/nathoo/btarena/engine/policy"
	"github.com/nathoo/btarena/types"
)

func testPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.Compile(types.ArchetypeDef{
		ID: "IceWraith",
		Handlers: []types.EventHandler{
			{
				EventType: DamageDealt,
				When:      `HasBuff("FrostAura")`,
				Effects: []types.Effect{
					{Kind: types.EffectInflict, Status: types.Freeze, Turns: 1, Chance: 30},
				},
			},
			{
				EventType: DamageTaken,
				When:      "HPPct < 50",
				Effects: []types.Effect{
					{Kind: types.EffectBuff, Status: types.RageBuff, Turns: 2},
				},
			},
			{
				EventType: DamageDealt,
				Effects: []types.Effect{
					{Kind: types.EffectLifesteal, Amount: 10},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return p
}

func testState() *types.CombatState {
	return &types.CombatState{
		Player: types.Player{HP: 100, MaxHP: 100},
		Enemy:  types.Enemy{HP: 150, MaxHP: 180, Element: types.Neutral},
		Turn:   1,
	}
}

func TestDispatch_MatchesEventType(t *testing.T) {
	effs := Dispatch([]types.Event{{Type: DamageDealt}}, testPolicy(t), testState())
	if len(effs) != 1 {
		t.Fatalf("expected 1 effect, got %d", len(effs))
	}
	if effs[0].Kind != types.EffectLifesteal {
		t.Errorf("expected lifesteal, got %q", effs[0].Kind)
	}
}

func TestDispatch_ConditionGates(t *testing.T) {
	s := testState()
	s.Enemy.Buffs = []types.StatusEffect{{Kind: types.FrostAura, Remaining: types.Permanent}}

	effs := Dispatch([]types.Event{{Type: DamageDealt}}, testPolicy(t), s)
	if len(effs) != 2 {
		t.Fatalf("expected 2 effects with FrostAura, got %d", len(effs))
	}
	if effs[0].Status != types.Freeze {
		t.Errorf("handlers should fire in definition order, got %+v", effs)
	}
}

func TestDispatch_MultipleEvents(t *testing.T) {
	s := testState()
	s.Enemy.HP = 60

	evs := []types.Event{{Type: DamageTaken}, {Type: DamageDealt}}
	effs := Dispatch(evs, testPolicy(t), s)
	if len(effs) != 2 {
		t.Fatalf("expected 2 effects, got %d", len(effs))
	}
	if effs[0].Status != types.RageBuff || effs[1].Kind != types.EffectLifesteal {
		t.Errorf("effects out of event order: %+v", effs)
	}
}

func TestDispatch_NoMatch(t *testing.T) {
	effs := Dispatch([]types.Event{{Type: "healed"}}, testPolicy(t), testState())
	if len(effs) != 0 {
		t.Errorf("expected no effects, got %+v", effs)
	}
}

func TestDispatch_NilPolicy(t *testing.T) {
	if effs := Dispatch([]types.Event{{Type: DamageDealt}}, nil, testState()); effs != nil {
		t.Errorf("nil policy should yield nil, got %+v", effs)
	}
}

func TestDispatch_Empty(t *testing.T) {
	if effs := Dispatch(nil, testPolicy(t), testState()); len(effs) != 0 {
		t.Errorf("no events should yield no effects, got %+v", effs)
	}
}
