package registry

import (
	"errors"
	"testing"

	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

func testDefs() *state.Defs {
	actions := map[types.ActionID]types.ActionSpec{}
	for _, id := range types.PlayerActions {
		actions[id] = types.ActionSpec{ID: id, Name: string(id)}
	}
	actions[types.Heal] = types.ActionSpec{ID: types.Heal, Cost: types.Cost{Resource: types.MP, Amount: 30}}
	actions[types.PowerStrike] = types.ActionSpec{ID: types.PowerStrike, Cost: types.Cost{Resource: types.TP, Amount: 30}}
	return &state.Defs{
		Actions: actions,
		Archetypes: map[string]types.ArchetypeDef{
			"FireGolem": {
				ID: "FireGolem",
				HP: 180,
				Moves: map[types.ActionID]types.ActionSpec{
					"Slam":      {ID: "Slam"},
					"HeavySlam": {ID: "HeavySlam"},
				},
			},
		},
	}
}

func testState() *types.CombatState {
	return &types.CombatState{
		Player: types.Player{
			HP: 100, MaxHP: 100,
			MP: 50, MaxMP: 100,
			TP: 20, MaxTP: 100,
			Cooldowns: map[types.ActionID]int{},
		},
		Enemy: types.Enemy{HP: 180, MaxHP: 180, Element: types.Neutral},
		Turn:  4,
	}
}

func bindCond(t *testing.T, r *Registry, name string, args ...string) (types.ConditionKind, types.Arg) {
	t.Helper()
	kind, arg, err := r.BindCondition(name, args, 1)
	if err != nil {
		t.Fatalf("BindCondition(%s, %v): %v", name, args, err)
	}
	return kind, arg
}

func TestResolveCondition(t *testing.T) {
	r := New(testDefs())

	tests := []struct {
		name   string
		cond   string
		args   []string
		mutate func(s *types.CombatState)
		want   bool
	}{
		{name: "HasMP: enough", cond: "HasMP", args: []string{"50"}, want: true},
		{name: "HasMP: short", cond: "HasMP", args: []string{"51"}, want: false},
		{name: "HasTP: enough", cond: "HasTP", args: []string{"20"}, want: true},
		{name: "HasTP: short", cond: "HasTP", args: []string{"30"}, want: false},
		{
			name: "IsPlayerHPLow: below", cond: "IsPlayerHPLow", args: []string{"30"},
			mutate: func(s *types.CombatState) { s.Player.HP = 29 }, want: true,
		},
		{
			name: "IsPlayerHPLow: at threshold", cond: "IsPlayerHPLow", args: []string{"30"},
			mutate: func(s *types.CombatState) { s.Player.HP = 30 }, want: false,
		},
		{
			name: "IsEnemyHPHigh: at threshold", cond: "IsEnemyHPHigh", args: []string{"50"},
			mutate: func(s *types.CombatState) { s.Enemy.HP = 90 }, want: false,
		},
		{
			name: "IsEnemyHPHigh: above", cond: "IsEnemyHPHigh", args: []string{"50"},
			mutate: func(s *types.CombatState) { s.Enemy.HP = 91 }, want: true,
		},
		{
			name: "IsPlayerHPHigh: at threshold", cond: "IsPlayerHPHigh", args: []string{"70"},
			mutate: func(s *types.CombatState) { s.Player.HP = 70 }, want: false,
		},
		{
			name: "IsPlayerHPHigh: above", cond: "IsPlayerHPHigh", args: []string{"70"},
			mutate: func(s *types.CombatState) { s.Player.HP = 71 }, want: true,
		},
		{
			name: "IsEnemyHPLow", cond: "IsEnemyHPLow", args: []string{"25"},
			mutate: func(s *types.CombatState) { s.Enemy.HP = 40 }, want: true,
		},
		{
			name: "IsPlayerHPLevel Low at 20%", cond: "IsPlayerHPLevel", args: []string{"Low"},
			mutate: func(s *types.CombatState) { s.Player.HP = 20 }, want: true,
		},
		{
			name: "IsPlayerHPLevel Mid lower bound", cond: "IsPlayerHPLevel", args: []string{"Mid"},
			mutate: func(s *types.CombatState) { s.Player.HP = 33 }, want: true,
		},
		{
			name: "IsPlayerHPLevel High lower bound", cond: "IsPlayerHPLevel", args: []string{"High"},
			mutate: func(s *types.CombatState) { s.Player.HP = 66 }, want: true,
		},
		{
			name: "IsEnemyHPLevel High at full", cond: "IsEnemyHPLevel", args: []string{"High"}, want: true,
		},
		{
			name: "EnemyWeakTo: neutral is weak to nothing", cond: "EnemyWeakTo", args: []string{"Ice"}, want: false,
		},
		{
			name: "EnemyWeakTo: fire is weak to ice", cond: "EnemyWeakTo", args: []string{"Ice"},
			mutate: func(s *types.CombatState) { s.Enemy.Element = types.Fire }, want: true,
		},
		{
			name: "EnemyResists: fire resists lightning", cond: "EnemyResists", args: []string{"Lightning"},
			mutate: func(s *types.CombatState) { s.Enemy.Element = types.Fire }, want: true,
		},
		{
			name: "EnemyHasElement", cond: "EnemyHasElement", args: []string{"Ice"},
			mutate: func(s *types.CombatState) { s.Enemy.Element = types.Ice }, want: true,
		},
		{name: "CanHeal: affordable", cond: "CanHeal", want: true},
		{
			name: "CanHeal: on cooldown", cond: "CanHeal",
			mutate: func(s *types.CombatState) { s.Player.Cooldowns[types.Heal] = 2 }, want: false,
		},
		{
			name: "CanHeal: no MP", cond: "CanHeal",
			mutate: func(s *types.CombatState) { s.Player.MP = 29 }, want: false,
		},
		{name: "CanUse: PowerStrike short on TP", cond: "CanUse", args: []string{"PowerStrike"}, want: false},
		{name: "CanUse: Attack is free", cond: "CanUse", args: []string{"Attack"}, want: true},
		{
			name: "EnemyIsTelegraphing: match", cond: "EnemyIsTelegraphing", args: []string{"HeavySlam"},
			mutate: func(s *types.CombatState) { s.Enemy.Telegraphed = "HeavySlam" }, want: true,
		},
		{
			name: "EnemyIsTelegraphing: hidden intent does not count", cond: "EnemyIsTelegraphing", args: []string{"HeavySlam"},
			mutate: func(s *types.CombatState) { s.Enemy.Intent = "HeavySlam" }, want: false,
		},
		{name: "IsTurnBefore", cond: "IsTurnBefore", args: []string{"5"}, want: true},
		{name: "IsTurnAtLeast", cond: "IsTurnAtLeast", args: []string{"5"}, want: false},
		{name: "IsTurnEarly: at threshold", cond: "IsTurnEarly", args: []string{"4"}, want: true},
		{name: "IsTurnEarly: past", cond: "IsTurnEarly", args: []string{"3"}, want: false},
		{name: "IsDefending: no previous action", cond: "IsDefending", want: false},
		{
			name: "IsDefending: defended last turn", cond: "IsDefending",
			mutate: func(s *types.CombatState) { s.Player.LastAction = types.Defend }, want: true,
		},
		{
			name: "IsDefending: attacked last turn", cond: "IsDefending",
			mutate: func(s *types.CombatState) { s.Player.LastAction = types.Attack }, want: false,
		},
		{
			name: "HasStatus", cond: "HasStatus", args: []string{"Burn"},
			mutate: func(s *types.CombatState) {
				s.Player.Statuses = []types.StatusEffect{{Kind: types.Burn, Remaining: 2, Magnitude: 5}}
			},
			want: true,
		},
		{
			name: "EnemyHasStatus", cond: "EnemyHasStatus", args: []string{"RageBuff"},
			mutate: func(s *types.CombatState) {
				s.Enemy.Buffs = []types.StatusEffect{{Kind: types.RageBuff, Remaining: 3}}
			},
			want: true,
		},
		{name: "IsEnemyScanned: not yet", cond: "IsEnemyScanned", want: false},
		{
			name: "IsEnemyScanned", cond: "IsEnemyScanned",
			mutate: func(s *types.CombatState) { s.Player.Scanned = true }, want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testState()
			if tt.mutate != nil {
				tt.mutate(s)
			}
			kind, arg := bindCond(t, r, tt.cond, tt.args...)
			got, err := r.ResolveCondition(kind, arg, s)
			if err != nil {
				t.Fatalf("ResolveCondition: %v", err)
			}
			if got != tt.want {
				t.Errorf("%s%v = %v, want %v", tt.cond, tt.args, got, tt.want)
			}
		})
	}
}

func TestResolveCondition_DoesNotMutate(t *testing.T) {
	r := New(testDefs())
	s := testState()
	before := state.Clone(s)

	for _, sig := range signatures {
		args := []string{}
		switch sig.Arg {
		case types.ArgInt:
			args = []string{"10"}
		case types.ArgLevel:
			args = []string{"Low"}
		case types.ArgElement:
			args = []string{"Fire"}
		case types.ArgStatus:
			args = []string{"Burn"}
		case types.ArgAction:
			args = []string{"Heal"}
		case types.ArgEnemyMove:
			args = []string{"Slam"}
		}
		kind, arg := bindCond(t, r, sig.Name, args...)
		if _, err := r.ResolveCondition(kind, arg, s); err != nil {
			t.Fatalf("%s: %v", sig.Name, err)
		}
	}

	if s.Player.MP != before.Player.MP || s.Turn != before.Turn || len(s.Player.Cooldowns) != 0 {
		t.Errorf("conditions mutated state: %+v", s)
	}
}

func TestResolveCondition_UnknownKind(t *testing.T) {
	r := New(testDefs())
	_, err := r.ResolveCondition(types.CondUnknown, types.Arg{}, testState())
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestBindCondition_Errors(t *testing.T) {
	r := New(testDefs())

	tests := []struct {
		name string
		cond string
		args []string
	}{
		{"unknown name", "IsDragon", nil},
		{"missing argument", "HasMP", nil},
		{"extra argument", "CanHeal", []string{"1"}},
		{"non-integer", "HasMP", []string{"lots"}},
		{"bad level", "IsPlayerHPLevel", []string{"Medium"}},
		{"bad element", "EnemyWeakTo", []string{"Water"}},
		{"bad status", "HasStatus", []string{"Poison"}},
		{"bad action", "CanUse", []string{"Slam"}},
		{"bad enemy move", "EnemyIsTelegraphing", []string{"Fireball"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.BindCondition(tt.cond, tt.args, 7)
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %T", err)
			}
			if ce.Line != 7 || ce.Name != tt.cond {
				t.Errorf("error = %+v, want line 7 name %q", ce, tt.cond)
			}
			if !errors.Is(err, ErrInvalidTree) {
				t.Error("ConfigurationError should match ErrInvalidTree")
			}
		})
	}
}

func TestBindTask(t *testing.T) {
	r := New(testDefs())

	id, err := r.BindTask("Heal", nil, 3)
	if err != nil || id != types.Heal {
		t.Fatalf("BindTask(Heal) = %q, %v", id, err)
	}

	if _, err := r.BindTask("Slam", nil, 3); err == nil {
		t.Error("enemy move should not bind as a task")
	}
	if _, err := r.BindTask("Attack", []string{"1"}, 3); err == nil {
		t.Error("task with arguments should fail")
	}
}

func TestResolveTask(t *testing.T) {
	r := New(testDefs())

	spec, err := r.ResolveTask(types.Heal)
	if err != nil {
		t.Fatalf("ResolveTask: %v", err)
	}
	if spec.Cost.Amount != 30 {
		t.Errorf("Heal cost = %d, want 30", spec.Cost.Amount)
	}

	if _, err := r.ResolveTask("Teleport"); err == nil {
		t.Error("expected error for unknown task")
	}
}

func TestVocabulary(t *testing.T) {
	r := New(testDefs())
	if got := len(r.ConditionNames()); got != len(signatures) {
		t.Errorf("ConditionNames = %d entries, want %d", got, len(signatures))
	}
	tasks := r.TaskNames()
	if len(tasks) != 11 || tasks[0] != "Attack()" {
		t.Errorf("TaskNames = %v", tasks)
	}
}
