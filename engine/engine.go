// Package engine provides the Step() orchestrator that resolves one combat
// turn: player action, status ticks, the enemy's queued action and the next
// telegraph.
package engine

import (
	"fmt"

	"github.com/nathoo/btarena/engine/effects"
	"github.com/nathoo/btarena/engine/events"
	"github.com/nathoo/btarena/engine/policy"
	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

// Decider chooses the player's action from a state snapshot. An empty
// action is NoAction and wastes the turn.
type Decider interface {
	Decide(s *types.CombatState) (types.ActionID, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(s *types.CombatState) (types.ActionID, error)

// Decide calls f(s).
func (f DeciderFunc) Decide(s *types.CombatState) (types.ActionID, error) {
	return f(s)
}

// InvariantViolation means the combat arithmetic left the documented state
// bounds. It is raised with panic: it indicates an engine defect, not bad
// input.
type InvariantViolation struct {
	Turn int
	Err  error
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated on turn %d: %v", v.Turn, v.Err)
}

func (v *InvariantViolation) Unwrap() error {
	return v.Err
}

// Engine holds the definitions and the mutable state of one battle.
type Engine struct {
	Defs  *state.Defs
	State *types.CombatState
	RNG   *RNG
	Log   []types.TurnRecord

	arch    types.ArchetypeDef
	policy  *policy.Policy
	outcome types.Outcome
}

// New creates a battle against archetypeID. The enemy's first action is
// decided, and announced if telegraphed, before the first turn.
func New(defs *state.Defs, archetypeID string, seed int64) (*Engine, error) {
	s, err := state.NewState(defs, archetypeID)
	if err != nil {
		return nil, err
	}
	arch := defs.Archetypes[archetypeID]
	pol, err := policy.Compile(arch)
	if err != nil {
		return nil, fmt.Errorf("archetype %s: %w", archetypeID, err)
	}

	e := &Engine{
		Defs:   defs,
		State:  s,
		RNG:    NewRNG(seed),
		arch:   arch,
		policy: pol,
	}
	e.plan()
	e.assert()
	return e, nil
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() types.CombatState {
	return state.Clone(e.State)
}

// Outcome returns the battle state.
func (e *Engine) Outcome() types.Outcome {
	return e.outcome
}

// Done reports whether the battle has ended.
func (e *Engine) Done() bool {
	return e.outcome != types.InProgress
}

// Result returns the outcome of a finished battle.
func (e *Engine) Result() types.BattleOutcome {
	return types.BattleOutcome{
		Archetype: e.arch.ID,
		Seed:      e.RNG.Seed(),
		Victor:    e.outcome,
		Turns:     len(e.Log),
		Final:     e.Snapshot(),
		Log:       append([]types.TurnRecord(nil), e.Log...),
	}
}

// Step resolves one turn with the player's chosen action. Unknown,
// unaffordable or cooling-down actions are wasted turns, never errors.
func (e *Engine) Step(action types.ActionID) types.TurnRecord {
	s := e.State
	rec := types.TurnRecord{
		Turn:      s.Turn,
		Before:    state.Clone(s),
		Telegraph: s.Enemy.Telegraphed,
	}
	if e.Done() {
		return rec
	}

	// 1. The player's action was chosen from the snapshot.
	spec, ok := e.Defs.Actions[action]

	// 2. Resolve it.
	var evs []types.Event
	rec.Player, evs = e.resolve(state.PlayerSide(s), state.EnemySide(s), action, spec, ok)
	s.Player.LastAction = action
	rec.Events = append(rec.Events, evs...)
	e.assert()
	if e.terminal() {
		return e.record(rec)
	}

	// 3. Tick statuses, cooldowns, element and regeneration.
	rec.Ticks = e.tick()
	e.assert()
	if e.terminal() {
		return e.record(rec)
	}

	// 4. Consume the queued intent and clear the telegraph.
	move := s.Enemy.Intent
	s.Enemy.Intent, s.Enemy.Telegraphed = "", ""
	if move == "" {
		move, evs = e.decide()
		rec.Events = append(rec.Events, evs...)
	}

	// 5. Resolve the enemy action against the player.
	mspec, ok := e.arch.Moves[move]
	rec.Enemy, evs = e.resolve(state.EnemySide(s), state.PlayerSide(s), move, mspec, ok)
	rec.Events = append(rec.Events, evs...)
	e.assert()
	if e.terminal() {
		return e.record(rec)
	}

	// 6. Decide and announce the next action.
	rec.Events = append(rec.Events, e.plan()...)
	rec.NextTelegraph = s.Enemy.Telegraphed
	e.assert()

	// 7. End of turn.
	state.RemoveStatus(&s.Player.Statuses, types.Defending)
	state.RemoveStatus(&s.Enemy.Buffs, types.Defending)
	s.Turn++
	if s.Turn > e.Defs.TurnLimit() {
		e.outcome = types.Draw
	}
	return e.record(rec)
}

func (e *Engine) record(rec types.TurnRecord) types.TurnRecord {
	e.Log = append(e.Log, rec)
	return rec
}

// terminal checks HP and sets the outcome. The enemy falling first wins
// ties, since the player's action resolves first.
func (e *Engine) terminal() bool {
	switch {
	case e.State.Enemy.HP <= 0:
		e.outcome = types.PlayerVictory
	case e.State.Player.HP <= 0:
		e.outcome = types.EnemyVictory
	default:
		return false
	}
	return true
}

func (e *Engine) assert() {
	if err := state.CheckInvariants(e.State); err != nil {
		panic(&InvariantViolation{Turn: e.State.Turn, Err: err})
	}
}

// resolve applies one side's action: freeze, cooldown and cost checks,
// damage, secondary effects and then the archetype's passive handlers.
func (e *Engine) resolve(actor, target state.Side, id types.ActionID, spec types.ActionSpec, known bool) (types.ActionResult, []types.Event) {
	res := types.ActionResult{Action: id}

	if actor.Has(types.Freeze) {
		state.RemoveStatus(actor.Statuses, types.Freeze)
		res.Skipped = true
		return res, []types.Event{{Type: "frozen", Data: map[string]any{"target": actor.Name}}}
	}
	if !known || id == "" {
		res.Wasted = true
		return res, nil
	}
	if actor.Cooldowns != nil && actor.Cooldowns[id] > 0 {
		res.Wasted = true
		return res, nil
	}
	if !actor.Spend(spec.Cost) {
		res.Wasted = true
		return res, nil
	}
	res.Cost = spec.Cost

	var evs []types.Event
	if isDamaging(spec) {
		if actor.Has(types.Paralyze) && e.RNG.Chance(paralyzeMiss) {
			res.Missed = true
			return res, []types.Event{{Type: "missed", Data: map[string]any{"source": actor.Name}}}
		}
		dmg := DamageCalc(spec, actor, target, e.RNG)
		for _, k := range dmg.Consumed {
			state.RemoveStatus(actor.Statuses, k)
		}
		res.Damage = target.Damage(dmg.Amount)
		res.Multiplier = dmg.Elemental
		if res.Damage > 0 {
			evs = append(evs, damageEvent(actor.Name, target.Name, res.Damage))
		}
	}

	out, effEvs := effects.Apply(spec.Effects, effects.Context{
		Action:     id,
		Actor:      actor,
		Target:     target,
		LastDamage: res.Damage,
		Roller:     e.RNG,
	})
	res.Healed = out.Healed
	res.Inflicted = out.Inflicted
	evs = append(evs, effEvs...)

	// Passives react in a single pass; their own effects do not re-trigger.
	if passive := events.Dispatch(evs, e.policy, e.State); len(passive) > 0 {
		_, pEvs := effects.Apply(passive, effects.Context{
			Actor:      state.EnemySide(e.State),
			Target:     state.PlayerSide(e.State),
			LastDamage: res.Damage,
			Roller:     e.RNG,
		})
		evs = append(evs, pEvs...)
	}
	return res, evs
}

func damageEvent(source, target string, amount int) types.Event {
	typ := events.DamageTaken
	if source == state.EnemyName {
		typ = events.DamageDealt
	}
	return types.Event{
		Type: typ,
		Data: map[string]any{"source": source, "target": target, "amount": amount},
	}
}

// tick advances every timed value by one turn.
func (e *Engine) tick() []types.DotTick {
	s := e.State
	var ticks []types.DotTick

	for _, sd := range []state.Side{state.PlayerSide(s), state.EnemySide(s)} {
		for _, st := range *sd.Statuses {
			if st.Kind == types.Burn && st.Magnitude > 0 {
				// Damage over time ignores defense.
				lost := sd.Damage(st.Magnitude)
				ticks = append(ticks, types.DotTick{Target: sd.Name, Status: st.Kind, Damage: lost})
			}
		}
		tickStatuses(sd.Statuses)
	}

	if s.Enemy.ElementTurns > 0 {
		s.Enemy.ElementTurns--
		if s.Enemy.ElementTurns == 0 {
			s.Enemy.Element = types.Neutral
		}
	}

	for id, cd := range s.Player.Cooldowns {
		if cd <= 1 {
			delete(s.Player.Cooldowns, id)
			continue
		}
		s.Player.Cooldowns[id] = cd - 1
	}

	p, en := state.PlayerSide(s), state.EnemySide(s)
	p.Restore(types.MP, s.Player.MPRegen)
	p.Restore(types.TP, s.Player.TPRegen)
	en.Restore(types.MP, s.Enemy.MPRegen)
	en.Restore(types.TP, s.Enemy.TPRegen)
	return ticks
}

// tickStatuses decrements timed statuses and drops expired ones. Permanent
// statuses, Freeze and Defending are removed by other rules.
func tickStatuses(list *[]types.StatusEffect) {
	kept := (*list)[:0]
	for _, st := range *list {
		switch {
		case st.Remaining == types.Permanent, st.Kind == types.Freeze, st.Kind == types.Defending:
		default:
			st.Remaining--
			if st.Remaining <= 0 {
				continue
			}
		}
		kept = append(kept, st)
	}
	*list = kept
}

// decide picks the enemy's next move with one weighted draw. Entering a new
// phase applies its entry effects first.
func (e *Engine) decide() (types.ActionID, []types.Event) {
	s := e.State
	n := e.policy.NumPhases()
	if n == 0 {
		return "", nil
	}
	idx, err := e.policy.Phase(policy.NewEnv(s))
	if err != nil || idx < 0 {
		idx = n - 1
	}

	var evs []types.Event
	if idx != s.Enemy.Phase {
		s.Enemy.Phase = idx
		ph := e.policy.PhaseDef(idx)
		evs = append(evs, types.Event{
			Type: events.PhaseEnter,
			Data: map[string]any{"target": state.EnemyName, "phase": idx + 1},
		})
		_, enterEvs := effects.Apply(ph.Enter, effects.Context{
			Actor:  state.EnemySide(s),
			Target: state.PlayerSide(s),
			Roller: e.RNG,
		})
		evs = append(evs, enterEvs...)
	}

	moves := e.policy.PhaseDef(idx).Moves
	if len(moves) == 0 {
		return "", evs
	}
	candidates := affordableMoves(moves, e.arch.Moves, s.Enemy)
	if len(candidates) == 0 {
		candidates = moves
	}
	weights := make([]int, len(candidates))
	for i, m := range candidates {
		weights[i] = m.Weight
	}
	return candidates[e.RNG.WeightedSelect(weights)].Move, evs
}

func affordableMoves(moves []types.WeightedMove, specs map[types.ActionID]types.ActionSpec, en types.Enemy) []types.WeightedMove {
	var out []types.WeightedMove
	for _, m := range moves {
		spec, ok := specs[m.Move]
		if ok && m.Weight > 0 && state.CanAfford(spec.Cost, en.MP, en.TP) {
			out = append(out, m)
		}
	}
	return out
}

// plan decides the next intent and announces it when the archetype
// telegraphs that move.
func (e *Engine) plan() []types.Event {
	move, evs := e.decide()
	s := e.State
	s.Enemy.Intent = move
	s.Enemy.Telegraphed = ""
	for _, t := range e.arch.Telegraph {
		if t == move {
			s.Enemy.Telegraphed = move
			evs = append(evs, types.Event{
				Type: "telegraph",
				Data: map[string]any{"source": state.EnemyName, "action": string(move)},
			})
			break
		}
	}
	return evs
}

// RunBattle plays one battle to completion with the decider choosing every
// player action. A decider error wastes that turn.
func RunBattle(defs *state.Defs, archetypeID string, d Decider, seed int64) (types.BattleOutcome, error) {
	e, err := New(defs, archetypeID, seed)
	if err != nil {
		return types.BattleOutcome{}, err
	}
	for !e.Done() {
		snap := e.Snapshot()
		action, err := d.Decide(&snap)
		if err != nil {
			action = ""
		}
		e.Step(action)
	}
	return e.Result(), nil
}
