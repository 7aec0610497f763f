// Package events implements single-pass dispatch of archetype passives.
// Handlers produce additional effects but do not recurse: effects applied
// from a handler never trigger further handlers.
package events

import (
	"github.com/nathoo/btarena/engine/policy"
	"github.com/nathoo/btarena/types"
)

// Event types the engine emits for handlers to react to.
const (
	DamageDealt = "damage_dealt" // the enemy damaged the player
	DamageTaken = "damage_taken" // the player damaged the enemy
	PhaseEnter  = "phase_enter"
)

// Dispatch runs the archetype handlers against the emitted events. Single
// pass. Returns the effects produced by matching handlers, in event order.
// A handler whose condition fails to evaluate is skipped.
func Dispatch(evs []types.Event, pol *policy.Policy, s *types.CombatState) []types.Effect {
	var result []types.Effect
	if pol == nil {
		return nil
	}

	env := policy.NewEnv(s)
	for _, ev := range evs {
		effs, err := pol.Handlers(ev.Type, env)
		if err != nil {
			continue
		}
		result = append(result, effs...)
	}

	return result
}
