// Package effects implements centralized state mutation via the Apply function.
// Every effect kind is one atomic operation. No decision logic in effects.
package effects

import (
	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

// Roller supplies the chance rolls for probabilistic effects.
type Roller interface {
	Chance(percent int) bool
}

// Context carries who is acting on whom, and with what.
type Context struct {
	Action     types.ActionID
	Actor      state.Side
	Target     state.Side
	LastDamage int // damage the actor just dealt, for lifesteal
	Roller     Roller
}

// Result summarizes what the effects did.
type Result struct {
	Healed    int
	Inflicted []types.StatusKind
}

// Apply applies a list of effects, mutating the combatants in ctx.
// Returns the summary and the events emitted.
func Apply(effs []types.Effect, ctx Context) (Result, []types.Event) {
	var res Result
	var events []types.Event

	for _, eff := range effs {
		switch eff.Kind {
		case types.EffectInflict:
			if eff.Chance > 0 && !ctx.Roller.Chance(eff.Chance) {
				continue
			}
			state.AddStatus(ctx.Target.Statuses, types.StatusEffect{
				Kind: eff.Status, Remaining: eff.Turns, Magnitude: eff.Magnitude,
			})
			res.Inflicted = append(res.Inflicted, eff.Status)
			events = append(events, statusEvent(ctx.Target.Name, eff.Status))

		case types.EffectBuff:
			if eff.Chance > 0 && !ctx.Roller.Chance(eff.Chance) {
				continue
			}
			state.AddStatus(ctx.Actor.Statuses, types.StatusEffect{
				Kind: eff.Status, Remaining: eff.Turns, Magnitude: eff.Magnitude,
			})
			events = append(events, statusEvent(ctx.Actor.Name, eff.Status))

		case types.EffectHeal:
			healed := ctx.Actor.Restore(types.HP, eff.Amount)
			res.Healed += healed
			events = append(events, types.Event{
				Type: "healed",
				Data: map[string]any{"target": ctx.Actor.Name, "amount": healed},
			})

		case types.EffectGain:
			ctx.Actor.Restore(eff.Resource, eff.Amount)

		case types.EffectCooldown:
			if ctx.Actor.Cooldowns != nil && ctx.Action != "" {
				ctx.Actor.Cooldowns[ctx.Action] = eff.Turns
			}

		case types.EffectScan:
			if ctx.Actor.Scanned != nil {
				*ctx.Actor.Scanned = true
				events = append(events, types.Event{
					Type: "scanned",
					Data: map[string]any{"target": ctx.Target.Name},
				})
			}

		case types.EffectCleanse:
			removed := state.RemoveMatching(ctx.Actor.Statuses, state.IsDebuff)
			if len(removed) > 0 {
				events = append(events, removedEvent("cleansed", ctx.Actor.Name, removed))
			}

		case types.EffectDispel:
			removed := state.RemoveMatching(ctx.Target.Statuses, func(k types.StatusKind) bool {
				return !state.IsDebuff(k)
			})
			if len(removed) > 0 {
				events = append(events, removedEvent("dispelled", ctx.Target.Name, removed))
			}

		case types.EffectSetElement:
			if *ctx.Actor.Element != eff.Element {
				events = append(events, types.Event{
					Type: "element_changed",
					Data: map[string]any{"target": ctx.Actor.Name, "element": string(eff.Element)},
				})
			}
			*ctx.Actor.Element = eff.Element
			*ctx.Actor.ElementTurns = eff.Turns

		case types.EffectLifesteal:
			amount := ctx.LastDamage * eff.Amount / 100
			healed := ctx.Actor.Restore(types.HP, amount)
			res.Healed += healed
			if healed > 0 {
				events = append(events, types.Event{
					Type: "healed",
					Data: map[string]any{"target": ctx.Actor.Name, "amount": healed},
				})
			}
		}
	}

	return res, events
}

func statusEvent(target string, kind types.StatusKind) types.Event {
	return types.Event{
		Type: "status_applied",
		Data: map[string]any{"target": target, "status": string(kind)},
	}
}

func removedEvent(typ, target string, removed []types.StatusKind) types.Event {
	names := make([]string, len(removed))
	for i, k := range removed {
		names[i] = string(k)
	}
	return types.Event{
		Type: typ,
		Data: map[string]any{"target": target, "statuses": names},
	}
}
