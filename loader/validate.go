package loader

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/nathoo/btarena/engine/policy"
	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Known effect kinds.
var validEffectKinds = map[types.EffectKind]bool{
	types.EffectInflict:    true,
	types.EffectBuff:       true,
	types.EffectHeal:       true,
	types.EffectGain:       true,
	types.EffectCooldown:   true,
	types.EffectScan:       true,
	types.EffectCleanse:    true,
	types.EffectDispel:     true,
	types.EffectSetElement: true,
	types.EffectLifesteal:  true,
}

// Events the engine emits; handlers on anything else never fire.
var knownEvents = map[string]bool{
	"damage_dealt":    true,
	"damage_taken":    true,
	"phase_enter":     true,
	"status_applied":  true,
	"healed":          true,
	"scanned":         true,
	"cleansed":        true,
	"dispelled":       true,
	"element_changed": true,
	"frozen":          true,
	"missed":          true,
	"telegraph":       true,
}

// validate checks the compiled defs for consistency.
func validate(defs *state.Defs) error {
	ve := &ValidationError{}

	if defs.Game.Title == "" {
		ve.warnf("Game.title is empty")
	}
	if defs.Game.TurnLimit <= 0 {
		ve.errorf("Game.turn_limit must be positive, got %d", defs.Game.TurnLimit)
	}

	p := defs.Player
	if p.HP <= 0 {
		ve.errorf("Player.hp must be positive, got %d", p.HP)
	}
	if p.MP < 0 || p.TP < 0 || p.MPRegen < 0 || p.TPRegen < 0 || p.Defense < 0 {
		ve.errorf("Player stats must not be negative")
	}
	if p.MaxMP < p.MP || p.MaxTP < p.TP {
		ve.errorf("Player starting MP/TP exceed their maxima")
	}

	// The player vocabulary is closed: nothing more, nothing less.
	for id, spec := range defs.Actions {
		if !slices.Contains(types.PlayerActions, id) {
			ve.errorf("action %q is not a player action", id)
			continue
		}
		validateSpec(fmt.Sprintf("action %q", id), spec, ve)
	}
	for _, id := range types.PlayerActions {
		if _, ok := defs.Actions[id]; !ok {
			ve.errorf("player action %q is not defined", id)
		}
	}

	if len(defs.Archetypes) == 0 {
		ve.errorf("no Enemy definitions found")
	}
	for _, id := range defs.ArchetypeIDs() {
		validateArchetype(defs.Archetypes[id], ve)
	}

	for _, w := range ve.Warnings {
		slog.Warn("content", "warning", w)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateArchetype(arch types.ArchetypeDef, ve *ValidationError) {
	where := fmt.Sprintf("enemy %q", arch.ID)

	if arch.HP <= 0 {
		ve.errorf("%s: hp must be positive, got %d", where, arch.HP)
	}
	if arch.MaxMP < arch.MP || arch.MaxTP < arch.TP {
		ve.errorf("%s: starting MP/TP exceed their maxima", where)
	}
	if !state.KnownElement(arch.Element) {
		ve.errorf("%s: unknown element %q", where, arch.Element)
	}
	if len(arch.Moves) == 0 {
		ve.errorf("%s: no moves", where)
	}
	for id, spec := range arch.Moves {
		validateSpec(fmt.Sprintf("%s move %q", where, id), spec, ve)
	}

	for _, id := range arch.Telegraph {
		if _, ok := arch.Moves[id]; !ok {
			ve.errorf("%s: telegraph names undefined move %q", where, id)
		}
	}

	if len(arch.Phases) == 0 {
		ve.errorf("%s: no phases", where)
	}
	for i, ph := range arch.Phases {
		pw := fmt.Sprintf("%s phase %d", where, i+1)
		if _, err := policy.CompileCondition(ph.When); err != nil {
			ve.errorf("%s: invalid condition %q: %v", pw, ph.When, err)
		}
		if len(ph.Moves) == 0 {
			ve.errorf("%s: no moves", pw)
		}
		for _, m := range ph.Moves {
			if _, ok := arch.Moves[m.Move]; !ok {
				ve.errorf("%s: undefined move %q", pw, m.Move)
			}
			if m.Weight <= 0 {
				ve.errorf("%s: move %q weight must be positive, got %d", pw, m.Move, m.Weight)
			}
		}
		validateEffects(pw+" enter", ph.Enter, ve)
	}
	if n := len(arch.Phases); n > 0 && arch.Phases[n-1].When != "" {
		ve.warnf("%s: last phase has a condition; it is still used when no phase matches", where)
	}

	for _, h := range arch.Handlers {
		hw := fmt.Sprintf("%s handler %q", where, h.EventType)
		if !knownEvents[h.EventType] {
			ve.warnf("%s: event is never emitted", hw)
		}
		if _, err := policy.CompileCondition(h.When); err != nil {
			ve.errorf("%s: invalid condition %q: %v", hw, h.When, err)
		}
		validateEffects(hw, h.Effects, ve)
	}
}

func validateSpec(where string, spec types.ActionSpec, ve *ValidationError) {
	if spec.Damage.Min < 0 || spec.Damage.Max < spec.Damage.Min {
		ve.errorf("%s: invalid damage range [%d, %d]", where, spec.Damage.Min, spec.Damage.Max)
	}
	switch spec.Cost.Resource {
	case types.NoResource, types.MP, types.TP:
	default:
		ve.errorf("%s: unknown cost resource %q", where, spec.Cost.Resource)
	}
	if spec.Cost.Amount < 0 {
		ve.errorf("%s: cost must not be negative, got %d", where, spec.Cost.Amount)
	}
	if !state.KnownElement(spec.Element) {
		ve.errorf("%s: unknown element %q", where, spec.Element)
	}
	validateEffects(where, spec.Effects, ve)
}

func validateEffects(where string, effs []types.Effect, ve *ValidationError) {
	for _, eff := range effs {
		if !validEffectKinds[eff.Kind] {
			ve.errorf("%s: unknown effect type %q", where, eff.Kind)
			continue
		}
		switch eff.Kind {
		case types.EffectInflict, types.EffectBuff:
			if !state.KnownStatus(eff.Status) {
				ve.errorf("%s: unknown status %q", where, eff.Status)
			}
			if eff.Turns <= 0 && eff.Turns != types.Permanent {
				ve.errorf("%s: %s turns must be positive or Permanent, got %d", where, eff.Status, eff.Turns)
			}
			if eff.Chance < 0 || eff.Chance > 100 {
				ve.errorf("%s: chance must be within 0..100, got %d", where, eff.Chance)
			}
		case types.EffectHeal:
			if eff.Amount <= 0 {
				ve.errorf("%s: heal amount must be positive", where)
			}
		case types.EffectGain:
			if eff.Resource != types.MP && eff.Resource != types.TP {
				ve.errorf("%s: gain resource must be MP or TP, got %q", where, eff.Resource)
			}
			if eff.Amount <= 0 {
				ve.errorf("%s: gain amount must be positive", where)
			}
		case types.EffectCooldown:
			if eff.Turns <= 0 {
				ve.errorf("%s: cooldown must be positive", where)
			}
		case types.EffectSetElement:
			if !state.KnownElement(eff.Element) {
				ve.errorf("%s: unknown element %q", where, eff.Element)
			}
			if eff.Turns < 0 {
				ve.errorf("%s: element turns must not be negative", where)
			}
		case types.EffectLifesteal:
			if eff.Amount <= 0 || eff.Amount > 100 {
				ve.errorf("%s: lifesteal must be within 1..100, got %d", where, eff.Amount)
			}
		}
	}
}
