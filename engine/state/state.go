// Package state manages the combat definitions and the helpers that read
// and mutate a CombatState: status bookkeeping, resource checks, element
// relations and invariant checks.
package state

import (
	"fmt"
	"sort"

	"github.com/nathoo/btarena/types"
)

// DefaultTurnLimit applies when content does not set one.
const DefaultTurnLimit = 35

// Defs holds the immutable content definitions loaded from Lua.
type Defs struct {
	Game       types.GameDef
	Player     types.PlayerDef
	Actions    map[types.ActionID]types.ActionSpec
	Archetypes map[string]types.ArchetypeDef
}

// TurnLimit returns the configured turn ceiling.
func (d *Defs) TurnLimit() int {
	if d.Game.TurnLimit > 0 {
		return d.Game.TurnLimit
	}
	return DefaultTurnLimit
}

// ArchetypeIDs returns the archetype IDs in sorted order.
func (d *Defs) ArchetypeIDs() []string {
	ids := make([]string, 0, len(d.Archetypes))
	for id := range d.Archetypes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasEnemyMove reports whether any archetype defines the move.
func (d *Defs) HasEnemyMove(id types.ActionID) bool {
	for _, a := range d.Archetypes {
		if _, ok := a.Moves[id]; ok {
			return true
		}
	}
	return false
}

// NewState creates a fresh combat state for a battle against archetypeID.
func NewState(defs *Defs, archetypeID string) (*types.CombatState, error) {
	arch, ok := defs.Archetypes[archetypeID]
	if !ok {
		return nil, fmt.Errorf("unknown archetype %q", archetypeID)
	}
	p := defs.Player
	element := arch.Element
	if element == "" {
		element = types.Neutral
	}
	return &types.CombatState{
		Player: types.Player{
			HP:        p.HP,
			MaxHP:     p.HP,
			MP:        p.MP,
			MaxMP:     max(p.MaxMP, p.MP),
			MPRegen:   p.MPRegen,
			TP:        p.TP,
			MaxTP:     max(p.MaxTP, p.TP),
			TPRegen:   p.TPRegen,
			Defense:   p.Defense,
			Statuses:  []types.StatusEffect{},
			Cooldowns: map[types.ActionID]int{},
		},
		Enemy: types.Enemy{
			Archetype: arch.ID,
			Name:      arch.Name,
			HP:        arch.HP,
			MaxHP:     arch.HP,
			MP:        arch.MP,
			MaxMP:     max(arch.MaxMP, arch.MP),
			MPRegen:   arch.MPRegen,
			TP:        arch.TP,
			MaxTP:     max(arch.MaxTP, arch.TP),
			TPRegen:   arch.TPRegen,
			Defense:   arch.Defense,
			Element:   element,
			Buffs:     []types.StatusEffect{},
			Phase:     -1,
		},
		Turn: 1,
	}, nil
}

// Clone returns a deep copy of s, safe to hand out as a read-only snapshot.
func Clone(s *types.CombatState) types.CombatState {
	c := *s
	c.Player.Statuses = append([]types.StatusEffect{}, s.Player.Statuses...)
	c.Player.Cooldowns = make(map[types.ActionID]int, len(s.Player.Cooldowns))
	for k, v := range s.Player.Cooldowns {
		c.Player.Cooldowns[k] = v
	}
	c.Enemy.Buffs = append([]types.StatusEffect{}, s.Enemy.Buffs...)
	return c
}

// HPPercent returns hp as a percentage of maxHP.
func HPPercent(hp, maxHP int) float64 {
	if maxHP <= 0 {
		return 0
	}
	return float64(hp) * 100 / float64(maxHP)
}

// HP bands. Each band includes its lower bound.
const (
	LevelLow  = "Low"
	LevelMid  = "Mid"
	LevelHigh = "High"
)

// HPLevel discretizes an HP percentage into Low [0,33), Mid [33,66), High [66,100].
func HPLevel(pct float64) string {
	switch {
	case pct < 33:
		return LevelLow
	case pct < 66:
		return LevelMid
	default:
		return LevelHigh
	}
}

// FindStatus returns the active status of the given kind.
func FindStatus(list []types.StatusEffect, kind types.StatusKind) (types.StatusEffect, bool) {
	for _, s := range list {
		if s.Kind == kind {
			return s, true
		}
	}
	return types.StatusEffect{}, false
}

// HasStatus reports whether a status of the given kind is active.
func HasStatus(list []types.StatusEffect, kind types.StatusKind) bool {
	_, ok := FindStatus(list, kind)
	return ok
}

// AddStatus applies a status. Reapplying refreshes the longer duration and
// the larger magnitude; a permanent status stays permanent.
func AddStatus(list *[]types.StatusEffect, eff types.StatusEffect) {
	for i, s := range *list {
		if s.Kind != eff.Kind {
			continue
		}
		if s.Remaining != types.Permanent && (eff.Remaining == types.Permanent || eff.Remaining > s.Remaining) {
			(*list)[i].Remaining = eff.Remaining
		}
		if eff.Magnitude > s.Magnitude {
			(*list)[i].Magnitude = eff.Magnitude
		}
		return
	}
	*list = append(*list, eff)
}

// RemoveStatus removes the status of the given kind. Returns true if it was active.
func RemoveStatus(list *[]types.StatusEffect, kind types.StatusKind) bool {
	for i, s := range *list {
		if s.Kind == kind {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}

var debuffs = map[types.StatusKind]bool{
	types.Burn:       true,
	types.Freeze:     true,
	types.Paralyze:   true,
	types.AttackDown: true,
}

// IsDebuff reports whether kind is harmful to its holder.
func IsDebuff(kind types.StatusKind) bool {
	return debuffs[kind]
}

// KnownStatus reports whether kind is a defined status.
func KnownStatus(kind types.StatusKind) bool {
	switch kind {
	case types.Burn, types.Freeze, types.Paralyze, types.AttackDown, types.Defending,
		types.Charged, types.RageBuff, types.Enrage, types.FrostAura, types.StormCharge:
		return true
	}
	return false
}

// RemoveMatching removes every status for which match is true and returns
// the removed kinds in order.
func RemoveMatching(list *[]types.StatusEffect, match func(types.StatusKind) bool) []types.StatusKind {
	var removed []types.StatusKind
	kept := (*list)[:0]
	for _, s := range *list {
		if match(s.Kind) {
			removed = append(removed, s.Kind)
			continue
		}
		kept = append(kept, s)
	}
	*list = kept
	return removed
}

var weakness = map[types.Element]types.Element{
	types.Fire:      types.Ice,
	types.Ice:       types.Lightning,
	types.Lightning: types.Fire,
}

var resistance = map[types.Element]types.Element{
	types.Fire:      types.Lightning,
	types.Ice:       types.Fire,
	types.Lightning: types.Ice,
}

// Weakness returns the element that e is weak to, or Neutral.
func Weakness(e types.Element) types.Element {
	if w, ok := weakness[e]; ok {
		return w
	}
	return types.Neutral
}

// Resistance returns the element that e resists, or Neutral.
func Resistance(e types.Element) types.Element {
	if r, ok := resistance[e]; ok {
		return r
	}
	return types.Neutral
}

// KnownElement reports whether e is one of the closed set of elements.
func KnownElement(e types.Element) bool {
	switch e {
	case types.Neutral, types.Fire, types.Ice, types.Lightning:
		return true
	}
	return false
}

// CanAfford reports whether mp/tp cover cost. Free actions are always
// affordable; any other resource never is.
func CanAfford(cost types.Cost, mp, tp int) bool {
	switch cost.Resource {
	case types.NoResource:
		return true
	case types.MP:
		return mp >= cost.Amount
	case types.TP:
		return tp >= cost.Amount
	}
	return false
}

// PlayerCanUse reports whether spec is off cooldown and affordable.
func PlayerCanUse(p types.Player, spec types.ActionSpec) bool {
	if p.Cooldowns[spec.ID] > 0 {
		return false
	}
	return CanAfford(spec.Cost, p.MP, p.TP)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CheckInvariants verifies the documented bounds of s.
func CheckInvariants(s *types.CombatState) error {
	p, e := s.Player, s.Enemy
	checks := []struct {
		name     string
		val, max int
	}{
		{"player HP", p.HP, p.MaxHP},
		{"player MP", p.MP, p.MaxMP},
		{"player TP", p.TP, p.MaxTP},
		{"enemy HP", e.HP, e.MaxHP},
		{"enemy MP", e.MP, e.MaxMP},
		{"enemy TP", e.TP, e.MaxTP},
	}
	for _, c := range checks {
		if c.val < 0 || c.val > c.max {
			return fmt.Errorf("%s %d outside [0, %d]", c.name, c.val, c.max)
		}
	}
	if e.ElementTurns < 0 {
		return fmt.Errorf("enemy element countdown %d is negative", e.ElementTurns)
	}
	for id, cd := range p.Cooldowns {
		if cd < 0 {
			return fmt.Errorf("cooldown %s is negative: %d", id, cd)
		}
	}
	return nil
}
