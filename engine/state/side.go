package state

import "github.com/nathoo/btarena/types"

// Side names.
const (
	PlayerName = "player"
	EnemyName  = "enemy"
)

// Side is a mutable view of one combatant, letting action resolution treat
// the player and the enemy alike.
type Side struct {
	Name         string
	HP, MaxHP    *int
	MP, MaxMP    *int
	TP, MaxTP    *int
	Defense      int
	Statuses     *[]types.StatusEffect
	Element      *types.Element
	ElementTurns *int
	Cooldowns    map[types.ActionID]int // nil for the enemy
	Scanned      *bool                  // nil for the enemy
}

// PlayerSide returns the player's view of s.
func PlayerSide(s *types.CombatState) Side {
	p := &s.Player
	neutral := types.Neutral
	turns := 0
	if p.Cooldowns == nil {
		p.Cooldowns = map[types.ActionID]int{}
	}
	return Side{
		Name:         PlayerName,
		HP:           &p.HP,
		MaxHP:        &p.MaxHP,
		MP:           &p.MP,
		MaxMP:        &p.MaxMP,
		TP:           &p.TP,
		MaxTP:        &p.MaxTP,
		Defense:      p.Defense,
		Statuses:     &p.Statuses,
		Element:      &neutral,
		ElementTurns: &turns,
		Cooldowns:    p.Cooldowns,
		Scanned:      &p.Scanned,
	}
}

// EnemySide returns the enemy's view of s.
func EnemySide(s *types.CombatState) Side {
	e := &s.Enemy
	return Side{
		Name:         EnemyName,
		HP:           &e.HP,
		MaxHP:        &e.MaxHP,
		MP:           &e.MP,
		MaxMP:        &e.MaxMP,
		TP:           &e.TP,
		MaxTP:        &e.MaxTP,
		Defense:      e.Defense,
		Statuses:     &e.Buffs,
		Element:      &e.Element,
		ElementTurns: &e.ElementTurns,
	}
}

// Has reports whether the side has an active status of the given kind.
func (sd Side) Has(kind types.StatusKind) bool {
	return HasStatus(*sd.Statuses, kind)
}

// Spend deducts cost. It returns false, leaving the side untouched, when the
// cost is not covered.
func (sd Side) Spend(cost types.Cost) bool {
	if !CanAfford(cost, *sd.MP, *sd.TP) {
		return false
	}
	switch cost.Resource {
	case types.MP:
		*sd.MP -= cost.Amount
	case types.TP:
		*sd.TP -= cost.Amount
	}
	return true
}

// Damage lowers HP, floored at zero. Returns the HP actually lost.
func (sd Side) Damage(amount int) int {
	if amount <= 0 {
		return 0
	}
	before := *sd.HP
	*sd.HP = Clamp(*sd.HP-amount, 0, *sd.MaxHP)
	return before - *sd.HP
}

// Restore raises a resource, capped at its maximum. Returns the amount gained.
func (sd Side) Restore(res types.Resource, amount int) int {
	var cur, limit *int
	switch res {
	case types.HP:
		cur, limit = sd.HP, sd.MaxHP
	case types.MP:
		cur, limit = sd.MP, sd.MaxMP
	case types.TP:
		cur, limit = sd.TP, sd.MaxTP
	default:
		return 0
	}
	if amount <= 0 {
		return 0
	}
	before := *cur
	*cur = Clamp(*cur+amount, 0, *limit)
	return *cur - before
}
