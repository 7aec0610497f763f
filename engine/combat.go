package engine

import (
	"math"

	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

// Status damage modifiers. All modifiers compose multiplicatively.
const (
	attackDownMod  = 0.7
	rageBuffMod    = 1.4
	enrageMod      = 1.5
	chargedMod     = 2.0
	stormChargeMod = 2.0
	weaknessMod    = 1.5
	resistanceMod  = 0.5
	paralyzeMiss   = 50
)

// floorEpsilon absorbs float error so that 20 × 0.7 floors to 14, not 13.
const floorEpsilon = 1e-9

// ElementalMultiplier returns 1.5 when attack is the defender's weakness,
// 0.5 when the defender resists it, and 1.0 otherwise or when either side
// is Neutral.
func ElementalMultiplier(attack, defender types.Element) float64 {
	if attack == types.Neutral || attack == "" || defender == types.Neutral || defender == "" {
		return 1.0
	}
	switch attack {
	case state.Weakness(defender):
		return weaknessMod
	case state.Resistance(defender):
		return resistanceMod
	}
	return 1.0
}

// Damage is the breakdown of one damage computation.
type Damage struct {
	Base      int
	Elemental float64
	Modifier  float64 // status modifiers, excluding the elemental multiplier
	Amount    int
	Consumed  []types.StatusKind // one-shot statuses spent by this hit
}

// attackModifier returns the attacker's status multiplier for an attack of
// the given element, and the one-shot statuses it consumes.
func attackModifier(attacker state.Side, element types.Element) (float64, []types.StatusKind) {
	mod := 1.0
	var consumed []types.StatusKind
	if attacker.Has(types.AttackDown) {
		mod *= attackDownMod
	}
	if attacker.Has(types.RageBuff) {
		mod *= rageBuffMod
	}
	if attacker.Has(types.Enrage) {
		mod *= enrageMod
	}
	if attacker.Has(types.Charged) {
		mod *= chargedMod
		consumed = append(consumed, types.Charged)
	}
	if element == types.Lightning && attacker.Has(types.StormCharge) {
		mod *= stormChargeMod
		consumed = append(consumed, types.StormCharge)
	}
	return mod, consumed
}

// DamageCalc computes the damage of spec from attacker to defender:
// floor(base × modifiers × elemental, halved if defending) − defense, at
// least 0. It draws one roll for the base unless the range is a single value.
func DamageCalc(spec types.ActionSpec, attacker, defender state.Side, rng *RNG) Damage {
	base := rng.Range(spec.Damage.Min, spec.Damage.Max)
	mod, consumed := attackModifier(attacker, spec.Element)
	elemental := ElementalMultiplier(spec.Element, *defender.Element)

	raw := float64(base) * mod * elemental
	if defender.Has(types.Defending) {
		raw /= 2
	}
	amount := int(math.Floor(raw+floorEpsilon)) - defender.Defense
	if amount < 0 {
		amount = 0
	}

	return Damage{
		Base:      base,
		Elemental: elemental,
		Modifier:  mod,
		Amount:    amount,
		Consumed:  consumed,
	}
}

// isDamaging reports whether spec deals direct damage.
func isDamaging(spec types.ActionSpec) bool {
	return spec.Damage.Max > 0
}
