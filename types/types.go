// Package types defines the shared data structures for the btarena engine.
// This package contains only type definitions and their string forms.
package types

// Element is the elemental tag of an attack or of a combatant.
type Element string

const (
	Neutral   Element = "Neutral"
	Fire      Element = "Fire"
	Ice       Element = "Ice"
	Lightning Element = "Lightning"
)

// StatusKind identifies a status effect.
type StatusKind string

const (
	Burn        StatusKind = "Burn"
	Freeze      StatusKind = "Freeze"
	Paralyze    StatusKind = "Paralyze"
	AttackDown  StatusKind = "AttackDown"
	Defending   StatusKind = "Defending"
	Charged     StatusKind = "Charged"
	RageBuff    StatusKind = "RageBuff"
	Enrage      StatusKind = "Enrage"
	FrostAura   StatusKind = "FrostAura"
	StormCharge StatusKind = "StormCharge"
)

// Permanent marks a status effect that never ticks down.
const Permanent = -1

// StatusEffect is a timed modifier attached to a combatant.
type StatusEffect struct {
	Kind      StatusKind `json:"kind"`
	Remaining int        `json:"remaining"` // turns left, or Permanent
	Magnitude int        `json:"magnitude,omitempty"`
}

// Resource is a spendable combat resource.
type Resource string

const (
	NoResource Resource = ""
	MP         Resource = "MP"
	TP         Resource = "TP"
	HP         Resource = "HP"
)

// Cost is the resource price of an action.
type Cost struct {
	Resource Resource `json:"resource,omitempty"`
	Amount   int      `json:"amount,omitempty"`
}

// DamageRange is the inclusive base damage range of an action.
type DamageRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// EffectKind identifies a secondary effect of an action.
type EffectKind string

const (
	EffectInflict    EffectKind = "inflict"     // status on the opponent
	EffectBuff       EffectKind = "buff"        // status on self
	EffectHeal       EffectKind = "heal"        // restore HP
	EffectGain       EffectKind = "gain"        // restore MP or TP
	EffectCooldown   EffectKind = "cooldown"    // start the acting action's cooldown
	EffectScan       EffectKind = "scan"        // reveal the enemy
	EffectCleanse    EffectKind = "cleanse"     // remove own debuffs
	EffectDispel     EffectKind = "dispel"      // remove opponent buffs
	EffectSetElement EffectKind = "set_element" // change own element
	EffectLifesteal  EffectKind = "lifesteal"   // heal a percentage of damage dealt
)

// Effect is a single secondary effect. Unused fields are zero.
type Effect struct {
	Kind      EffectKind `json:"kind"`
	Status    StatusKind `json:"status,omitempty"`
	Turns     int        `json:"turns,omitempty"`
	Chance    int        `json:"chance,omitempty"` // percent; 0 means always
	Magnitude int        `json:"magnitude,omitempty"`
	Amount    int        `json:"amount,omitempty"`
	Resource  Resource   `json:"resource,omitempty"`
	Element   Element    `json:"element,omitempty"`
}

// ActionID names a player action or an enemy move.
type ActionID string

// Player actions. The set is closed: trees may only name these.
const (
	Attack         ActionID = "Attack"
	PowerStrike    ActionID = "PowerStrike"
	FireSpell      ActionID = "FireSpell"
	IceSpell       ActionID = "IceSpell"
	LightningSpell ActionID = "LightningSpell"
	Defend         ActionID = "Defend"
	Heal           ActionID = "Heal"
	Scan           ActionID = "Scan"
	Charge         ActionID = "Charge"
	Cleanse        ActionID = "Cleanse"
	Dispel         ActionID = "Dispel"
)

// PlayerActions lists the player actions in display order.
var PlayerActions = []ActionID{
	Attack, PowerStrike, FireSpell, IceSpell, LightningSpell,
	Defend, Heal, Scan, Charge, Cleanse, Dispel,
}

// ActionSpec is the static table entry for an action.
type ActionSpec struct {
	ID      ActionID    `json:"id"`
	Name    string      `json:"name"`
	Cost    Cost        `json:"cost"`
	Damage  DamageRange `json:"damage"`
	Element Element     `json:"element"`
	Effects []Effect    `json:"effects,omitempty"`
}

// WeightedMove is one entry of an enemy phase's move table.
type WeightedMove struct {
	Move   ActionID
	Weight int
}

// PhaseDef is one HP phase of an enemy archetype.
type PhaseDef struct {
	When  string   // expr-lang boolean expression
	Enter []Effect // applied once when the phase is entered
	Moves []WeightedMove
}

// EventHandler is a passive triggered by a combat event rather than a decision.
type EventHandler struct {
	EventType string
	When      string // expr-lang boolean expression, empty means always
	Effects   []Effect
}

// ArchetypeDef is the base definition of an enemy archetype.
type ArchetypeDef struct {
	ID        string
	Name      string
	HP        int
	MP        int
	MaxMP     int
	MPRegen   int
	TP        int
	MaxTP     int
	TPRegen   int
	Defense   int
	Element   Element
	Moves     map[ActionID]ActionSpec
	Telegraph []ActionID
	Phases    []PhaseDef
	Handlers  []EventHandler
}

// PlayerDef holds the player's starting stats.
type PlayerDef struct {
	HP      int
	MP      int
	MaxMP   int
	MPRegen int
	TP      int
	MaxTP   int
	TPRegen int
	Defense int
}

// GameDef holds content metadata.
type GameDef struct {
	Title     string
	Version   string
	TurnLimit int
}

// Player holds the player's runtime combat state.
type Player struct {
	HP        int              `json:"hp"`
	MaxHP     int              `json:"max_hp"`
	MP        int              `json:"mp"`
	MaxMP     int              `json:"max_mp"`
	MPRegen   int              `json:"mp_regen"`
	TP        int              `json:"tp"`
	MaxTP     int              `json:"max_tp"`
	TPRegen   int              `json:"tp_regen"`
	Defense   int              `json:"defense"`
	Statuses  []StatusEffect   `json:"statuses"`
	Cooldowns map[ActionID]int `json:"cooldowns"`
	Scanned   bool             `json:"scanned"`

	LastAction ActionID `json:"last_action,omitempty"`
}

// Enemy holds the enemy's runtime combat state.
type Enemy struct {
	Archetype    string         `json:"archetype"`
	Name         string         `json:"name"`
	HP           int            `json:"hp"`
	MaxHP        int            `json:"max_hp"`
	MP           int            `json:"mp"`
	MaxMP        int            `json:"max_mp"`
	MPRegen      int            `json:"mp_regen"`
	TP           int            `json:"tp"`
	MaxTP        int            `json:"max_tp"`
	TPRegen      int            `json:"tp_regen"`
	Defense      int            `json:"defense"`
	Element      Element        `json:"element"`
	ElementTurns int            `json:"element_turns"` // 0 with a non-neutral element means permanent
	Buffs        []StatusEffect `json:"buffs"`
	Telegraphed  ActionID       `json:"telegraphed,omitempty"` // visible to the player
	Intent       ActionID       `json:"intent,omitempty"`      // decided, not necessarily visible
	Phase        int            `json:"phase"`
}

// CombatState is the complete mutable battle state.
type CombatState struct {
	Player Player `json:"player"`
	Enemy  Enemy  `json:"enemy"`
	Turn   int    `json:"turn"`
}

// Outcome is the state of a battle.
type Outcome int

const (
	InProgress Outcome = iota
	PlayerVictory
	EnemyVictory
	Draw // turn limit exceeded
)

func (o Outcome) String() string {
	switch o {
	case PlayerVictory:
		return "PlayerVictory"
	case EnemyVictory:
		return "EnemyVictory"
	case Draw:
		return "Draw"
	}
	return "InProgress"
}

// Event is emitted while a turn resolves.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// ActionResult describes how one side's action resolved.
type ActionResult struct {
	Action     ActionID     `json:"action,omitempty"`
	Cost       Cost         `json:"cost"`
	Damage     int          `json:"damage"`
	Multiplier float64      `json:"multiplier,omitempty"` // elemental multiplier
	Healed     int          `json:"healed,omitempty"`
	Inflicted  []StatusKind `json:"inflicted,omitempty"`
	Wasted     bool         `json:"wasted,omitempty"`  // unaffordable, on cooldown or unknown
	Skipped    bool         `json:"skipped,omitempty"` // frozen
	Missed     bool         `json:"missed,omitempty"`  // paralysis
}

// DotTick records damage-over-time taken during the status tick.
type DotTick struct {
	Target string     `json:"target"` // "player" or "enemy"
	Status StatusKind `json:"status"`
	Damage int        `json:"damage"`
}

// TurnRecord is the structured log entry for one turn.
type TurnRecord struct {
	Turn          int          `json:"turn"`
	Before        CombatState  `json:"before"`
	Telegraph     ActionID     `json:"telegraph,omitempty"`
	Player        ActionResult `json:"player"`
	Enemy         ActionResult `json:"enemy"`
	Ticks         []DotTick    `json:"ticks,omitempty"`
	Events        []Event      `json:"events,omitempty"`
	NextTelegraph ActionID     `json:"next_telegraph,omitempty"`
}

// BattleOutcome is the result of one battle. Never mutated after creation.
type BattleOutcome struct {
	Archetype string       `json:"archetype"`
	Seed      int64        `json:"seed"`
	Victor    Outcome      `json:"victor"`
	Turns     int          `json:"turns"`
	Final     CombatState  `json:"final"`
	Log       []TurnRecord `json:"log"`
}

// MasteryRecord tracks curriculum progress against one archetype.
type MasteryRecord struct {
	Archetype string `json:"archetype"`
	Wins      int    `json:"wins"` // consecutive validation wins, 0..5
	Mastered  bool   `json:"mastered"`
	Attempts  int    `json:"attempts"` // iterations that picked this archetype
	Battles   int    `json:"battles"`
}

// IterationRecord is one curriculum iteration in the run history.
type IterationRecord struct {
	Iteration      int     `json:"iteration"`
	Archetype      string  `json:"archetype"`
	Victor         Outcome `json:"victor"`
	Turns          int     `json:"turns"`
	ValidationWins int     `json:"validation_wins"`
	ValidationRuns int     `json:"validation_runs"`
	Mastered       bool    `json:"mastered"`
	Score          float64 `json:"score"`
	Generation     int     `json:"generation"` // accepted tree revisions so far
	RejectedError  string  `json:"rejected_error,omitempty"`
	Stagnation     int     `json:"stagnation"`
	RolledBack     bool    `json:"rolled_back,omitempty"`
}

// NodeKind identifies a Behaviour Tree node variant.
type NodeKind int

const (
	NodeRoot NodeKind = iota
	NodeSelector
	NodeSequence
	NodeCondition
	NodeTask
)

// ConditionKind is the closed set of condition predicates.
type ConditionKind int

const (
	CondUnknown ConditionKind = iota
	CondHasMP
	CondHasTP
	CondIsPlayerHPLow
	CondIsPlayerHPHigh
	CondIsEnemyHPLow
	CondIsEnemyHPHigh
	CondIsPlayerHPLevel
	CondIsEnemyHPLevel
	CondEnemyWeakTo
	CondEnemyResists
	CondEnemyHasElement
	CondCanHeal
	CondCanUse
	CondEnemyIsTelegraphing
	CondIsTurnBefore
	CondIsTurnAtLeast
	CondHasStatus
	CondEnemyHasStatus
	CondIsEnemyScanned
	CondIsTurnEarly
	CondIsDefending
)

// ArgType is the declared type of a node argument.
type ArgType int

const (
	ArgNone ArgType = iota
	ArgInt
	ArgLevel
	ArgElement
	ArgStatus
	ArgAction
	ArgEnemyMove
)

// Arg is a typed literal argument. Int is set for ArgInt, Ident otherwise.
type Arg struct {
	Type  ArgType
	Int   int
	Ident string
}

// Node is a Behaviour Tree node. Immutable once parsed.
type Node struct {
	Kind      NodeKind
	Name      string // condition or task name as written
	Condition ConditionKind
	Action    ActionID
	Arg       Arg
	Negated   bool
	Children  []*Node
	Line      int
}
