// Package registry is the closed vocabulary of Behaviour Tree conditions
// and tasks. The parser binds textual names into condition kinds with typed
// arguments; the executor resolves them against a combat state.
package registry

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

// ErrInvalidTree matches every error that rejects a tree source.
var ErrInvalidTree = errors.New("invalid behaviour tree")

// ConfigurationError reports an unknown name, a wrong arity or a badly
// typed argument.
type ConfigurationError struct {
	Line int
	Name string
	Msg  string
}

func (e *ConfigurationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Name, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Msg)
}

// Is makes ConfigurationError match ErrInvalidTree.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidTree
}

// Signature declares a condition's name and argument type.
type Signature struct {
	Kind types.ConditionKind
	Name string
	Arg  types.ArgType
}

var signatures = []Signature{
	{types.CondHasMP, "HasMP", types.ArgInt},
	{types.CondHasTP, "HasTP", types.ArgInt},
	{types.CondIsPlayerHPLow, "IsPlayerHPLow", types.ArgInt},
	{types.CondIsPlayerHPHigh, "IsPlayerHPHigh", types.ArgInt},
	{types.CondIsEnemyHPLow, "IsEnemyHPLow", types.ArgInt},
	{types.CondIsEnemyHPHigh, "IsEnemyHPHigh", types.ArgInt},
	{types.CondIsPlayerHPLevel, "IsPlayerHPLevel", types.ArgLevel},
	{types.CondIsEnemyHPLevel, "IsEnemyHPLevel", types.ArgLevel},
	{types.CondEnemyWeakTo, "EnemyWeakTo", types.ArgElement},
	{types.CondEnemyResists, "EnemyResists", types.ArgElement},
	{types.CondEnemyHasElement, "EnemyHasElement", types.ArgElement},
	{types.CondCanHeal, "CanHeal", types.ArgNone},
	{types.CondCanUse, "CanUse", types.ArgAction},
	{types.CondEnemyIsTelegraphing, "EnemyIsTelegraphing", types.ArgEnemyMove},
	{types.CondIsTurnBefore, "IsTurnBefore", types.ArgInt},
	{types.CondIsTurnAtLeast, "IsTurnAtLeast", types.ArgInt},
	{types.CondIsTurnEarly, "IsTurnEarly", types.ArgInt},
	{types.CondIsDefending, "IsDefending", types.ArgNone},
	{types.CondHasStatus, "HasStatus", types.ArgStatus},
	{types.CondEnemyHasStatus, "EnemyHasStatus", types.ArgStatus},
	{types.CondIsEnemyScanned, "IsEnemyScanned", types.ArgNone},
}

// Registry binds names against the loaded content and resolves conditions.
type Registry struct {
	defs   *state.Defs
	byName map[string]Signature
	byKind map[types.ConditionKind]Signature
	tasks  map[types.ActionID]bool
}

// New creates a registry over defs.
func New(defs *state.Defs) *Registry {
	r := &Registry{
		defs:   defs,
		byName: make(map[string]Signature, len(signatures)),
		byKind: make(map[types.ConditionKind]Signature, len(signatures)),
		tasks:  make(map[types.ActionID]bool, len(types.PlayerActions)),
	}
	for _, sig := range signatures {
		r.byName[sig.Name] = sig
		r.byKind[sig.Kind] = sig
	}
	for _, id := range types.PlayerActions {
		r.tasks[id] = true
	}
	return r
}

// Defs returns the content the registry was built over.
func (r *Registry) Defs() *state.Defs {
	return r.defs
}

// Signature returns the signature of a condition kind.
func (r *Registry) Signature(kind types.ConditionKind) (Signature, bool) {
	sig, ok := r.byKind[kind]
	return sig, ok
}

// ConditionNames returns the condition vocabulary with argument hints, in
// declaration order.
func (r *Registry) ConditionNames() []string {
	out := make([]string, 0, len(signatures))
	for _, sig := range signatures {
		out = append(out, sig.Name+"("+argHint(sig.Arg)+")")
	}
	return out
}

// TaskNames returns the task vocabulary in display order.
func (r *Registry) TaskNames() []string {
	out := make([]string, 0, len(types.PlayerActions))
	for _, id := range types.PlayerActions {
		out = append(out, string(id)+"()")
	}
	return out
}

func argHint(t types.ArgType) string {
	switch t {
	case types.ArgInt:
		return "n"
	case types.ArgLevel:
		return "Low|Mid|High"
	case types.ArgElement:
		return "Fire|Ice|Lightning"
	case types.ArgStatus:
		return "Status"
	case types.ArgAction:
		return "Action"
	case types.ArgEnemyMove:
		return "EnemyMove"
	}
	return ""
}

// BindCondition maps a condition name and its literal argument tokens to a
// kind and typed argument.
func (r *Registry) BindCondition(name string, args []string, line int) (types.ConditionKind, types.Arg, error) {
	sig, ok := r.byName[name]
	if !ok {
		return types.CondUnknown, types.Arg{}, &ConfigurationError{Line: line, Name: name, Msg: "unknown condition"}
	}
	arg, err := r.bindArg(sig.Arg, args)
	if err != nil {
		return types.CondUnknown, types.Arg{}, &ConfigurationError{Line: line, Name: name, Msg: err.Error()}
	}
	return sig.Kind, arg, nil
}

// BindTask maps a task name to its action. Tasks take no arguments.
func (r *Registry) BindTask(name string, args []string, line int) (types.ActionID, error) {
	id := types.ActionID(name)
	if !r.tasks[id] {
		return "", &ConfigurationError{Line: line, Name: name, Msg: "unknown task"}
	}
	if len(args) != 0 {
		return "", &ConfigurationError{Line: line, Name: name, Msg: fmt.Sprintf("expects 0 arguments, got %d", len(args))}
	}
	if _, ok := r.defs.Actions[id]; !ok {
		return "", &ConfigurationError{Line: line, Name: name, Msg: "action not defined by content"}
	}
	return id, nil
}

func (r *Registry) bindArg(t types.ArgType, args []string) (types.Arg, error) {
	want := 1
	if t == types.ArgNone {
		want = 0
	}
	if len(args) != want {
		return types.Arg{}, fmt.Errorf("expects %d argument(s), got %d", want, len(args))
	}
	if t == types.ArgNone {
		return types.Arg{Type: types.ArgNone}, nil
	}

	tok := args[0]
	switch t {
	case types.ArgInt:
		n, err := strconv.Atoi(tok)
		if err != nil {
			return types.Arg{}, fmt.Errorf("argument %q is not an integer", tok)
		}
		return types.Arg{Type: t, Int: n}, nil
	case types.ArgLevel:
		if tok != state.LevelLow && tok != state.LevelMid && tok != state.LevelHigh {
			return types.Arg{}, fmt.Errorf("argument %q is not an HP level (Low, Mid, High)", tok)
		}
	case types.ArgElement:
		if !state.KnownElement(types.Element(tok)) {
			return types.Arg{}, fmt.Errorf("argument %q is not an element", tok)
		}
	case types.ArgStatus:
		if !state.KnownStatus(types.StatusKind(tok)) {
			return types.Arg{}, fmt.Errorf("argument %q is not a status", tok)
		}
	case types.ArgAction:
		if !r.tasks[types.ActionID(tok)] {
			return types.Arg{}, fmt.Errorf("argument %q is not a player action", tok)
		}
	case types.ArgEnemyMove:
		if !r.defs.HasEnemyMove(types.ActionID(tok)) {
			return types.Arg{}, fmt.Errorf("argument %q is not an enemy move", tok)
		}
	default:
		return types.Arg{}, fmt.Errorf("unsupported argument type %d", t)
	}
	return types.Arg{Type: t, Ident: tok}, nil
}

// ResolveTask returns the action spec for a task.
func (r *Registry) ResolveTask(id types.ActionID) (types.ActionSpec, error) {
	if !r.tasks[id] {
		return types.ActionSpec{}, &ConfigurationError{Name: string(id), Msg: "unknown task"}
	}
	spec, ok := r.defs.Actions[id]
	if !ok {
		return types.ActionSpec{}, &ConfigurationError{Name: string(id), Msg: "action not defined by content"}
	}
	return spec, nil
}

// Affordable reports whether the player can use action id now: it is
// defined, off cooldown, and its cost is covered.
func (r *Registry) Affordable(id types.ActionID, p types.Player) bool {
	spec, ok := r.defs.Actions[id]
	if !ok {
		return false
	}
	return state.PlayerCanUse(p, spec)
}

// ResolveCondition evaluates a condition against s. It never mutates s.
func (r *Registry) ResolveCondition(kind types.ConditionKind, arg types.Arg, s *types.CombatState) (bool, error) {
	p, e := s.Player, s.Enemy
	switch kind {
	case types.CondHasMP:
		return p.MP >= arg.Int, nil
	case types.CondHasTP:
		return p.TP >= arg.Int, nil

	case types.CondIsPlayerHPLow:
		return state.HPPercent(p.HP, p.MaxHP) < float64(arg.Int), nil
	case types.CondIsPlayerHPHigh:
		return state.HPPercent(p.HP, p.MaxHP) > float64(arg.Int), nil
	case types.CondIsEnemyHPLow:
		return state.HPPercent(e.HP, e.MaxHP) < float64(arg.Int), nil
	case types.CondIsEnemyHPHigh:
		return state.HPPercent(e.HP, e.MaxHP) > float64(arg.Int), nil
	case types.CondIsPlayerHPLevel:
		return state.HPLevel(state.HPPercent(p.HP, p.MaxHP)) == arg.Ident, nil
	case types.CondIsEnemyHPLevel:
		return state.HPLevel(state.HPPercent(e.HP, e.MaxHP)) == arg.Ident, nil

	case types.CondEnemyWeakTo:
		w := state.Weakness(e.Element)
		return w != types.Neutral && w == types.Element(arg.Ident), nil
	case types.CondEnemyResists:
		res := state.Resistance(e.Element)
		return res != types.Neutral && res == types.Element(arg.Ident), nil
	case types.CondEnemyHasElement:
		return e.Element == types.Element(arg.Ident), nil

	case types.CondCanHeal:
		return r.Affordable(types.Heal, p), nil
	case types.CondCanUse:
		return r.Affordable(types.ActionID(arg.Ident), p), nil

	case types.CondEnemyIsTelegraphing:
		return e.Telegraphed != "" && e.Telegraphed == types.ActionID(arg.Ident), nil

	case types.CondIsTurnBefore:
		return s.Turn < arg.Int, nil
	case types.CondIsTurnAtLeast:
		return s.Turn >= arg.Int, nil
	case types.CondIsTurnEarly:
		return s.Turn <= arg.Int, nil
	case types.CondIsDefending:
		// Defending lapses at the end of the turn, so this reads the
		// previous turn's action.
		return p.LastAction == types.Defend, nil

	case types.CondHasStatus:
		return state.HasStatus(p.Statuses, types.StatusKind(arg.Ident)), nil
	case types.CondEnemyHasStatus:
		return state.HasStatus(e.Buffs, types.StatusKind(arg.Ident)), nil

	case types.CondIsEnemyScanned:
		return p.Scanned, nil
	}
	return false, &ConfigurationError{Name: fmt.Sprintf("condition#%d", kind), Msg: "unknown condition kind"}
}
