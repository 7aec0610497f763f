// Package policy compiles and evaluates enemy behaviour: HP phases guarded
// by expr-lang conditions, each with a weighted move table, plus passive
// event handlers.
package policy

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

// Env is the environment phase and handler conditions are evaluated against.
type Env struct {
	HP          int
	MaxHP       int
	HPPct       float64
	MP          int
	TP          int
	Turn        int
	Element     string
	PlayerHPPct float64

	buffs          []types.StatusEffect
	playerStatuses []types.StatusEffect
}

// NewEnv builds the condition environment from the enemy's point of view.
func NewEnv(s *types.CombatState) Env {
	e := s.Enemy
	return Env{
		HP:             e.HP,
		MaxHP:          e.MaxHP,
		HPPct:          state.HPPercent(e.HP, e.MaxHP),
		MP:             e.MP,
		TP:             e.TP,
		Turn:           s.Turn,
		Element:        string(e.Element),
		PlayerHPPct:    state.HPPercent(s.Player.HP, s.Player.MaxHP),
		buffs:          e.Buffs,
		playerStatuses: s.Player.Statuses,
	}
}

// HasBuff reports whether the enemy has the named status.
func (e Env) HasBuff(kind string) bool {
	return state.HasStatus(e.buffs, types.StatusKind(kind))
}

// PlayerHas reports whether the player has the named status.
func (e Env) PlayerHas(kind string) bool {
	return state.HasStatus(e.playerStatuses, types.StatusKind(kind))
}

// CompileCondition compiles a boolean condition. An empty source is always true.
func CompileCondition(src string) (*vm.Program, error) {
	if src == "" {
		src = "true"
	}
	return expr.Compile(src, expr.Env(Env{}), expr.AsBool())
}

type phase struct {
	def     types.PhaseDef
	program *vm.Program
}

type handler struct {
	def     types.EventHandler
	program *vm.Program
}

// Policy is the compiled behaviour of one archetype.
type Policy struct {
	phases   []phase
	handlers []handler
}

// Compile compiles every phase and handler condition of arch.
func Compile(arch types.ArchetypeDef) (*Policy, error) {
	p := &Policy{}
	for i, ph := range arch.Phases {
		prog, err := CompileCondition(ph.When)
		if err != nil {
			return nil, fmt.Errorf("compile %s phase %d: %w", arch.ID, i+1, err)
		}
		p.phases = append(p.phases, phase{def: ph, program: prog})
	}
	for _, h := range arch.Handlers {
		prog, err := CompileCondition(h.When)
		if err != nil {
			return nil, fmt.Errorf("compile %s handler %q: %w", arch.ID, h.EventType, err)
		}
		p.handlers = append(p.handlers, handler{def: h, program: prog})
	}
	return p, nil
}

// Phase returns the index of the first phase whose condition holds, or -1.
func (p *Policy) Phase(env Env) (int, error) {
	for i, ph := range p.phases {
		ok, err := run(ph.program, env)
		if err != nil {
			return -1, fmt.Errorf("phase %d: %w", i+1, err)
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

// PhaseDef returns the definition of phase i.
func (p *Policy) PhaseDef(i int) types.PhaseDef {
	return p.phases[i].def
}

// NumPhases returns the number of phases.
func (p *Policy) NumPhases() int {
	return len(p.phases)
}

// Handlers returns the effects of every handler for eventType whose
// condition holds, in definition order.
func (p *Policy) Handlers(eventType string, env Env) ([]types.Effect, error) {
	var out []types.Effect
	for _, h := range p.handlers {
		if h.def.EventType != eventType {
			continue
		}
		ok, err := run(h.program, env)
		if err != nil {
			return nil, fmt.Errorf("handler %q: %w", eventType, err)
		}
		if ok {
			out = append(out, h.def.Effects...)
		}
	}
	return out, nil
}

func run(prog *vm.Program, env Env) (bool, error) {
	out, err := vm.Run(prog, env)
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}
