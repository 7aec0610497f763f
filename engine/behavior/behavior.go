// Package behavior executes parsed Behaviour Trees with go-behaviortree.
//
// A tree is compiled once into bt nodes bound to an evaluation frame. Each
// evaluation points the frame at a combat state and ticks the root once.
// Success means an action was chosen; conditions never choose an action on
// their own, so a bare condition under a selector never satisfies it.
package behavior

import (
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/nathoo/btarena/engine/registry"
	"github.com/nathoo/btarena/types"
)

// Step is one traced node evaluation.
type Step struct {
	Line   int
	Node   string
	Status bt.Status
}

func (s Step) String() string {
	return fmt.Sprintf("line %d: %s -> %v", s.Line, s.Node, s.Status)
}

// Decision is the result of one tree evaluation.
type Decision struct {
	Action types.ActionID
	OK     bool // false is NoAction
	Trace  []Step
}

// frame is the mutable context shared by the compiled nodes of one tree.
type frame struct {
	reg    *registry.Registry
	state  *types.CombatState
	action types.ActionID
	chosen bool
	trace  []Step
}

// Program is a compiled tree. It is not safe for concurrent use.
type Program struct {
	tree *types.Node
	root bt.Node
	f    *frame
}

// Compile binds tree to reg.
func Compile(tree *types.Node, reg *registry.Registry) *Program {
	f := &frame{reg: reg}
	return &Program{tree: tree, root: compile(tree, f, types.NodeRoot), f: f}
}

// Tree returns the source tree.
func (p *Program) Tree() *types.Node {
	return p.tree
}

// Run evaluates the tree once against s. It draws no randomness and does
// not modify s.
func (p *Program) Run(s *types.CombatState) (Decision, error) {
	p.f.state = s
	p.f.action, p.f.chosen, p.f.trace = "", false, nil
	defer func() { p.f.state = nil }()

	status, err := p.root.Tick()
	d := Decision{Trace: p.f.trace}
	if err != nil {
		return d, err
	}
	if status == bt.Success && p.f.chosen {
		d.Action, d.OK = p.f.action, true
	}
	return d, nil
}

// Evaluate compiles and runs tree against s. It returns false for NoAction.
func Evaluate(tree *types.Node, reg *registry.Registry, s *types.CombatState) (types.ActionID, bool) {
	d, err := Compile(tree, reg).Run(s)
	if err != nil {
		return "", false
	}
	return d.Action, d.OK
}

func compile(n *types.Node, f *frame, parent types.NodeKind) bt.Node {
	children := make([]bt.Node, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, compile(c, f, n.Kind))
	}

	var tick bt.Tick
	switch n.Kind {
	case types.NodeRoot:
		tick = f.rootTick
	case types.NodeSelector:
		tick = bt.Selector
	case types.NodeSequence:
		tick = f.sequenceTick
	case types.NodeCondition:
		tick = f.conditionTick(n)
		if n.Negated {
			tick = bt.Not(tick)
		}
		if parent == types.NodeSelector {
			tick = noAction(tick)
		}
	case types.NodeTask:
		tick = f.taskTick(n)
	default:
		tick = func([]bt.Node) (bt.Status, error) {
			return bt.Failure, fmt.Errorf("line %d: unknown node kind %d", n.Line, n.Kind)
		}
	}
	return bt.New(tick, children...)
}

func (f *frame) rootTick(children []bt.Node) (bt.Status, error) {
	if len(children) != 1 {
		return bt.Failure, fmt.Errorf("root has %d children", len(children))
	}
	return children[0].Tick()
}

// sequenceTick fails on the first failing child and succeeds as soon as a
// descendant has chosen an action. A sequence that runs out of children
// without choosing fails.
func (f *frame) sequenceTick(children []bt.Node) (bt.Status, error) {
	for _, c := range children {
		status, err := c.Tick()
		if err != nil {
			return bt.Failure, err
		}
		if status != bt.Success {
			return bt.Failure, nil
		}
		if f.chosen {
			return bt.Success, nil
		}
	}
	return bt.Failure, nil
}

func (f *frame) conditionTick(n *types.Node) bt.Tick {
	return func([]bt.Node) (bt.Status, error) {
		ok, err := f.reg.ResolveCondition(n.Condition, n.Arg, f.state)
		if err != nil {
			return bt.Failure, fmt.Errorf("line %d: %w", n.Line, err)
		}
		status := bt.Failure
		if ok {
			status = bt.Success
		}
		label := "condition " + n.Name
		if n.Negated {
			label = "NOT " + label
		}
		f.trace = append(f.trace, Step{Line: n.Line, Node: label, Status: status})
		return status, nil
	}
}

func (f *frame) taskTick(n *types.Node) bt.Tick {
	return func([]bt.Node) (bt.Status, error) {
		f.action, f.chosen = n.Action, true
		f.trace = append(f.trace, Step{Line: n.Line, Node: "task " + string(n.Action), Status: bt.Success})
		return bt.Success, nil
	}
}

// noAction evaluates tick for its trace but reports failure, since a
// condition yields no action.
func noAction(tick bt.Tick) bt.Tick {
	return func(children []bt.Node) (bt.Status, error) {
		if _, err := tick(children); err != nil {
			return bt.Failure, err
		}
		return bt.Failure, nil
	}
}

// Policy adapts a compiled tree to the combat engine's decider.
type Policy struct {
	prog *Program
	last Decision
}

// NewPolicy compiles tree for one battle.
func NewPolicy(tree *types.Node, reg *registry.Registry) *Policy {
	return &Policy{prog: Compile(tree, reg)}
}

// Decide returns the chosen action, or "" for NoAction.
func (p *Policy) Decide(s *types.CombatState) (types.ActionID, error) {
	d, err := p.prog.Run(s)
	p.last = d
	if err != nil {
		return "", err
	}
	return d.Action, nil
}

// Last returns the most recent decision, including its trace.
func (p *Policy) Last() Decision {
	return p.last
}
