// Package parser converts Behaviour Tree DSL text into a tree of typed nodes.
//
// The format is line based. Depth is the indentation divided by a fixed
// four-space unit, and a node's parent is the most recent node one level up:
//
//	root :
//	    selector :
//	        sequence :
//	            condition : IsPlayerHPLevel(Low)
//	            condition : CanHeal()
//	            task : Heal()
//	        task : Attack()
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nathoo/btarena/engine/registry"
	"github.com/nathoo/btarena/types"
)

// IndentUnit is the number of spaces per tree level.
const IndentUnit = 4

// ErrInvalidTree matches both SyntaxError and registry.ConfigurationError.
var ErrInvalidTree = registry.ErrInvalidTree

// SyntaxError reports malformed DSL text.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// Is makes SyntaxError match ErrInvalidTree.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrInvalidTree
}

func syntaxErr(line int, format string, args ...any) error {
	return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

var keywords = map[string]types.NodeKind{
	"root":      types.NodeRoot,
	"selector":  types.NodeSelector,
	"sequence":  types.NodeSequence,
	"condition": types.NodeCondition,
	"task":      types.NodeTask,
}

// line is one significant source line.
type line struct {
	num     int
	depth   int
	negated bool
	keyword string
	args    string
}

// Parse parses src and binds every condition and task against reg.
func Parse(src string, reg *registry.Registry) (*types.Node, error) {
	lines, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, syntaxErr(0, "empty tree")
	}

	root, err := build(lines, reg)
	if err != nil {
		return nil, err
	}
	if err := checkStructure(root); err != nil {
		return nil, err
	}
	return root, nil
}

func tokenize(src string) ([]line, error) {
	var out []line
	for i, raw := range strings.Split(src, "\n") {
		num := i + 1
		raw = strings.TrimRight(raw, " \t\r")
		content := strings.TrimLeft(raw, " \t")
		if content == "" || strings.HasPrefix(content, "#") {
			continue
		}

		indent := raw[:len(raw)-len(content)]
		if strings.Contains(indent, "\t") {
			return nil, syntaxErr(num, "tab in indentation")
		}
		if len(indent)%IndentUnit != 0 {
			return nil, syntaxErr(num, "indentation of %d spaces is not a multiple of %d", len(indent), IndentUnit)
		}

		l := line{num: num, depth: len(indent) / IndentUnit}
		if rest, ok := strings.CutPrefix(content, "NOT"); ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t') {
			l.negated = true
			content = strings.TrimSpace(rest)
		}

		head, args, found := strings.Cut(content, ":")
		head = strings.TrimSpace(head)
		word := head
		if f := strings.Fields(head); len(f) > 0 {
			word = f[0]
		}
		if _, known := keywords[word]; !known {
			return nil, syntaxErr(num, "unknown keyword %q", word)
		}
		if !found || word != head {
			return nil, syntaxErr(num, "missing colon after %s", word)
		}
		if l.negated && word != "condition" {
			return nil, syntaxErr(num, "NOT may only precede condition")
		}
		l.keyword = word
		l.args = strings.TrimSpace(args)
		out = append(out, l)
	}
	return out, nil
}

type frame struct {
	node  *types.Node
	depth int
}

func build(lines []line, reg *registry.Registry) (*types.Node, error) {
	first := lines[0]
	if first.keyword != "root" {
		return nil, syntaxErr(first.num, "tree must start with root, got %s", first.keyword)
	}
	if first.depth != 0 {
		return nil, syntaxErr(first.num, "root must not be indented")
	}

	var root *types.Node
	var stack []frame
	for _, l := range lines {
		n, err := newNode(l, reg)
		if err != nil {
			return nil, err
		}

		if l.depth == 0 {
			if root != nil {
				return nil, syntaxErr(l.num, "only one top-level node is allowed")
			}
			root = n
			stack = append(stack, frame{node: n, depth: 0})
			continue
		}
		if n.Kind == types.NodeRoot {
			return nil, syntaxErr(l.num, "root must not be indented")
		}

		top := stack[len(stack)-1]
		if l.depth > top.depth+1 {
			return nil, syntaxErr(l.num, "indentation jumps from depth %d to %d", top.depth, l.depth)
		}
		for stack[len(stack)-1].depth >= l.depth {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].node
		if parent.Kind == types.NodeCondition || parent.Kind == types.NodeTask {
			return nil, syntaxErr(l.num, "%s on line %d cannot have children", kindName(parent.Kind), parent.Line)
		}
		parent.Children = append(parent.Children, n)
		stack = append(stack, frame{node: n, depth: l.depth})
	}
	return root, nil
}

func newNode(l line, reg *registry.Registry) (*types.Node, error) {
	kind := keywords[l.keyword]
	n := &types.Node{Kind: kind, Line: l.num, Negated: l.negated}

	switch kind {
	case types.NodeRoot, types.NodeSelector, types.NodeSequence:
		if l.args != "" {
			return nil, syntaxErr(l.num, "%s takes no arguments", l.keyword)
		}
		return n, nil
	}

	name, args, err := parseCall(l.args)
	if err != nil {
		return nil, syntaxErr(l.num, "%s: %v", l.keyword, err)
	}
	n.Name = name

	if kind == types.NodeCondition {
		n.Condition, n.Arg, err = reg.BindCondition(name, args, l.num)
	} else {
		n.Action, err = reg.BindTask(name, args, l.num)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// parseCall splits `Name(Token)` or `Name()` into its parts.
func parseCall(s string) (string, []string, error) {
	if s == "" {
		return "", nil, fmt.Errorf("expected Name(...)")
	}
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return "", nil, fmt.Errorf("expected Name(...), got %q", s)
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("missing closing parenthesis in %q", s)
	}
	name := strings.TrimSpace(s[:open])
	if !isIdent(name) {
		return "", nil, fmt.Errorf("invalid name %q", name)
	}

	inner := strings.TrimSpace(s[open+1 : len(s)-1])
	if inner == "" {
		return name, nil, nil
	}
	if strings.ContainsAny(inner, "(),") || len(strings.Fields(inner)) != 1 {
		return "", nil, fmt.Errorf("%s takes a single literal argument, got %q", name, inner)
	}
	if !isIdent(inner) && !isInt(inner) {
		return "", nil, fmt.Errorf("argument %q is neither an identifier nor an integer", inner)
	}
	return name, []string{inner}, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// checkStructure enforces arity and fallback completeness.
func checkStructure(root *types.Node) error {
	if len(root.Children) != 1 {
		return syntaxErr(root.Line, "root must have exactly one child, has %d", len(root.Children))
	}
	if err := checkNode(root.Children[0]); err != nil {
		return err
	}
	if !guarantees(root) {
		return syntaxErr(root.Line, "tree has no unconditional fallback task")
	}
	return nil
}

func checkNode(n *types.Node) error {
	switch n.Kind {
	case types.NodeSelector, types.NodeSequence:
		if len(n.Children) == 0 {
			return syntaxErr(n.Line, "%s has no children", kindName(n.Kind))
		}
		for _, c := range n.Children {
			if err := checkNode(c); err != nil {
				return err
			}
		}
		if n.Kind == types.NodeSelector && !guarantees(n) {
			return syntaxErr(n.Line, "selector has no unconditional fallback task")
		}
	}
	return nil
}

// guarantees reports whether evaluating n always yields an action.
func guarantees(n *types.Node) bool {
	switch n.Kind {
	case types.NodeTask:
		return true
	case types.NodeRoot:
		return len(n.Children) == 1 && guarantees(n.Children[0])
	case types.NodeSelector:
		for _, c := range n.Children {
			if guarantees(c) {
				return true
			}
		}
	case types.NodeSequence:
		return len(n.Children) > 0 && guarantees(n.Children[0])
	}
	return false
}

func kindName(k types.NodeKind) string {
	for name, kind := range keywords {
		if kind == k {
			return name
		}
	}
	return "node"
}
