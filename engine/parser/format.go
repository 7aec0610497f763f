package parser

import (
	"strconv"
	"strings"

	"github.com/nathoo/btarena/types"
)

// Format serializes a tree to canonical DSL text. Parsing the result yields
// a tree Equal to n.
func Format(n *types.Node) string {
	var b strings.Builder
	format(&b, n, 0)
	return b.String()
}

func format(b *strings.Builder, n *types.Node, depth int) {
	b.WriteString(strings.Repeat(" ", depth*IndentUnit))
	if n.Negated {
		b.WriteString("NOT ")
	}
	b.WriteString(kindName(n.Kind))
	b.WriteString(" :")
	switch n.Kind {
	case types.NodeCondition:
		b.WriteString(" " + n.Name + "(" + argText(n.Arg) + ")")
	case types.NodeTask:
		b.WriteString(" " + string(n.Action) + "()")
	}
	b.WriteByte('\n')
	for _, c := range n.Children {
		format(b, c, depth+1)
	}
}

func argText(a types.Arg) string {
	switch a.Type {
	case types.ArgNone:
		return ""
	case types.ArgInt:
		return strconv.Itoa(a.Int)
	}
	return a.Ident
}

// Equal reports whether a and b are structurally identical. Line numbers
// are ignored.
func Equal(a, b *types.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Name != b.Name || a.Condition != b.Condition ||
		a.Action != b.Action || a.Arg != b.Arg || a.Negated != b.Negated ||
		len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}
