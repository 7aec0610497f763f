package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderStatusBar produces a full-width inverted status line showing the
// content title, the tree size, curriculum progress and whether a command
// is running.
func (m Model) renderStatusBar() string {
	sum := m.session.Summary()
	defs := m.session.Defs

	left := fmt.Sprintf(" %s | Tree: %d lines", defs.Game.Title, sum.TreeLines)
	if sum.Trace {
		left += " | trace"
	}

	var right string
	switch {
	case m.busy != "":
		right = fmt.Sprintf("running %s (ctrl+c to stop) ", m.busy)
	case sum.Pending:
		right = "checkpoint loaded "
	case sum.Iteration > 0:
		right = fmt.Sprintf("It:%d | Mastered %d/%d ", sum.Iteration, sum.Mastered, sum.Enemies)
	default:
		right = fmt.Sprintf("Enemies: %d ", sum.Enemies)
	}

	// Drop the right side rather than wrap.
	if lipgloss.Width(left)+lipgloss.Width(right) > m.width {
		right = ""
	}
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
