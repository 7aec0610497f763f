package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleText = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleHeader = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true)

	styleTelegraph = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	styleGood = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	styleBad = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	styleStats = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleInput = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindText lineKind = iota
	kindHeader
	kindTelegraph
	kindGood
	kindBad
	kindStats
	kindTrace
)

// classifyLine determines what kind of battle or curriculum line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "==="):
		return kindHeader
	case strings.HasPrefix(line, "[!]"):
		return kindTelegraph
	case strings.Contains(line, "not mastered"),
		strings.Contains(line, "[WASTED]"),
		strings.Contains(line, "[FROZEN"),
		strings.Contains(line, "[Not effective]"):
		return kindBad
	case strings.Contains(line, "MASTERED"),
		strings.Contains(line, "[SUPER EFFECTIVE!]"),
		strings.Contains(line, " mastered after "):
		return kindGood
	case strings.HasPrefix(line, "Player: HP"),
		strings.HasPrefix(line, "Enemy: HP"):
		return kindStats
	default:
		return kindText
	}
}

func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindHeader:
		return styleHeader.Render(line)
	case kindTelegraph:
		return styleTelegraph.Render(line)
	case kindGood:
		return styleGood.Render(line)
	case kindBad:
		return styleBad.Render(line)
	case kindStats:
		return styleStats.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleText.Render(line)
	}
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	if strings.HasPrefix(text, "[trace]") {
		return styleTrace.Render(text)
	}
	return styleSystem.Render("[" + text + "]")
}
