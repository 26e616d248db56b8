package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	gold        = lipgloss.Color("#FFD700")
	amber       = lipgloss.Color("#FFB000")
	mint        = lipgloss.Color("#39FF14")
	coral       = lipgloss.Color("#FF6F61")
	sky         = lipgloss.Color("#00BFFF")
	darkBg      = lipgloss.Color("#14110F")
	panelBg     = lipgloss.Color("#201C18")
	dimWhite    = lipgloss.Color("#B0B0B0")
	brightWhite = lipgloss.Color("#FFFFFF")

	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	titleStyle = lipgloss.NewStyle().
			Background(gold).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(gold).
			Background(panelBg).
			Padding(1, 2)

	coinStyle = lipgloss.NewStyle().
			Foreground(gold).
			Bold(true).
			Align(lipgloss.Center)

	coinDisabledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#555555")).
				Align(lipgloss.Center)

	labelStyle = lipgloss.NewStyle().
			Foreground(sky).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(gold)

	readyStyle = lipgloss.NewStyle().
			Foreground(mint).
			Bold(true)

	cooldownStyle = lipgloss.NewStyle().
			Foreground(amber).
			Bold(true)

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(amber).
			Foreground(brightWhite).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(coral).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)
)

// progressColors returns the gradient end points for the progress bar
func progressColors(refilling bool) (string, string) {
	if refilling {
		return "#FF6F61", "#FFB000"
	}
	return "#FFB000", "#FFD700"
}
