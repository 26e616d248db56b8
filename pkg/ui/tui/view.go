package tui

import (
	"fmt"
	"strings"
	"time"

	"coinclicker/pkg/ui"

	"github.com/charmbracelet/lipgloss"
)

const coinArt = `
   ▄████▄
  ██ ¢¢ ██
  ██ ¢¢ ██
   ▀████▀ `

const coinPressedArt = `

   ▄████▄
  ██ ¢¢ ██
   ▀████▀ `

// View renders the coin screen
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, panelStyle.Width(m.panelWidth()).Render(m.renderCoinPanel()))

	if m.state.ShowAlert {
		sections = append(sections, alertStyle.Render("Coin limit reached! The button refills during the cooldown.  (x to dismiss)"))
	}
	if line := m.renderSyncLine(); line != "" {
		sections = append(sections, line)
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("space click · x dismiss · r retry · q quit · ? help"))
	}

	out := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.height > 0 {
		return baseStyle.Width(m.width).Height(m.height).Render(out)
	}
	return out
}

func (m *Model) panelWidth() int {
	w := m.width - 4
	if w > 70 {
		w = 70
	}
	if w < 30 {
		w = 30
	}
	return w
}

func (m *Model) renderHeader() string {
	who := "guest"
	if m.username != "" {
		who = m.username
	}
	balance := fmt.Sprintf("%s %s", labelStyle.Render("Balance"), valueStyle.Render(fmt.Sprintf("%d coins", m.balance)))
	if m.pending > 0 {
		balance += valueStyle.Render(fmt.Sprintf(" (+%d pending)", m.pending))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render("COINCLICKER"), "  ", labelStyle.Render(who), "  ", balance)
}

func (m *Model) renderCoinPanel() string {
	art := coinArt
	style := coinStyle
	if m.state.IsRefilling {
		style = coinDisabledStyle
	} else if time.Now().Before(m.flashUntil) {
		art = coinPressedArt
	}

	var status string
	if m.state.IsRefilling {
		status = cooldownStyle.Render("Refilling · " + ui.FormatRemaining(m.state.Remaining) + " left")
	} else {
		status = readyStyle.Render("Ready · press space to earn")
	}

	counter := fmt.Sprintf("%s %s", labelStyle.Render("Progress"),
		valueStyle.Render(fmt.Sprintf("%d/%d", m.state.Progress, m.state.MaxProgress)))

	return lipgloss.JoinVertical(lipgloss.Center,
		style.Render(art),
		"",
		m.bar.ViewAs(m.state.Fraction()),
		counter,
		status,
	)
}

func (m *Model) renderSyncLine() string {
	switch {
	case m.syncing:
		return fmt.Sprintf("%s syncing %d coins…", m.spinner.View(), m.pending)
	case m.lastErr != nil:
		return errorStyle.Render(fmt.Sprintf("Could not sync coins: %v  (r to retry)", m.lastErr))
	default:
		return ""
	}
}

func (m *Model) renderHelp() string {
	lines := []string{
		"space / enter   press the coin",
		"x / esc         dismiss the cooldown alert",
		"r               retry syncing earned coins",
		"?               toggle this help",
		"q               quit",
	}
	return helpStyle.Render(strings.Join(lines, "\n"))
}
