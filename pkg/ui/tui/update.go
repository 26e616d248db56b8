package tui

import (
	"context"
	"time"

	"coinclicker/pkg/coin"
	"coinclicker/pkg/earnings"
	"coinclicker/pkg/ui"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg is sent periodically to refresh the countdown and progress bar
type TickMsg time.Time

// CoinEventMsg wraps a state change published by the coin controller
type CoinEventMsg coin.Event

// FlushResultMsg carries the outcome of reporting earned coins
type FlushResultMsg earnings.Result

// eventsClosedMsg is sent once the controller closed its event channel
type eventsClosedMsg struct{}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeBar()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		m.refresh()
		return m, tickCmd(m.interval)

	case CoinEventMsg:
		m.refresh()
		if msg.Type == coin.EventCooldownFinished {
			return m, tea.Batch(waitForEvent(m.events), notifyCmd(m.notifier))
		}
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, nil

	case FlushResultMsg:
		m.refresh()
		return m, waitForResult(m.earn.Results())
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case " ", "enter":
		m.press()
		return m, nil

	case "x", "X", "esc":
		m.ctrl.DismissAlert()
		m.refresh()
		return m, nil

	case "r", "R":
		if m.lastErr == nil && m.pending == 0 {
			return m, nil
		}
		m.syncing = true
		return m, flushCmd(m.earn)

	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	}

	return m, nil
}

// Commands

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForEvent(events <-chan coin.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return CoinEventMsg(ev)
	}
}

func waitForResult(results <-chan earnings.Result) tea.Cmd {
	return func() tea.Msg {
		return FlushResultMsg(<-results)
	}
}

// notifyCmd announces the end of the cooldown off the render loop
func notifyCmd(n *ui.Notifier) tea.Cmd {
	return func() tea.Msg {
		_ = n.CooldownFinished()
		return nil
	}
}

// flushCmd reports pending coins now. The outcome arrives through the
// batcher's result channel.
func flushCmd(earn Earnings) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, _ = earn.Flush(ctx)
		return nil
	}
}
