package tui

import (
	"context"
	"time"

	"coinclicker/pkg/coin"
	"coinclicker/pkg/earnings"
	"coinclicker/pkg/ui"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// CoinController is the part of the coin controller the UI drives
type CoinController interface {
	Increment() bool
	DismissAlert()
	Snapshot() coin.State
	Subscribe(buffer int) <-chan coin.Event
}

// Earnings is the part of the earnings batcher the UI drives
type Earnings interface {
	Record(units int)
	Flush(ctx context.Context) (int, error)
	Pending() int
	Balance() int
	LastError() error
	InFlight() bool
	Results() <-chan earnings.Result
}

// Options configures a Model
type Options struct {
	Username     string
	Controller   CoinController
	Earnings     Earnings
	Notifier     *ui.Notifier
	TickInterval time.Duration
}

// Model is the bubbletea model of the coin screen
type Model struct {
	username string
	ctrl     CoinController
	earn     Earnings
	notifier *ui.Notifier
	events   <-chan coin.Event
	interval time.Duration

	spinner spinner.Model
	bar     progress.Model

	state      coin.State
	balance    int
	pending    int
	syncing    bool
	lastErr    error
	flashUntil time.Time
	clicks     int

	width    int
	height   int
	showHelp bool
	quitting bool
}

// NewModel creates the coin screen model
func NewModel(opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(gold)

	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}

	m := Model{
		username: opts.Username,
		ctrl:     opts.Controller,
		earn:     opts.Earnings,
		notifier: opts.Notifier,
		interval: opts.TickInterval,
		spinner:  s,
		bar:      newBar(false),
		width:    80,
	}
	m.events = m.ctrl.Subscribe(32)
	m.refresh()
	return m
}

func newBar(refilling bool) progress.Model {
	from, to := progressColors(refilling)
	p := progress.New(progress.WithGradient(from, to), progress.WithoutPercentage())
	p.Width = 40
	return p
}

// Init starts the spinner, the refresh ticker and the event listeners
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tickCmd(m.interval),
		waitForEvent(m.events),
		waitForResult(m.earn.Results()),
	)
}

// State returns the last coin state the model rendered
func (m *Model) State() coin.State {
	return m.state
}

// refresh pulls the current state from the controller and the batcher
func (m *Model) refresh() {
	wasRefilling := m.state.IsRefilling
	m.state = m.ctrl.Snapshot()
	if wasRefilling != m.state.IsRefilling {
		m.bar = newBar(m.state.IsRefilling)
		m.resizeBar()
	}

	m.balance = m.earn.Balance()
	m.pending = m.earn.Pending()
	m.syncing = m.earn.InFlight()
	m.lastErr = m.earn.LastError()
}

func (m *Model) resizeBar() {
	w := m.width - 12
	if w > 60 {
		w = 60
	}
	if w < 10 {
		w = 10
	}
	m.bar.Width = w
}

// press handles a click on the coin button
func (m *Model) press() {
	if !m.ctrl.Increment() {
		return
	}
	m.clicks++
	m.earn.Record(1)
	m.flashUntil = time.Now().Add(120 * time.Millisecond)
	m.refresh()
}
