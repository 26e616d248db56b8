package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI runs the coin screen
type TUI struct {
	program *tea.Program
	model   *Model
}

// New creates a TUI using the alternate screen
func New(ctx context.Context, opts Options) *TUI {
	model := NewModel(opts)
	program := tea.NewProgram(&model, tea.WithAltScreen(), tea.WithContext(ctx))

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Run blocks until the user quits or ctx is cancelled
func (t *TUI) Run() error {
	_, err := t.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Clicks returns how many clicks were applied during the session
func (t *TUI) Clicks() int {
	return t.model.clicks
}
