package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the inbox until the user quits or ctx is canceled, and returns
// what the session did.
func Run(ctx context.Context, inbox Inbox, opts ...Option) (Stats, error) {
	if inbox == nil {
		return Stats{}, fmt.Errorf("inbox is required")
	}

	m := New(ctx, inbox, opts...)
	if m.config.RecordDir != "" {
		recorder, err := NewRecorder(m.config.RecordDir)
		if err != nil {
			m.Close()
			return Stats{}, err
		}
		m.recorder = recorder
	}

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if m.config.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	final, err := tea.NewProgram(m, programOpts...).Run()
	m.Close()

	stats := m.stats
	if fm, ok := final.(Model); ok {
		stats = fm.stats
	}
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return stats, ctx.Err()
		}
		return stats, fmt.Errorf("inbox error: %w", err)
	}
	return stats, nil
}
