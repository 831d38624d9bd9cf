package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/model"
)

// waitForPending blocks until the processor publishes a new queue.
func waitForPending(updates <-chan []model.PendingMessage) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		items, ok := <-updates
		if !ok {
			return subscriptionClosedMsg{}
		}
		return pendingMsg{items: items}
	}
}

// learn resolves one pending item off the UI goroutine.
func learn(ctx context.Context, inbox Inbox, id string, c engine.Confirmation) tea.Cmd {
	return func() tea.Msg {
		result, err := inbox.Learn(ctx, id, c)
		return resolvedMsg{id: id, result: result, err: err}
	}
}
