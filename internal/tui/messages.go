package tui

import (
	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/model"
)

// pendingMsg carries the latest queue from the processor subscription.
type pendingMsg struct {
	items []model.PendingMessage
}

// subscriptionClosedMsg is sent once the processor stops publishing.
type subscriptionClosedMsg struct{}

// resolvedMsg reports the outcome of a Learn call.
type resolvedMsg struct {
	err    error
	id     string
	result engine.ResolveResult
}
