package model

import "time"

// PendingMessage is an inbound message that could not be turned into a
// transaction automatically and is waiting for the user.
type PendingMessage struct {
	ReceivedAt    time.Time
	MethodID      *int64
	CardID        *int64
	SuggestedRule *Rule
	ID            string
	Channel       string
	Text          string
}

// SuggestedRuleName returns the name of the partially matching rule, if any.
func (p PendingMessage) SuggestedRuleName() string {
	if p.SuggestedRule == nil {
		return ""
	}
	return p.SuggestedRule.Name
}
