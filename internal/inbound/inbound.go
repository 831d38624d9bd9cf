// Package inbound converts the raw shapes messages arrive in (SMS parts,
// app notifications, a JSON-lines feed) into engine messages.
package inbound

import (
	"strings"
	"time"

	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/model"
)

// SMS is one received text message, possibly split into several parts.
type SMS struct {
	ReceivedAt time.Time
	Parts      []string
}

// Message joins the parts in order. Blank messages are dropped.
func (s SMS) Message() (engine.Message, bool) {
	text := strings.Join(s.Parts, "")
	if strings.TrimSpace(text) == "" {
		return engine.Message{}, false
	}
	return engine.Message{
		ReceivedAt: s.ReceivedAt,
		Text:       text,
		Channel:    model.SourceSMS,
	}, true
}

// Notification is an app notification as posted to the device.
type Notification struct {
	PostedAt time.Time
	Package  string
	Title    string
	Text     string
}

// Message renders the notification as "title text" on the package's channel.
// Notifications with neither title nor text are dropped.
func (n Notification) Message() (engine.Message, bool) {
	body := strings.TrimSpace(n.Title + " " + n.Text)
	if body == "" {
		return engine.Message{}, false
	}
	return engine.Message{
		ReceivedAt: n.PostedAt,
		Text:       body,
		Channel:    n.Package,
	}, true
}
