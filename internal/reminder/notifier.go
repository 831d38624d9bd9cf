package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Veraticus/smartledger/internal/common"
)

// Notifier delivers a reminder to the user.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, r Reminder) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, r Reminder) error {
	return f(ctx, r)
}

// WriterNotifier prints reminders as lines of text.
type WriterNotifier struct {
	w     io.Writer
	Style func(string) string // optional decoration of the title
	mu    sync.Mutex
}

// NewWriterNotifier creates a notifier writing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Notify implements Notifier.
func (n *WriterNotifier) Notify(_ context.Context, r Reminder) error {
	if n.w == nil {
		return &common.RetryableError{Err: common.ErrNotifierUnavailable}
	}
	title := Title
	if n.Style != nil {
		title = n.Style(title)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.w, "%s: %s\n", title, r.Body()); err != nil {
		return fmt.Errorf("failed to write reminder: %w", err)
	}
	return nil
}

// LogNotifier records reminders in the structured log.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, r Reminder) error {
	slog.Info(Title, "name", r.Name, "due_day", r.DueDay, "method_id", r.MethodID, "on_due_day", r.OnDueDay)
	return nil
}
