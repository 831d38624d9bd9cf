package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
)

// Source is the read access the checker needs.
type Source interface {
	GetMethods(ctx context.Context) ([]model.Method, error)
	GetCards(ctx context.Context, methodID int64) ([]model.Card, error)
}

// Checker loads payment methods and delivers the reminders due today.
type Checker struct {
	source   Source
	notifier Notifier
	clock    func() time.Time
	retry    common.RetryOptions
	leadDays int
}

// Option configures a Checker.
type Option func(*Checker)

// WithClock overrides the current time.
func WithClock(clock func() time.Time) Option {
	return func(c *Checker) { c.clock = clock }
}

// WithRetryOptions sets how notification delivery is retried.
func WithRetryOptions(opts common.RetryOptions) Option {
	return func(c *Checker) { c.retry = opts }
}

// NewChecker creates a checker. leadDays is clamped to 0..MaxLeadDays.
func NewChecker(source Source, notifier Notifier, leadDays int, opts ...Option) *Checker {
	c := &Checker{
		source:   source,
		notifier: notifier,
		leadDays: ClampLeadDays(leadDays),
		clock:    time.Now,
		retry:    common.RetryOptions{MaxAttempts: 3, InitialDelay: time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check delivers today's reminders and returns them. Delivery failures of
// individual reminders are joined into the returned error; the rest are
// still delivered.
func (c *Checker) Check(ctx context.Context) ([]Reminder, error) {
	methods, err := c.source.GetMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load methods: %w", err)
	}

	cards := make(map[int64][]model.Card)
	for _, m := range methods {
		if !m.IsCredit {
			continue
		}
		methodCards, err := c.source.GetCards(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load cards for method %d: %w", m.ID, err)
		}
		cards[m.ID] = methodCards
	}

	due := Due(methods, cards, c.clock().Day(), c.leadDays)
	var errs []error
	for _, r := range due {
		err := common.WithRetry(ctx, func() error {
			return c.notifier.Notify(ctx, r)
		}, c.retry)
		if err != nil {
			slog.Warn("failed to deliver reminder", "name", r.Name, "error", err)
			errs = append(errs, fmt.Errorf("reminder %q: %w", r.Name, err))
		}
	}
	slog.Debug("reminder check finished", "due", len(due), "failed", len(errs))
	return due, errors.Join(errs...)
}
