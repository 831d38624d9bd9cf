package reminder

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is how often the scheduler checks for due reminders.
const DefaultInterval = 24 * time.Hour

// Scheduler runs a Checker periodically.
type Scheduler struct {
	checker  *Checker
	interval time.Duration
}

// NewScheduler creates a scheduler. interval <= 0 selects DefaultInterval.
func NewScheduler(checker *Checker, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{checker: checker, interval: interval}
}

// Run checks once immediately and then on every tick until ctx is done.
// Check failures are logged and do not stop the schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	reminders, err := s.checker.Check(ctx)
	if err != nil {
		slog.Warn("reminder check failed", "error", err)
		return
	}
	slog.Info("reminder check complete", "sent", len(reminders))
}
