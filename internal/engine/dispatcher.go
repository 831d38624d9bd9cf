package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of messages processed concurrently.
const DefaultWorkers = 4

// DispatchStats summarizes a dispatcher run.
type DispatchStats struct {
	Received  int64
	Committed int64
	Queued    int64
	Failed    int64
}

// ResultFunc observes each processed message. It may be called from several
// goroutines at once.
type ResultFunc func(msg Message, outcome Outcome, err error)

// Dispatcher feeds concurrently arriving messages into a Processor with a
// bounded number of workers.
type Dispatcher struct {
	processor *Processor
	onResult  ResultFunc
	workers   int
}

// NewDispatcher creates a dispatcher. workers <= 0 selects DefaultWorkers.
func NewDispatcher(processor *Processor, workers int, onResult ResultFunc) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{processor: processor, workers: workers, onResult: onResult}
}

// Run processes messages until the channel is closed or ctx is cancelled.
// Per-message failures are reported through the result callback and counted;
// they do not stop the run.
func (d *Dispatcher) Run(ctx context.Context, messages <-chan Message) (DispatchStats, error) {
	var stats DispatchStats

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case msg, ok := <-messages:
			if !ok {
				break loop
			}
			atomic.AddInt64(&stats.Received, 1)
			g.Go(func() error {
				outcome, err := d.processor.ProcessIncoming(gctx, msg)
				switch {
				case err != nil:
					atomic.AddInt64(&stats.Failed, 1)
				case outcome.Kind == OutcomeCommitted:
					atomic.AddInt64(&stats.Committed, 1)
				default:
					atomic.AddInt64(&stats.Queued, 1)
				}
				if d.onResult != nil {
					d.onResult(msg, outcome, err)
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	slog.Info("dispatch finished",
		"received", stats.Received, "committed", stats.Committed,
		"queued", stats.Queued, "failed", stats.Failed)
	return stats, ctx.Err()
}
