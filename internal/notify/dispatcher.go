package notify

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Dispatcher sends batches of messages after state has been committed.
// Delivery failures are logged and counted, never returned: a lost
// notification must not undo a tournament change.
type Dispatcher struct {
	notifier    Notifier
	logger      *slog.Logger
	concurrency int
}

func NewDispatcher(notifier Notifier, logger *slog.Logger, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{notifier: notifier, logger: logger, concurrency: concurrency}
}

type Result struct {
	Sent   int
	Failed int
}

func (d *Dispatcher) Send(ctx context.Context, messages []Message) Result {
	var sent, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, msg := range messages {
		g.Go(func() error {
			if err := d.notifier.Notify(ctx, msg.RecipientID, msg.Text); err != nil {
				failed.Add(1)
				d.logger.WarnContext(ctx, "notification failed", "recipient", msg.RecipientID, "error", err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return Result{Sent: int(sent.Load()), Failed: int(failed.Load())}
}
