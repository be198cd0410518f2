package tasks

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/logging"
)

// StatusClient is the slice of the backend surface the poller needs.
type StatusClient interface {
	TaskStatus(ctx context.Context, taskID string) (*ee.TaskStatus, error)
}

// maxConcurrentPolls bounds backend load per refresh cycle.
const maxConcurrentPolls = 4

// Poller periodically refreshes non-terminal journal entries from the
// backend.
type Poller struct {
	client   StatusClient
	journal  *Journal
	interval time.Duration
}

// NewPoller builds a poller. A zero interval defaults to 30 seconds.
func NewPoller(client StatusClient, journal *Journal, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{client: client, journal: journal, interval: interval}
}

// Run refreshes pending tasks until ctx is cancelled. Poll errors are
// logged and retried on the next tick; they never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.RefreshPending(ctx); err != nil && ctx.Err() == nil {
				logging.Warnf(logging.CategoryTasks, "task refresh failed: %v", err)
			}
		}
	}
}

// RefreshPending polls every non-terminal task once, a bounded number at a
// time.
func (p *Poller) RefreshPending(ctx context.Context) error {
	pending, err := p.journal.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	logging.TasksDebug("refreshing %d pending tasks", len(pending))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPolls)
	for _, entry := range pending {
		entry := entry
		g.Go(func() error {
			status, err := p.client.TaskStatus(ctx, entry.ID)
			if err != nil {
				logging.TasksDebug("status poll failed for %s: %v", entry.ID, err)
				return nil // transient; retry next tick
			}
			if status.State != entry.State || status.Error != entry.Error {
				return p.journal.UpdateState(entry.ID, status.State, status.Error)
			}
			return nil
		})
	}
	return g.Wait()
}
