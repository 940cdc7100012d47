package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// UsagePurger removes expired worker usage records.
type UsagePurger interface {
	PurgeExpiredUsages(ctx context.Context) (int64, error)
}

// Janitor periodically purges expired worker usage rows. Leasing already
// purges inline, so the janitor only matters for deployments that sit
// idle between transfers.
type Janitor struct {
	purger   UsagePurger
	interval time.Duration
	done     chan struct{}
}

// NewJanitor creates a janitor running every interval.
func NewJanitor(purger UsagePurger, interval time.Duration) *Janitor {
	return &Janitor{
		purger:   purger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the purge loop in a background goroutine.
func (j *Janitor) Start(ctx context.Context) {
	slog.Info("usage janitor started", "interval", j.interval)

	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.runPurge(ctx)

		for {
			select {
			case <-ticker.C:
				j.runPurge(ctx)
			case <-ctx.Done():
				slog.Info("usage janitor stopping")
				close(j.done)
				return
			}
		}
	}()
}

// Wait blocks until the janitor has fully stopped.
func (j *Janitor) Wait() {
	<-j.done
}

func (j *Janitor) runPurge(ctx context.Context) {
	purged, err := j.purger.PurgeExpiredUsages(ctx)
	if err != nil {
		slog.Error("failed to purge expired worker usages", "error", err)
		return
	}
	if purged > 0 {
		slog.Info("purged expired worker usages", "purged", purged)
	}
}
