package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Leaser is the storage-worker lease primitive. One call is one atomic
// attempt: it either grants the least-used eligible worker's token and
// records the usage, or reports that every worker is saturated.
type Leaser interface {
	TryLease(ctx context.Context, storageID uuid.UUID, limit int) (token string, ok bool, err error)
}

// Scheduler hands out worker tokens for a storage, blocking while all of
// the storage's workers are at their rate limit.
//
// Callers must ensure the storage has at least one worker before leasing;
// for a worker-less storage the scheduler would poll until the context is
// cancelled.
type Scheduler struct {
	leaser  Leaser
	limit   int
	backoff time.Duration
}

// New creates a scheduler enforcing limit operations per worker per
// rate window, polling with the given backoff when no worker is free.
func New(leaser Leaser, limit int, backoff time.Duration) *Scheduler {
	return &Scheduler{leaser: leaser, limit: limit, backoff: backoff}
}

// Lease blocks until a worker token is granted or ctx is cancelled.
// Saturation is not an error: it is retried after the backoff interval.
func (s *Scheduler) Lease(ctx context.Context, storageID uuid.UUID) (string, error) {
	for {
		token, ok, err := s.leaser.TryLease(ctx, storageID, s.limit)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}

		slog.Debug("waiting for a free storage worker", "storage_id", storageID)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.backoff):
		}
	}
}
