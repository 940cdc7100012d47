package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakePurger struct {
	mu    sync.Mutex
	calls int
}

func (f *fakePurger) PurgeExpiredUsages(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 1, nil
}

func (f *fakePurger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestJanitor(t *testing.T) {
	t.Run("purges on start and on every tick", func(t *testing.T) {
		purger := &fakePurger{}
		j := NewJanitor(purger, 5*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		j.Start(ctx)

		deadline := time.After(time.Second)
		for purger.count() < 3 {
			select {
			case <-deadline:
				t.Fatalf("expected at least 3 purge cycles, got %d", purger.count())
			case <-time.After(time.Millisecond):
			}
		}

		cancel()
		j.Wait()
	})

	t.Run("stops cleanly on cancellation", func(t *testing.T) {
		j := NewJanitor(&fakePurger{}, time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		j.Start(ctx)
		cancel()

		done := make(chan struct{})
		go func() {
			j.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("janitor did not stop after cancellation")
		}
	})
}
