package service

import (
	"context"
	"errors"
	"sync"
	"time"
)

type syncJob struct {
	coordinator SyncService

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob creates a syncJob that runs a push-only cycle on a ticker.
// Pulls stay event-driven (startup, reconnect, explicit request); the timer
// only drains mutations that accumulated since the last cycle. The job is
// idle until Start is called.
func NewSyncJob(coordinator SyncService) SyncJob {
	return &syncJob{coordinator: coordinator}
}

// Start implements SyncJob. It stops any previously running job, then
// launches a background goroutine that pushes every interval. If interval is
// zero or negative it defaults to 30 seconds. The goroutine exits when ctx
// is cancelled or Stop is called.
func (j *syncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				err := j.coordinator.Push(jobCtx)
				if errors.Is(err, ErrSyncInProgress) || errors.Is(err, ErrOffline) {
					continue
				}
				// cycle failures are already recorded in SyncState
			}
		}
	}()
}

// Stop implements SyncJob. It cancels the background goroutine's context and
// blocks until the goroutine has fully exited. Safe to call when the job is
// not running (no-op in that case).
func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}
