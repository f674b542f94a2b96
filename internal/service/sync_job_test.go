package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binarjoin/syncengine/models"
)

// spySyncService counts Push calls and lets a test script the outcome.
type spySyncService struct {
	pushes atomic.Int64
	err    error
}

func (s *spySyncService) SyncNow(context.Context) error { return nil }
func (s *spySyncService) Pull(context.Context) error    { return nil }

func (s *spySyncService) Push(context.Context) error {
	s.pushes.Add(1)
	return s.err
}

func (s *spySyncService) SetOnline(context.Context, bool) error { return nil }
func (s *spySyncService) Bootstrap(context.Context) error       { return nil }
func (s *spySyncService) State() models.SyncState               { return models.SyncState{} }

func (s *spySyncService) Subscribe(func(models.SyncState)) func() { return func() {} }

func (s *spySyncService) Stats(context.Context) (models.SyncStats, error) {
	return models.SyncStats{}, nil
}

// ── NewSyncJob ──────────────────────────────────────────────────────────────

func TestNewSyncJob_ReturnsInterface(t *testing.T) {
	spy := &spySyncService{}
	job := NewSyncJob(spy)
	require.NotNil(t, job)

	var _ SyncJob = job
}

// ── Start / Stop ────────────────────────────────────────────────────────────

func TestSyncJob_Start_PushesOnTicks(t *testing.T) {
	spy := &spySyncService{}
	job := NewSyncJob(spy)

	// 10ms interval, ~5 ticks in 55ms
	job.Start(context.Background(), 10*time.Millisecond)
	time.Sleep(55 * time.Millisecond)
	job.Stop()

	got := spy.pushes.Load()
	assert.GreaterOrEqual(t, got, int64(3), "expected several push cycles, got %d", got)
}

func TestSyncJob_Stop_StopsGoroutine(t *testing.T) {
	spy := &spySyncService{}
	job := NewSyncJob(spy)

	job.Start(context.Background(), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	job.Stop()

	pushesAfterStop := spy.pushes.Load()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, pushesAfterStop, spy.pushes.Load(), "no pushes expected after Stop")
}

func TestSyncJob_Stop_BeforeStart_NoPanic(t *testing.T) {
	job := NewSyncJob(&spySyncService{})

	assert.NotPanics(t, func() { job.Stop() })
}

func TestSyncJob_DoubleStop_NoPanic(t *testing.T) {
	job := NewSyncJob(&spySyncService{})

	job.Start(context.Background(), 10*time.Millisecond)
	job.Stop()

	assert.NotPanics(t, func() { job.Stop() })
}

func TestSyncJob_Start_DefaultInterval(t *testing.T) {
	spy := &spySyncService{}
	job := NewSyncJob(spy)
	ctx, cancel := context.WithCancel(context.Background())

	// interval <= 0 falls back to 30s, so 20ms sees no ticks
	job.Start(ctx, 0)
	time.Sleep(20 * time.Millisecond)
	cancel()
	job.Stop()

	assert.Zero(t, spy.pushes.Load())
}

func TestSyncJob_Start_NegativeInterval(t *testing.T) {
	spy := &spySyncService{}
	job := NewSyncJob(spy)
	ctx, cancel := context.WithCancel(context.Background())

	job.Start(ctx, -time.Second)
	time.Sleep(20 * time.Millisecond)
	cancel()
	job.Stop()

	assert.Zero(t, spy.pushes.Load())
}

func TestSyncJob_Restart_StopsPrevious(t *testing.T) {
	spy := &spySyncService{}
	job := NewSyncJob(spy)

	job.Start(context.Background(), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	pushesBefore := spy.pushes.Load()
	assert.Greater(t, pushesBefore, int64(0))

	// second Start stops the first goroutine and keeps ticking
	job.Start(context.Background(), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	job.Stop()

	assert.Greater(t, spy.pushes.Load(), pushesBefore)
}

func TestSyncJob_ContextCancel_StopsJob(t *testing.T) {
	spy := &spySyncService{}
	job := NewSyncJob(spy)
	ctx, cancel := context.WithCancel(context.Background())

	job.Start(ctx, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	pushesAfterCancel := spy.pushes.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, pushesAfterCancel, spy.pushes.Load())

	// Stop after the context already fired is fine
	assert.NotPanics(t, func() { job.Stop() })
}

func TestSyncJob_PushErrorKeepsTicking(t *testing.T) {
	spy := &spySyncService{err: assert.AnError}
	job := NewSyncJob(spy)

	job.Start(context.Background(), 10*time.Millisecond)
	time.Sleep(55 * time.Millisecond)
	job.Stop()

	assert.GreaterOrEqual(t, spy.pushes.Load(), int64(3), "a failed cycle must not stop the schedule")
}
