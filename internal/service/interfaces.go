// Package service contains the sync coordinator: the single owner of
// SyncState and SyncMetadata, orchestrating full pulls of the server
// snapshot into the local store and batched pushes of the mutation queue
// back out.
package service

import (
	"context"
	"time"

	"github.com/binarjoin/syncengine/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mocks.go -package=mock

// Queue is the slice of the mutation queue the coordinator drives. It is
// satisfied by *queue.Manager.
type Queue interface {
	// DequeueBatch peeks up to maxItems queued mutations in enqueue order,
	// skipping exhausted ones.
	DequeueBatch(ctx context.Context, maxItems int) ([]models.QueueItem, error)

	// Ack removes a successfully pushed item.
	Ack(ctx context.Context, id string) error

	// MarkFailed increments the item's retry count and records the failure.
	MarkFailed(ctx context.Context, id string, cause string, class models.ErrorClass) error

	// Counts reports pending (all retained items) and exhausted totals.
	Counts(ctx context.Context) (pending, exhausted int, err error)

	// Reconcile re-enqueues records whose pendingSync flag survived a crash
	// without a matching queue entry.
	Reconcile(ctx context.Context) error
}

// MetadataStore persists the last-pull snapshot descriptor. Satisfied by
// *store.MetadataRepository.
type MetadataStore interface {
	Get(ctx context.Context, key string) (models.SyncMetadata, error)
	Put(ctx context.Context, meta models.SyncMetadata) error
}

// SyncService is the coordinator's public surface.
type SyncService interface {
	// SyncNow runs a full cycle: pull, then push. A second call while a
	// cycle is in flight is a no-op returning ErrSyncInProgress. An explicit
	// call resets any pending failure backoff.
	SyncNow(ctx context.Context) error

	// Pull runs a pull-only cycle under the same single-cycle guard.
	Pull(ctx context.Context) error

	// Push runs a push-only cycle under the same guard. Scheduled callers
	// get backoff gating: after a failed cycle, Push is a no-op until the
	// retry delay has elapsed.
	Push(ctx context.Context) error

	// SetOnline records a transport-level connectivity transition. Going
	// online triggers an immediate pull+push.
	SetOnline(ctx context.Context, online bool) error

	// Bootstrap runs the startup reconciliation pass and seeds SyncState
	// counters from the persisted queue and metadata.
	Bootstrap(ctx context.Context) error

	// State returns a copy of the current SyncState.
	State() models.SyncState

	// Subscribe registers fn to be called with a state copy on every
	// change. The returned function unsubscribes.
	Subscribe(fn func(models.SyncState)) func()

	// Stats returns a point-in-time queue summary.
	Stats(ctx context.Context) (models.SyncStats, error)
}

// SyncJob runs scheduled push cycles on a ticker.
type SyncJob interface {
	Start(ctx context.Context, interval time.Duration)
	Stop()
}
