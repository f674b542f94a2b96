// Package queue implements the durable mutation queue: an ordered log of
// pending create/update/delete operations persisted in the local store's
// reserved syncQueue collection, plus the local-first composite mutation API
// layered on top of it.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/binarjoin/syncengine/internal/store"
	"github.com/binarjoin/syncengine/models"
)

// Repository persists queue items. All reads return items in FIFO order:
// EnqueuedAt ascending, with the in-process sequence number breaking ties
// inside a single millisecond.
type Repository struct {
	backend store.Backend

	mu      sync.Mutex
	nextSeq int64
	seqInit bool
}

func NewRepository(backend store.Backend) *Repository {
	return &Repository{backend: backend}
}

// Add persists a new queue item, assigning its sequence number.
func (r *Repository) Add(ctx context.Context, item models.QueueItem) error {
	seq, err := r.claimSeq(ctx)
	if err != nil {
		return err
	}
	item.Seq = seq

	return r.put(ctx, item)
}

// Update rewrites an existing item in place, keeping its queue position.
func (r *Repository) Update(ctx context.Context, item models.QueueItem) error {
	return r.put(ctx, item)
}

func (r *Repository) put(ctx context.Context, item models.QueueItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode queue item %s: %w", item.ID, err)
	}
	if err = r.backend.Put(ctx, store.CollectionSyncQueue, item.ID, raw); err != nil {
		return fmt.Errorf("persist queue item %s: %w", item.ID, err)
	}
	return nil
}

// Get loads one queue item by its entry id.
func (r *Repository) Get(ctx context.Context, id string) (models.QueueItem, error) {
	raw, err := r.backend.Get(ctx, store.CollectionSyncQueue, id)
	if err != nil {
		return models.QueueItem{}, err
	}

	var item models.QueueItem
	if err = json.Unmarshal(raw, &item); err != nil {
		return models.QueueItem{}, fmt.Errorf("decode queue item %s: %w", id, err)
	}
	return item, nil
}

// All returns every queued item in FIFO order, exhausted ones included.
func (r *Repository) All(ctx context.Context) ([]models.QueueItem, error) {
	raws, err := r.backend.GetAll(ctx, store.CollectionSyncQueue)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}

	items := make([]models.QueueItem, 0, len(raws))
	for _, raw := range raws {
		var item models.QueueItem
		if err = json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode queue item: %w", err)
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].EnqueuedAt != items[j].EnqueuedAt {
			return items[i].EnqueuedAt < items[j].EnqueuedAt
		}
		return items[i].Seq < items[j].Seq
	})
	return items, nil
}

// FindByRecord returns the pending item targeting (collection, recordID), or
// store.ErrNotFound.
func (r *Repository) FindByRecord(ctx context.Context, collection, recordID string) (models.QueueItem, error) {
	items, err := r.All(ctx)
	if err != nil {
		return models.QueueItem{}, err
	}

	for _, item := range items {
		if item.Collection == collection && item.RecordID() == recordID {
			return item, nil
		}
	}
	return models.QueueItem{}, store.ErrNotFound
}

// Remove deletes a queue item. Removing an already-removed item is a no-op,
// which makes acks idempotent.
func (r *Repository) Remove(ctx context.Context, id string) error {
	if err := r.backend.Delete(ctx, store.CollectionSyncQueue, id); err != nil {
		return fmt.Errorf("remove queue item %s: %w", id, err)
	}
	return nil
}

// Clear drops every queued item and returns how many were dropped.
func (r *Repository) Clear(ctx context.Context) (int, error) {
	items, err := r.All(ctx)
	if err != nil {
		return 0, err
	}
	if err = r.backend.Clear(ctx, store.CollectionSyncQueue); err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return len(items), nil
}

// Counts reports the total number of queued items and how many of them have
// exhausted their retry budget.
func (r *Repository) Counts(ctx context.Context, maxRetries int) (pending, exhausted int, err error) {
	items, err := r.All(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, item := range items {
		if item.Retries > maxRetries {
			exhausted++
		}
	}
	return len(items), exhausted, nil
}

// claimSeq hands out monotonically increasing sequence numbers, seeding the
// counter from the persisted queue on first use so ordering survives
// restarts.
func (r *Repository) claimSeq(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.seqInit {
		items, err := r.All(ctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
		for _, item := range items {
			if item.Seq >= r.nextSeq {
				r.nextSeq = item.Seq + 1
			}
		}
		r.seqInit = true
	}

	seq := r.nextSeq
	r.nextSeq++
	return seq, nil
}

// nowMillis is stubbed in tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }
