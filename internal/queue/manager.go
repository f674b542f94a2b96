package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/internal/store"
	"github.com/binarjoin/syncengine/internal/utils"
	"github.com/binarjoin/syncengine/models"
)

// Manager is the mutation-queue API used by callers and the sync
// coordinator. It owns the local-first composite operations: every local
// write lands in the record store synchronously and leaves exactly one
// pending queue entry per (collection, record) pair.
type Manager struct {
	records    store.LocalStore
	repo       *Repository
	ids        *utils.UUIDGenerator
	log        *logger.Logger
	maxRetries int
}

func NewManager(records store.LocalStore, repo *Repository, maxRetries int, log *logger.Logger) *Manager {
	return &Manager{
		records:    records,
		repo:       repo,
		ids:        utils.NewUUIDGenerator(),
		log:        log,
		maxRetries: maxRetries,
	}
}

// MaxRetries exposes the per-item retry bound.
func (m *Manager) MaxRetries() int { return m.maxRetries }

// Enqueue records a pending mutation. When an entry for the same
// (collection, record) pair is already queued the mutation is coalesced into
// it: the entry keeps its queue position and its payload reflects only the
// latest state, so a push batch carries at most one operation per record.
func (m *Manager) Enqueue(ctx context.Context, action models.Action, collection string, payload models.Record) (string, error) {
	recordID := payload.ID()
	if recordID == "" {
		return "", store.ErrMissingID
	}

	existing, err := m.repo.FindByRecord(ctx, collection, recordID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("lookup pending mutation: %w", err)
	}
	if err == nil {
		coalesced := coalesce(existing, action, payload)
		if err = m.repo.Update(ctx, coalesced); err != nil {
			return "", err
		}
		m.log.Debug().
			Str("item", coalesced.ID).
			Str("collection", collection).
			Str("record", recordID).
			Msg("coalesced mutation into pending queue entry")
		return coalesced.ID, nil
	}

	item := models.QueueItem{
		ID:         m.ids.Generate(),
		Action:     action,
		Collection: collection,
		Payload:    payload.Clone(),
		EnqueuedAt: nowMillis(),
	}
	if err = m.repo.Add(ctx, item); err != nil {
		return "", err
	}

	m.log.Debug().
		Str("item", item.ID).
		Str("collection", collection).
		Str("record", recordID).
		Str("action", string(action)).
		Msg("mutation enqueued")
	return item.ID, nil
}

// coalesce folds a new mutation into the already-pending entry for the same
// record. A create stays a create (the server has never seen the record); a
// delete supersedes whatever was queued before it.
func coalesce(existing models.QueueItem, action models.Action, payload models.Record) models.QueueItem {
	switch {
	case action == models.ActionDelete:
		existing.Action = models.ActionDelete
		existing.Payload = models.Record{models.FieldID: payload.ID()}
	case existing.Action == models.ActionCreate:
		existing.Payload = payload.Clone()
	default:
		existing.Action = action
		existing.Payload = payload.Clone()
	}
	return existing
}

// DequeueBatch returns up to maxItems replayable queue entries in FIFO
// order. This is a read-only peek: entries leave the queue only through Ack.
// Entries past the retry bound are skipped but retained.
func (m *Manager) DequeueBatch(ctx context.Context, maxItems int) ([]models.QueueItem, error) {
	items, err := m.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	batch := make([]models.QueueItem, 0, min(maxItems, len(items)))
	for _, item := range items {
		if item.Retries > m.maxRetries {
			continue
		}
		batch = append(batch, item)
		if len(batch) == maxItems {
			break
		}
	}
	return batch, nil
}

// Ack removes a confirmed entry. Acking an unknown id is a no-op, so a
// confirmed operation can never be replayed.
func (m *Manager) Ack(ctx context.Context, id string) error {
	return m.repo.Remove(ctx, id)
}

// MarkFailed increments the entry's retry counter and records the failure;
// the entry remains queued. Data is never dropped on failure.
func (m *Manager) MarkFailed(ctx context.Context, id string, cause string, class models.ErrorClass) error {
	item, err := m.repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	item.Retries++
	item.LastError = cause
	item.ErrorClass = class
	if err = m.repo.Update(ctx, item); err != nil {
		return err
	}

	if item.Retries > m.maxRetries {
		m.log.Warn().
			Str("item", item.ID).
			Str("collection", item.Collection).
			Int("retries", item.Retries).
			Str("lastError", cause).
			Msg("queue entry exhausted its retry budget, retained")
	}
	return nil
}

// CancelItem drops one pending mutation without pushing it.
func (m *Manager) CancelItem(ctx context.Context, id string) error {
	return m.repo.Remove(ctx, id)
}

// CancelAll drops every pending mutation and returns how many were dropped.
func (m *Manager) CancelAll(ctx context.Context) (int, error) {
	return m.repo.Clear(ctx)
}

// Counts reports total and exhausted queue sizes.
func (m *Manager) Counts(ctx context.Context) (pending, exhausted int, err error) {
	return m.repo.Counts(ctx, m.maxRetries)
}

// ── local-first composite operations ─────────────────────────────────────────

// CreateLocalFirst writes the record locally with isLocal and pendingSync
// set, then enqueues a create for it. The two writes form one logical
// transaction: when the enqueue fails the record write is rolled back.
func (m *Manager) CreateLocalFirst(ctx context.Context, collection string, payload models.Record) (string, error) {
	rec := payload.Clone()
	if rec == nil {
		rec = models.Record{}
	}
	if rec.ID() == "" {
		rec[models.FieldID] = m.ids.Generate()
	}
	if _, ok := rec[models.FieldCreatedAt]; !ok {
		rec[models.FieldCreatedAt] = nowMillis()
	}
	rec.SetSyncFlags(true, true, false)

	if err := m.records.Put(ctx, collection, rec); err != nil {
		return "", fmt.Errorf("local-first create %s: %w", collection, err)
	}

	if _, err := m.Enqueue(ctx, models.ActionCreate, collection, rec); err != nil {
		// roll the optimistic write back so flags and queue stay coherent
		if rbErr := m.records.Delete(ctx, collection, rec.ID()); rbErr != nil {
			m.log.Error().Err(rbErr).
				Str("collection", collection).
				Str("record", rec.ID()).
				Msg("rollback of local-first create failed, reconciliation will retry")
		}
		return "", fmt.Errorf("enqueue local-first create: %w", err)
	}

	return rec.ID(), nil
}

// UpdateLocalFirst merges updates into the stored record, marks it pending
// and enqueues an update carrying the full new state. On enqueue failure the
// previous record value is restored.
func (m *Manager) UpdateLocalFirst(ctx context.Context, collection, id string, updates models.Record) error {
	current, err := m.records.Get(ctx, collection, id)
	if err != nil {
		return fmt.Errorf("local-first update %s/%s: %w", collection, id, err)
	}
	prev := current.Clone()

	for k, v := range updates {
		if k == models.FieldID {
			continue
		}
		current[k] = v
	}
	current[models.FieldUpdatedAt] = nowMillis()
	current.SetSyncFlags(current.Flag(models.FieldIsLocal), true, false)

	if err = m.records.Put(ctx, collection, current); err != nil {
		return fmt.Errorf("local-first update %s/%s: %w", collection, id, err)
	}

	if _, err = m.Enqueue(ctx, models.ActionUpdate, collection, current); err != nil {
		if rbErr := m.records.Put(ctx, collection, prev); rbErr != nil {
			m.log.Error().Err(rbErr).
				Str("collection", collection).
				Str("record", id).
				Msg("rollback of local-first update failed, reconciliation will retry")
		}
		return fmt.Errorf("enqueue local-first update: %w", err)
	}

	return nil
}

// DeleteLocalFirst removes the record locally and enqueues a delete. On
// enqueue failure the record is restored.
func (m *Manager) DeleteLocalFirst(ctx context.Context, collection, id string) error {
	current, err := m.records.Get(ctx, collection, id)
	if err != nil {
		return fmt.Errorf("local-first delete %s/%s: %w", collection, id, err)
	}

	if err = m.records.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("local-first delete %s/%s: %w", collection, id, err)
	}

	if _, err = m.Enqueue(ctx, models.ActionDelete, collection, models.Record{models.FieldID: id}); err != nil {
		if rbErr := m.records.Put(ctx, collection, current); rbErr != nil {
			m.log.Error().Err(rbErr).
				Str("collection", collection).
				Str("record", id).
				Msg("rollback of local-first delete failed")
		}
		return fmt.Errorf("enqueue local-first delete: %w", err)
	}

	return nil
}

// Reconcile is the startup pass closing the gap a crash can leave between
// the record store and the queue: records still flagged pendingSync without
// a matching queue entry get re-enqueued as updates (creates when still
// flagged isLocal).
func (m *Manager) Reconcile(ctx context.Context) error {
	collections, err := m.records.Collections(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list collections: %w", err)
	}

	for _, collection := range collections {
		if collection == store.CollectionSyncQueue || collection == store.CollectionSyncMetadata {
			continue
		}

		records, err := m.records.GetAll(ctx, collection)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", collection, err)
		}

		for _, rec := range records {
			if !rec.Flag(models.FieldPendingSync) {
				continue
			}
			if _, err = m.repo.FindByRecord(ctx, collection, rec.ID()); err == nil {
				continue
			} else if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("reconcile %s/%s: %w", collection, rec.ID(), err)
			}

			action := models.ActionUpdate
			if rec.Flag(models.FieldIsLocal) {
				action = models.ActionCreate
			}
			if _, err = m.Enqueue(ctx, action, collection, rec); err != nil {
				return fmt.Errorf("reconcile re-enqueue %s/%s: %w", collection, rec.ID(), err)
			}
			m.log.Info().
				Str("collection", collection).
				Str("record", rec.ID()).
				Str("action", string(action)).
				Msg("re-enqueued orphaned pending record")
		}
	}

	return nil
}
