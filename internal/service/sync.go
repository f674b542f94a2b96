package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/binarjoin/syncengine/internal/adapter"
	"github.com/binarjoin/syncengine/internal/backoff"
	"github.com/binarjoin/syncengine/internal/conflict"
	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/internal/store"
	"github.com/binarjoin/syncengine/models"
)

// snapshotVersion tags the SyncMetadata rows written by this coordinator.
const snapshotVersion = "1"

// stubbed in tests
var timeNow = time.Now

// Settings are the coordinator's tuning knobs, taken from config.Sync.
type Settings struct {
	BatchSize int

	// Strategy picks the conflict resolution applied when a pulled record
	// collides with a pending local mutation.
	Strategy conflict.Strategy

	// Cycle is the backoff curve for failed sync cycles.
	Cycle backoff.Policy

	// PriorityCollections are applied first during a pull, in order.
	// Remaining collections follow alphabetically.
	PriorityCollections []string
}

func (s *Settings) applyDefaults() {
	if s.BatchSize <= 0 {
		s.BatchSize = 100
	}
	if s.Strategy == "" {
		s.Strategy = conflict.DefaultStrategy
	}
	if s.Cycle == (backoff.Policy{}) {
		s.Cycle = backoff.DefaultCycle()
	}
}

type syncCoordinator struct {
	records  store.LocalStore
	queue    Queue
	server   adapter.ServerAdapter
	tokens   adapter.TokenProvider
	meta     MetadataStore
	settings Settings
	log      *logger.Logger

	// syncing is the single cycle guard: at most one pull or push cycle is
	// in flight system-wide, regardless of how many callers ask.
	syncing atomic.Bool

	holder *stateHolder

	retryMu sync.Mutex
	attempt int
	retryAt time.Time
}

func NewSyncCoordinator(records store.LocalStore, q Queue, server adapter.ServerAdapter, tokens adapter.TokenProvider, meta MetadataStore, settings Settings, log *logger.Logger) SyncService {
	settings.applyDefaults()
	return &syncCoordinator{
		records:  records,
		queue:    q,
		server:   server,
		tokens:   tokens,
		meta:     meta,
		settings: settings,
		log:      log,
		holder:   newStateHolder(),
	}
}

func (c *syncCoordinator) SyncNow(ctx context.Context) error {
	if !c.syncing.CompareAndSwap(false, true) {
		c.log.Debug().Msg("sync already in progress, request ignored")
		return ErrSyncInProgress
	}
	defer c.syncing.Store(false)

	c.resetBackoff()

	if err := c.pull(ctx); err != nil {
		return fmt.Errorf("sync cycle pull: %w", err)
	}
	if err := c.push(ctx); err != nil {
		return fmt.Errorf("sync cycle push: %w", err)
	}
	return nil
}

func (c *syncCoordinator) Pull(ctx context.Context) error {
	if !c.syncing.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer c.syncing.Store(false)

	return c.pull(ctx)
}

func (c *syncCoordinator) Push(ctx context.Context) error {
	if !c.holder.snapshot().IsOnline {
		return ErrOffline
	}
	if !c.retryDue() {
		c.log.Debug().Msg("push skipped, backing off after failed cycle")
		return nil
	}
	if !c.syncing.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer c.syncing.Store(false)

	return c.push(ctx)
}

func (c *syncCoordinator) SetOnline(ctx context.Context, online bool) error {
	wasOnline := c.holder.snapshot().IsOnline
	c.holder.update(func(s *models.SyncState) {
		s.IsOnline = online
	})

	if !online || wasOnline {
		return nil
	}

	c.log.Info().Msg("transport back online, starting sync cycle")
	c.resetBackoff()
	if err := c.SyncNow(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
		return err
	}
	return nil
}

// Bootstrap re-enqueues orphaned pending records, then seeds the observable
// state from what survived on disk.
func (c *syncCoordinator) Bootstrap(ctx context.Context) error {
	if err := c.queue.Reconcile(ctx); err != nil {
		return fmt.Errorf("startup reconciliation: %w", err)
	}

	meta, err := c.meta.Get(ctx, models.MetadataKeyLastSync)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load sync metadata: %w", err)
	}
	if err == nil {
		c.holder.update(func(s *models.SyncState) {
			s.LastSync = meta.Timestamp
		})
	}

	return c.refreshCounts(ctx)
}

func (c *syncCoordinator) State() models.SyncState {
	return c.holder.snapshot()
}

func (c *syncCoordinator) Subscribe(fn func(models.SyncState)) func() {
	return c.holder.subscribe(fn)
}

func (c *syncCoordinator) Stats(ctx context.Context) (models.SyncStats, error) {
	pending, exhausted, err := c.queue.Counts(ctx)
	if err != nil {
		return models.SyncStats{}, fmt.Errorf("queue counts: %w", err)
	}
	return models.SyncStats{
		PendingCount:   pending,
		ExhaustedCount: exhausted,
		LastSync:       c.holder.snapshot().LastSync,
	}, nil
}

// ── pull ────────────────────────────────────────────────────────────────────

func (c *syncCoordinator) pull(ctx context.Context) error {
	if c.tokens.AccessToken() == "" {
		return c.failCycle("pull", ErrNoAuthToken)
	}

	c.holder.setPhase(PhasePulling)
	c.holder.update(func(s *models.SyncState) {
		s.IsSyncing = true
		s.LastError = ""
	})

	data, err := c.server.PullFull(ctx)
	if err != nil {
		return c.failCycle("pull full backup", err)
	}

	names := c.orderCollections(data)
	total := 0
	for i, name := range names {
		progress := &models.SyncProgress{Total: len(names), Current: i + 1, Label: name}
		c.holder.update(func(s *models.SyncState) {
			s.Progress = progress
		})

		n, err := c.applyCollection(ctx, name, data[name])
		if err != nil {
			return c.failCycle(fmt.Sprintf("apply collection %s", name), err)
		}
		total += n
	}

	now := timeNow().UnixMilli()
	meta := models.SyncMetadata{
		Key:         models.MetadataKeyLastSync,
		Timestamp:   now,
		RecordCount: total,
		Version:     snapshotVersion,
		TableList:   names,
	}
	if err = c.meta.Put(ctx, meta); err != nil {
		return c.failCycle("record sync metadata", err)
	}

	c.log.Info().Int("collections", len(names)).Int("records", total).Msg("full pull applied")
	c.finishCycle(ctx, func(s *models.SyncState) {
		s.LastSync = now
	})
	return nil
}

// applyCollection replaces the local collection with the pulled snapshot.
// Records with a pending local mutation are not discarded: a colliding
// server record is resolved against them and stays flagged for push, and
// pending records absent from the snapshot survive as local-only.
func (c *syncCoordinator) applyCollection(ctx context.Context, name string, incoming []models.Record) (int, error) {
	locals, err := c.records.GetAll(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("load local collection: %w", err)
	}

	pending := make(map[string]models.Record)
	for _, r := range locals {
		if r.Flag(models.FieldPendingSync) {
			pending[r.ID()] = r
		}
	}

	if err = c.records.Clear(ctx, name); err != nil {
		return 0, fmt.Errorf("clear collection: %w", err)
	}

	count := 0
	for _, remote := range incoming {
		id := remote.ID()
		out := remote.Clone()

		if local, ok := pending[id]; ok {
			out = conflict.Resolve(conflict.Data{
				Local:           local,
				Remote:          remote,
				LocalTimestamp:  recordTimestamp(local),
				RemoteTimestamp: recordTimestamp(remote),
			}, c.settings.Strategy)
			out.SetSyncFlags(local.Flag(models.FieldIsLocal), true, false)
			delete(pending, id)
		} else {
			out.SetSyncFlags(false, false, true)
		}

		if err = c.records.Put(ctx, name, out); err != nil {
			return count, fmt.Errorf("store pulled record %s: %w", id, err)
		}
		count++
	}

	// local-only records still waiting for their first push
	for _, r := range pending {
		if err = c.records.Put(ctx, name, r); err != nil {
			return count, fmt.Errorf("restore pending record %s: %w", r.ID(), err)
		}
	}

	return count, nil
}

// orderCollections lists the snapshot's collections in apply order: the
// configured priority collections first, then the rest alphabetically.
// Reserved engine collections are never applied from a snapshot.
func (c *syncCoordinator) orderCollections(data map[string][]models.Record) []string {
	seen := make(map[string]bool, len(data))
	names := make([]string, 0, len(data))

	for _, name := range c.settings.PriorityCollections {
		if _, ok := data[name]; ok && !seen[name] && !reservedCollection(name) {
			names = append(names, name)
			seen[name] = true
		}
	}

	rest := make([]string, 0, len(data))
	for name := range data {
		if !seen[name] && !reservedCollection(name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(names, rest...)
}

func reservedCollection(name string) bool {
	return name == store.CollectionSyncQueue || name == store.CollectionSyncMetadata
}

// ── push ────────────────────────────────────────────────────────────────────

func (c *syncCoordinator) push(ctx context.Context) error {
	if c.tokens.AccessToken() == "" {
		return c.failCycle("push", ErrNoAuthToken)
	}

	items, err := c.queue.DequeueBatch(ctx, c.settings.BatchSize)
	if err != nil {
		return c.failCycle("dequeue batch", err)
	}
	if len(items) == 0 {
		return c.refreshCounts(ctx)
	}

	c.holder.setPhase(PhasePushing)
	c.holder.update(func(s *models.SyncState) {
		s.IsSyncing = true
		s.LastError = ""
	})

	// Failed items stay queued; track what this cycle has already sent so
	// re-reading the queue cannot loop on them.
	sent := make(map[string]bool)

	for len(items) > 0 {
		results, err := c.server.PushBatch(ctx, buildBatch(items))
		if err != nil {
			// whole-batch transport failure: nothing is acked, the entire
			// batch waits for the next cycle
			return c.failCycle("push batch", err)
		}

		for i, res := range results {
			item := items[i]
			sent[item.ID] = true

			if res.Status == models.BatchStatusSuccess {
				if err = c.confirmItem(ctx, item); err != nil {
					return c.failCycle("confirm pushed item", err)
				}
				continue
			}

			c.log.Warn().
				Str("queueItem", item.ID).
				Str("collection", item.Collection).
				Str("cause", res.Error).
				Msg("server rejected queued mutation")
			if err = c.queue.MarkFailed(ctx, item.ID, res.Error, models.ErrorClassServer); err != nil {
				return c.failCycle("mark item failed", err)
			}
		}

		if len(items) < c.settings.BatchSize {
			break
		}
		if items, err = c.nextBatch(ctx, sent); err != nil {
			return c.failCycle("dequeue batch", err)
		}
	}

	c.finishCycle(ctx, nil)
	return nil
}

// confirmItem acks the queue entry and flips the record's sync flags.
// A deleted record has nothing left to flip.
func (c *syncCoordinator) confirmItem(ctx context.Context, item models.QueueItem) error {
	if err := c.queue.Ack(ctx, item.ID); err != nil {
		return fmt.Errorf("ack %s: %w", item.ID, err)
	}
	if item.Action == models.ActionDelete {
		return nil
	}

	rec, err := c.records.Get(ctx, item.Collection, item.RecordID())
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load record %s: %w", item.RecordID(), err)
	}

	rec.SetSyncFlags(false, false, true)
	if err = c.records.Put(ctx, item.Collection, rec); err != nil {
		return fmt.Errorf("store confirmed record %s: %w", item.RecordID(), err)
	}
	return nil
}

// nextBatch reads the next queue slice, dropping items already sent in this
// cycle. An empty result ends the drain loop.
func (c *syncCoordinator) nextBatch(ctx context.Context, sent map[string]bool) ([]models.QueueItem, error) {
	batch, err := c.queue.DequeueBatch(ctx, c.settings.BatchSize)
	if err != nil {
		return nil, err
	}

	fresh := batch[:0]
	for _, item := range batch {
		if !sent[item.ID] {
			fresh = append(fresh, item)
		}
	}
	return fresh, nil
}

func buildBatch(items []models.QueueItem) models.BatchRequest {
	ops := make([]models.BatchOperation, 0, len(items))
	for _, item := range items {
		ops = append(ops, models.BatchOperation{
			ID:        item.ID,
			Type:      string(item.Action),
			Table:     item.Collection,
			Data:      item.Payload,
			Timestamp: item.EnqueuedAt,
		})
	}
	return models.BatchRequest{Operations: ops}
}

// ── cycle outcome ───────────────────────────────────────────────────────────

// finishCycle returns the machine to Idle after a successful cycle.
func (c *syncCoordinator) finishCycle(ctx context.Context, extra func(*models.SyncState)) {
	c.resetBackoff()
	c.holder.setPhase(PhaseIdle)
	c.holder.update(func(s *models.SyncState) {
		s.IsSyncing = false
		s.Progress = nil
		s.LastError = ""
		if extra != nil {
			extra(s)
		}
	})
	_ = c.refreshCounts(ctx)
}

// failCycle records the failure, schedules the next retry on the curve that
// matches the error class and returns the machine to Idle. A network-class
// failure additionally flips the engine offline: those retries wait for the
// reconnect event instead of polling.
func (c *syncCoordinator) failCycle(stage string, err error) error {
	class := adapter.Classify(err)

	c.retryMu.Lock()
	delay := backoff.ForClass(class, c.settings.Cycle).Delay(c.attempt)
	c.attempt++
	c.retryAt = timeNow().Add(delay)
	c.retryMu.Unlock()

	c.holder.setPhase(PhaseError)
	c.holder.update(func(s *models.SyncState) {
		s.IsSyncing = false
		s.Progress = nil
		s.LastError = fmt.Sprintf("%s: %v", stage, err)
		if class == models.ErrorClassNetwork {
			s.IsOnline = false
		}
	})
	c.holder.setPhase(PhaseIdle)

	c.log.Warn().
		Str("stage", stage).
		Str("class", string(class)).
		Dur("retryIn", delay).
		Err(err).
		Msg("sync cycle failed")

	return fmt.Errorf("%s: %w", stage, err)
}

func (c *syncCoordinator) retryDue() bool {
	c.retryMu.Lock()
	defer c.retryMu.Unlock()
	return c.attempt == 0 || !timeNow().Before(c.retryAt)
}

func (c *syncCoordinator) resetBackoff() {
	c.retryMu.Lock()
	c.attempt = 0
	c.retryAt = time.Time{}
	c.retryMu.Unlock()
}

func (c *syncCoordinator) refreshCounts(ctx context.Context) error {
	pending, exhausted, err := c.queue.Counts(ctx)
	if err != nil {
		return fmt.Errorf("queue counts: %w", err)
	}
	c.holder.update(func(s *models.SyncState) {
		s.PendingCount = pending
		s.ExhaustedCount = exhausted
	})
	return nil
}

// recordTimestamp extracts the record's logical clock for conflict
// resolution: updatedAt when present, otherwise createdAt. JSON decoding
// yields float64 milliseconds; values written by this engine are int64.
func recordTimestamp(r models.Record) int64 {
	for _, key := range []string{models.FieldUpdatedAt, models.FieldCreatedAt} {
		switch ts := r[key].(type) {
		case float64:
			return int64(ts)
		case int64:
			return ts
		case int:
			return int64(ts)
		}
	}
	return 0
}
