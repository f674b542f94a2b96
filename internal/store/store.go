// Package store implements the local-first persistence layer: a
// backend-agnostic record store over two interchangeable embedded engines,
// a bbolt key/value file and a SQLite database. Backend selection happens
// once at startup; when the preferred backend fails to initialize the store
// degrades to the alternate one instead of failing the process.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/binarjoin/syncengine/internal/config"
	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/models"
)

type localStore struct {
	backend Backend
	log     *logger.Logger
}

// NewLocalStore wraps an already-open backend in the record-level store.
// Backend selection and fallback happen once, in [NewClientStorages].
func NewLocalStore(backend Backend, log *logger.Logger) LocalStore {
	return &localStore{backend: backend, log: log}
}

// selectBackend opens the preferred backend, degrading to the alternate one
// when the preferred backend fails to initialize. Only when both fail is an
// error returned.
func selectBackend(ctx context.Context, cfg config.Storage, log *logger.Logger) (Backend, error) {
	backend, err := openBackend(ctx, cfg.Backend, cfg.DBPath, log)
	if err != nil {
		alt := alternateBackend(cfg.Backend)
		log.Warn().Err(err).
			Str("preferred", cfg.Backend).
			Str("fallback", alt).
			Msg("preferred local backend failed to initialize, degrading")

		backend, err = openBackend(ctx, alt, cfg.DBPath, log)
		if err != nil {
			return nil, fmt.Errorf("open fallback backend %s: %w", alt, err)
		}
	}

	return backend, nil
}

func openBackend(ctx context.Context, kind, path string, log *logger.Logger) (Backend, error) {
	switch kind {
	case "sqlite":
		return NewSQLiteBackend(ctx, path+".sqlite", log)
	case "bolt":
		return NewBoltBackend(path+".bolt", log)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownBackend, kind)
	}
}

func alternateBackend(kind string) string {
	if kind == "sqlite" {
		return "bolt"
	}
	return "sqlite"
}

func (s *localStore) Get(ctx context.Context, collection, id string) (models.Record, error) {
	raw, err := s.backend.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	var rec models.Record
	if err = json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

func (s *localStore) GetAll(ctx context.Context, collection string) ([]models.Record, error) {
	raws, err := s.backend.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	records := make([]models.Record, 0, len(raws))
	for _, raw := range raws {
		var rec models.Record
		if err = json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode record in %s: %w", collection, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Put persists the record under its own id. The record's payload and its
// sync-control flags serialize into a single value, so flag and payload
// updates are atomic by construction.
func (s *localStore) Put(ctx context.Context, collection string, record models.Record) error {
	id := record.ID()
	if id == "" {
		return ErrMissingID
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s/%s: %w", collection, id, err)
	}
	return s.backend.Put(ctx, collection, id, raw)
}

func (s *localStore) Delete(ctx context.Context, collection, id string) error {
	return s.backend.Delete(ctx, collection, id)
}

func (s *localStore) Clear(ctx context.Context, collection string) error {
	return s.backend.Clear(ctx, collection)
}

func (s *localStore) Collections(ctx context.Context) ([]string, error) {
	return s.backend.Collections(ctx)
}

func (s *localStore) BackendName() string {
	return s.backend.Name()
}

func (s *localStore) Close() error {
	return s.backend.Close()
}
