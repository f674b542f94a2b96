package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/binarjoin/syncengine/models"
)

// MetadataRepository persists the singleton sync metadata rows, keyed by
// their Key field inside the reserved syncMetadata collection. Only the sync
// coordinator writes here.
type MetadataRepository struct {
	backend Backend
}

func NewMetadataRepository(backend Backend) *MetadataRepository {
	return &MetadataRepository{backend: backend}
}

// Get loads the metadata row under key. Returns ErrNotFound when no pull has
// completed yet.
func (r *MetadataRepository) Get(ctx context.Context, key string) (models.SyncMetadata, error) {
	raw, err := r.backend.Get(ctx, CollectionSyncMetadata, key)
	if err != nil {
		return models.SyncMetadata{}, err
	}

	var meta models.SyncMetadata
	if err = json.Unmarshal(raw, &meta); err != nil {
		return models.SyncMetadata{}, fmt.Errorf("decode sync metadata %s: %w", key, err)
	}
	return meta, nil
}

// Put stores the metadata row under meta.Key, replacing any previous value.
func (r *MetadataRepository) Put(ctx context.Context, meta models.SyncMetadata) error {
	if meta.Key == "" {
		return ErrMissingID
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode sync metadata %s: %w", meta.Key, err)
	}
	return r.backend.Put(ctx, CollectionSyncMetadata, meta.Key, raw)
}
