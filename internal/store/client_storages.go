package store

import (
	"context"
	"fmt"

	"github.com/binarjoin/syncengine/internal/config"
	"github.com/binarjoin/syncengine/internal/logger"
)

// ClientStorages groups the local storage repositories into a single value
// passed to the service layer. All repositories share one backend, selected
// (with fallback) exactly once here.
type ClientStorages struct {
	// Records is the backend-agnostic record store for business
	// collections.
	Records LocalStore

	// Metadata holds the last-successful-pull descriptor.
	Metadata *MetadataRepository

	backend Backend
}

// NewClientStorages initialises the local storage layer: it selects and
// opens a backend per cfg (degrading to the alternate backend when the
// preferred one fails) and wires the repositories on top of it.
func NewClientStorages(ctx context.Context, cfg config.Storage, log *logger.Logger) (*ClientStorages, error) {
	log.Info().Msg("creating local storages...")

	backend, err := selectBackend(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("select local backend: %w", err)
	}

	log.Info().Str("backend", backend.Name()).Msg("local store ready")
	return &ClientStorages{
		Records:  NewLocalStore(backend, log),
		Metadata: NewMetadataRepository(backend),
		backend:  backend,
	}, nil
}

// Backend exposes the shared raw backend for repositories living outside
// this package (the mutation queue).
func (s *ClientStorages) Backend() Backend {
	return s.backend
}

// Close releases the underlying backend.
func (s *ClientStorages) Close() error {
	return s.backend.Close()
}
