package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binarjoin/syncengine/internal/config"
	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/models"
)

// openTestBackends returns one open backend of each kind, rooted in a
// per-test temp dir. Both must satisfy the same contract.
func openTestBackends(t *testing.T) map[string]Backend {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	boltB, err := NewBoltBackend(filepath.Join(dir, "store.bolt"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { boltB.Close() })

	sqliteB, err := NewSQLiteBackend(ctx, filepath.Join(dir, "store.sqlite"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqliteB.Close() })

	return map[string]Backend{"bolt": boltB, "sqlite": sqliteB}
}

func TestLocalStore_PutGetRoundTrip(t *testing.T) {
	for name, backend := range openTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewLocalStore(backend, logger.Nop())

			rec := models.Record{"id": "p1", "name": "North field", "qty": float64(5)}
			require.NoError(t, s.Put(ctx, "projects", rec))

			got, err := s.Get(ctx, "projects", "p1")
			require.NoError(t, err)
			assert.Equal(t, rec, got)
		})
	}
}

func TestLocalStore_GetMissing(t *testing.T) {
	for name, backend := range openTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewLocalStore(backend, logger.Nop())

			_, err := s.Get(context.Background(), "projects", "ghost")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLocalStore_PutRejectsMissingID(t *testing.T) {
	for name, backend := range openTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewLocalStore(backend, logger.Nop())

			err := s.Put(context.Background(), "projects", models.Record{"name": "no id"})
			assert.ErrorIs(t, err, ErrMissingID)
		})
	}
}

func TestLocalStore_PutOverwrites(t *testing.T) {
	for name, backend := range openTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewLocalStore(backend, logger.Nop())

			require.NoError(t, s.Put(ctx, "projects", models.Record{"id": "p1", "name": "old"}))
			require.NoError(t, s.Put(ctx, "projects", models.Record{"id": "p1", "name": "new"}))

			got, err := s.Get(ctx, "projects", "p1")
			require.NoError(t, err)
			assert.Equal(t, "new", got["name"])

			all, err := s.GetAll(ctx, "projects")
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestLocalStore_DeleteAndClear(t *testing.T) {
	for name, backend := range openTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewLocalStore(backend, logger.Nop())

			require.NoError(t, s.Put(ctx, "workers", models.Record{"id": "w1"}))
			require.NoError(t, s.Put(ctx, "workers", models.Record{"id": "w2"}))

			require.NoError(t, s.Delete(ctx, "workers", "w1"))
			_, err := s.Get(ctx, "workers", "w1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Clear(ctx, "workers"))
			all, err := s.GetAll(ctx, "workers")
			require.NoError(t, err)
			assert.Empty(t, all)

			// deleting from an empty collection is a no-op
			assert.NoError(t, s.Delete(ctx, "workers", "w2"))
		})
	}
}

func TestLocalStore_CollectionsAreIsolated(t *testing.T) {
	for name, backend := range openTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewLocalStore(backend, logger.Nop())

			require.NoError(t, s.Put(ctx, "projects", models.Record{"id": "x", "kind": "project"}))
			require.NoError(t, s.Put(ctx, "workers", models.Record{"id": "x", "kind": "worker"}))

			got, err := s.Get(ctx, "projects", "x")
			require.NoError(t, err)
			assert.Equal(t, "project", got["kind"])

			names, err := s.Collections(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"projects", "workers"}, names)
		})
	}
}

func TestLocalStore_SyncFlagsRoundTrip(t *testing.T) {
	for name, backend := range openTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewLocalStore(backend, logger.Nop())

			rec := models.Record{"id": "p1", "name": "X"}
			rec.SetSyncFlags(true, true, false)
			require.NoError(t, s.Put(ctx, "projects", rec))

			got, err := s.Get(ctx, "projects", "p1")
			require.NoError(t, err)
			assert.True(t, got.Flag(models.FieldIsLocal))
			assert.True(t, got.Flag(models.FieldPendingSync))
			assert.False(t, got.Flag(models.FieldSynced))
		})
	}
}

func TestMetadataRepository_RoundTrip(t *testing.T) {
	for name, backend := range openTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewMetadataRepository(backend)

			_, err := repo.Get(ctx, models.MetadataKeyLastSync)
			assert.ErrorIs(t, err, ErrNotFound)

			meta := models.SyncMetadata{
				Key:         models.MetadataKeyLastSync,
				Timestamp:   1700000000000,
				RecordCount: 42,
				Version:     "3.1",
				TableList:   []string{"projects", "workers"},
			}
			require.NoError(t, repo.Put(ctx, meta))

			got, err := repo.Get(ctx, models.MetadataKeyLastSync)
			require.NoError(t, err)
			assert.Equal(t, meta, got)
		})
	}
}

// ── backend selection ────────────────────────────────────────────────────────

func TestNewClientStorages_PreferredBackend(t *testing.T) {
	cfg := config.Storage{DBPath: filepath.Join(t.TempDir(), "engine"), Backend: "sqlite"}

	storages, err := NewClientStorages(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer storages.Close()

	assert.Equal(t, "sqlite", storages.Records.BackendName())
}

func TestNewClientStorages_FallsBackWhenPreferredFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine")
	// a directory at the bolt file path makes the bolt open fail
	require.NoError(t, os.MkdirAll(path+".bolt", 0o755))

	cfg := config.Storage{DBPath: path, Backend: "bolt"}
	storages, err := NewClientStorages(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer storages.Close()

	assert.Equal(t, "sqlite", storages.Records.BackendName())
}
