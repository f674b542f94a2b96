package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/binarjoin/syncengine/internal/logger"
)

// boltBackend keeps each collection in its own bbolt bucket, keyed by record
// id. A single writer at a time is enforced by bbolt itself.
type boltBackend struct {
	db  *bolt.DB
	log *logger.Logger
}

// NewBoltBackend opens (creating if needed) the bbolt file at path. The open
// carries a short timeout so a file locked by another process degrades to
// the fallback backend instead of hanging startup.
func NewBoltBackend(path string, log *logger.Logger) (Backend, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create local store dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt file: %w", err)
	}

	log.Debug().Str("path", path).Msg("bolt backend opened")
	return &boltBackend{db: db, log: log}, nil
}

func (b *boltBackend) Get(_ context.Context, collection, id string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return ErrNotFound
		}
		value := bucket.Get([]byte(id))
		if value == nil {
			return ErrNotFound
		}
		// values are only valid inside the transaction
		out = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *boltBackend) GetAll(_ context.Context, collection string) ([][]byte, error) {
	var out [][]byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, value []byte) error {
			out = append(out, append([]byte(nil), value...))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan bucket %s: %w", collection, err)
	}
	return out, nil
}

func (b *boltBackend) Put(_ context.Context, collection, id string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), value)
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (b *boltBackend) Delete(_ context.Context, collection, id string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (b *boltBackend) Clear(_ context.Context, collection string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(collection))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}
	return nil
}

func (b *boltBackend) Collections(_ context.Context) ([]string, error) {
	var names []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return names, nil
}

func (b *boltBackend) Name() string { return "bolt" }

func (b *boltBackend) Close() error { return b.db.Close() }
