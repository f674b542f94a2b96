package store

import (
	"context"

	"github.com/binarjoin/syncengine/models"
)

// Reserved collection names. Business collections share the store with the
// engine's own bookkeeping collections.
const (
	CollectionSyncQueue    = "syncQueue"
	CollectionSyncMetadata = "syncMetadata"
)

// LocalStore is the backend-agnostic local persistence contract. One record
// per (collection, id) pair; values are opaque JSON documents. Callers never
// learn which backend is active.
type LocalStore interface {
	Get(ctx context.Context, collection, id string) (models.Record, error)
	GetAll(ctx context.Context, collection string) ([]models.Record, error)
	Put(ctx context.Context, collection string, record models.Record) error
	Delete(ctx context.Context, collection, id string) error
	Clear(ctx context.Context, collection string) error

	// Collections lists every collection that currently holds records.
	Collections(ctx context.Context) ([]string, error)

	// BackendName reports which backend was selected at startup.
	BackendName() string

	Close() error
}

// Backend is the raw byte-level storage a LocalStore is built on. JSON
// (de)serialization happens above this boundary, so both backends store the
// same opaque blobs.
type Backend interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	GetAll(ctx context.Context, collection string) ([][]byte, error)
	Put(ctx context.Context, collection, id string, value []byte) error
	Delete(ctx context.Context, collection, id string) error
	Clear(ctx context.Context, collection string) error
	Collections(ctx context.Context) ([]string, error)
	Name() string
	Close() error
}
