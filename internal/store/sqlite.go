package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/binarjoin/syncengine/internal/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	collection   TEXT    NOT NULL,
	id           TEXT    NOT NULL,
	data         TEXT    NOT NULL,
	pending_sync INTEGER NOT NULL DEFAULT 0,
	is_local     INTEGER NOT NULL DEFAULT 0,
	synced       INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_records_pending ON records (collection, pending_sync);
CREATE INDEX IF NOT EXISTS idx_records_created ON records (collection, created_at);`

// sqliteBackend persists every logical collection as (id, json blob) rows in
// a single embedded SQLite database. The sync-control flags are mirrored
// into indexed columns of the same row, so flags and payload can never
// diverge.
type sqliteBackend struct {
	db  *sql.DB
	log *logger.Logger
}

// NewSQLiteBackend opens (creating if needed) the SQLite file at path and
// ensures the schema exists.
func NewSQLiteBackend(ctx context.Context, path string, log *logger.Logger) (Backend, error) {
	if err := createLocalDBFileIfNotExists(path); err != nil {
		return nil, fmt.Errorf("create database file: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("sqlite backend opened")
	return &sqliteBackend{db: db, log: log}, nil
}

func createLocalDBFileIfNotExists(dbFile string) error {
	dir := filepath.Dir(dbFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		f.Close()
	}

	return nil
}

// recordColumns are the sync-control attributes mirrored into dedicated
// indexed columns alongside the blob.
type recordColumns struct {
	IsLocal     bool `json:"isLocal"`
	PendingSync bool `json:"pendingSync"`
	Synced      bool `json:"synced"`
	CreatedAt   any  `json:"createdAt"`
}

func (c recordColumns) createdAtMillis() int64 {
	switch v := c.CreatedAt.(type) {
	case float64:
		return int64(v)
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts.UnixMilli()
		}
	}
	return 0
}

func (s *sqliteBackend) Get(ctx context.Context, collection, id string) ([]byte, error) {
	query, args, err := sq.Select("data").
		From("records").
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	var data []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (s *sqliteBackend) GetAll(ctx context.Context, collection string) ([][]byte, error) {
	query, args, err := sq.Select("data").
		From("records").
		Where(sq.Eq{"collection": collection}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get-all query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get all %s: %w", collection, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err = rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row in %s: %w", collection, err)
		}
		out = append(out, data)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

func (s *sqliteBackend) Put(ctx context.Context, collection, id string, value []byte) error {
	var cols recordColumns
	// flag columns are a projection of the blob; a non-record blob (queue
	// bookkeeping) just leaves them at zero values
	_ = json.Unmarshal(value, &cols)

	query, args, err := sq.Insert("records").
		Columns("collection", "id", "data", "pending_sync", "is_local", "synced", "created_at").
		Values(collection, id, string(value), cols.PendingSync, cols.IsLocal, cols.Synced, cols.createdAtMillis()).
		Suffix(`ON CONFLICT (collection, id) DO UPDATE SET
			data = excluded.data,
			pending_sync = excluded.pending_sync,
			is_local = excluded.is_local,
			synced = excluded.synced,
			created_at = excluded.created_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build put query: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *sqliteBackend) Delete(ctx context.Context, collection, id string) error {
	query, args, err := sq.Delete("records").
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *sqliteBackend) Clear(ctx context.Context, collection string) error {
	query, args, err := sq.Delete("records").
		Where(sq.Eq{"collection": collection}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear query: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}
	return nil
}

func (s *sqliteBackend) Collections(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("DISTINCT collection").
		From("records").
		OrderBy("collection").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build collections query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteBackend) Name() string { return "sqlite" }

func (s *sqliteBackend) Close() error { return s.db.Close() }
