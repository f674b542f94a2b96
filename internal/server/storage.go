// Package server is the reference sync server: a chi router over a
// PostgreSQL record store, issuing JWT bearer tokens and applying batched
// client mutations idempotently.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/models"
)

// UserStorage persists server accounts.
type UserStorage interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByLogin(ctx context.Context, login string) (models.User, error)
}

// RecordStorage persists the server-side truth the clients sync against.
type RecordStorage interface {
	// ApplyBatch applies the operations in order and returns one result per
	// operation. Re-applying an operation id that was already accepted is a
	// success, so a client may safely re-push after losing a response.
	ApplyBatch(ctx context.Context, userID int64, ops []models.BatchOperation) ([]models.BatchResult, error)

	// FullBackup returns every record the user owns, keyed by collection.
	FullBackup(ctx context.Context, userID int64) (map[string][]models.Record, error)
}

// NewConnectPostgres opens and pings the server database.
func NewConnectPostgres(ctx context.Context, dsn string, log *logger.Logger) (*sql.DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error occurred during database connection")
		return nil, fmt.Errorf("error occurred during database connection: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(4)

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error connecting database (ping)")
		return nil, err
	}
	log.Info().Str("func", "NewConnectPostgres").Msg("connected to database successfully")

	return conn, nil
}

// postgresError extracts the PostgreSQL error code, or "" for non-driver
// errors.
func postgresError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
