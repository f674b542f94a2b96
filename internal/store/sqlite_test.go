package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binarjoin/syncengine/internal/logger"
)

func newMockSQLiteBackend(t *testing.T) (*sqliteBackend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &sqliteBackend{db: db, log: logger.Nop()}, mock
}

func TestSQLiteBackend_GetMapsNoRows(t *testing.T) {
	backend, mock := newMockSQLiteBackend(t)

	mock.ExpectQuery("SELECT data FROM records").
		WithArgs("projects", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := backend.Get(context.Background(), "projects", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteBackend_PutUpserts(t *testing.T) {
	backend, mock := newMockSQLiteBackend(t)

	mock.ExpectExec("INSERT INTO records").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payload := []byte(`{"id":"p1","pendingSync":true,"isLocal":true,"createdAt":1700000000000}`)
	err := backend.Put(context.Background(), "projects", "p1", payload)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteBackend_GetAllScans(t *testing.T) {
	backend, mock := newMockSQLiteBackend(t)

	rows := sqlmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"id":"a"}`)).
		AddRow([]byte(`{"id":"b"}`))
	mock.ExpectQuery("SELECT data FROM records").
		WithArgs("projects").
		WillReturnRows(rows)

	out, err := backend.GetAll(context.Background(), "projects")
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordColumns_CreatedAtMillis(t *testing.T) {
	assert.Equal(t, int64(1700000000000), recordColumns{CreatedAt: float64(1700000000000)}.createdAtMillis())
	assert.Equal(t, int64(0), recordColumns{CreatedAt: "not-a-time"}.createdAtMillis())
	assert.Equal(t, int64(0), recordColumns{}.createdAtMillis())

	iso := recordColumns{CreatedAt: "2024-01-15T10:00:00Z"}
	assert.Equal(t, int64(1705312800000), iso.createdAtMillis())
}
