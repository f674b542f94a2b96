package server

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/models"
)

func newMockedRecordRepo(t *testing.T) (*recordRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := &recordRepository{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		log: logger.Nop(),
	}
	return repo, mock
}

const (
	dedupQuery  = "INSERT INTO sync_operations (id,user_id) VALUES ($1,$2) ON CONFLICT (id) DO NOTHING"
	upsertQuery = "INSERT INTO sync_records (user_id,collection,record_id,data,updated_at) VALUES ($1,$2,$3,$4,$5) ON CONFLICT (user_id, collection, record_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at"
	deleteQuery = "DELETE FROM sync_records WHERE collection = $1 AND record_id = $2 AND user_id = $3"
	backupQuery = "SELECT collection, data FROM sync_records WHERE user_id = $1 ORDER BY collection, record_id"
)

func TestApplyBatch_CreateInsertsMarkerAndRecord(t *testing.T) {
	repo, mock := newMockedRecordRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(dedupQuery)).
		WithArgs("op-1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
		WithArgs(int64(7), "items", "i1", sqlmock.AnyArg(), int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	results, err := repo.ApplyBatch(context.Background(), 7, []models.BatchOperation{
		{ID: "op-1", Type: "create", Table: "items", Data: models.Record{"id": "i1", "name": "hammer"}, Timestamp: 100},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.BatchStatusSuccess, results[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatch_ReplayedOperationIsSuccessWithoutMutation(t *testing.T) {
	repo, mock := newMockedRecordRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(dedupQuery)).
		WithArgs("op-1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0)) // marker already present
	mock.ExpectCommit()

	results, err := repo.ApplyBatch(context.Background(), 7, []models.BatchOperation{
		{ID: "op-1", Type: "create", Table: "items", Data: models.Record{"id": "i1"}},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.BatchStatusSuccess, results[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatch_DeleteRemovesRecord(t *testing.T) {
	repo, mock := newMockedRecordRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(dedupQuery)).
		WithArgs("op-2", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteQuery)).
		WithArgs("items", "i1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	results, err := repo.ApplyBatch(context.Background(), 7, []models.BatchOperation{
		{ID: "op-2", Type: "delete", Table: "items", Data: models.Record{"id": "i1"}},
	})

	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusSuccess, results[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatch_MalformedOperationFailsWithoutTouchingDB(t *testing.T) {
	repo, mock := newMockedRecordRepo(t)

	results, err := repo.ApplyBatch(context.Background(), 7, []models.BatchOperation{
		{ID: "op-3", Type: "create", Table: "items", Data: models.Record{}}, // no record id
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.BatchStatusFailed, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatch_FailedOperationDoesNotStopTheBatch(t *testing.T) {
	repo, mock := newMockedRecordRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(dedupQuery)).
		WithArgs("op-bad", int64(7)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(dedupQuery)).
		WithArgs("op-good", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
		WithArgs(int64(7), "items", "i2", sqlmock.AnyArg(), int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	results, err := repo.ApplyBatch(context.Background(), 7, []models.BatchOperation{
		{ID: "op-bad", Type: "create", Table: "items", Data: models.Record{"id": "i1"}},
		{ID: "op-good", Type: "create", Table: "items", Data: models.Record{"id": "i2"}},
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.BatchStatusFailed, results[0].Status)
	assert.Equal(t, models.BatchStatusSuccess, results[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFullBackup_GroupsByCollection(t *testing.T) {
	repo, mock := newMockedRecordRepo(t)

	rows := sqlmock.NewRows([]string{"collection", "data"}).
		AddRow("items", []byte(`{"id":"i1","name":"hammer"}`)).
		AddRow("items", []byte(`{"id":"i2","name":"wrench"}`)).
		AddRow("users", []byte(`{"id":"u1","login":"alice"}`))

	mock.ExpectQuery(regexp.QuoteMeta(backupQuery)).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	backup, err := repo.FullBackup(context.Background(), 7)

	require.NoError(t, err)
	assert.Len(t, backup["items"], 2)
	assert.Len(t, backup["users"], 1)
	assert.Equal(t, "alice", backup["users"][0]["login"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ── users ───────────────────────────────────────────────────────────────────

func newMockedUserRepo(t *testing.T) (*userRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := &userRepository{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		log: logger.Nop(),
	}
	return repo, mock
}

func TestCreateUser_UniqueViolationMapsToSentinel(t *testing.T) {
	repo, mock := newMockedUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (login,password_hash) VALUES ($1,$2) RETURNING id")).
		WithArgs("alice", "hash").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.CreateUser(context.Background(), models.User{Login: "alice", PasswordHash: "hash"})

	assert.ErrorIs(t, err, ErrLoginAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByLogin_NoRowsMapsToSentinel(t *testing.T) {
	repo, mock := newMockedUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, login, password_hash FROM users WHERE login = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "login", "password_hash"}))

	_, err := repo.FindUserByLogin(context.Background(), "ghost")

	assert.ErrorIs(t, err, ErrNoUserWasFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
