package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/models"
)

// recordRepository is the PostgreSQL implementation of RecordStorage. Every
// applied operation id is remembered in sync_operations; the marker and the
// record mutation commit in one transaction, which makes batch re-pushes
// idempotent even when the client never saw the first response.
type recordRepository struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	log *logger.Logger
}

func NewRecordRepository(db *sql.DB, log *logger.Logger) RecordStorage {
	log.Debug().Msg("creating record repository")
	return &recordRepository{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		log: log,
	}
}

func (r *recordRepository) ApplyBatch(ctx context.Context, userID int64, ops []models.BatchOperation) ([]models.BatchResult, error) {
	results := make([]models.BatchResult, 0, len(ops))

	for _, op := range ops {
		if err := r.applyOne(ctx, userID, op); err != nil {
			r.log.Warn().
				Str("operation", op.ID).
				Str("type", op.Type).
				Str("collection", op.Table).
				Err(err).
				Msg("operation rejected")
			results = append(results, models.BatchResult{
				ID:     op.ID,
				Status: models.BatchStatusFailed,
				Error:  err.Error(),
			})
			continue
		}
		results = append(results, models.BatchResult{ID: op.ID, Status: models.BatchStatusSuccess})
	}

	return results, nil
}

func (r *recordRepository) applyOne(ctx context.Context, userID int64, op models.BatchOperation) error {
	recordID := op.Data.ID()
	if op.ID == "" || op.Table == "" || recordID == "" {
		return fmt.Errorf("malformed operation: id=%q table=%q record=%q", op.ID, op.Table, recordID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	applied, err := r.markApplied(ctx, tx, userID, op.ID)
	if err != nil {
		return err
	}
	if applied {
		// already accepted in an earlier push, nothing to redo
		return tx.Commit()
	}

	switch op.Type {
	case string(models.ActionCreate), string(models.ActionUpdate):
		err = r.upsertRecord(ctx, tx, userID, op)
	case string(models.ActionDelete):
		err = r.deleteRecord(ctx, tx, userID, op.Table, recordID)
	default:
		err = fmt.Errorf("unknown operation type %q", op.Type)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

// markApplied inserts the operation's dedup marker. It reports true when the
// marker already existed.
func (r *recordRepository) markApplied(ctx context.Context, tx *sql.Tx, userID int64, opID string) (bool, error) {
	query, args, err := r.sb.
		Insert("sync_operations").
		Columns("id", "user_id").
		Values(opID, userID).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build dedup query: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("record operation id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup rows affected: %w", err)
	}
	return n == 0, nil
}

func (r *recordRepository) upsertRecord(ctx context.Context, tx *sql.Tx, userID int64, op models.BatchOperation) error {
	payload, err := json.Marshal(stripSyncFlags(op.Data))
	if err != nil {
		return fmt.Errorf("encode record payload: %w", err)
	}

	query, args, err := r.sb.
		Insert("sync_records").
		Columns("user_id", "collection", "record_id", "data", "updated_at").
		Values(userID, op.Table, op.Data.ID(), payload, op.Timestamp).
		Suffix("ON CONFLICT (user_id, collection, record_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

func (r *recordRepository) deleteRecord(ctx context.Context, tx *sql.Tx, userID int64, collection, recordID string) error {
	query, args, err := r.sb.
		Delete("sync_records").
		Where(sq.Eq{"user_id": userID, "collection": collection, "record_id": recordID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	// deleting an already absent record is fine, the client's intent holds
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (r *recordRepository) FullBackup(ctx context.Context, userID int64) (map[string][]models.Record, error) {
	query, args, err := r.sb.
		Select("collection", "data").
		From("sync_records").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("collection", "record_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build backup query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query backup: %w", err)
	}
	defer rows.Close()

	backup := make(map[string][]models.Record)
	for rows.Next() {
		var collection string
		var raw []byte
		if err = rows.Scan(&collection, &raw); err != nil {
			return nil, fmt.Errorf("scan backup row: %w", err)
		}

		var rec models.Record
		if err = json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode backup record: %w", err)
		}
		backup[collection] = append(backup[collection], rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup rows: %w", err)
	}

	return backup, nil
}

// stripSyncFlags drops the client-side sync bookkeeping before storage; the
// server's copy is authoritative by definition.
func stripSyncFlags(rec models.Record) models.Record {
	out := rec.Clone()
	delete(out, models.FieldIsLocal)
	delete(out, models.FieldPendingSync)
	delete(out, models.FieldSynced)
	return out
}
