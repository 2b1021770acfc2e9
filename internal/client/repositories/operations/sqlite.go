package operations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/obrasync/obrasync/internal/client/models"
	"github.com/obrasync/obrasync/internal/common"
	"github.com/obrasync/obrasync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const operationColumns = `id, kind, entity_type, entity_id, payload, content_type,
	endpoint, method, idempotency_key, enqueued_at_ms, attempts, state, last_error`

func (r *SQLiteRepository) Insert(ctx context.Context, op *models.Operation) error {
	query := `INSERT INTO operations (` + operationColumns + `)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		op.ID, op.Kind, op.EntityType, op.EntityID, op.Payload, op.ContentType,
		op.Endpoint, op.Method, op.IdempotencyKey, op.EnqueuedAt.UnixMilli(),
		op.Attempts, op.State, op.LastError)
	if err != nil {
		// Only a primary-key collision maps to ErrDuplicateKey; any other
		// constraint failure surfaces as the driver error it is.
		var exists bool
		if qerr := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM operations WHERE id = ?)`, op.ID).Scan(&exists); qerr == nil && exists {
			return fmt.Errorf("operation %s: %w", op.ID, common.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	op, err := scanOperation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return op, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*models.Operation, error) {
	return r.ListByState(ctx, models.StatePending)
}

func (r *SQLiteRepository) ListByState(ctx context.Context, state models.OperationState) ([]*models.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations
			WHERE state = ? ORDER BY enqueued_at_ms ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, state)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	defer rows.Close()

	var result []*models.Operation
	for rows.Next() {
		op, err := scanOperation(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SetState(ctx context.Context, id string, state models.OperationState) error {
	var query string
	if state == models.StateInFlight {
		query = `UPDATE operations SET state = ?, attempts = attempts + 1 WHERE id = ?`
	} else {
		query = `UPDATE operations SET state = ? WHERE id = ?`
	}
	res, err := r.db.ExecContext(ctx, query, state, id)
	if err != nil {
		return fmt.Errorf("failed to set operation state: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("operation %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) RecordError(ctx context.Context, id string, msg string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE operations SET last_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("failed to record operation error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Requeue(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE operations SET state = ?, attempts = 0, last_error = '' WHERE id = ?`,
		models.StatePending, id)
	if err != nil {
		return fmt.Errorf("failed to requeue operation: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("operation %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ResetInFlight(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE operations SET state = ? WHERE state = ?`,
		models.StatePending, models.StateInFlight)
	if err != nil {
		return 0, fmt.Errorf("failed to reset in-flight operations: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CountByState(ctx context.Context, state models.OperationState) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operations WHERE state = ?`, state).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return n, nil
}

func scanOperation(scan func(dest ...any) error) (*models.Operation, error) {
	op := &models.Operation{}
	var enqueuedAtMs int64
	err := scan(&op.ID, &op.Kind, &op.EntityType, &op.EntityID, &op.Payload,
		&op.ContentType, &op.Endpoint, &op.Method, &op.IdempotencyKey,
		&enqueuedAtMs, &op.Attempts, &op.State, &op.LastError)
	if err != nil {
		return nil, err
	}
	op.EnqueuedAt = time.UnixMilli(enqueuedAtMs)
	return op, nil
}
