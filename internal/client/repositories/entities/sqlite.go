package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/obrasync/obrasync/internal/client/models"
	"github.com/obrasync/obrasync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

// NewSQLiteRepository returns a repository bound to the given DBTX and clock.
// A nil now falls back to time.Now.
func NewSQLiteRepository(db dbx.DBTX, now func() time.Time) *SQLiteRepository {
	if now == nil {
		now = time.Now
	}
	return &SQLiteRepository{db: db, now: now}
}

func (r *SQLiteRepository) Put(ctx context.Context, entityType models.EntityType, entityID string, value []byte) error {
	query := `INSERT INTO entities (entity_type, entity_id, value, stored_at_ms) VALUES (?, ?, ?, ?)
			ON CONFLICT(entity_type, entity_id) DO UPDATE SET value = excluded.value,
				stored_at_ms = excluded.stored_at_ms`
	_, err := r.db.ExecContext(ctx, query, entityType, entityID, value, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert entity %s:%s: %w", entityType, entityID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, entityType models.EntityType, entityID string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM entities WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s:%s: %w", entityType, entityID, err)
	}
	return value, nil
}

func (r *SQLiteRepository) List(ctx context.Context, entityType models.EntityType) ([]*models.MirroredEntity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity_id, value, stored_at_ms FROM entities
		 WHERE entity_type = ? ORDER BY stored_at_ms DESC`, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities %s: %w", entityType, err)
	}
	defer rows.Close()

	var result []*models.MirroredEntity
	for rows.Next() {
		e := &models.MirroredEntity{EntityType: entityType}
		var storedAtMs int64
		if err := rows.Scan(&e.EntityID, &e.Value, &storedAtMs); err != nil {
			return nil, err
		}
		e.StoredAt = time.UnixMilli(storedAtMs)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
