package cache

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

func (r *SQLiteRepository) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	storedAt := r.now()
	var expiresAt any
	if ttl > 0 {
		expiresAt = storedAt.Add(ttl).UnixMilli()
	}
	query := `INSERT INTO cache (key, value, stored_at_ms, expires_at_ms) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value,
				stored_at_ms = excluded.stored_at_ms,
				expires_at_ms = excluded.expires_at_ms`
	_, err := r.db.ExecContext(ctx, query, key, value, storedAt.UnixMilli(), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cache[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := r.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	if entry.Expired(r.now()) {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
			return nil, fmt.Errorf("failed to evict cache[%s]: %w", key, err)
		}
		return nil, nil
	}
	return entry.Value, nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, key string) (*models.CacheEntry, error) {
	var value []byte
	var storedAtMs int64
	var expiresAtMs sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT value, stored_at_ms, expires_at_ms FROM cache WHERE key = ?`, key).
		Scan(&value, &storedAtMs, &expiresAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache[%s]: %w", key, err)
	}

	entry := &models.CacheEntry{Key: key, Value: value, StoredAt: time.UnixMilli(storedAtMs)}
	if expiresAtMs.Valid {
		entry.ExpiresAt = time.UnixMilli(expiresAtMs.Int64)
	}
	return entry, nil
}

func (r *SQLiteRepository) SweepExpired(ctx context.Context) (int64, error) {
	// Collect doomed keys in storage-time order, then delete them. The
	// two-step form keeps the sweep observable row by row in tests.
	rows, err := r.db.QueryContext(ctx,
		`SELECT key FROM cache WHERE expires_at_ms IS NOT NULL AND expires_at_ms < ?
		 ORDER BY stored_at_ms ASC`, r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to select expired cache entries: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return 0, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var removed int64
	for _, k := range keys {
		res, err := r.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, k)
		if err != nil {
			return removed, fmt.Errorf("failed to sweep cache[%s]: %w", k, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}
