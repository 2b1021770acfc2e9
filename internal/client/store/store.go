// Package store bootstraps the client-local SQLite database and exposes the
// three offline collections (operations, cache, entities) plus the session
// metadata slot behind one façade.
//
// All failures to open or migrate the database are wrapped in
// common.ErrStoreUnavailable so callers can degrade gracefully and keep
// running without offline support.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/obrasync/obrasync/internal/client/migrations"
	"github.com/obrasync/obrasync/internal/client/models"
	"github.com/obrasync/obrasync/internal/client/repositories/cache"
	"github.com/obrasync/obrasync/internal/client/repositories/entities"
	"github.com/obrasync/obrasync/internal/client/repositories/metadata"
	"github.com/obrasync/obrasync/internal/client/repositories/operations"
	"github.com/obrasync/obrasync/internal/common"
	"github.com/obrasync/obrasync/internal/logging"
)

// Store is the durable local store surviving restarts. Every method is a
// single atomic record write or read; no cross-collection transactions are
// required by any caller.
type Store struct {
	db  *sql.DB
	log logging.Logger

	Operations operations.Repository
	Cache      cache.Repository
	Entities   entities.Repository
	Metadata   metadata.Repository
}

// RunMigrations applies the embedded goose migrations, establishing the
// schema (currently version 1) on first open and upgrading it on later bumps.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (or creates) the database at dsn, applies migrations, and resets
// any operation stranded in the in-flight state back to pending. Safe to call
// again on the same dsn; migrations are a no-op when already applied.
func Open(ctx context.Context, dsn string, log logging.Logger) (*Store, error) {
	return OpenWithClock(ctx, dsn, log, time.Now)
}

// OpenWithClock is Open with an injected clock, used by tests to simulate
// elapsed time for cache expiry.
func OpenWithClock(ctx context.Context, dsn string, log logging.Logger, now func() time.Time) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}

	s := &Store{
		db:         db,
		log:        log,
		Operations: operations.NewSQLiteRepository(db),
		Cache:      cache.NewSQLiteRepository(db, now),
		Entities:   entities.NewSQLiteRepository(db, now),
		Metadata:   metadata.NewSQLiteRepository(db),
	}

	// The in-memory single-flight guard cannot survive a restart, so
	// neither should the in-flight markers it protects.
	reset, err := s.Operations.ResetInFlight(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}
	if reset > 0 {
		log.Warn(ctx, "reset stranded in-flight operations to pending", "count", reset)
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for callers that need transactions (dbx.WithTx).
func (s *Store) DB() *sql.DB {
	return s.db
}

// AddOperation inserts a new queued operation keyed by its identity.
func (s *Store) AddOperation(ctx context.Context, op *models.Operation) error {
	return s.Operations.Insert(ctx, op)
}

// GetOperation returns an operation in any state, or common.ErrNotFound.
func (s *Store) GetOperation(ctx context.Context, id string) (*models.Operation, error) {
	return s.Operations.GetByID(ctx, id)
}

// ListPendingOperations returns pending operations oldest first.
func (s *Store) ListPendingOperations(ctx context.Context) ([]*models.Operation, error) {
	return s.Operations.ListPending(ctx)
}

// ListFailedOperations returns terminally failed operations oldest first,
// retained for inspection and manual intervention.
func (s *Store) ListFailedOperations(ctx context.Context) ([]*models.Operation, error) {
	return s.Operations.ListByState(ctx, models.StateFailed)
}

// SetOperationState transitions an operation; moving to in-flight also
// increments its attempts counter.
func (s *Store) SetOperationState(ctx context.Context, id string, state models.OperationState) error {
	return s.Operations.SetState(ctx, id, state)
}

// RecordOperationError stores the last replay error for inspection.
func (s *Store) RecordOperationError(ctx context.Context, id string, msg string) error {
	return s.Operations.RecordError(ctx, id, msg)
}

// RemoveOperation deletes an operation; deleting an absent id is a no-op.
func (s *Store) RemoveOperation(ctx context.Context, id string) error {
	return s.Operations.Delete(ctx, id)
}

// PendingCount returns the number of operations awaiting sync.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	return s.Operations.CountByState(ctx, models.StatePending)
}

// FailedCount returns the number of terminally failed operations.
func (s *Store) FailedCount(ctx context.Context) (int, error) {
	return s.Operations.CountByState(ctx, models.StateFailed)
}

// PutCache upserts a cache entry; ttl==0 means no time expiry.
func (s *Store) PutCache(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.Cache.Put(ctx, key, value, ttl)
}

// GetCache returns the cached value, or nil when absent or expired.
func (s *Store) GetCache(ctx context.Context, key string) ([]byte, error) {
	return s.Cache.Get(ctx, key)
}

// SweepExpiredCache eagerly removes every expired cache entry.
func (s *Store) SweepExpiredCache(ctx context.Context) (int64, error) {
	return s.Cache.SweepExpired(ctx)
}

// PutEntity mirrors the latest known server representation under (type, id).
func (s *Store) PutEntity(ctx context.Context, entityType models.EntityType, entityID string, value []byte) error {
	return s.Entities.Put(ctx, entityType, entityID, value)
}

// GetEntity returns the mirrored value, or nil if absent.
func (s *Store) GetEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]byte, error) {
	return s.Entities.Get(ctx, entityType, entityID)
}

// ListEntities returns all mirrored entities of a type.
func (s *Store) ListEntities(ctx context.Context, entityType models.EntityType) ([]*models.MirroredEntity, error) {
	return s.Entities.List(ctx, entityType)
}
