package operations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obrasync/obrasync/internal/client/models"
	"github.com/obrasync/obrasync/internal/common"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE operations (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  entity_type TEXT NOT NULL DEFAULT '',
  entity_id TEXT NOT NULL DEFAULT '',
  payload BLOB,
  content_type TEXT NOT NULL DEFAULT '',
  endpoint TEXT NOT NULL,
  method TEXT NOT NULL,
  idempotency_key TEXT NOT NULL DEFAULT '',
  enqueued_at_ms INTEGER NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  state TEXT NOT NULL DEFAULT 'pending',
  last_error TEXT NOT NULL DEFAULT ''
);
`)
	require.NoError(t, err)

	return db
}

func newOp(id string, enqueuedAt time.Time) *models.Operation {
	return &models.Operation{
		ID:         id,
		Kind:       models.KindCreate,
		EntityType: models.EntityLogEntry,
		Payload:    []byte(`{"title":"t"}`),
		Endpoint:   "/log-entries",
		Method:     "POST",
		EnqueuedAt: enqueuedAt,
		State:      models.StatePending,
	}
}

func TestInsert_DuplicateKey(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	op := newOp("op1", time.Now())
	require.NoError(t, r.Insert(ctx, op))

	err := r.Insert(ctx, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicateKey)
}

func TestInsert_OtherConstraintIsNotDuplicateKey(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	// tighten the schema so a failure other than an id collision can occur
	_, err := db.Exec(`CREATE UNIQUE INDEX idx_test_idempotency ON operations(idempotency_key)`)
	require.NoError(t, err)

	first := newOp("a", time.Now())
	first.IdempotencyKey = "same-key"
	require.NoError(t, r.Insert(ctx, first))

	second := newOp("b", time.Now())
	second.IdempotencyKey = "same-key"
	err = r.Insert(ctx, second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrDuplicateKey)
}

func TestListPending_FIFOOrder(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Now()

	// insert out of enqueue order on purpose
	require.NoError(t, r.Insert(ctx, newOp("c", base.Add(3*time.Second))))
	require.NoError(t, r.Insert(ctx, newOp("a", base.Add(1*time.Second))))
	require.NoError(t, r.Insert(ctx, newOp("b", base.Add(2*time.Second))))

	got, err := r.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestListPending_ExcludesOtherStates(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, r.Insert(ctx, newOp("p", base)))

	failed := newOp("f", base.Add(time.Second))
	failed.State = models.StateFailed
	require.NoError(t, r.Insert(ctx, failed))

	inflight := newOp("i", base.Add(2*time.Second))
	inflight.State = models.StateInFlight
	require.NoError(t, r.Insert(ctx, inflight))

	got, err := r.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p", got[0].ID)
}

func TestSetState_InFlightIncrementsAttempts(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, newOp("op1", time.Now())))

	require.NoError(t, r.SetState(ctx, "op1", models.StateInFlight))
	op, err := r.GetByID(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, 1, op.Attempts)
	assert.Equal(t, models.StateInFlight, op.State)

	// reverting to pending must not touch the counter
	require.NoError(t, r.SetState(ctx, "op1", models.StatePending))
	op, err = r.GetByID(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, 1, op.Attempts)
	assert.Equal(t, models.StatePending, op.State)

	require.NoError(t, r.SetState(ctx, "op1", models.StateInFlight))
	op, err = r.GetByID(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, 2, op.Attempts)
}

func TestSetState_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	err := r.SetState(context.Background(), "ghost", models.StatePending)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByID_AnyStateAndNotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	failed := newOp("f", time.Now())
	failed.State = models.StateFailed
	require.NoError(t, r.Insert(ctx, failed))

	op, err := r.GetByID(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, op.State)

	_, err = r.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete_Idempotent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, newOp("op1", time.Now())))

	require.NoError(t, r.Delete(ctx, "op1"))
	// second delete of the same id must not error
	require.NoError(t, r.Delete(ctx, "op1"))

	_, err := r.GetByID(ctx, "op1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRequeue_ResetsAttemptsAndError(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	op := newOp("op1", time.Now())
	op.State = models.StateFailed
	op.Attempts = 3
	op.LastError = "boom"
	require.NoError(t, r.Insert(ctx, op))

	require.NoError(t, r.Requeue(ctx, "op1"))

	got, err := r.GetByID(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, got.State)
	assert.Equal(t, 0, got.Attempts)
	assert.Empty(t, got.LastError)

	assert.ErrorIs(t, r.Requeue(ctx, "ghost"), common.ErrNotFound)
}

func TestResetInFlight(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Now()
	a := newOp("a", base)
	a.State = models.StateInFlight
	require.NoError(t, r.Insert(ctx, a))

	b := newOp("b", base.Add(time.Second))
	b.State = models.StateInFlight
	require.NoError(t, r.Insert(ctx, b))

	f := newOp("f", base.Add(2*time.Second))
	f.State = models.StateFailed
	require.NoError(t, r.Insert(ctx, f))

	n, err := r.ResetInFlight(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	pending, err := r.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// failed operations stay failed
	got, err := r.GetByID(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, got.State)
}

func TestCountByState(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, newOp("a", time.Now())))
	require.NoError(t, r.Insert(ctx, newOp("b", time.Now())))

	n, err := r.CountByState(ctx, models.StatePending)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.CountByState(ctx, models.StateFailed)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecordError(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, newOp("op1", time.Now())))
	require.NoError(t, r.RecordError(ctx, "op1", "unexpected status 500"))

	op, err := r.GetByID(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, "unexpected status 500", op.LastError)
}
