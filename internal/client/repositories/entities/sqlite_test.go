package entities

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obrasync/obrasync/internal/client/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE entities (
  entity_type TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  value BLOB,
  stored_at_ms INTEGER NOT NULL,
  PRIMARY KEY (entity_type, entity_id)
);
`)
	require.NoError(t, err)

	return db
}

func TestPutGet_RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, models.EntityLogEntry, "abc123", []byte(`{"id":"abc123"}`)))

	got, err := r.Get(ctx, models.EntityLogEntry, "abc123")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"abc123"}`), got)
}

func TestGet_MissReturnsNil(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, nil)

	got, err := r.Get(context.Background(), models.EntityLogEntry, "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPut_SameIDDifferentTypeAreSeparate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, models.EntityLogEntry, "1", []byte("log")))
	require.NoError(t, r.Put(ctx, models.EntityComment, "1", []byte("comment")))

	got, err := r.Get(ctx, models.EntityLogEntry, "1")
	require.NoError(t, err)
	assert.Equal(t, []byte("log"), got)

	got, err = r.Get(ctx, models.EntityComment, "1")
	require.NoError(t, err)
	assert.Equal(t, []byte("comment"), got)
}

func TestPut_Overwrites(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, models.EntityReport, "r1", []byte("v1")))
	require.NoError(t, r.Put(ctx, models.EntityReport, "r1", []byte("v2")))

	got, err := r.Get(ctx, models.EntityReport, "r1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestList_NewestFirstAndFiltered(t *testing.T) {
	db := setupDB(t)
	clock := &fakeClock{t: time.Now()}
	r := NewSQLiteRepository(db, clock.Now)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, models.EntityLogEntry, "old", []byte("1")))
	clock.Advance(time.Second)
	require.NoError(t, r.Put(ctx, models.EntityLogEntry, "new", []byte("2")))
	clock.Advance(time.Second)
	require.NoError(t, r.Put(ctx, models.EntityComment, "other", []byte("3")))

	got, err := r.List(ctx, models.EntityLogEntry)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].EntityID)
	assert.Equal(t, "old", got[1].EntityID)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
