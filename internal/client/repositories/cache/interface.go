package cache

import (
	"context"
	"time"

	"github.com/obrasync/obrasync/internal/client/models"
)

// Repository is the time-boxed cache collection of the offline store.
// All reads and expiry decisions are made against the clock injected by the
// store, so tests can simulate elapsed time.
type Repository interface {
	// Put upserts an entry. A zero ttl means the entry never expires via
	// time, only via explicit overwrite.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the cached value, or nil if absent or expired. An expired
	// entry is deleted as a side effect (lazy eviction).
	Get(ctx context.Context, key string) ([]byte, error)

	// GetEntry returns the full record without evicting, or nil if absent.
	GetEntry(ctx context.Context, key string) (*models.CacheEntry, error)

	// SweepExpired deletes every entry whose expiry has passed, in
	// storage-time order, and returns the number of rows removed.
	SweepExpired(ctx context.Context) (int64, error)
}
