package models

import "time"

// CacheEntry is a time-boxed cached value keyed by an opaque string.
// A zero ExpiresAt means the entry never expires via time, only via
// explicit overwrite.
type CacheEntry struct {
	Key       string
	Value     []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is logically dead at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
