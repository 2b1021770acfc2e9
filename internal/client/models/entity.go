package models

import "time"

// MirroredEntity is the last known server representation of a domain object,
// keyed by (type, id). It is overwritten wholesale whenever a synced
// operation returns a server-assigned identity, and lets the UI read
// last-known-good data while offline.
type MirroredEntity struct {
	EntityType EntityType
	EntityID   string
	Value      []byte
	StoredAt   time.Time
}
