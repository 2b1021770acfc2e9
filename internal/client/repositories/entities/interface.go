package entities

import (
	"context"

	"github.com/obrasync/obrasync/internal/client/models"
)

// Repository is the mirrored-entities collection of the offline store.
// Records are written only as a side effect of successfully synced
// operations whose server response carries an identity.
type Repository interface {
	// Put upserts the latest known server representation under (type, id).
	Put(ctx context.Context, entityType models.EntityType, entityID string, value []byte) error

	// Get returns the mirrored value, or nil if absent.
	Get(ctx context.Context, entityType models.EntityType, entityID string) ([]byte, error)

	// List returns all mirrored entities of a type, newest first.
	List(ctx context.Context, entityType models.EntityType) ([]*models.MirroredEntity, error)
}
