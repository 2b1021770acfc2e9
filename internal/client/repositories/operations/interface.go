package operations

import (
	"context"

	"github.com/obrasync/obrasync/internal/client/models"
)

// Repository is the operations collection of the offline store.
type Repository interface {
	// Insert adds a new operation keyed by its identity. Returns
	// common.ErrDuplicateKey if the identity already exists.
	Insert(ctx context.Context, op *models.Operation) error

	// GetByID returns an operation in any state, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Operation, error)

	// ListPending returns all pending operations sorted ascending by
	// enqueue time (oldest first). The ordering is a hard guarantee
	// consumed by the sync manager.
	ListPending(ctx context.Context) ([]*models.Operation, error)

	// ListByState returns all operations in the given state, oldest first.
	ListByState(ctx context.Context, state models.OperationState) ([]*models.Operation, error)

	// SetState transitions an operation. Transitioning to StateInFlight
	// increments the attempts counter first. Returns common.ErrNotFound
	// if the id does not exist (e.g., concurrently deleted).
	SetState(ctx context.Context, id string, state models.OperationState) error

	// RecordError stores the last replay error message for inspection.
	RecordError(ctx context.Context, id string, msg string) error

	// Delete removes an operation. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Requeue moves a terminally failed operation back to pending with a
	// fresh attempts budget. Returns common.ErrNotFound if absent.
	Requeue(ctx context.Context, id string) error

	// ResetInFlight moves every in-flight operation back to pending and
	// returns how many rows were reset. Used as crash recovery on store
	// open, since the in-memory sync guard cannot survive a restart.
	ResetInFlight(ctx context.Context) (int64, error)

	// CountByState returns the number of operations in the given state.
	CountByState(ctx context.Context, state models.OperationState) (int, error)
}
