// Package queue converts intended network mutations into durably queued
// operations. Enqueue is the offline-safe path: it never fails for
// connectivity reasons, only if the local store itself is unavailable.
// Its correctness obligation is simply "never lose a write intent".
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/obrasync/obrasync/internal/client/models"
	"github.com/obrasync/obrasync/internal/client/store"
	"github.com/obrasync/obrasync/internal/common"
	"github.com/obrasync/obrasync/internal/logging"
)

// Request describes an intended mutation to defer.
type Request struct {
	Endpoint    string
	Method      string
	Payload     []byte
	ContentType string // empty means application/json
	EntityType  models.EntityType
	EntityID    string // empty for creates
}

// Queue persists deferred mutations in enqueue order.
type Queue struct {
	store *store.Store
	log   logging.Logger
	now   func() time.Time
}

// New builds a queue over the given store.
func New(s *store.Store, log logging.Logger) *Queue {
	return &Queue{store: s, log: log, now: time.Now}
}

// Enqueue constructs an operation from the request (kind derived from the
// HTTP method), stamps it with a fresh time-ordered identity, an idempotency
// key and the current time, and persists it pending with zero attempts.
func (q *Queue) Enqueue(ctx context.Context, req Request) (*models.Operation, error) {
	op := &models.Operation{
		ID:             models.NewOperationID(),
		Kind:           models.KindForMethod(req.Method),
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		Payload:        req.Payload,
		ContentType:    req.ContentType,
		Endpoint:       req.Endpoint,
		Method:         req.Method,
		IdempotencyKey: models.NewIdempotencyKey(),
		EnqueuedAt:     q.now(),
		Attempts:       0,
		State:          models.StatePending,
	}

	if err := q.store.AddOperation(ctx, op); err != nil {
		return nil, err
	}

	q.log.Debug(ctx, "operation queued",
		"id", op.ID, "kind", op.Kind, "endpoint", op.Endpoint, "entityType", op.EntityType)
	return op, nil
}

// FindByID looks up an operation in any state; nil when absent. Completed
// operations are deleted on completion, so by construction they are never
// found.
func (q *Queue) FindByID(ctx context.Context, id string) (*models.Operation, error) {
	op, err := q.store.GetOperation(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

// PendingCount reports how many operations await sync.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	return q.store.PendingCount(ctx)
}
