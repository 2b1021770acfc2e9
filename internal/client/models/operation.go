// Package models defines the records persisted by the offline store: queued
// operations, time-boxed cache entries, and mirrored entities.
package models

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// OperationKind classifies the intended mutation.
type OperationKind string

const (
	KindCreate OperationKind = "create"
	KindUpdate OperationKind = "update"
	KindDelete OperationKind = "delete"
)

// OperationState is the lifecycle state of a queued operation. Completed
// operations are deleted rather than retained, so StateCompleted never
// appears in the store.
type OperationState string

const (
	StatePending   OperationState = "pending"
	StateInFlight  OperationState = "in_flight"
	StateCompleted OperationState = "completed"
	StateFailed    OperationState = "failed"
)

// EntityType identifies which domain resource an operation targets.
type EntityType string

const (
	EntityLogEntry      EntityType = "logEntry"
	EntityCommunication EntityType = "communication"
	EntityActa          EntityType = "acta"
	EntityReport        EntityType = "report"
	EntityComment       EntityType = "comment"
	EntityAttachment    EntityType = "attachment"
)

// Operation is a durably queued representation of one deferred network
// mutation, replayed verbatim against the REST boundary when connectivity
// returns.
type Operation struct {
	ID             string
	Kind           OperationKind
	EntityType     EntityType
	EntityID       string
	Payload        []byte
	ContentType    string // empty means application/json
	Endpoint       string
	Method         string
	IdempotencyKey string
	EnqueuedAt     time.Time
	Attempts       int
	State          OperationState
	LastError      string
}

// KindForMethod derives the operation kind from the HTTP method:
// POST→create, PUT/PATCH→update, DELETE→delete, anything else→create.
func KindForMethod(method string) OperationKind {
	switch method {
	case http.MethodPut, http.MethodPatch:
		return KindUpdate
	case http.MethodDelete:
		return KindDelete
	default:
		return KindCreate
	}
}

// NewOperationID returns a time-ordered, collision-resistant identity.
// ULIDs sort lexicographically by creation time, which keeps identities
// aligned with the FIFO ordering of the queue.
func NewOperationID() string {
	return ulid.Make().String()
}

// NewIdempotencyKey returns the key stamped on a replayed request so the
// server can de-duplicate retries of the same mutation.
func NewIdempotencyKey() string {
	return uuid.NewString()
}
