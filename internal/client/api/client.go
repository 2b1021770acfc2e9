// Package api contains the HTTP building blocks for talking to the Obrasync
// backend: a transport-agnostic contract (Client), a concrete REST
// implementation (RestClient) that attaches the current credentials to every
// request and transparently recovers from expired access tokens, and the
// mapping of transport conditions to sentinel errors.
package api

import "context"

// Request is one HTTP mutation or read, captured exactly as it should be
// (re)issued: the original method, endpoint and body.
type Request struct {
	Method   string
	Endpoint string
	Body     []byte

	// ContentType overrides the default application/json. Binary-form
	// bodies carry their own value (e.g. multipart/form-data with its
	// boundary) captured when the body was built.
	ContentType string

	// IdempotencyKey, when set, is stamped as an Idempotency-Key header so
	// the server can de-duplicate replays of the same mutation.
	IdempotencyKey string
}

// Response is the decoded-enough result of a request: status plus raw body.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is the transport contract consumed by the sync manager and the
// read-through cache. Implementations must be safe for concurrent use.
type Client interface {
	// Do issues the request with current credentials attached. A non-2xx
	// status yields both the response and a non-nil error.
	Do(ctx context.Context, req Request) (*Response, error)

	// Ping checks server liveness.
	Ping(ctx context.Context) error
}
