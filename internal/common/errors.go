// Package common defines shared constants and sentinel errors used across
// the Obrasync client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")

	// Store lifecycle errors.
	ErrStoreUnavailable = errors.New("local store unavailable")

	// Transport-level errors.
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	// Token lifecycle errors.
	ErrNoRefreshToken = errors.New("no refresh token")
)
