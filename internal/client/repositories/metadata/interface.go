package metadata

import (
	"context"
)

// Repository is a small key/value slot for session state (username, tokens)
// that must survive restarts alongside the queue.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
