package localstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for keys that were never set or were deleted.
var ErrNotFound = errors.New("localstore: key not found")

// Store is a small string-keyed value store used by the client the way a
// browser uses localStorage.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
