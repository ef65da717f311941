package persist

import (
	"context"
	"errors"
)

// ErrUnavailable wraps backend failures (I/O errors, Redis outages).
var ErrUnavailable = errors.New("persistence backend unavailable")

// Store is a minimal string key/value store. Get reports ok=false for a
// missing key. Remove of a missing key is not an error. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}
