// Package metadata is the key/value table of the client SQLite database.
// The local cache keeps the serialized document in it under a fixed key and
// the auth service remembers the last signed-in user name.
package metadata

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned when a value is stored without a key.
var ErrEmptyKey = errors.New("metadata key must not be empty")

// Repository stores opaque values by key. Get returns (nil, nil) for a
// missing key and Delete of a missing key is not an error.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Size is the total byte length of all stored values; the cache checks
	// its quota against it.
	Size(ctx context.Context) (int64, error)
}
