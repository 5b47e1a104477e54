// Package metadata stores small named blobs of client state (the user
// snapshot and the session tokens) in the local database.
package metadata

import (
	"context"
)

// Repository is a key/value view over the metadata table. Get returns
// (nil, nil) for an absent key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}
