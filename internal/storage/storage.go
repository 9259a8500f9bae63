package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Copy when the source key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the file storage area for avatars and post media.
// Keys are generated by the caller and never derived from record ids.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	// Delete is idempotent: removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
