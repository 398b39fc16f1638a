package media

import (
	"context"
	"net/url"
	"time"
)

// Service defines the media ingest operations used by the mutation coordinators
type Service interface {
	// Store validates the payload size, generates an unguessable key and stores
	// the payload under it with the given content type
	Store(ctx context.Context, payload []byte, mimeType string) (*Object, error)

	// Resolve mints a short-lived retrieval reference for a stored object
	Resolve(ctx context.Context, key string) (*Reference, error)

	// Remove deletes a stored object. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// ObjectStore is the object-storage backend contract.
// Keys passed to an ObjectStore are always generated by this package.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (*url.URL, error)
	// Remove must be idempotent
	Remove(ctx context.Context, key string) error
}
