// Package blobstore provides durable byte storage keyed by opaque path.
package blobstore

import (
	"context"
)

// BlobStore is the storage collaborator the ingestion pipeline writes
// uploaded bytes to and reads them back from.
type BlobStore interface {
	// Store persists data and returns the opaque path it can be read back
	// from. The path encodes owner and kind so unrelated users can never
	// collide.
	Store(ctx context.Context, data []byte, filename, kind, ownerID string) (string, error)

	// Read returns the bytes previously written under path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object. Deleting a missing object reports false.
	Delete(ctx context.Context, path string) (bool, error)

	// Exists reports whether an object is stored under path.
	Exists(ctx context.Context, path string) (bool, error)
}
