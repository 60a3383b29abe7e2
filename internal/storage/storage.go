// Package storage defines the blob persistence contract for downloaded
// artifacts.
package storage

import "context"

// BlobStore writes raw artifacts and returns a URI for the stored object.
// Writing the same path twice overwrites the object; artifact content is
// idempotent per path so last-writer-wins is fine.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}
