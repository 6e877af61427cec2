// Package storage defines the object storage boundary and the upload
// gateway that moves generated assets through it with retries.
package storage

import "context"

// ObjectStore abstracts the bucket that holds generated assets. Put must
// overwrite any existing object under the same key, which is what makes
// re-running a scene's uploads safe.
type ObjectStore interface {
	// Put stores data under key with the given content type.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// URL returns the public URL for an object key. It does not check
	// that the object exists.
	URL(key string) string
}
