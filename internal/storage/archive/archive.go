// Package archive is the durable persistence boundary for the history
// store. Backends move opaque bytes under string keys; serialization
// belongs to the caller.
package archive

import "context"

// Backend stores opaque blobs under keys.
type Backend interface {
	// Put stores data under key, overwriting any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the blob stored under key. Missing keys return
	// (nil, false, nil) rather than an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Delete removes the blob under key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error
}
