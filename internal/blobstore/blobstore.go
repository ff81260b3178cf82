// Package blobstore stages source image bytes by key. The pipeline treats
// blobs as opaque byte transport: no format sniffing, no transformation.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no blob exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// Store is the blob store contract used by the coordinator (put) and the
// worker (get).
type Store interface {
	// Put stores data under key. Puts are idempotent: keys are
	// content-addressed, so rewriting the same key with the same bytes is
	// harmless.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the bytes stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Bucket names the logical container recorded on job storage refs.
	Bucket() string
}
