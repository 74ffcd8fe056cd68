// Package blobstore is the Blob Store capability: tenant-scoped storage for
// raw file bytes ingested by the content realm before parsing produces
// artifacts. Each Put mints a fresh reference; references are not derived
// from the content, so storing the same bytes twice yields two blobs.
package blobstore

import (
	"context"
	"io"

	"github.com/cityos/runtime/internal/runtimeerr"
)

// Store is the capability surface every blob-store backend implements.
type Store interface {
	// Put writes content under tenantID/key and returns a content
	// reference the caller persists alongside the owning artifact.
	Put(ctx context.Context, tenantID, key string, content io.Reader) (ref string, err error)

	// Get opens the blob previously stored under ref for reading. The
	// caller must close the returned reader.
	Get(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes the blob stored under ref.
	Delete(ctx context.Context, ref string) error
}

func wrap(op string, err error) error {
	return runtimeerr.NewCapabilityError("blobstore", op, err)
}
