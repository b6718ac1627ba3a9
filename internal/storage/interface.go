package storage

import (
	"context"
	"io"
)

// ObjectStorage is the write side of an object store used to mirror harvested results.
type ObjectStorage interface {
	// Upload stores size bytes from reader under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the address an uploaded key can be fetched from.
	GetURL(key string) string
}
