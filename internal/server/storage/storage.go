// Package storage keeps uploaded bytes (attachments, banners, avatars)
// outside the database. Rows only hold the URL returned by Save.
package storage

import (
	"context"
	"io"
)

// FileStore is implemented by LocalStore and S3Store.
type FileStore interface {
	// Save stores r under a fresh name derived from name and returns the
	// URL to persist.
	Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
	// Remove deletes the object behind url. A missing object is not an error.
	Remove(ctx context.Context, url string) error
	// DownloadURL returns a URL a client can fetch the object from.
	DownloadURL(ctx context.Context, url string) (string, error)
}
