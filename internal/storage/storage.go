// Package storage owns the files the generation pipeline produces:
// uploaded source assets, downloaded provider results, and the encoded
// artifacts handed back to the user. It defines the Storage port and
// implementations for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for working files and finished artifacts.
// Every saved file has exactly one owner responsible for removing it;
// Cleanup tolerates already-removed files.
type Storage interface {
	// Save writes data to a working file and returns its path.
	// The name parameter is used as a hint for the filename.
	Save(ctx context.Context, name string, data io.Reader) (path string, err error)

	// Open reads a working file.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Cleanup removes the specified working files. It continues even if
	// some files fail to delete.
	Cleanup(ctx context.Context, paths []string) error

	// Upload publishes a finished artifact to S3 and returns its URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
