// Package storage publishes finished export artifacts. LocalStorage copies
// them into an artifacts directory; S3Storage uploads them to a bucket.
package storage

import (
	"context"
)

// Storage defines where finished artifacts are published.
type Storage interface {
	// Publish makes the file at localPath available under key and returns
	// the URL it can be fetched from.
	Publish(ctx context.Context, key, localPath string) (url string, err error)

	// Cleanup removes the specified local files.
	// It continues cleanup even if some files fail to delete.
	Cleanup(ctx context.Context, paths []string) error
}
