// Package storage defines interfaces for archiving evicted records.
//
// This package provides abstractions for writing evictions to various
// storage backends (S3, Azure Blob, GCS, local filesystem).
package storage

import (
	"context"

	"github.com/jittakal/ringlog/pkg/record"
)

// Writer writes evictions to storage.
type Writer interface {
	// Write writes evictions to storage at the specified path.
	// Returns the number of bytes written.
	Write(ctx context.Context, evictions []record.Eviction, path string, format record.FileFormat) (int64, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines storage paths for an archive at a given time.
type Router interface {
	// Route returns the storage path for the named archive.
	// timestamp is a Unix timestamp (seconds), normally the eviction time
	// of the first record in the batch.
	Route(name string, timestamp int64) string
}

// RotationPolicy determines when buffered evictions are flushed to storage.
type RotationPolicy interface {
	// ShouldRotate returns true if the batch should be flushed based on stats.
	ShouldRotate(stats record.BatchStats) bool
}
