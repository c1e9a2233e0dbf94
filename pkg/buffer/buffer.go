// Package buffer defines interfaces for the record log and for batching
// evicted records before archiving.
package buffer

import (
	"context"
	"io"

	"github.com/jittakal/ringlog/pkg/record"
)

// Appender installs complete records, each a single newline-terminated line.
type Appender interface {
	// AppendRecord copies data into the log. If the log was full, the oldest
	// record is displaced and returned; the caller owns it.
	AppendRecord(ctx context.Context, data []byte) (*record.Record, error)
}

// Log is a fixed-capacity circular log of records addressed by byte offset.
// All implementations must be safe for concurrent use.
type Log interface {
	Appender

	// Write accumulates bytes and commits each newline-terminated record.
	Write(ctx context.Context, p []byte) (int, error)

	// DiscardPending drops bytes still waiting for a terminator.
	DiscardPending(ctx context.Context) (int, error)

	// ReadAt returns up to max bytes of a single record starting at off.
	ReadAt(ctx context.Context, off int64, max int) ([]byte, error)

	// SeekTo maps a record index and intra-record offset to a global offset.
	SeekTo(ctx context.Context, index, offset int) (int64, error)

	// Reader streams the log from off to the end of the data.
	Reader(ctx context.Context, off int64) io.Reader

	// Stats returns a snapshot of the log.
	Stats(ctx context.Context) (record.Stats, error)

	// Close drains the log, returning every record exactly once.
	Close(ctx context.Context) ([]record.Record, error)
}

// Batch buffers evicted records before they are written to storage.
// All implementations must be thread-safe.
type Batch interface {
	// Add adds an eviction to the batch.
	// Returns an error if the batch is full or capacity would be exceeded.
	Add(ev record.Eviction) error

	// Drain removes and returns all records from the batch.
	// The batch is reset after draining.
	Drain() []record.Eviction

	// Stats returns current batch statistics without modifying the batch.
	Stats() record.BatchStats

	// IsEmpty returns true if the batch contains no records.
	IsEmpty() bool

	// Reset clears the batch and resets all statistics.
	Reset()
}
