// Package buffer implements the concurrent record log and the batch that
// collects evicted records before they are archived.
package buffer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jittakal/ringlog/internal/errors"
	"github.com/jittakal/ringlog/pkg/buffer"
	"github.com/jittakal/ringlog/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.Batch = (*EvictionBatch)(nil)

// EvictionBatch buffers evicted records for one archive file.
// It provides thread-safe buffering with size limits and record count limits.
// The batch tracks first and last write times for file rotation decisions.
type EvictionBatch struct {
	name           string
	records        []record.Eviction
	maxSizeBytes   int64
	maxRecords     int
	currentSize    int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
	mu             sync.RWMutex
}

// NewBatch creates a new eviction batch.
func NewBatch(name string, maxSizeBytes int64, maxRecords int) *EvictionBatch {
	return &EvictionBatch{
		name:         name,
		records:      make([]record.Eviction, 0, maxRecords),
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
	}
}

// Name returns the name the batch was created with.
func (b *EvictionBatch) Name() string {
	return b.name
}

// Add adds an evicted record to the batch.
func (b *EvictionBatch) Add(ev record.Eviction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := int64(estimateSize(ev))

	if b.maxRecords > 0 && len(b.records) >= b.maxRecords {
		return fmt.Errorf("%w: max records (%d) reached", errors.ErrBatchFull, b.maxRecords)
	}

	// An empty batch always accepts one record so an oversized record can
	// still be flushed on its own.
	if b.maxSizeBytes > 0 && len(b.records) > 0 && b.currentSize+size > b.maxSizeBytes {
		return fmt.Errorf("%w: max size (%d bytes) would be exceeded", errors.ErrBatchFull, b.maxSizeBytes)
	}

	b.records = append(b.records, ev)
	b.currentSize += size

	now := time.Now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now

	return nil
}

// Drain removes and returns all records from the batch.
// The returned slice is owned by the caller and will not be modified by the batch.
func (b *EvictionBatch) Drain() []record.Eviction {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := b.records
	b.reset()
	return records
}

// Stats returns current batch statistics.
func (b *EvictionBatch) Stats() record.BatchStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return record.BatchStats{
		RecordCount:    len(b.records),
		SizeBytes:      b.currentSize,
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

// IsEmpty returns true if the batch is empty.
func (b *EvictionBatch) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records) == 0
}

// Reset clears the batch and resets all statistics.
func (b *EvictionBatch) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *EvictionBatch) reset() {
	b.records = make([]record.Eviction, 0, b.maxRecords)
	b.currentSize = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}

// estimateSize estimates the encoded size of an eviction in bytes.
func estimateSize(ev record.Eviction) int {
	// seq, appended_at and evicted_at are fixed-width in both formats.
	return ev.Record.Len() + len(ev.Reason) + 3*8
}
