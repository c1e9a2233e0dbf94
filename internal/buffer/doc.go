// Package buffer provides the thread-safe record log and eviction batching.
//
// # Log
//
// Log wraps a ring of records with two context-aware locks:
//
//	log, err := buffer.New(buffer.Config{Capacity: 10, OnEvict: archiver.Offer})
//
//	// Complete records
//	evicted, err := log.AppendRecord(ctx, []byte("hello\n"))
//
//	// Streamed bytes; records are committed at each newline
//	n, err := log.Write(ctx, []byte("partial "))
//	n, err = log.Write(ctx, []byte("line\n"))
//
// # Reading
//
// ReadAt returns bytes from a single record. Reader loops over ReadAt and
// reports io.EOF at the end of the data:
//
//	off, err := log.SeekTo(ctx, 2, 0)
//	io.Copy(conn, log.Reader(ctx, off))
//
// # Locking
//
// The accumulation lock guards bytes waiting for a terminator. The ring lock
// guards the ring, its size and the sequence counter. Write, Stats and Close
// take the accumulation lock first; AppendRecord, ReadAt and SeekTo take only
// the ring lock. A cancelled context while waiting returns an error matching
// both errors.ErrInterrupted and the context error, and nothing is changed.
//
// # Eviction
//
// When the ring is full, an append displaces the oldest record. The record is
// returned to the caller of AppendRecord and passed to Config.OnEvict once
// the ring lock is released.
//
// # EvictionBatch
//
// EvictionBatch collects evicted records for one archive file, with size and
// count limits:
//
//	batch := buffer.NewBatch("records", maxSizeBytes, maxRecords)
//	if err := batch.Add(ev); errors.Is(err, errors.ErrBatchFull) {
//	    flush(batch.Drain())
//	}
package buffer
