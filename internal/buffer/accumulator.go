package buffer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jittakal/ringlog/internal/errors"
	"github.com/jittakal/ringlog/pkg/record"
)

// Write accumulates p and commits every newline-terminated record it
// completes. Bytes after the last newline stay pending until a later Write
// supplies the terminator.
//
// n counts the bytes taken into the log. If adding a segment would grow the
// pending record past MaxRecordBytes, that segment is rejected with
// ErrAllocation and the pending bytes are left as they were. If the ring
// lock cannot be taken, the completed record stays pending, ErrInterrupted is
// returned with n including its bytes, and the next Write commits it first.
func (l *Log) Write(ctx context.Context, p []byte) (n int, err error) {
	release, err := l.acc.acquire(ctx)
	if err != nil {
		return 0, err
	}

	var evictions []record.Record
	defer func() {
		l.metrics.SetPendingBytes(len(l.pending))
		release()
		for _, ev := range evictions {
			l.evict(ev)
		}
	}()

	if l.closed {
		return 0, errors.ErrLogClosed
	}
	if bytes.IndexByte(l.pending, record.Terminator) >= 0 {
		l.logger.Debug("committing record left pending by an interrupted write", "bytes", len(l.pending))
		ev, ok, err := l.flushPending(ctx)
		if err != nil {
			return 0, err
		}
		if ok {
			evictions = append(evictions, ev)
		}
	}

	for len(p) > 0 {
		seg := p
		if i := bytes.IndexByte(p, record.Terminator); i >= 0 {
			seg = p[:i+1]
		}

		if len(l.pending)+len(seg) > l.maxRecordBytes {
			l.metrics.IncErrors("write", errors.Kind(errors.ErrAllocation))
			l.logger.Warn("record exceeds size limit",
				"pending_bytes", len(l.pending), "segment_bytes", len(seg), "limit", l.maxRecordBytes)
			return n, fmt.Errorf("%w: pending record would reach %d bytes, limit %d",
				errors.ErrAllocation, len(l.pending)+len(seg), l.maxRecordBytes)
		}

		l.pending = append(l.pending, seg...)
		n += len(seg)
		p = p[len(seg):]

		if seg[len(seg)-1] != record.Terminator {
			break
		}

		ev, ok, err := l.flushPending(ctx)
		if err != nil {
			return n, err
		}
		if ok {
			evictions = append(evictions, ev)
		}
	}

	return n, nil
}

// flushPending commits the pending bytes as one record. The caller holds the
// accumulation lock and pending ends with a terminator.
func (l *Log) flushPending(ctx context.Context) (record.Record, bool, error) {
	release, err := l.ringLock.acquire(ctx)
	if err != nil {
		return record.Record{}, false, err
	}
	defer release()

	evicted, ok, err := l.commit(l.pending)
	if err != nil {
		return record.Record{}, false, err
	}
	l.pending = nil
	return evicted, ok, nil
}

// DiscardPending drops the bytes waiting for a terminator and returns how
// many there were. A writer whose line was rejected with ErrAllocation calls
// it so the accepted head of that line does not prefix the next record.
func (l *Log) DiscardPending(ctx context.Context) (int, error) {
	release, err := l.acc.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if l.closed {
		return 0, errors.ErrLogClosed
	}
	n := len(l.pending)
	l.pending = nil
	l.metrics.SetPendingBytes(0)
	if n > 0 {
		l.logger.Debug("discarded pending bytes", "bytes", n)
	}
	return n, nil
}
