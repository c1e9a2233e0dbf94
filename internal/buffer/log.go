package buffer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jittakal/ringlog/internal/errors"
	"github.com/jittakal/ringlog/internal/ring"
	"github.com/jittakal/ringlog/pkg/buffer"
	"github.com/jittakal/ringlog/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.Log = (*Log)(nil)

// DefaultMaxRecordBytes bounds a single record and the accumulation buffer.
const DefaultMaxRecordBytes = 4 << 20

// Config configures a Log.
type Config struct {
	// Capacity is the number of records the ring holds.
	Capacity int
	// MaxRecordBytes limits a single record, including its terminator.
	MaxRecordBytes int
	// OnEvict receives every record displaced by an append, after the ring
	// lock has been released. It must not call back into the Log.
	OnEvict func(record.Eviction)
	Metrics MetricsCollector
	Logger  *slog.Logger
}

// Log is a concurrency-safe circular record log.
//
// Writers that stream bytes go through Write, which accumulates them until a
// terminator arrives. The accumulation lock is always taken before the ring
// lock; readers take only the ring lock.
type Log struct {
	acc      *lock
	ringLock *lock

	// guarded by acc
	pending []byte

	// guarded by ringLock
	ring          *ring.Ring
	seq           uint64
	totalAppended uint64
	totalEvicted  uint64

	// closed is only set with both locks held, so either lock guards a read.
	closed bool

	maxRecordBytes int
	onEvict        func(record.Eviction)
	metrics        MetricsCollector
	logger         *slog.Logger
	now            func() time.Time
}

// New creates an empty Log.
func New(cfg Config) (*Log, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = ring.DefaultCapacity
	}
	if cfg.MaxRecordBytes <= 0 {
		cfg.MaxRecordBytes = DefaultMaxRecordBytes
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	r, err := ring.New(cfg.Capacity)
	if err != nil {
		return nil, err
	}

	return &Log{
		acc:            newLock(lockAccumulation, cfg.Metrics),
		ringLock:       newLock(lockRing, cfg.Metrics),
		ring:           r,
		maxRecordBytes: cfg.MaxRecordBytes,
		onEvict:        cfg.OnEvict,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		now:            time.Now,
	}, nil
}

// AppendRecord installs a complete record. data must hold exactly one line,
// ending with its only newline, and is copied before the ring lock is taken. The displaced record, if any, is
// returned and belongs to the caller.
func (l *Log) AppendRecord(ctx context.Context, data []byte) (*record.Record, error) {
	if len(data) == 0 || data[len(data)-1] != record.Terminator {
		return nil, &errors.ValidationError{Field: "data", Reason: "record must end with a newline"}
	}
	if i := bytes.IndexByte(data[:len(data)-1], record.Terminator); i >= 0 {
		return nil, &errors.ValidationError{Field: "data", Reason: fmt.Sprintf("embedded terminator at offset %d", i)}
	}
	if len(data) > l.maxRecordBytes {
		l.metrics.IncErrors("append", errors.Kind(errors.ErrAllocation))
		return nil, fmt.Errorf("%w: record of %d bytes exceeds limit of %d",
			errors.ErrAllocation, len(data), l.maxRecordBytes)
	}

	owned := bytes.Clone(data)

	release, err := l.ringLock.acquire(ctx)
	if err != nil {
		return nil, err
	}
	evicted, ok, err := l.commit(owned)
	release()
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, nil
	}
	l.evict(evicted)
	return &evicted, nil
}

// commit installs data as the newest record. The caller holds the ring lock
// and gives up ownership of data.
func (l *Log) commit(data []byte) (record.Record, bool, error) {
	if l.closed {
		return record.Record{}, false, errors.ErrLogClosed
	}

	l.seq++
	evicted, ok := l.ring.Add(record.Record{
		Seq:        l.seq,
		Data:       data,
		AppendedAt: l.now(),
	})

	l.totalAppended++
	l.metrics.IncRecordsAppended(len(data))
	if ok {
		l.totalEvicted++
		l.metrics.IncRecordsEvicted()
	}
	l.metrics.SetRingState(l.ring.Len(), l.ring.Size())

	return evicted, ok, nil
}

func (l *Log) evict(rec record.Record) {
	l.logger.Debug("record evicted", "seq", rec.Seq, "bytes", rec.Len())
	if l.onEvict != nil {
		l.onEvict(record.Eviction{
			Record:    rec,
			Reason:    record.ReasonOverwritten,
			EvictedAt: l.now(),
		})
	}
}

// ReadAt returns up to max bytes starting at global offset off. The bytes
// never span two records; callers loop to read further. ErrOutOfRange is
// returned when off is at or past the end of the data.
func (l *Log) ReadAt(ctx context.Context, off int64, max int) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}
	buf := make([]byte, max)
	n, err := l.readInto(ctx, off, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (l *Log) readInto(ctx context.Context, off int64, p []byte) (int, error) {
	release, err := l.ringLock.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if l.closed {
		return 0, errors.ErrLogClosed
	}

	rec, pos, ok := l.ring.Find(off)
	if !ok {
		return 0, errors.ErrOutOfRange
	}
	return copy(p, rec.Data[pos.Offset:]), nil
}

// SeekTo converts a record index and an offset inside that record into a
// global byte offset.
func (l *Log) SeekTo(ctx context.Context, index, offset int) (int64, error) {
	release, err := l.ringLock.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if l.closed {
		return 0, errors.ErrLogClosed
	}

	off, err := l.ring.Seek(index, offset)
	if err != nil {
		l.metrics.IncErrors("seek", errors.Kind(err))
		return 0, err
	}
	return off, nil
}

// Reader returns a reader that streams the log from off until the end of the
// data present at each read.
func (l *Log) Reader(ctx context.Context, off int64) io.Reader {
	return &logReader{ctx: ctx, log: l, off: off}
}

type logReader struct {
	ctx context.Context
	log *Log
	off int64
}

func (r *logReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := r.log.readInto(r.ctx, r.off, p)
	if errors.Is(err, errors.ErrOutOfRange) {
		return 0, io.EOF
	}
	r.off += int64(n)
	return n, err
}

// Stats returns a snapshot of the log.
func (l *Log) Stats(ctx context.Context) (record.Stats, error) {
	releaseAcc, err := l.acc.acquire(ctx)
	if err != nil {
		return record.Stats{}, err
	}
	defer releaseAcc()

	releaseRing, err := l.ringLock.acquire(ctx)
	if err != nil {
		return record.Stats{}, err
	}
	defer releaseRing()

	return record.Stats{
		Records:       l.ring.Len(),
		Capacity:      l.ring.Cap(),
		SizeBytes:     l.ring.Size(),
		PendingBytes:  len(l.pending),
		TotalAppended: l.totalAppended,
		TotalEvicted:  l.totalEvicted,
	}, nil
}

// Close drains the ring and returns every record it held, oldest first. Bytes
// still waiting for a terminator are discarded. Any later operation returns
// ErrLogClosed.
func (l *Log) Close(ctx context.Context) ([]record.Record, error) {
	releaseAcc, err := l.acc.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer releaseAcc()

	releaseRing, err := l.ringLock.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer releaseRing()

	if l.closed {
		return nil, errors.ErrLogClosed
	}
	l.closed = true

	if len(l.pending) > 0 {
		l.logger.Warn("discarding unterminated bytes on close", "bytes", len(l.pending))
	}
	l.pending = nil
	l.metrics.SetPendingBytes(0)

	records := l.ring.Drain()
	l.metrics.SetRingState(0, 0)
	return records, nil
}
