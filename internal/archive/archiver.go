// Package archive batches records evicted from the log and writes each batch
// to object storage once the rotation policy says so.
package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jittakal/ringlog/internal/buffer"
	"github.com/jittakal/ringlog/internal/errors"
	"github.com/jittakal/ringlog/pkg/record"
	"github.com/jittakal/ringlog/pkg/storage"
)

// Config contains archiver configuration.
type Config struct {
	// Name is the archive's path segment, see storage.Router.
	Name   string
	Format record.FileFormat
	// QueueSize bounds the evictions waiting for the archiver goroutine.
	QueueSize int
	// FlushInterval is how often an idle batch is checked against the policy.
	FlushInterval time.Duration
	// MaxBatchBytes and MaxBatchRecords force a flush before the policy would.
	MaxBatchBytes   int64
	MaxBatchRecords int
}

// MetricsCollector defines metrics operations for the archiver.
type MetricsCollector interface {
	SetBatchState(records int, sizeBytes int64)
	IncRecordsDropped()
}

type noopMetrics struct{}

func (noopMetrics) SetBatchState(int, int64) {}
func (noopMetrics) IncRecordsDropped()       {}

// Archiver owns one eviction batch. Offer feeds it from any goroutine; Run
// drains the queue and writes batches; Close flushes what is left.
type Archiver struct {
	writer  storage.Writer
	router  storage.Router
	policy  storage.RotationPolicy
	config  Config
	batch   *buffer.EvictionBatch
	logger  *slog.Logger
	metrics MetricsCollector

	mu     sync.RWMutex
	closed bool
	queue  chan record.Eviction
	done   chan struct{}
}

// New creates an archiver. Run must be started before evictions are offered.
func New(
	writer storage.Writer,
	router storage.Router,
	policy storage.RotationPolicy,
	config Config,
	logger *slog.Logger,
	metrics MetricsCollector,
) *Archiver {
	if config.QueueSize < 1 {
		config.QueueSize = 1024
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.Name == "" {
		config.Name = "records"
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Archiver{
		writer:  writer,
		router:  router,
		policy:  policy,
		config:  config,
		batch:   buffer.NewBatch(config.Name, config.MaxBatchBytes, config.MaxBatchRecords),
		logger:  logger,
		metrics: metrics,
		queue:   make(chan record.Eviction, config.QueueSize),
		done:    make(chan struct{}),
	}
}

// Offer queues an eviction without blocking. It reports false, and counts a
// dropped record, when the queue is full or the archiver is closed. Offer
// fits buffer.Config.OnEvict.
func (a *Archiver) Offer(ev record.Eviction) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(ev, "archiver closed")
		return false
	}

	select {
	case a.queue <- ev:
		return true
	default:
		a.drop(ev, "archive queue full")
		return false
	}
}

// OnEvict adapts Offer to buffer.Config.OnEvict.
func (a *Archiver) OnEvict(ev record.Eviction) {
	a.Offer(ev)
}

func (a *Archiver) drop(ev record.Eviction, reason string) {
	a.metrics.IncRecordsDropped()
	a.logger.Warn("dropping evicted record", "seq", ev.Record.Seq, "reason", reason)
}

// Run processes the queue until Close, flushing whenever the policy or the
// batch limits require it. ctx bounds storage writes.
func (a *Archiver) Run(ctx context.Context) error {
	defer close(a.done)

	ticker := time.NewTicker(a.config.FlushInterval)
	defer ticker.Stop()

	a.logger.Info("archiver started", "name", a.config.Name, "format", a.config.Format)

	for {
		select {
		case ev, ok := <-a.queue:
			if !ok {
				err := a.flush(ctx)
				a.logger.Info("archiver stopped")
				return err
			}
			a.add(ctx, ev)

		case <-ticker.C:
			if a.policy.ShouldRotate(a.batch.Stats()) {
				_ = a.flush(ctx)
			}

		case <-ctx.Done():
			if stats := a.batch.Stats(); stats.RecordCount > 0 {
				a.logger.Warn("archiver cancelled with unwritten records", "records", stats.RecordCount)
			}
			return ctx.Err()
		}
	}
}

func (a *Archiver) add(ctx context.Context, ev record.Eviction) {
	if err := a.batch.Add(ev); err != nil {
		if !errors.Is(err, errors.ErrBatchFull) {
			a.drop(ev, err.Error())
			return
		}
		_ = a.flush(ctx)
		if err := a.batch.Add(ev); err != nil {
			a.drop(ev, err.Error())
			return
		}
	}

	stats := a.batch.Stats()
	a.metrics.SetBatchState(stats.RecordCount, stats.SizeBytes)

	if a.policy.ShouldRotate(stats) {
		_ = a.flush(ctx)
	}
}

// flush writes the current batch. A failed batch is logged and discarded.
func (a *Archiver) flush(ctx context.Context) error {
	evictions := a.batch.Drain()
	a.metrics.SetBatchState(0, 0)
	if len(evictions) == 0 {
		return nil
	}

	path := a.router.Route(a.config.Name, evictions[0].EvictedAt.Unix())
	n, err := a.writer.Write(ctx, evictions, path, a.config.Format)
	if err != nil {
		a.logger.Error("failed to archive batch",
			"path", path,
			"records", len(evictions),
			"first_seq", evictions[0].Record.Seq,
			"error", err,
		)
		return &errors.StorageError{Operation: "write", Path: path, Err: err}
	}

	a.logger.Info("archived batch",
		"path", path,
		"records", len(evictions),
		"bytes", n,
	)
	return nil
}

// Close stops accepting evictions, queues the records drained from the log at
// teardown, and waits for Run to write the final batch or for ctx to expire.
func (a *Archiver) Close(ctx context.Context, drained []record.Record) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true

	now := time.Now()
	for i, rec := range drained {
		select {
		case a.queue <- record.Eviction{Record: rec, Reason: record.ReasonTeardown, EvictedAt: now}:
		case <-ctx.Done():
			for range drained[i:] {
				a.metrics.IncRecordsDropped()
			}
			a.logger.Warn("dropping teardown records", "records", len(drained)-i, "error", ctx.Err())
			close(a.queue)
			a.mu.Unlock()
			return ctx.Err()
		}
	}
	close(a.queue)
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
