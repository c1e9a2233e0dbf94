package buffer

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jittakal/ringlog/internal/errors"
)

const (
	lockAccumulation = "accumulation"
	lockRing         = "ring"
)

// lock is a mutex whose acquisition can be abandoned through a context.
type lock struct {
	name    string
	sem     *semaphore.Weighted
	metrics MetricsCollector
}

func newLock(name string, metrics MetricsCollector) *lock {
	return &lock{
		name:    name,
		sem:     semaphore.NewWeighted(1),
		metrics: metrics,
	}
}

// acquire blocks until the lock is held or ctx is done. On success the
// returned function releases the lock and must be called exactly once.
func (l *lock) acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	if err := l.sem.Acquire(ctx, 1); err != nil {
		l.metrics.IncErrors("lock_"+l.name, errors.Kind(errors.ErrInterrupted))
		return nil, &errors.InterruptedError{Lock: l.name, Err: err}
	}
	l.metrics.ObserveLockWait(l.name, time.Since(start))
	return func() { l.sem.Release(1) }, nil
}
