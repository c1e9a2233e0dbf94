package socket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jittakal/ringlog/internal/errors"
	"github.com/jittakal/ringlog/pkg/buffer"
)

// Timestamp layouts selectable by name.
var timestampLayouts = map[string]string{
	"rfc2822": time.RFC1123Z,
	"rfc3339": time.RFC3339,
}

// TimestampConfig configures the timestamp injector.
type TimestampConfig struct {
	Interval    time.Duration
	Format      string
	LockTimeout time.Duration
	MaxRetries  int
}

// TimestampInjector periodically appends a "timestamp:<time>" record.
type TimestampInjector struct {
	log     buffer.Appender
	config  TimestampConfig
	layout  string
	logger  *slog.Logger
	metrics MetricsCollector
	now     func() time.Time
}

// NewTimestampInjector creates an injector. An unknown format is an error.
func NewTimestampInjector(log buffer.Appender, config TimestampConfig, logger *slog.Logger, metrics MetricsCollector) (*TimestampInjector, error) {
	if config.Format == "" {
		config.Format = "rfc2822"
	}
	layout, ok := timestampLayouts[config.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported timestamp format: %s", config.Format)
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("invalid timestamp interval: %v", config.Interval)
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &TimestampInjector{
		log:     log,
		config:  config,
		layout:  layout,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// Run appends a timestamp every interval until ctx is cancelled. A tick that
// cannot take the lock is skipped; the next tick tries again.
func (t *TimestampInjector) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	t.logger.Info("timestamp injector started", "interval", t.config.Interval, "format", t.config.Format)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("timestamp injector stopped")
			return nil
		case <-ticker.C:
			if err := t.Inject(ctx); err != nil && ctx.Err() == nil {
				t.logger.Warn("failed to append timestamp", "error", err)
				if errors.Is(err, errors.ErrLogClosed) {
					return err
				}
			}
		}
	}
}

// Inject appends one timestamp record. Each attempt waits at most
// LockTimeout for the ring lock; only interrupted attempts are retried.
func (t *TimestampInjector) Inject(ctx context.Context) error {
	line := []byte("timestamp:" + t.now().Format(t.layout) + "\n")

	var err error
	for attempt := 1; attempt <= t.config.MaxRetries; attempt++ {
		err = t.append(ctx, line)
		if err == nil {
			t.metrics.IncTimestampsInjected("success")
			return nil
		}
		if !errors.Is(err, errors.ErrInterrupted) || ctx.Err() != nil {
			break
		}
		t.logger.Debug("timestamp append timed out", "attempt", attempt, "max_retries", t.config.MaxRetries)
	}

	t.metrics.IncTimestampsInjected("failure")
	return err
}

func (t *TimestampInjector) append(ctx context.Context, line []byte) error {
	if t.config.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.LockTimeout)
		defer cancel()
	}
	_, err := t.log.AppendRecord(ctx, line)
	return err
}
