// Package ingest appends payloads consumed from Kafka to the record log.
//
// Each payload is validated, framed as one record and appended. Payloads that
// can never be appended go to the dead letter queue and are committed so the
// partition keeps moving. Payloads that could not be appended because the
// processor is stopping are left uncommitted and will be redelivered.
package ingest

import (
	"context"
	"log/slog"

	"github.com/jittakal/ringlog/internal/errors"
	"github.com/jittakal/ringlog/pkg/buffer"
	"github.com/jittakal/ringlog/pkg/consumer"
	"github.com/jittakal/ringlog/pkg/record"
)

// Validator checks and normalizes an inbound payload in place.
type Validator interface {
	Validate(in *record.Inbound) error
}

// MetricsCollector defines metrics operations for the ingest loop.
type MetricsCollector interface {
	IncMessagesIngested(topic string, partition int32, status string)
	IncDLQPublished(topic string, status string)
}

type noopMetrics struct{}

func (noopMetrics) IncMessagesIngested(string, int32, string) {}
func (noopMetrics) IncDLQPublished(string, string)            {}

// Processor moves payloads from a consumer into the log.
type Processor struct {
	consumer  consumer.Consumer
	dlq       consumer.DLQPublisher
	log       buffer.Appender
	validator Validator
	logger    *slog.Logger
	metrics   MetricsCollector
}

// NewProcessor creates a processor. dlq may be nil, in which case rejected
// payloads are only logged.
func NewProcessor(
	c consumer.Consumer,
	dlq consumer.DLQPublisher,
	log buffer.Appender,
	validator Validator,
	logger *slog.Logger,
	metrics MetricsCollector,
) *Processor {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Processor{
		consumer:  c,
		dlq:       dlq,
		log:       log,
		validator: validator,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run consumes the subscribed topics until ctx is cancelled or the consumer
// stops. Errors reported by the consumer are logged and do not stop the loop.
func (p *Processor) Run(ctx context.Context) error {
	inbound, errs, err := p.consumer.Consume(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("context cancelled, stopping ingest")
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Error("consumer error", "error", err)

		case in, ok := <-inbound:
			if !ok {
				p.logger.Info("inbound channel closed")
				return nil
			}
			if err := p.Process(ctx, in); err != nil {
				if ctx.Err() != nil || errors.Is(err, errors.ErrLogClosed) {
					p.logger.Info("stopping ingest", "error", err)
					return nil
				}
				p.logger.Error("failed to process payload", "error", err)
			}
		}
	}
}

// Process appends one payload and commits it. The returned error is an
// *errors.IngestError. Rejected payloads are committed; a failed append is not.
func (p *Processor) Process(ctx context.Context, in *record.Inbound) error {
	if err := p.validator.Validate(in); err != nil {
		p.logger.Warn("invalid payload",
			"topic", in.Topic,
			"partition", in.Partition,
			"offset", in.Offset,
			"error", err,
		)
		p.metrics.IncMessagesIngested(in.Topic, in.Partition, "invalid")
		p.reject(ctx, in, "validation_failed: "+err.Error())
		return p.commit(ctx, in)
	}

	if _, err := p.log.AppendRecord(ctx, in.Value); err != nil {
		if errors.Is(err, errors.ErrAllocation) {
			p.metrics.IncMessagesIngested(in.Topic, in.Partition, "too_large")
			p.reject(ctx, in, "record_too_large: "+err.Error())
			return p.commit(ctx, in)
		}
		p.metrics.IncMessagesIngested(in.Topic, in.Partition, "failed")
		return &errors.IngestError{Topic: in.Topic, Partition: in.Partition, Offset: in.Offset, Err: err}
	}

	p.metrics.IncMessagesIngested(in.Topic, in.Partition, "appended")
	return p.commit(ctx, in)
}

func (p *Processor) reject(ctx context.Context, in *record.Inbound, reason string) {
	if p.dlq == nil {
		return
	}
	if err := p.dlq.Publish(ctx, in, reason); err != nil {
		p.metrics.IncDLQPublished(in.Topic, "failure")
		p.logger.Error("failed to publish to DLQ",
			"topic", in.Topic,
			"partition", in.Partition,
			"offset", in.Offset,
			"error", err,
		)
		return
	}
	p.metrics.IncDLQPublished(in.Topic, "success")
}

func (p *Processor) commit(ctx context.Context, in *record.Inbound) error {
	if err := p.consumer.Commit(ctx, in); err != nil {
		return &errors.IngestError{Topic: in.Topic, Partition: in.Partition, Offset: in.Offset, Err: err}
	}
	return nil
}
