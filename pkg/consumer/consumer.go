// Package consumer defines interfaces for consuming records from Kafka.
//
// This package provides abstractions for reading raw payloads from Kafka
// and routing the ones that cannot be appended to a dead letter queue.
package consumer

import (
	"context"

	"github.com/jittakal/ringlog/pkg/record"
)

// Consumer reads payloads from Kafka topics.
type Consumer interface {
	// Subscribe sets the topics consumed by the next call to Consume.
	Subscribe(ctx context.Context, topics []string) error

	// Consume starts consuming messages from subscribed topics.
	// Returns channels for inbound payloads and errors.
	Consume(ctx context.Context) (<-chan *record.Inbound, <-chan error, error)

	// Commit marks the payload as processed and commits its offset.
	Commit(ctx context.Context, in *record.Inbound) error

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes payloads that could not be appended to a dead letter queue.
type DLQPublisher interface {
	// Publish sends the payload to the DLQ with the failure reason.
	Publish(ctx context.Context, in *record.Inbound, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
