package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/jittakal/ringlog/pkg/record"
)

func testInbound() *record.Inbound {
	return &record.Inbound{
		Topic:     "lines",
		Partition: 2,
		Offset:    17,
		Key:       []byte("host-a"),
		Value:     []byte("no terminator"),
	}
}

func headerValue(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestDLQPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	failedAt := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "lines-dlq" {
			return fmt.Errorf("topic = %s, want lines-dlq", msg.Topic)
		}
		if got := headerValue(msg, "failure_reason"); got != "validation failed" {
			return fmt.Errorf("failure_reason header = %q", got)
		}
		if got := headerValue(msg, "processor_id"); got != "ringlog-1" {
			return fmt.Errorf("processor_id header = %q", got)
		}

		key, err := msg.Key.Encode()
		if err != nil || string(key) != "host-a" {
			return fmt.Errorf("key = %q, %v", key, err)
		}

		body, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var dlq DLQMessage
		if err := json.Unmarshal(body, &dlq); err != nil {
			return err
		}
		if string(dlq.OriginalValue) != "no terminator" {
			return fmt.Errorf("original value = %q", dlq.OriginalValue)
		}
		if dlq.OriginalPartition != 2 || dlq.OriginalOffset != 17 || dlq.OriginalTopic != "lines" {
			return fmt.Errorf("origin = %s/%d/%d", dlq.OriginalTopic, dlq.OriginalPartition, dlq.OriginalOffset)
		}
		if !dlq.FailureTimestamp.Equal(failedAt) {
			return fmt.Errorf("failure timestamp = %v", dlq.FailureTimestamp)
		}
		return nil
	})

	p := newDLQPublisher(producer, DLQConfig{Enabled: true, TopicSuffix: "-dlq"}, testLogger(), "ringlog-1")
	p.now = func() time.Time { return failedAt }

	if err := p.Publish(context.Background(), testInbound(), "validation failed"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestDLQPublisher_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	p := newDLQPublisher(producer, DLQConfig{Enabled: true, TopicSuffix: "-dlq"}, testLogger(), "ringlog-1")
	defer p.Close()

	err := p.Publish(context.Background(), testInbound(), "bad")
	if !errors.Is(err, sarama.ErrNotLeaderForPartition) {
		t.Errorf("Publish() error = %v, want ErrNotLeaderForPartition", err)
	}
}

func TestDLQPublisher_Disabled(t *testing.T) {
	p, err := NewDLQPublisher(ConsumerConfig{}, DLQConfig{Enabled: false}, testLogger(), "ringlog-1")
	if err != nil {
		t.Fatalf("NewDLQPublisher() error = %v", err)
	}
	if err := p.Publish(context.Background(), testInbound(), "ignored"); err != nil {
		t.Errorf("Publish() on disabled DLQ error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := p.Publish(context.Background(), testInbound(), "late"); err == nil {
		t.Error("Publish() after Close should fail")
	}
}

func TestDLQPublisher_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newDLQPublisher(producer, DLQConfig{Enabled: true, TopicSuffix: "-dlq"}, testLogger(), "ringlog-1")
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, testInbound(), "bad"); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() error = %v, want context.Canceled", err)
	}
}

func TestDLQConfig_TopicFor(t *testing.T) {
	c := DLQConfig{TopicSuffix: ".dead"}
	if got := c.TopicFor("lines"); got != "lines.dead" {
		t.Errorf("TopicFor() = %s, want lines.dead", got)
	}
}
