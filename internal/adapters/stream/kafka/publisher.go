package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"matchwire/internal/adapters/stream"
	"matchwire/pkg/metrics"
)

// Publisher appends events to a Kafka topic keyed by match id.
type Publisher struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
}

// PublisherOption applies a configuration option to the Publisher.
type PublisherOption func(*Publisher)

// WithPublisherBrokers sets the broker addresses.
func WithPublisherBrokers(brokers []string) PublisherOption {
	return func(p *Publisher) {
		if len(brokers) > 0 {
			p.brokers = brokers
		}
	}
}

// WithPublisherTopic sets the destination topic.
func WithPublisherTopic(topic string) PublisherOption {
	return func(p *Publisher) {
		if topic != "" {
			p.topic = topic
		}
	}
}

// NewPublisher creates a Kafka publisher. Keys are hashed to partitions so
// records with the same key preserve publish order, and missing topics are
// created on first write.
func NewPublisher(opts ...PublisherOption) *Publisher {
	p := &Publisher{
		brokers: []string{"localhost:9092"},
		topic:   "match-events",
	}

	// Apply all options
	for _, opt := range opts {
		opt(p)
	}

	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  p.topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            defaultMaxAttempts,
		ReadTimeout:            defaultReadTimeout,
		WriteTimeout:           defaultWriteTimeout,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return p
}

// Publish appends one record.
func (p *Publisher) Publish(ctx context.Context, key string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		metrics.RecordErrorByComponent("stream", "publish")
		return fmt.Errorf("%w: %w", stream.ErrPublishFailed, err)
	}
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
