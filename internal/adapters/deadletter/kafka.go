package deadletter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"matchwire/pkg/metrics"
)

const (
	defaultTopic        = "match-events-dlq"
	defaultMaxAttempts  = 5
	defaultWriteTimeout = 10 * time.Second
)

// KafkaSink publishes failed records to a dead letter topic. The original
// payload travels as the message value; provenance and the failure reason
// travel as headers so replays see the exact bytes the indexer saw.
type KafkaSink struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
}

// KafkaSinkOption applies a configuration option to the KafkaSink.
type KafkaSinkOption func(*KafkaSink)

// WithSinkBrokers sets the broker addresses.
func WithSinkBrokers(brokers []string) KafkaSinkOption {
	return func(s *KafkaSink) {
		if len(brokers) > 0 {
			s.brokers = brokers
		}
	}
}

// WithSinkTopic sets the dead letter topic.
func WithSinkTopic(topic string) KafkaSinkOption {
	return func(s *KafkaSink) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// NewKafkaSink creates a Kafka-backed dead letter sink.
func NewKafkaSink(opts ...KafkaSinkOption) *KafkaSink {
	s := &KafkaSink{
		brokers: []string{"localhost:9092"},
		topic:   defaultTopic,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	s.writer = &kafka.Writer{
		Addr:                   kafka.TCP(s.brokers...),
		Topic:                  s.topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            defaultMaxAttempts,
		WriteTimeout:           defaultWriteTimeout,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return s
}

// Push publishes one entry to the dead letter topic.
func (s *KafkaSink) Push(ctx context.Context, e Entry) error {
	msg := kafka.Message{
		Key:   []byte(e.Key),
		Value: e.Payload,
		Headers: []kafka.Header{
			{Key: "reason", Value: []byte(e.Reason)},
			{Key: "source-partition", Value: []byte(strconv.Itoa(e.Partition))},
			{Key: "source-offset", Value: []byte(strconv.FormatInt(e.Offset, 10))},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordErrorByComponent("deadletter", "push")
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	return nil
}

// Close flushes pending writes and releases the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
