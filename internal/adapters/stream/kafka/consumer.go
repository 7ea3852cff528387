package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"matchwire/internal/adapters/stream"
	"matchwire/pkg/metrics"
)

// Consumer reads record batches as one member of a consumer group.
//
// Workers that need disjoint partitions each get their own Consumer in the
// same group; Kafka's group protocol spreads partitions across them.
type Consumer struct {
	reader   *kafka.Reader
	brokers  []string
	topic    string
	groupID  string
	maxBatch int
	maxWait  time.Duration
}

// ConsumerOption applies a configuration option to the Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerBrokers sets the broker addresses.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *Consumer) {
		if len(brokers) > 0 {
			c.brokers = brokers
		}
	}
}

// WithConsumerTopic sets the source topic.
func WithConsumerTopic(topic string) ConsumerOption {
	return func(c *Consumer) {
		if topic != "" {
			c.topic = topic
		}
	}
}

// WithConsumerGroup sets the consumer group id.
func WithConsumerGroup(groupID string) ConsumerOption {
	return func(c *Consumer) {
		if groupID != "" {
			c.groupID = groupID
		}
	}
}

// WithMaxBatchSize caps the number of records per Poll.
func WithMaxBatchSize(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.maxBatch = n
		}
	}
}

// WithMaxWaitWindow bounds how long Poll keeps filling a batch after the
// first record arrived.
func WithMaxWaitWindow(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.maxWait = d
		}
	}
}

// NewConsumer creates a Kafka group consumer.
func NewConsumer(opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		brokers:  []string{"localhost:9092"},
		topic:    "match-events",
		groupID:  "matchwire-indexer",
		maxBatch: defaultMaxBatchSize,
		maxWait:  defaultWaitWindow,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: false, // Force IPv4
	}

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		Topic:       c.topic,
		GroupID:     c.groupID,
		MinBytes:    defaultMinBytes,
		MaxBytes:    defaultMaxBytes,
		MaxWait:     c.maxWait,
		Dialer:      dialer,
		StartOffset: kafka.FirstOffset,
	})

	return c
}

// Poll blocks for the first record, then keeps fetching until the batch is
// full or the wait window elapses. A partial batch is returned rather than
// held back.
func (c *Consumer) Poll(ctx context.Context) ([]stream.Record, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", stream.ErrPollFailed, err)
	}

	observeLag(first)
	recs := []stream.Record{toRecord(first)}
	if c.maxBatch == 1 {
		return recs, nil
	}

	window, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()

	for len(recs) < c.maxBatch {
		msg, err := c.reader.FetchMessage(window)
		if err != nil {
			// Window elapsed or caller cancelled; hand over what we have.
			break
		}
		observeLag(msg)
		recs = append(recs, toRecord(msg))
	}
	return recs, nil
}

// Commit acknowledges the given records with the group coordinator.
func (c *Consumer) Commit(ctx context.Context, recs ...stream.Record) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(recs))
	for i, r := range recs {
		msgs[i] = kafka.Message{
			Topic:     c.topic,
			Partition: r.Partition,
			Offset:    r.Offset,
		}
	}
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		metrics.RecordErrorByComponent("stream", "commit")
		return fmt.Errorf("%w: %w", stream.ErrCommitFailed, err)
	}
	return nil
}

// Close leaves the group and releases the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func toRecord(m kafka.Message) stream.Record {
	return stream.Record{
		Key:       m.Key,
		Value:     m.Value,
		Partition: m.Partition,
		Offset:    m.Offset,
	}
}

// observeLag gauges how far this member trails the partition head, using
// the high water mark stamped on the fetched message.
func observeLag(m kafka.Message) {
	lag := m.HighWaterMark - m.Offset - 1
	if lag < 0 {
		lag = 0
	}
	metrics.UpdateConsumerLag(strconv.Itoa(m.Partition), float64(lag))
}
