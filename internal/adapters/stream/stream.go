// Package stream defines the contract for publishing and consuming match
// events over a partitioned log.
//
// Events published with the same key land on the same partition and are
// delivered in publish order. Consumers belong to a group; each partition is
// read by one group member at a time, and records are redelivered after a
// restart unless committed. Implementations: the kafka subpackage for
// production, the memlog subpackage for tests and single-process runs.
package stream

import (
	"context"
)

// Record is one consumed log entry: the payload plus enough position
// information to commit it or describe it in a dead letter.
type Record struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
}

// Publisher appends events to the log.
type Publisher interface {
	// Publish appends one event keyed by match id. The key determines the
	// partition, so events of one match stay in publish order.
	Publish(ctx context.Context, key string, value []byte) error

	// Close flushes and releases the publisher.
	Close() error
}

// Consumer polls record batches on behalf of one consumer group member.
type Consumer interface {
	// Poll blocks until at least one record is available or ctx is done,
	// then returns up to the configured batch size without waiting longer
	// than the configured window.
	Poll(ctx context.Context) ([]Record, error)

	// Commit acknowledges records. A committed record is not redelivered to
	// the group; commits are idempotent and never move a cursor backwards.
	Commit(ctx context.Context, recs ...Record) error

	// Close leaves the group and releases the consumer.
	Close() error
}
