// Package kafka adapts the stream contract to Apache Kafka via
// segmentio/kafka-go. The publisher hashes the record key to a partition, so
// one match id always lands on one partition; consumers join a consumer
// group and commit offsets only after the batch has been processed.
package kafka

import (
	"time"
)

// Default client configuration constants.
const (
	defaultMaxAttempts  = 5
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultMaxBatchSize = 100
	defaultWaitWindow   = time.Second
	defaultMinBytes     = 1
	defaultMaxBytes     = 10e6
)
