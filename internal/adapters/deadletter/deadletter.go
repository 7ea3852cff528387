// Package deadletter routes records the indexer has given up on to a side
// channel where operators can inspect and replay them.
package deadletter

import "context"

// Entry is one failed record together with where it came from and why it
// failed. Payload carries the original bytes untouched so a replay tool can
// feed them back through the pipeline.
type Entry struct {
	Key       string
	Payload   []byte
	Partition int
	Offset    int64
	Reason    string
}

// Sink accepts entries the pipeline could not process.
type Sink interface {
	// Push hands one entry to the sink.
	Push(ctx context.Context, e Entry) error
	// Close releases the sink.
	Close() error
}
