// Package memlog implements the stream contract on an in-memory partitioned
// log. It exists for tests and single-process runs: publish order per key,
// consumer groups, commit cursors, and redelivery of uncommitted records all
// behave like the Kafka adapter, without a broker.
package memlog

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"matchwire/internal/adapters/stream"
	"matchwire/pkg/metrics"
)

// Default log configuration constants.
const (
	defaultPartitions   = 4
	defaultMaxBatchSize = 100
)

type entry struct {
	key   []byte
	value []byte
}

// group tracks one consumer group's position on every partition.
//
// committed is the offset the group would resume from after a rebalance or
// restart; fetched is the next offset handed to a live member. A rebalance
// rewinds fetched to committed, which is what redelivers uncommitted records.
type group struct {
	members   []*Consumer
	committed []int64
	fetched   []int64
}

// Log is an in-memory partitioned log. Safe for concurrent use.
type Log struct {
	mu         sync.Mutex
	partitions [][]entry
	groups     map[string]*group
	notify     chan struct{}
	closed     bool
}

// Option applies a configuration option to the Log.
type Option func(*Log)

// WithPartitions sets the partition count.
func WithPartitions(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.partitions = make([][]entry, n)
		}
	}
}

// New creates an in-memory log.
func New(opts ...Option) *Log {
	l := &Log{
		partitions: make([][]entry, defaultPartitions),
		groups:     make(map[string]*group),
		notify:     make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Publish appends one record to the partition its key hashes to.
func (l *Log) Publish(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return stream.ErrClosed
	}

	p := l.partitionFor(key)
	l.partitions[p] = append(l.partitions[p], entry{key: []byte(key), value: value})
	l.broadcast()
	return nil
}

// Close stops the log. Consumers may drain what was already published;
// further publishes fail with ErrClosed.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil // already closed
	}
	l.closed = true
	l.broadcast()
	return nil
}

// Published reports the total number of records appended across partitions.
func (l *Log) Published() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, p := range l.partitions {
		total += len(p)
	}
	return total
}

// GroupLag reports how many records a group has left to commit.
func (l *Log) GroupLag(groupID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[groupID]
	if !ok {
		var lag int64
		for _, p := range l.partitions {
			lag += int64(len(p))
		}
		return lag
	}
	var lag int64
	for p := range l.partitions {
		lag += int64(len(l.partitions[p])) - g.committed[p]
	}
	return lag
}

func (l *Log) partitionFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(l.partitions)))
}

// broadcast wakes every waiting consumer. Callers must hold l.mu.
func (l *Log) broadcast() {
	close(l.notify)
	l.notify = make(chan struct{})
}

// ensureGroup returns the named group, creating it at offset zero.
// Callers must hold l.mu.
func (l *Log) ensureGroup(groupID string) *group {
	g, ok := l.groups[groupID]
	if !ok {
		g = &group{
			committed: make([]int64, len(l.partitions)),
			fetched:   make([]int64, len(l.partitions)),
		}
		l.groups[groupID] = g
	}
	return g
}

// rebalance rewinds the group's fetch cursors to its commit cursors, so
// uncommitted records are handed out again under the new assignment.
// Callers must hold l.mu.
func (g *group) rebalance() {
	copy(g.fetched, g.committed)
}

// memberIndex reports c's position in the group, or -1.
func (g *group) memberIndex(c *Consumer) int {
	for i, m := range g.members {
		if m == c {
			return i
		}
	}
	return -1
}

// Consumer is one member of a consumer group.
type Consumer struct {
	log      *Log
	groupID  string
	maxBatch int

	mu     sync.Mutex
	closed bool
}

// ConsumerOption applies a configuration option to the Consumer.
type ConsumerOption func(*Consumer)

// WithMaxBatchSize caps the number of records per Poll.
func WithMaxBatchSize(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.maxBatch = n
		}
	}
}

// NewConsumer joins the named group. Partitions are spread across the
// group's live members; joining or leaving triggers a rebalance.
func (l *Log) NewConsumer(groupID string, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		log:      l,
		groupID:  groupID,
		maxBatch: defaultMaxBatchSize,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	g := l.ensureGroup(groupID)
	g.members = append(g.members, c)
	g.rebalance()
	l.broadcast()
	return c
}

// Poll blocks until at least one record is assigned to this member, then
// returns up to the batch size. Appends are atomic here, so everything
// available is returned at once and no extra wait window applies.
func (c *Consumer) Poll(ctx context.Context) ([]stream.Record, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, stream.ErrClosed
		}
		c.mu.Unlock()

		recs, wait, err := c.take()
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			return recs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// take collects available records from this member's partitions. When none
// are available it returns the channel to wait on.
func (c *Consumer) take() ([]stream.Record, <-chan struct{}, error) {
	c.log.mu.Lock()
	defer c.log.mu.Unlock()

	g := c.log.groups[c.groupID]
	if g == nil {
		return nil, nil, stream.ErrClosed
	}
	idx := g.memberIndex(c)
	if idx < 0 {
		return nil, nil, stream.ErrClosed
	}

	var recs []stream.Record
	for p := range c.log.partitions {
		if p%len(g.members) != idx {
			continue
		}
		for g.fetched[p] < int64(len(c.log.partitions[p])) && len(recs) < c.maxBatch {
			off := g.fetched[p]
			e := c.log.partitions[p][off]
			recs = append(recs, stream.Record{
				Key:       e.key,
				Value:     e.value,
				Partition: p,
				Offset:    off,
			})
			g.fetched[p]++
		}
		if len(recs) >= c.maxBatch {
			break
		}
	}

	if len(recs) == 0 && c.log.closed {
		return nil, nil, stream.ErrClosed
	}
	return recs, c.log.notify, nil
}

// Commit advances the group's commit cursor past the given records. Commits
// are idempotent and never move a cursor backwards.
func (c *Consumer) Commit(_ context.Context, recs ...stream.Record) error {
	if len(recs) == 0 {
		return nil
	}

	c.log.mu.Lock()
	defer c.log.mu.Unlock()

	g := c.log.ensureGroup(c.groupID)
	for _, r := range recs {
		if r.Partition < 0 || r.Partition >= len(g.committed) {
			return stream.ErrCommitFailed
		}
		if next := r.Offset + 1; next > g.committed[r.Partition] {
			g.committed[r.Partition] = next
		}
		// keep the fetch cursor ahead of the commit cursor
		if g.committed[r.Partition] > g.fetched[r.Partition] {
			g.fetched[r.Partition] = g.committed[r.Partition]
		}
		lag := int64(len(c.log.partitions[r.Partition])) - g.committed[r.Partition]
		metrics.UpdateConsumerLag(strconv.Itoa(r.Partition), float64(lag))
	}
	return nil
}

// Close leaves the group. Records this member fetched but never committed
// go back to the pool for the remaining members.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil // already closed
	}
	c.closed = true
	c.mu.Unlock()

	c.log.mu.Lock()
	defer c.log.mu.Unlock()

	g, ok := c.log.groups[c.groupID]
	if !ok {
		return nil
	}
	if idx := g.memberIndex(c); idx >= 0 {
		g.members = append(g.members[:idx], g.members[idx+1:]...)
		g.rebalance()
		c.log.broadcast()
	}
	return nil
}
