// Package memstore provides a treap-backed, in-memory store implementation.
package memstore

import (
	"context"
	"math/rand"
	"sync"

	"matchwire/internal/adapters/store"
	"matchwire/internal/domain/event"
	"matchwire/internal/domain/index"
	"matchwire/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Each match carries two treaps keyed by the sort keys the durable drivers
// index on: the time keyspace (timestamp) and the type keyspace
// (event_type#timestamp). Keys are RFC3339 UTC strings, so lexicographic
// node order is chronological order and an in-order traversal between two
// bounds yields a timeline page.

// treap node
type node struct {
	key   string
	rec   event.Record
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// insert adds or replaces the record at key. Random priorities keep the tree
// balanced in expectation regardless of insertion order.
func insert(n *node, key string, rec event.Record) *node {
	if n == nil {
		return &node{key: key, rec: rec, prio: rand.Uint64(), size: 1}
	}
	switch {
	case key == n.key:
		n.rec = rec
	case key < n.key:
		n.left = insert(n.left, key, rec)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	default:
		n.right = insert(n.right, key, rec)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, key string) *node {
	if n == nil {
		return nil
	}
	switch {
	case key == n.key:
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, key)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, key)
		}
	case key < n.key:
		n.left = remove(n.left, key)
	default:
		n.right = remove(n.right, key)
	}
	fix(n)
	return n
}

func lookup(n *node, key string) (event.Record, bool) {
	for n != nil {
		switch {
		case key == n.key:
			return n.rec, true
		case key < n.key:
			n = n.left
		default:
			n = n.right
		}
	}
	return event.Record{}, false
}

// collectRange appends records whose keys fall in (lo, hi) in ascending key
// order, stopping once limit records have been taken. The lower bound is
// exclusive, matching the cursor semantics of the durable drivers. hi == ""
// means no upper bound, limit <= 0 means no cap.
func collectRange(n *node, lo, hi string, limit int, out *[]event.Record) {
	if n == nil || (limit > 0 && len(*out) >= limit) {
		return
	}
	if n.key > lo {
		collectRange(n.left, lo, hi, limit, out)
	}
	if n.key > lo && (hi == "" || n.key < hi) && (limit <= 0 || len(*out) < limit) {
		*out = append(*out, n.rec)
	}
	if hi == "" || n.key < hi {
		collectRange(n.right, lo, hi, limit, out)
	}
}

// matchIndex holds both keyspaces for one match.
type matchIndex struct {
	byTime *node
	byType *node
}

// Store is an in-memory event index with the same upsert and range-scan
// semantics as the durable drivers. It backs the "memory" store driver and
// the pipeline tests.
type Store struct {
	mu      sync.RWMutex
	matches map[string]*matchIndex
	rows    int
	closed  bool
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{matches: make(map[string]*matchIndex)}
}

// Upsert implements Store.Upsert with O(log n) expected time per keyspace.
// When the row at (match id, timestamp) already exists under a different
// event type, its stale type-keyspace entry is removed so the old type's
// timeline no longer reports it.
func (s *Store) Upsert(ctx context.Context, rec event.Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	keys := index.Derive(rec.EventType, rec.Timestamp)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, store.ErrStoreClosed
	}
	m := s.matches[rec.MatchID]
	if m == nil {
		m = &matchIndex{}
		s.matches[rec.MatchID] = m
	}
	created := true
	if prev, ok := lookup(m.byTime, keys.ByTime); ok {
		created = false
		if prevType := index.Derive(prev.EventType, prev.Timestamp).ByType; prevType != keys.ByType {
			m.byType = remove(m.byType, prevType)
		}
	}
	m.byTime = insert(m.byTime, keys.ByTime, rec)
	m.byType = insert(m.byType, keys.ByType, rec)
	if created {
		s.rows++
	}
	total := s.rows
	s.mu.Unlock()

	// Update metrics outside lock
	if created {
		metrics.UpdateStoreRecordsTotal(total)
	}
	return created, nil
}

// MatchTimeline implements Store.MatchTimeline.
func (s *Store) MatchTimeline(ctx context.Context, matchID string, opts ...store.QueryOption) (store.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := store.BuildQueryConfig(opts)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrStoreClosed
	}

	var out []event.Record
	if m := s.matches[matchID]; m != nil {
		collectRange(m.byTime, cfg.StartAfter, "", cfg.Limit, &out)
	}
	return store.NewSliceIterator(out), nil
}

// TypeTimeline implements Store.TypeTimeline.
func (s *Store) TypeTimeline(ctx context.Context, matchID, eventType string, opts ...store.QueryOption) (store.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := store.BuildQueryConfig(opts)

	lo, hi := index.TypeRange(eventType)
	if cfg.StartAfter > lo {
		lo = cfg.StartAfter
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrStoreClosed
	}

	var out []event.Record
	if m := s.matches[matchID]; m != nil {
		collectRange(m.byType, lo, hi, cfg.Limit, &out)
	}
	return store.NewSliceIterator(out), nil
}

// Count returns the total number of rows across all matches.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, store.ErrStoreClosed
	}
	return s.rows, nil
}

// Close releases the store. Further calls fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.matches = nil
	return nil
}
