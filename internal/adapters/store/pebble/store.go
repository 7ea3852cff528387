// Package pebble implements the match event store on an embedded Pebble
// database. Every record is written under two keys scoped to its match: a
// time key serving the full timeline and a type key serving the per-type
// timeline. Both rows carry the full record, so either scan is single-pass.
package pebble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"matchwire/internal/adapters/store"
	"matchwire/internal/domain/event"
	"matchwire/internal/domain/index"
)

// defaultWALSyncInterval enables group commit: Pebble coalesces WAL syncs
// for writes landing within the interval.
const defaultWALSyncInterval = 5 * time.Millisecond

// Store persists match events in a local Pebble database.
type Store struct {
	db        *pebble.DB
	writeSync bool
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithSyncWrites forces a WAL fsync on every commit instead of group
// commit. Slower, but a crash loses nothing that was acknowledged.
func WithSyncWrites(sync bool) Option {
	return func(s *Store) {
		s.writeSync = sync
	}
}

// New creates or opens a Pebble-backed store at path.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("pebble: path is required")
	}

	s := &Store{}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	po := &pebble.Options{}
	if !s.writeSync {
		po.WALMinSyncInterval = func() time.Duration { return defaultWALSyncInterval }
	}

	db, err := pebble.Open(path, po)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	s.db = db
	return s, nil
}

// Upsert writes one record under both of its keys, atomically replacing
// whatever was at the record's (match id, timestamp) position. When the
// replaced row carried a different event type, its old type row is deleted
// in the same batch, so type scans never see a stale projection.
func (s *Store) Upsert(ctx context.Context, rec event.Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	keys := index.Derive(rec.EventType, rec.Timestamp)
	timeKey := keyByTime(rec.MatchID, keys.ByTime)
	typeKey := keyByType(rec.MatchID, keys.ByType)

	value, err := event.EncodeRecord(rec)
	if err != nil {
		return false, fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
	}

	created := true
	var staleTypeKey []byte
	old, closer, err := s.db.Get(timeKey)
	switch {
	case err == nil:
		created = false
		prev, decErr := event.DecodeRecord(old)
		_ = closer.Close()
		if decErr == nil {
			if prevKeys := index.Derive(prev.EventType, prev.Timestamp); prevKeys.ByType != keys.ByType {
				staleTypeKey = keyByType(rec.MatchID, prevKeys.ByType)
			}
		}
	case errors.Is(err, pebble.ErrNotFound):
		// first write at this position
	default:
		return false, fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
	}

	b := s.db.NewBatch()
	defer func() { _ = b.Close() }()

	if staleTypeKey != nil {
		if err := b.Delete(staleTypeKey, nil); err != nil {
			return false, fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
		}
	}
	if err := b.Set(timeKey, value, nil); err != nil {
		return false, fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
	}
	if err := b.Set(typeKey, value, nil); err != nil {
		return false, fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
	}
	if err := b.Commit(s.syncMode()); err != nil {
		return false, fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
	}
	return created, nil
}

// MatchTimeline iterates every event of one match in time key order.
func (s *Store) MatchTimeline(ctx context.Context, matchID string, opts ...store.QueryOption) (store.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := store.BuildQueryConfig(opts)
	lo, hi := timeRange(matchID)
	if cfg.StartAfter != "" {
		lo = exclusiveAfter(keyByTime(matchID, cfg.StartAfter))
	}
	return s.newIterator(lo, hi, cfg.Limit)
}

// TypeTimeline iterates one event type of one match in type key order.
func (s *Store) TypeTimeline(ctx context.Context, matchID, eventType string, opts ...store.QueryOption) (store.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := store.BuildQueryConfig(opts)
	loKey, hiKey := index.TypeRange(eventType)
	lo, hi := typeRange(matchID, loKey, hiKey)
	if cfg.StartAfter > loKey {
		lo = exclusiveAfter(keyByType(matchID, cfg.StartAfter))
	}
	return s.newIterator(lo, hi, cfg.Limit)
}

// Count reports the number of time-keyed rows. Linear in store size; meant
// for gauges and verification, not hot paths.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{timeSpace, sep},
		UpperBound: []byte{timeSpace, rangeClose},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}
	defer func() { _ = iter.Close() }()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) syncMode() *pebble.WriteOptions {
	if s.writeSync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (s *Store) newIterator(lo, hi []byte, limit int) (store.Iterator, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}
	iter.First()
	return &pebbleIterator{iter: iter, limit: limit}, nil
}

// pebbleIterator adapts a Pebble range scan to the store iterator contract.
type pebbleIterator struct {
	iter  *pebble.Iterator
	limit int
	seen  int
}

func (it *pebbleIterator) Next() (bool, event.Record, error) {
	if it.limit > 0 && it.seen >= it.limit {
		return false, event.Record{}, nil
	}
	if !it.iter.Valid() {
		if err := it.iter.Error(); err != nil {
			return false, event.Record{}, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
		}
		return false, event.Record{}, nil
	}

	rec, err := event.DecodeRecord(it.iter.Value())
	if err != nil {
		return false, event.Record{}, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}
	it.seen++
	it.iter.Next()
	return true, rec, nil
}

func (it *pebbleIterator) Close() error {
	return it.iter.Close()
}
