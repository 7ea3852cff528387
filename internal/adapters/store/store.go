// Package store defines the contract for the indexed match event store.
//
// A store keeps one row per (match id, timestamp) and serves two range
// queries per match: the full chronological timeline and the timeline of a
// single event type. Writes are idempotent upserts, so redelivered stream
// records collapse into the row they already produced. Implementations: the
// postgres subpackage for shared deployments, the pebble subpackage for an
// embedded store, and the memstore subpackage for tests.
package store

import (
	"context"

	"matchwire/internal/domain/event"
)

// Store persists and queries indexed match events.
type Store interface {
	// Upsert writes a record, replacing any row already at the record's
	// (match id, timestamp) position. The returned flag is true when a new
	// row was created, false when an existing one was replaced.
	Upsert(ctx context.Context, rec event.Record) (created bool, err error)

	// MatchTimeline iterates every event of one match in chronological
	// order. A match with no rows yields an empty iterator, not an error.
	MatchTimeline(ctx context.Context, matchID string, opts ...QueryOption) (Iterator, error)

	// TypeTimeline iterates events of one type within one match in
	// chronological order.
	TypeTimeline(ctx context.Context, matchID, eventType string, opts ...QueryOption) (Iterator, error)

	// Count reports the number of rows in the store.
	Count(ctx context.Context) (int, error)

	// Close releases the store.
	Close() error
}

// QueryConfig carries per-query options, folded by BuildQueryConfig for the
// implementations in subpackages.
type QueryConfig struct {
	Limit      int
	StartAfter string
}

// QueryOption applies a configuration option to a timeline query.
type QueryOption func(*QueryConfig)

// WithLimit caps the number of rows the iterator yields. Zero means no cap.
func WithLimit(n int) QueryOption {
	return func(q *QueryConfig) {
		if n > 0 {
			q.Limit = n
		}
	}
}

// WithStartAfter resumes a timeline after the given sort key: a timestamp
// for MatchTimeline, an event_type#timestamp key for TypeTimeline. Paired
// with WithLimit it pages through long timelines.
func WithStartAfter(sortKey string) QueryOption {
	return func(q *QueryConfig) {
		q.StartAfter = sortKey
	}
}

// BuildQueryConfig folds options into a config.
func BuildQueryConfig(opts []QueryOption) QueryConfig {
	var q QueryConfig
	for _, opt := range opts {
		opt(&q)
	}
	return q
}
