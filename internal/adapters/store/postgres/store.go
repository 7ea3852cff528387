// Package postgres implements the match event store on PostgreSQL via pgx.
//
// Rows live in one table keyed by (match_id, ts); a secondary index on
// (match_id, type_ts) serves the per-type timeline. Both sort columns are
// RFC3339-derived strings, so ORDER BY gives chronological order.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"matchwire/internal/adapters/store"
	"matchwire/internal/domain/event"
	"matchwire/internal/domain/index"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_events (
	match_id   TEXT NOT NULL,
	ts         TEXT NOT NULL,
	event_id   TEXT NOT NULL,
	event_type TEXT NOT NULL,
	type_ts    TEXT NOT NULL,
	team_id    TEXT NOT NULL,
	player_id  TEXT NOT NULL,
	season     TEXT NOT NULL,
	details    JSONB,
	PRIMARY KEY (match_id, ts)
);
CREATE INDEX IF NOT EXISTS match_events_by_type ON match_events (match_id, type_ts);
`

// Store persists match events in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Upsert writes one record, replacing any row at (match_id, ts). The
// secondary sort column is recomputed on replace, so a row whose event type
// changed never leaves a stale type key behind.
func (s *Store) Upsert(ctx context.Context, rec event.Record) (bool, error) {
	const sql = `
		INSERT INTO match_events (
			match_id, ts, event_id, event_type, type_ts,
			team_id, player_id, season, details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (match_id, ts) DO UPDATE SET
			event_id   = EXCLUDED.event_id,
			event_type = EXCLUDED.event_type,
			type_ts    = EXCLUDED.type_ts,
			team_id    = EXCLUDED.team_id,
			player_id  = EXCLUDED.player_id,
			season     = EXCLUDED.season,
			details    = EXCLUDED.details
		RETURNING (xmax = 0) AS inserted
	`

	keys := index.Derive(rec.EventType, rec.Timestamp)

	var created bool
	err := s.pool.QueryRow(ctx, sql,
		rec.MatchID, keys.ByTime, rec.EventID, rec.EventType, keys.ByType,
		rec.TeamID, rec.PlayerID, rec.Season, nullIfEmptyJSON(rec.Details),
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
	}
	return created, nil
}

// MatchTimeline iterates every event of one match ordered by ts.
func (s *Store) MatchTimeline(ctx context.Context, matchID string, opts ...store.QueryOption) (store.Iterator, error) {
	const sql = `
		SELECT event_id, match_id, event_type, ts, team_id, player_id, season, details
		FROM match_events
		WHERE match_id = $1 AND ts > $2
		ORDER BY ts ASC
		LIMIT NULLIF($3, 0)
	`

	cfg := store.BuildQueryConfig(opts)
	rows, err := s.pool.Query(ctx, sql, matchID, cfg.StartAfter, cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}
	return &rowsIterator{rows: rows}, nil
}

// TypeTimeline iterates one event type of one match ordered by type_ts. The
// scan covers the half-open interval ["<type>#", "<type>$"), which admits
// exactly the keys of that type.
func (s *Store) TypeTimeline(ctx context.Context, matchID, eventType string, opts ...store.QueryOption) (store.Iterator, error) {
	const sql = `
		SELECT event_id, match_id, event_type, ts, team_id, player_id, season, details
		FROM match_events
		WHERE match_id = $1 AND type_ts > $2 AND type_ts < $3
		ORDER BY type_ts ASC
		LIMIT NULLIF($4, 0)
	`

	cfg := store.BuildQueryConfig(opts)
	lo, hi := index.TypeRange(eventType)
	// every real key is strictly greater than the bare "<type>#" prefix,
	// so the exclusive bound also serves the no-cursor case
	if cfg.StartAfter > lo {
		lo = cfg.StartAfter
	}
	rows, err := s.pool.Query(ctx, sql, matchID, lo, hi, cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}
	return &rowsIterator{rows: rows}, nil
}

// Count reports the number of rows in the store.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM match_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}
	return n, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// rowsIterator adapts pgx.Rows to the store iterator contract.
type rowsIterator struct {
	rows pgx.Rows
}

func (it *rowsIterator) Next() (bool, event.Record, error) {
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return false, event.Record{}, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
		}
		return false, event.Record{}, nil
	}

	var rec event.Record
	var details []byte
	if err := it.rows.Scan(
		&rec.EventID, &rec.MatchID, &rec.EventType, &rec.Timestamp,
		&rec.TeamID, &rec.PlayerID, &rec.Season, &details,
	); err != nil {
		return false, event.Record{}, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}
	if len(details) > 0 {
		rec.Details = details
	}
	return true, rec, nil
}

func (it *rowsIterator) Close() error {
	it.rows.Close()
	return nil
}

func nullIfEmptyJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
