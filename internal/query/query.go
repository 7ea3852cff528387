// Package query serves ordered timeline reads over the indexed store. It
// implements the HTTP API's TimelineReader dependency.
package query

import (
	"context"
	"time"

	"matchwire/internal/adapters/store"
	"matchwire/internal/domain/event"
	"matchwire/internal/domain/index"
	"matchwire/pkg/logger"
	"matchwire/pkg/metrics"
)

// Service answers timeline queries from the store.
type Service struct {
	store store.Store

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a query service reading from st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: logger.Get().Named("query"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// MatchTimeline returns every indexed event of one match in chronological
// order. A match with no events yields an empty slice. limit caps the page
// size (zero means uncapped); startAfter resumes after a timestamp.
func (s *Service) MatchTimeline(ctx context.Context, matchID string, limit int, startAfter string) ([]event.Record, error) {
	metrics.RecordQuery("match")
	start := time.Now()

	it, err := s.store.MatchTimeline(ctx, matchID, timelineOpts(limit, startAfter)...)
	if err != nil {
		s.logger.Error(ctx, "match timeline failed",
			logger.String("match_id", matchID),
			logger.Error(err),
		)
		return nil, err
	}
	return s.finish(ctx, it, start)
}

// TypeTimeline returns the events of one type within one match in
// chronological order. startAfter is a timestamp; it is folded into the
// type-scoped sort key before the scan.
func (s *Service) TypeTimeline(ctx context.Context, matchID, eventType string, limit int, startAfter string) ([]event.Record, error) {
	metrics.RecordQuery("type")
	start := time.Now()

	cursor := ""
	if startAfter != "" {
		cursor = index.Derive(eventType, startAfter).ByType
	}
	it, err := s.store.TypeTimeline(ctx, matchID, eventType, timelineOpts(limit, cursor)...)
	if err != nil {
		s.logger.Error(ctx, "type timeline failed",
			logger.String("match_id", matchID),
			logger.String("event_type", eventType),
			logger.Error(err),
		)
		return nil, err
	}
	return s.finish(ctx, it, start)
}

func (s *Service) finish(ctx context.Context, it store.Iterator, start time.Time) ([]event.Record, error) {
	recs, err := store.Collect(it)
	if err != nil {
		s.logger.Error(ctx, "timeline scan failed", logger.Error(err))
		return nil, err
	}
	if recs == nil {
		recs = []event.Record{}
	}

	metrics.RecordQueryLatency(float64(time.Since(start).Milliseconds()))
	metrics.RecordRowsReturned(len(recs))
	return recs, nil
}

func timelineOpts(limit int, startAfter string) []store.QueryOption {
	var opts []store.QueryOption
	if limit > 0 {
		opts = append(opts, store.WithLimit(limit))
	}
	if startAfter != "" {
		opts = append(opts, store.WithStartAfter(startAfter))
	}
	return opts
}
