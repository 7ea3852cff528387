// Package ingest accepts raw match events at the edge of the pipeline:
// validate, assign an id, publish to the stream. Acceptance means the event
// is durably on the log, not that it is indexed yet; readers observe it once
// the indexer has consumed it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matchwire/internal/adapters/stream"
	"matchwire/internal/domain/event"
	"matchwire/pkg/logger"
	"matchwire/pkg/metrics"
)

// Service validates and publishes inbound events. It implements the HTTP
// API's Ingestor dependency.
type Service struct {
	pub stream.Publisher

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

// New constructs an ingestion service publishing to pub.
func New(pub stream.Publisher, opts ...Option) *Service {
	s := &Service{
		pub:    pub,
		logger: logger.Get().Named("ingest"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Submit validates e, assigns an event id when the caller did not, and
// publishes the event keyed by match id. The returned event carries the
// assigned id. Submit publishes at most once: a failed publish surfaces as
// an error and the caller decides whether to resubmit.
func (s *Service) Submit(ctx context.Context, e event.Event) (event.Event, error) {
	if err := e.Validate(); err != nil {
		var verr *event.ValidationError
		if errors.As(err, &verr) {
			metrics.RecordEventRejected(verr.Field)
		}
		s.logger.Debug(ctx, "event rejected",
			logger.String("match_id", e.MatchID),
			logger.Error(err),
		)
		return event.Event{}, err
	}

	if e.EventID == "" {
		e.EventID = event.NewID()
	}

	b, err := event.Encode(e)
	if err != nil {
		return event.Event{}, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}

	start := time.Now()
	if err := s.pub.Publish(ctx, e.MatchID, b); err != nil {
		metrics.RecordPublishError()
		s.logger.Error(ctx, "publish failed",
			logger.String("match_id", e.MatchID),
			logger.String("event_id", e.EventID),
			logger.Error(err),
		)
		return event.Event{}, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	metrics.RecordPublishLatency(float64(time.Since(start).Milliseconds()))
	metrics.RecordEventAccepted()

	s.logger.Debug(ctx, "event accepted",
		logger.String("match_id", e.MatchID),
		logger.String("event_id", e.EventID),
		logger.String("event_type", e.EventType),
	)
	return e, nil
}
