// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"matchwire/internal/domain/event"
	"matchwire/pkg/metrics"
)

// Ingestor accepts raw events into the pipeline. Submit validates the event,
// assigns an id when the caller did not, and publishes it to the stream; the
// returned event carries the assigned id.
type Ingestor interface {
	Submit(ctx context.Context, e event.Event) (event.Event, error)
}

// TimelineReader serves chronological reads of indexed events. limit caps the
// page size (zero means uncapped) and startAfter resumes a page after the
// given timestamp.
type TimelineReader interface {
	MatchTimeline(ctx context.Context, matchID string, limit int, startAfter string) ([]event.Record, error)
	TypeTimeline(ctx context.Context, matchID, eventType string, limit int, startAfter string) ([]event.Record, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	eventsHandler  *EventsHandler
	matchesHandler *MatchesHandler
}

// NewServer creates a new API server with all handlers. maxLimit bounds the
// limit query parameter on timeline endpoints.
func NewServer(ing Ingestor, reader TimelineReader, maxLimit int) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		eventsHandler:  NewEventsHandler(ing),
		matchesHandler: NewMatchesHandler(reader, maxLimit),
	}
}

// NewRouter assembles the router with the standard middleware stack. A nil
// redis client disables the idempotency layer on POST /events.
func NewRouter(s *Server, rdb *redis.Client, idempotencyTTL time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	postEvents := MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events")
	if rdb != nil {
		r.With(Idempotency(rdb, idempotencyTTL)).Post("/events", postEvents)
	} else {
		r.Post("/events", postEvents)
	}

	r.Get("/matches/{match_id}", MetricsMiddleware(s.matchesHandler.HandleMatchTimeline, "match_timeline"))
	r.Get("/matches/{match_id}/{event_type}", MetricsMiddleware(s.matchesHandler.HandleTypeTimeline, "type_timeline"))

	return r
}

// eventRequest mirrors the submission payload for POST /events.
type eventRequest struct {
	EventID   string          `json:"event_id"`
	MatchID   string          `json:"match_id"`
	EventType string          `json:"event_type"`
	Timestamp string          `json:"timestamp"`
	TeamID    string          `json:"team_id"`
	PlayerID  string          `json:"player_id"`
	Details   json.RawMessage `json:"details,omitempty"`
}

func (e eventRequest) toEvent() event.Event {
	return event.Event{
		EventID:   e.EventID,
		MatchID:   e.MatchID,
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		TeamID:    e.TeamID,
		PlayerID:  e.PlayerID,
		Details:   e.Details,
	}
}

type ackResponse struct {
	Accepted bool   `json:"accepted"`
	EventID  string `json:"event_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
