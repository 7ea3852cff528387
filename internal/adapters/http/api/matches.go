// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"matchwire/internal/domain/event"
)

// MatchesHandler handles match timeline requests.
type MatchesHandler struct {
	reader   TimelineReader
	maxLimit int
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(reader TimelineReader, maxLimit int) *MatchesHandler {
	return &MatchesHandler{reader: reader, maxLimit: maxLimit}
}

// HandleMatchTimeline handles GET /matches/{match_id} requests. The response
// is the match's events as a JSON array in chronological order; a match with
// no indexed events yields an empty array.
func (h *MatchesHandler) HandleMatchTimeline(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "match_id")
	if strings.TrimSpace(matchID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: missing match_id", ErrBadRequest))
		return
	}
	limit, startAfter, err := h.timelineParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	recs, err := h.reader.MatchTimeline(r.Context(), matchID, limit, startAfter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrQueryFailed)
		return
	}
	writeTimeline(w, recs)
}

// HandleTypeTimeline handles GET /matches/{match_id}/{event_type} requests.
func (h *MatchesHandler) HandleTypeTimeline(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "match_id")
	eventType := chi.URLParam(r, "event_type")
	if strings.TrimSpace(matchID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: missing match_id", ErrBadRequest))
		return
	}
	if strings.TrimSpace(eventType) == "" || strings.Contains(eventType, "#") {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: invalid event_type", ErrBadRequest))
		return
	}
	limit, startAfter, err := h.timelineParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	recs, err := h.reader.TypeTimeline(r.Context(), matchID, eventType, limit, startAfter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrQueryFailed)
		return
	}
	writeTimeline(w, recs)
}

// timelineParams parses the optional limit and start_after query parameters
// shared by both timeline endpoints.
func (h *MatchesHandler) timelineParams(r *http.Request) (int, string, error) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			return 0, "", fmt.Errorf("%w: invalid limit", ErrBadRequest)
		}
		if n > h.maxLimit {
			return 0, "", fmt.Errorf("%w: limit exceeds maximum %d", ErrBadRequest, h.maxLimit)
		}
		limit = n
	}

	startAfter := r.URL.Query().Get("start_after")
	if startAfter != "" && !event.ValidTimestamp(startAfter) {
		return 0, "", fmt.Errorf("%w: start_after must be an RFC3339 UTC timestamp", ErrBadRequest)
	}
	return limit, startAfter, nil
}

// writeTimeline emits records as a JSON array, never null.
func writeTimeline(w http.ResponseWriter, recs []event.Record) {
	if recs == nil {
		recs = []event.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}
