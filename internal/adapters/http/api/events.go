// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"matchwire/internal/domain/event"
)

// EventsHandler handles event submission requests.
type EventsHandler struct {
	ing Ingestor
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(ing Ingestor) *EventsHandler {
	return &EventsHandler{ing: ing}
}

// HandlePostEvent handles POST /events requests. Valid events are
// acknowledged with 202 before they are indexed; readers observe them once
// the indexer has caught up.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	accepted, err := h.ing.Submit(r.Context(), req.toEvent())
	if err != nil {
		var verr *event.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr)
			return
		}
		writeError(w, http.StatusInternalServerError, ErrNotAccepted)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Accepted: true, EventID: accepted.EventID})
}
