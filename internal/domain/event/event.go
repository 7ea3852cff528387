// Package event contains the match event domain model passed between layers.
package event

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event represents a single in-match occurrence submitted by providers.
// Fields mirror the JSON schema for POST /events.
type Event struct {
	EventID   string          `json:"event_id"`          // unique id, assigned at ingestion
	MatchID   string          `json:"match_id"`          // match identifier, also the stream partition key
	EventType string          `json:"event_type"`        // e.g. "goal", "pass", "foul"
	Timestamp string          `json:"timestamp"`         // RFC3339 UTC; lexicographic order equals chronological order
	TeamID    string          `json:"team_id"`           // team the event is attributed to
	PlayerID  string          `json:"player_id"`         // player the event is attributed to
	Details   json.RawMessage `json:"details,omitempty"` // optional provider-specific payload
}

// Record is an indexed row in the match event store: the event plus the
// attributes derived while consuming it.
type Record struct {
	Event
	Season string `json:"season"` // e.g. "2024/2025", derived from the timestamp
}

// NewID returns a fresh event id.
func NewID() string {
	return uuid.NewString()
}

// ValidTimestamp reports whether ts is RFC3339 with a zero UTC offset ("Z").
// Only such timestamps sort chronologically as strings.
func ValidTimestamp(ts string) bool {
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		return false
	}
	return strings.HasSuffix(ts, "Z")
}

// Validate checks the fields required of an inbound event. It returns a
// *ValidationError naming the first offending field, or nil.
//
// The timestamp must be RFC3339 with a zero UTC offset ("Z") so that string
// order equals time order across the whole pipeline. The event type must not
// contain '#', which separates segments in derived sort keys; the match id
// must not contain NUL, which frames key segments in byte-keyed stores.
func (e Event) Validate() error {
	if strings.TrimSpace(e.MatchID) == "" {
		return &ValidationError{Field: "match_id", Reason: "must not be empty"}
	}
	if strings.ContainsRune(e.MatchID, 0) {
		return &ValidationError{Field: "match_id", Reason: "must not contain NUL bytes"}
	}
	if strings.TrimSpace(e.EventType) == "" {
		return &ValidationError{Field: "event_type", Reason: "must not be empty"}
	}
	if strings.Contains(e.EventType, "#") {
		return &ValidationError{Field: "event_type", Reason: "must not contain '#'"}
	}
	if e.Timestamp == "" {
		return &ValidationError{Field: "timestamp", Reason: "must not be empty"}
	}
	if _, err := time.Parse(time.RFC3339, e.Timestamp); err != nil {
		return &ValidationError{Field: "timestamp", Reason: "must be RFC3339"}
	}
	if !ValidTimestamp(e.Timestamp) {
		return &ValidationError{Field: "timestamp", Reason: "must use a zero UTC offset"}
	}
	if strings.TrimSpace(e.TeamID) == "" {
		return &ValidationError{Field: "team_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(e.PlayerID) == "" {
		return &ValidationError{Field: "player_id", Reason: "must not be empty"}
	}
	if len(e.Details) > 0 && !json.Valid(e.Details) {
		return &ValidationError{Field: "details", Reason: "must be valid JSON"}
	}
	return nil
}

// Time parses the event timestamp. Validate must have accepted the event
// first; the zero time is returned for malformed timestamps.
func (e Event) Time() time.Time {
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}
