package testevents

import (
	"encoding/json"
	"time"
)

// Config holds configuration for the pipeline test
type Config struct {
	BaseURL        string        // Base URL of the service
	NumMatches     int           // Number of matches to simulate
	EventsPerMatch int           // Number of events per match
	Workers        int           // Number of concurrent workers
	Timeout        time.Duration // HTTP request timeout
	OutputFile     string        // Output file for events
	LogFile        string        // Log file for test output
	Verbose        bool          // Enable verbose logging
}

// Event represents an event to be submitted
type Event struct {
	EventID   string          `json:"event_id,omitempty"`
	MatchID   string          `json:"match_id"`
	EventType string          `json:"event_type"`
	Timestamp string          `json:"timestamp"`
	TeamID    string          `json:"team_id"`
	PlayerID  string          `json:"player_id"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// Record represents an indexed event returned by the timeline endpoints
type Record struct {
	Event
	Season string `json:"season"`
}

// AckResponse represents the response from event submission
type AckResponse struct {
	Accepted bool   `json:"accepted"`
	EventID  string `json:"event_id"`
}

// Stats holds test statistics
type Stats struct {
	EventsGenerated    int
	EventsSubmitted    int
	EventsSuccessful   int
	EventsFailed       int
	TimelinesRetrieved int
	TimelinesOrdered   int
	TypeChecksPassed   int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
