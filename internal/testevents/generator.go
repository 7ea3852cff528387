package testevents

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	maxTeamNumber   = 100
	squadSize       = 22
	maxKickoffHours = 365 * 24
)

// Weighted distribution of event types. Goals are deliberately uncommon
// relative to passes so type-scoped timelines are a strict subset of the
// full timeline.
var eventTypeWeights = []struct {
	eventType string
	weight    int64
}{
	{"pass", 35},
	{"shot", 15},
	{"foul", 12},
	{"save", 10},
	{"corner", 8},
	{"tackle", 8},
	{"card", 5},
	{"goal", 7},
}

const totalTypeWeight = 100

// generateEvents creates test events for the configured number of matches
func generateEvents(config *Config, stats *Stats) []Event {
	total := config.NumMatches * config.EventsPerMatch
	log.Printf("Generating %d events across %d matches...", total, config.NumMatches)

	var wg sync.WaitGroup

	// Use worker pool for event generation, one match per unit of work
	numWorkers := config.Workers
	if numWorkers > config.NumMatches {
		numWorkers = config.NumMatches
	}

	matchesPerWorker := config.NumMatches / numWorkers
	remainder := config.NumMatches % numWorkers

	resultChan := make(chan []Event, numWorkers)

	for i := 0; i < numWorkers; i++ {
		start := i * matchesPerWorker
		end := start + matchesPerWorker
		if i == numWorkers-1 {
			end += remainder
		}

		wg.Add(1)
		go func(startIdx, endIdx int) {
			defer wg.Done()
			workerEvents := make([]Event, 0, (endIdx-startIdx)*config.EventsPerMatch)

			for j := startIdx; j < endIdx; j++ {
				workerEvents = append(workerEvents, generateMatchEvents(config.EventsPerMatch)...)
			}

			resultChan <- workerEvents
		}(start, end)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	events := make([]Event, 0, total)
	for workerEvents := range resultChan {
		events = append(events, workerEvents...)
	}

	// Shuffle so submission order does not follow event time; reads must
	// still come back chronological
	shuffleEvents(events)

	stats.EventsGenerated = len(events)
	log.Printf("Generated %d events", len(events))
	return events
}

// generateMatchEvents produces one match worth of events with unique,
// strictly increasing timestamps
func generateMatchEvents(count int) []Event {
	matchID := uuid.NewString()
	kickoff := time.Now().UTC().Add(-time.Duration(randInt(maxKickoffHours)) * time.Hour).Truncate(time.Second)

	home := fmt.Sprintf("team-%03d", randInt(maxTeamNumber))
	away := fmt.Sprintf("team-%03d", randInt(maxTeamNumber))

	events := make([]Event, 0, count)
	for i := 0; i < count; i++ {
		// Jitter stays below the spacing so timestamps never collide
		offset := time.Duration(int64(i)*EventSpacingSeconds+randInt(EventSpacingSeconds-1)) * time.Second

		team := home
		if randInt(2) == 1 {
			team = away
		}

		minute := int(offset / time.Minute)
		events = append(events, Event{
			MatchID:   matchID,
			EventType: randomEventType(),
			Timestamp: kickoff.Add(offset).Format(time.RFC3339),
			TeamID:    team,
			PlayerID:  fmt.Sprintf("player-%d", randInt(squadSize)+1),
			Details:   json.RawMessage(fmt.Sprintf(`{"minute":%d}`, minute)),
		})
	}

	return events
}

// randomEventType picks an event type according to the weight table
func randomEventType() string {
	n := randInt(totalTypeWeight)
	for _, w := range eventTypeWeights {
		n -= w.weight
		if n < 0 {
			return w.eventType
		}
	}
	return eventTypeWeights[0].eventType
}

// shuffleEvents randomizes submission order in place
func shuffleEvents(events []Event) {
	for i := len(events) - 1; i > 0; i-- {
		j := randInt(int64(i + 1))
		events[i], events[j] = events[j], events[i]
	}
}

// randInt returns a random integer in [0, n) using crypto/rand
func randInt(n int64) int64 {
	num, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		log.Printf("Warning: failed to generate random number: %v", err)
		return 0
	}
	return num.Int64()
}
