package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// Run executes the full pipeline test
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	client := NewHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate test events
	events := generateEvents(config, stats)

	// Step 3: Submit events concurrently
	submitEvents(ctx, config, client, events, stats)

	// Step 4: Wait for the indexer to drain the stream
	submitted := groupByMatch(events)
	expected := make(map[string]int, len(submitted))
	for matchID, matchEvents := range submitted {
		expected[matchID] = len(matchEvents)
	}
	waitForIndexing(ctx, client, expected)

	// Step 5: Retrieve every match timeline
	matchIDs := make([]string, 0, len(submitted))
	for matchID := range submitted {
		matchIDs = append(matchIDs, matchID)
	}
	timelines := retrieveTimelines(ctx, config, client, matchIDs, stats)

	// Step 6: Verify chronological order, completeness and isolation
	ordered := verifyTimelines(timelines, submitted, stats)

	// Step 7: Verify type-scoped timelines against the full ones
	typesOK := verifyTypeTimelines(ctx, client, timelines, stats)

	// Step 8: Save submitted events to file
	if err := saveEventsToFile(config.OutputFile, events); err != nil {
		log.Printf("Warning: failed to save events to file: %v", err)
	}

	displayTimelineSample(timelines)
	displayFinalStats(config, stats)

	if !ordered || !typesOK {
		return fmt.Errorf("verification failed: %d/%d timelines ordered, %d type checks passed",
			stats.TimelinesOrdered, len(timelines), stats.TypeChecksPassed)
	}

	return nil
}

// checkServiceHealth verifies the service is reachable before the test begins
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	log.Printf("Checking service health at %s...", client.baseURL)

	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to reach service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Warning: failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("unexpected health status: %d", resp.StatusCode)
	}

	log.Printf("Service is healthy")
	return nil
}

// groupByMatch buckets events by match id
func groupByMatch(events []Event) map[string][]Event {
	byMatch := make(map[string][]Event)
	for _, event := range events {
		byMatch[event.MatchID] = append(byMatch[event.MatchID], event)
	}
	return byMatch
}

// saveEventsToFile writes the submitted events to a JSON file
func saveEventsToFile(filename string, events []Event) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	log.Printf("Saved %d events to %s", len(events), filename)
	return nil
}
