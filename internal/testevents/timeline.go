package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// timelinePageSize is the page size used when walking timeline cursors
const timelinePageSize = 500

// retrieveTimelines fetches the full timeline for every match using a worker pool
func retrieveTimelines(ctx context.Context, config *Config, client *HTTPClient, matchIDs []string, stats *Stats) map[string][]Record {
	log.Printf("Retrieving timelines for %d matches...", len(matchIDs))

	type result struct {
		matchID string
		records []Record
	}

	matchChan := make(chan string, config.Workers*WorkerChannelMultiplier)
	resultChan := make(chan result, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	var retrieved, failed int64

	numWorkers := config.Workers
	if numWorkers > len(matchIDs) {
		numWorkers = len(matchIDs)
	}

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for matchID := range matchChan {
				records, err := fetchMatchTimeline(ctx, client, matchID)
				if err != nil {
					log.Printf("Failed to retrieve timeline for match %s: %v", matchID, err)
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&retrieved, 1)
				resultChan <- result{matchID: matchID, records: records}
			}
		}()
	}

	go func() {
		defer close(matchChan)
		for _, id := range matchIDs {
			select {
			case matchChan <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	timelines := make(map[string][]Record, len(matchIDs))
	for r := range resultChan {
		timelines[r.matchID] = r.records
	}

	stats.TimelinesRetrieved = int(atomic.LoadInt64(&retrieved))
	log.Printf("Retrieved %d timelines (%d failed)", atomic.LoadInt64(&retrieved), atomic.LoadInt64(&failed))

	return timelines
}

// fetchMatchTimeline walks the paged match timeline endpoint until exhausted
func fetchMatchTimeline(ctx context.Context, client *HTTPClient, matchID string) ([]Record, error) {
	return fetchTimeline(ctx, client, "/matches/"+url.PathEscape(matchID))
}

// fetchTypeTimeline walks the paged type-scoped timeline endpoint until exhausted
func fetchTypeTimeline(ctx context.Context, client *HTTPClient, matchID, eventType string) ([]Record, error) {
	return fetchTimeline(ctx, client, "/matches/"+url.PathEscape(matchID)+"/"+url.PathEscape(eventType))
}

func fetchTimeline(ctx context.Context, client *HTTPClient, basePath string) ([]Record, error) {
	var all []Record
	startAfter := ""

	for {
		path := fmt.Sprintf("%s?limit=%d", basePath, timelinePageSize)
		if startAfter != "" {
			path += "&start_after=" + url.QueryEscape(startAfter)
		}

		resp, err := client.Get(ctx, path)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != StatusOK {
			body, _ := io.ReadAll(resp.Body)
			if err := resp.Body.Close(); err != nil {
				log.Printf("Warning: failed to close response body: %v", err)
			}
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		var page []Record
		err = json.NewDecoder(resp.Body).Decode(&page)
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("Warning: failed to close response body: %v", closeErr)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode timeline page: %w", err)
		}

		all = append(all, page...)
		if len(page) < timelinePageSize {
			return all, nil
		}
		startAfter = page[len(page)-1].Timestamp
	}
}

// waitForIndexing polls match timelines until every submitted event is
// visible or the catch-up window elapses
func waitForIndexing(ctx context.Context, client *HTTPClient, expected map[string]int) {
	log.Printf("Waiting for the indexer to drain the stream (timeout %s)...", IndexCatchUpTimeout)

	deadline := time.Now().Add(IndexCatchUpTimeout)
	pending := make(map[string]int, len(expected))
	for matchID, count := range expected {
		pending[matchID] = count
	}

	for len(pending) > 0 && time.Now().Before(deadline) {
		for matchID, want := range pending {
			records, err := fetchMatchTimeline(ctx, client, matchID)
			if err != nil {
				continue
			}
			if len(records) >= want {
				delete(pending, matchID)
			}
		}

		if len(pending) > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(IndexPollInterval):
			}
		}
	}

	if len(pending) > 0 {
		log.Printf("Warning: %d matches still catching up after %s", len(pending), IndexCatchUpTimeout)
		return
	}
	log.Printf("All matches fully indexed")
}
