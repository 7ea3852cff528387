package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with common functionality
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

// Post sends a POST request with a JSON payload
func (c *HTTPClient) Post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return c.client.Do(req)
}

// Get sends a GET request
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.client.Do(req)
}

// submitEvents submits events to the service using a worker pool
func submitEvents(ctx context.Context, config *Config, client *HTTPClient, events []Event, stats *Stats) {
	log.Printf("Submitting %d events using %d workers...", len(events), config.Workers)

	eventChan := make(chan Event, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	var successful, failed int64

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range eventChan {
				if submitSingleEvent(ctx, client, event, config.Verbose) {
					atomic.AddInt64(&successful, 1)
				} else {
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	// Progress reporting
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				processed := atomic.LoadInt64(&successful) + atomic.LoadInt64(&failed)
				log.Printf("Progress: %d/%d events submitted", processed, len(events))
			case <-done:
				return
			}
		}
	}()

	// Send events to workers
	go func() {
		defer close(eventChan)
		for _, event := range events {
			select {
			case eventChan <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(done)

	stats.EventsSubmitted = len(events)
	stats.EventsSuccessful = int(atomic.LoadInt64(&successful))
	stats.EventsFailed = int(atomic.LoadInt64(&failed))

	log.Printf("Submission complete: %d successful, %d failed", stats.EventsSuccessful, stats.EventsFailed)
}

// submitSingleEvent submits one event and reports whether it was accepted
func submitSingleEvent(ctx context.Context, client *HTTPClient, event Event, verbose bool) bool {
	resp, err := client.Post(ctx, "/events", event)
	if err != nil {
		log.Printf("Failed to submit event for match %s: %v", event.MatchID, err)
		return false
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Warning: failed to close response body: %v", err)
		}
	}()

	switch resp.StatusCode {
	case StatusAccepted, StatusOK:
		if verbose {
			var ack AckResponse
			if err := json.NewDecoder(resp.Body).Decode(&ack); err == nil {
				log.Printf("Accepted event %s for match %s", ack.EventID, event.MatchID)
			}
		}
		return true
	default:
		body, _ := io.ReadAll(resp.Body)
		log.Printf("Unexpected status %d for match %s: %s", resp.StatusCode, event.MatchID, string(body))
		return false
	}
}
