package testevents

import (
	"context"
	"fmt"
	"log"
	"time"
)

// sampleSize is how many opening events to print for the sample match
const sampleSize = 10

// verifyTimelines checks every retrieved timeline for completeness,
// chronological order and match isolation
func verifyTimelines(timelines map[string][]Record, submitted map[string][]Event, stats *Stats) bool {
	log.Printf("Verifying %d timelines...", len(timelines))

	allOrdered := true
	for matchID, records := range timelines {
		want := len(submitted[matchID])
		ok := true

		if len(records) != want {
			log.Printf("FAIL: match %s returned %d events, expected %d", matchID, len(records), want)
			ok = false
		}

		if !chronological(records) {
			log.Printf("FAIL: match %s timeline is not in chronological order", matchID)
			ok = false
		}

		for _, rec := range records {
			if rec.MatchID != matchID {
				log.Printf("FAIL: match %s timeline leaked event %s from match %s", matchID, rec.EventID, rec.MatchID)
				ok = false
				break
			}
		}

		if dup := firstDuplicateID(records); dup != "" {
			log.Printf("FAIL: match %s timeline contains duplicate event %s", matchID, dup)
			ok = false
		}

		if ok {
			stats.TimelinesOrdered++
		} else {
			allOrdered = false
		}
	}

	log.Printf("Timeline verification: %d/%d matches ordered and complete", stats.TimelinesOrdered, len(timelines))
	return allOrdered
}

// verifyTypeTimelines checks the type-scoped endpoint for each match: the
// result must contain exactly the events of the most common type, in order
func verifyTypeTimelines(ctx context.Context, client *HTTPClient, timelines map[string][]Record, stats *Stats) bool {
	log.Printf("Verifying type-scoped timelines...")

	passed := 0
	checked := 0
	for matchID, records := range timelines {
		eventType := mostCommonType(records)
		if eventType == "" {
			continue
		}
		checked++

		got, err := fetchTypeTimeline(ctx, client, matchID, eventType)
		if err != nil {
			log.Printf("FAIL: type timeline for match %s type %s: %v", matchID, eventType, err)
			continue
		}

		want := filterByType(records, eventType)
		if !sameRecords(got, want) {
			log.Printf("FAIL: match %s type %s returned %d events, expected %d matching the full timeline",
				matchID, eventType, len(got), len(want))
			continue
		}

		passed++
	}

	stats.TypeChecksPassed = passed
	log.Printf("Type timeline verification: %d/%d matches passed", passed, checked)
	return passed == checked
}

// chronological reports whether timestamps never decrease. Normalized
// zero-offset timestamps compare correctly as strings.
func chronological(records []Record) bool {
	for i := 1; i < len(records); i++ {
		if records[i-1].Timestamp > records[i].Timestamp {
			return false
		}
	}
	return true
}

// firstDuplicateID returns the first event id repeated in the slice, if any
func firstDuplicateID(records []Record) string {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, found := seen[rec.EventID]; found {
			return rec.EventID
		}
		seen[rec.EventID] = struct{}{}
	}
	return ""
}

// mostCommonType returns the event type with the most occurrences
func mostCommonType(records []Record) string {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.EventType]++
	}

	best := ""
	for eventType, count := range counts {
		if best == "" || count > counts[best] {
			best = eventType
		}
	}
	return best
}

// filterByType returns the records of one event type, preserving order
func filterByType(records []Record, eventType string) []Record {
	filtered := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.EventType == eventType {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// sameRecords reports whether both slices hold the same events in the same order
func sameRecords(got, want []Record) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].EventID != want[i].EventID || got[i].Timestamp != want[i].Timestamp {
			return false
		}
	}
	return true
}

// displayTimelineSample prints the opening events of the busiest match
func displayTimelineSample(timelines map[string][]Record) {
	var busiest string
	for matchID, records := range timelines {
		if busiest == "" || len(records) > len(timelines[busiest]) {
			busiest = matchID
		}
	}
	if busiest == "" {
		return
	}

	records := timelines[busiest]
	n := sampleSize
	if len(records) < n {
		n = len(records)
	}

	fmt.Println()
	fmt.Printf("=== Opening events for match %s ===\n", busiest)
	fmt.Printf("%-4s %-22s %-8s %-10s %-10s\n", "#", "Timestamp", "Type", "Team", "Player")
	for i := 0; i < n; i++ {
		rec := records[i]
		fmt.Printf("%-4d %-22s %-8s %-10s %-10s\n", i+1, rec.Timestamp, rec.EventType, rec.TeamID, rec.PlayerID)
	}
}

// displayFinalStats prints the end-of-run summary
func displayFinalStats(config *Config, stats *Stats) {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	fmt.Println()
	fmt.Println("=== Final Statistics ===")
	fmt.Printf("Matches simulated:    %d\n", config.NumMatches)
	fmt.Printf("Events generated:     %d\n", stats.EventsGenerated)
	fmt.Printf("Events submitted:     %d\n", stats.EventsSubmitted)
	fmt.Printf("Events successful:    %d\n", stats.EventsSuccessful)
	fmt.Printf("Events failed:        %d\n", stats.EventsFailed)
	fmt.Printf("Timelines retrieved:  %d\n", stats.TimelinesRetrieved)
	fmt.Printf("Timelines verified:   %d\n", stats.TimelinesOrdered)
	fmt.Printf("Type checks passed:   %d\n", stats.TypeChecksPassed)

	if stats.EventsSubmitted > 0 {
		successRate := float64(stats.EventsSuccessful) / float64(stats.EventsSubmitted) * PercentageMultiplier
		fmt.Printf("Success rate:         %.2f%%\n", successRate)
	}
	if stats.Duration > 0 && stats.EventsSuccessful > 0 {
		rate := float64(stats.EventsSuccessful) / stats.Duration.Seconds()
		fmt.Printf("Submission rate:      %.0f events/sec\n", rate)
	}
	fmt.Printf("Total duration:       %s\n", stats.Duration.Round(time.Millisecond))
}
