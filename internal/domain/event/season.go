package event

import (
	"fmt"
	"time"
)

// seasonRollover is the first month of a new season: seasons run
// August through July.
const seasonRollover = time.August

// UnknownSeason marks records whose timestamp could not be parsed.
const UnknownSeason = "unknown"

// DeriveSeason maps an RFC3339 timestamp to its season label, e.g.
// "2024-11-02T20:15:00Z" -> "2024/2025" and "2025-03-01T18:00:00Z" ->
// "2024/2025". Malformed timestamps yield UnknownSeason.
func DeriveSeason(timestamp string) string {
	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return UnknownSeason
	}
	year := ts.Year()
	if ts.Month() < seasonRollover {
		return fmt.Sprintf("%d/%d", year-1, year)
	}
	return fmt.Sprintf("%d/%d", year, year+1)
}
