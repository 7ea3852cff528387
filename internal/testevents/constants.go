package testevents

import "time"

// HTTP status codes
const (
	StatusOK       = 200
	StatusAccepted = 202
)

// Test configuration constants
const (
	// WorkerChannelMultiplier determines channel buffer size relative to worker count
	WorkerChannelMultiplier = 2

	// IndexPollInterval is how often to re-check timeline counts while the
	// indexer catches up
	IndexPollInterval = 500 * time.Millisecond

	// IndexCatchUpTimeout bounds how long to wait for the indexer to drain
	// the stream before verification starts
	IndexCatchUpTimeout = 2 * time.Minute

	// PercentageMultiplier for percentage calculations
	PercentageMultiplier = 100

	// EventSpacingSeconds separates consecutive events within a match so
	// every timestamp is unique and order is unambiguous
	EventSpacingSeconds = 7
)
