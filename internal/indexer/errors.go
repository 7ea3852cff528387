package indexer

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrConsumerOpen     = errors.New("consumer open failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDeadLetterFailed = errors.New("dead letter push failed")
)
