package deadletter

import "errors"

var (
	// ErrPushFailed indicates an entry could not be handed to the sink.
	ErrPushFailed = errors.New("dead letter push failed")
	// ErrSinkClosed indicates the sink no longer accepts entries.
	ErrSinkClosed = errors.New("dead letter sink closed")
)
