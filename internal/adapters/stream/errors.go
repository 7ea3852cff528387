package stream

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrPublishFailed = errors.New("stream publish failed")
	ErrPollFailed    = errors.New("stream poll failed")
	ErrCommitFailed  = errors.New("stream commit failed")
	ErrClosed        = errors.New("stream closed")
)
