package ingest

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrPublishFailed = errors.New("publish failed")
	ErrEncodeFailed  = errors.New("encode failed")
)
