package event

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidEvent = errors.New("invalid event")
	ErrBadEncoding  = errors.New("bad event encoding")
)

// ValidationError names the offending field of a rejected event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidEvent) match any validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEvent
}
