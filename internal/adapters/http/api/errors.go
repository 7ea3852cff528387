package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrQueryFailed = errors.New("query failed")
	ErrNotAccepted = errors.New("event not accepted")
)
