package store

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrUpsertFailed = errors.New("store upsert failed")
	ErrQueryFailed  = errors.New("store query failed")
	ErrStoreClosed  = errors.New("store closed")
)
