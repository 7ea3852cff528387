package deadletter

import (
	"context"
	"sync"
)

// MemorySink collects entries in memory. It backs the in-process stream
// driver and the pipeline tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
	closed  bool
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Push records one entry.
func (s *MemorySink) Push(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a copy of everything pushed so far.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Close stops the sink. Further pushes fail with ErrSinkClosed.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
