package store

import (
	"matchwire/internal/domain/event"
)

// Iterator walks timeline rows in order. Next returns false with a nil
// error once the sequence is exhausted.
type Iterator interface {
	Next() (bool, event.Record, error)
	Close() error
}

// sliceIterator serves records from memory. Used by the memstore and by
// implementations that materialize small result sets.
type sliceIterator struct {
	recs []event.Record
	pos  int
}

// NewSliceIterator wraps an already-ordered slice in an Iterator.
func NewSliceIterator(recs []event.Record) Iterator {
	return &sliceIterator{recs: recs}
}

func (it *sliceIterator) Next() (bool, event.Record, error) {
	if it.pos >= len(it.recs) {
		return false, event.Record{}, nil
	}
	rec := it.recs[it.pos]
	it.pos++
	return true, rec, nil
}

func (it *sliceIterator) Close() error {
	it.recs = nil
	return nil
}

// Collect drains an iterator into a slice and closes it.
func Collect(it Iterator) ([]event.Record, error) {
	defer func() { _ = it.Close() }()

	var recs []event.Record
	for {
		ok, rec, err := it.Next()
		if err != nil {
			return recs, err
		}
		if !ok {
			return recs, nil
		}
		recs = append(recs, rec)
	}
}
