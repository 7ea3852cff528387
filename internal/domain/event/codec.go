package event

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an event to its stream wire form.
func Encode(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadEncoding, err)
	}
	return b, nil
}

// Decode parses an event from its stream wire form. Unknown fields are
// ignored so producers can evolve ahead of consumers.
func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrBadEncoding, err)
	}
	return e, nil
}

// EncodeRecord serializes an indexed record, e.g. for query responses or
// dead letter payloads.
func EncodeRecord(r Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadEncoding, err)
	}
	return b, nil
}

// DecodeRecord parses an indexed record.
func DecodeRecord(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrBadEncoding, err)
	}
	return r, nil
}
