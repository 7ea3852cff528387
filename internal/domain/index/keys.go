// Package index derives the sort keys that order match events in the store.
//
// Every record carries two keys scoped to its match: a time key that orders
// the whole match chronologically, and a type key that orders one event type
// chronologically. Both are plain strings whose byte order equals event
// order, so any store that can range-scan sorted strings can serve the
// timeline queries.
package index

// Separator joins the segments of a type-scoped key. Event types are
// rejected at ingestion if they contain it.
const Separator = "#"

// rangeEnd is the byte immediately after Separator, closing a half-open
// prefix scan over one event type.
const rangeEnd = "$"

// Keys are the sort keys derived for an indexed record.
type Keys struct {
	ByTime string // timestamp
	ByType string // event_type + "#" + timestamp
}

// Derive builds both sort keys for an event. The timestamp must be RFC3339
// with a zero UTC offset, which makes byte order chronological.
func Derive(eventType, timestamp string) Keys {
	return Keys{
		ByTime: timestamp,
		ByType: eventType + Separator + timestamp,
	}
}

// TypeRange returns the half-open interval [lo, hi) spanning every type
// key of one event type. "goal" yields ["goal#", "goal$"), which admits
// "goal#<ts>" for any timestamp and nothing else.
func TypeRange(eventType string) (lo, hi string) {
	return eventType + Separator, eventType + rangeEnd
}
