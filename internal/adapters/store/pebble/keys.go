package pebble

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - t {0x00} {match_id} {0x00} {ts}        -> encoded record
// - k {0x00} {match_id} {0x00} {type_ts}   -> encoded record (type projection)
//
// Segments end with 0x00, which valid ids never contain, so "abc" and "abcd"
// can never shadow each other's ranges. Sort key segments (ts, type_ts) are
// RFC3339-derived strings whose byte order is chronological.

var (
	sep        = byte(0x00)
	timeSpace  = byte('t')
	typeSpace  = byte('k')
	rangeClose = byte(0x01) // first byte after sep, closes a segment range
)

func keyByTime(matchID, ts string) []byte {
	k := make([]byte, 0, len(matchID)+len(ts)+3)
	k = append(k, timeSpace, sep)
	k = append(k, matchID...)
	k = append(k, sep)
	k = append(k, ts...)
	return k
}

func keyByType(matchID, typeTS string) []byte {
	k := make([]byte, 0, len(matchID)+len(typeTS)+3)
	k = append(k, typeSpace, sep)
	k = append(k, matchID...)
	k = append(k, sep)
	k = append(k, typeTS...)
	return k
}

// timeRange bounds every time-keyed row of one match.
func timeRange(matchID string) (lo, hi []byte) {
	lo = make([]byte, 0, len(matchID)+3)
	lo = append(lo, timeSpace, sep)
	lo = append(lo, matchID...)
	lo = append(lo, sep)

	hi = make([]byte, 0, len(matchID)+3)
	hi = append(hi, timeSpace, sep)
	hi = append(hi, matchID...)
	hi = append(hi, rangeClose)
	return lo, hi
}

// typeRange bounds one event type's rows of one match. loKey and hiKey are
// the string bounds from the index package, e.g. "goal#" and "goal$".
func typeRange(matchID, loKey, hiKey string) (lo, hi []byte) {
	lo = keyByType(matchID, loKey)
	hi = keyByType(matchID, hiKey)
	return lo, hi
}

// exclusiveAfter returns the smallest key strictly greater than k.
func exclusiveAfter(k []byte) []byte {
	return append(k, 0x00)
}
