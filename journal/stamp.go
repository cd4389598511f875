package journal

import (
	"math"
	"time"
)

// UnsetStamp is the reserved 64-bit ordinal meaning "timestamp not set".
// Previously saved ledgers depend on this exact value, so the round trip is
// bit-exact: an unset time encodes to UnsetStamp and UnsetStamp decodes to
// the zero time.
const UnsetStamp = int64(math.MaxInt64)

// Stamp encodes a time as a UTC UnixNano ordinal.
func Stamp(t time.Time) int64 {
	if t.IsZero() {
		return UnsetStamp
	}
	return t.UnixNano()
}

// StampTime decodes a Stamp ordinal.
func StampTime(n int64) time.Time {
	if n == UnsetStamp {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
