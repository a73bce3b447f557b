package cache

import "time"

// Entry is a single cached value in the memory tier. The payload is the
// serialized (and possibly compressed) form of the value the caller stored.
type Entry struct {
	Payload    []byte
	StoredAt   time.Time
	TTL        time.Duration
	Compressed bool
}

// Expired reports whether the entry's time-to-live has elapsed at the given
// instant. Expiry is checked lazily on every read and during cleanup sweeps;
// there is no background timer per entry.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.StoredAt) >= e.TTL
}

// wireEntry is the JSON envelope written to the remote tier. It carries the
// entry metadata so expiry and compression survive the round-trip through a
// shared store that other processes may also read.
type wireEntry struct {
	Payload    []byte `json:"payload"`
	StoredAtMS int64  `json:"stored_at_ms"`
	TTLMS      int64  `json:"ttl_ms"`
	Compressed bool   `json:"compressed"`
}

func toWire(e *Entry) wireEntry {
	return wireEntry{
		Payload:    e.Payload,
		StoredAtMS: e.StoredAt.UnixMilli(),
		TTLMS:      e.TTL.Milliseconds(),
		Compressed: e.Compressed,
	}
}

func fromWire(w wireEntry) *Entry {
	return &Entry{
		Payload:    w.Payload,
		StoredAt:   time.UnixMilli(w.StoredAtMS),
		TTL:        time.Duration(w.TTLMS) * time.Millisecond,
		Compressed: w.Compressed,
	}
}
