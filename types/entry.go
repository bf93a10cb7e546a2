package types

import "time"

/*
CacheEntry is one stored value plus the bookkeeping the cache needs for
expiration, recency and stats.

The cache owns the entry once it is stored. Callers must treat Value as
immutable after handing it over.
*/
type CacheEntry struct {
	Key   string
	Value any

	// StoredAt is reset on every write of the key.
	StoredAt time.Time

	// TTL is always > 0; it is validated before an entry is built.
	TTL time.Duration

	// Hits counts successful reads of this entry since it was stored.
	Hits uint64

	// LastAccessedAt never moves backwards, even if the clock does.
	LastAccessedAt time.Time
}

// NewCacheEntry builds an entry stored at now.
func NewCacheEntry(key string, value any, ttl time.Duration, now time.Time) *CacheEntry {
	return &CacheEntry{
		Key:            key,
		Value:          value,
		StoredAt:       now,
		TTL:            ttl,
		LastAccessedAt: now,
	}
}

// ExpiresAt is StoredAt + TTL.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}

// Expired reports whether now is strictly past the expiry instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// Touch records a read at now.
func (e *CacheEntry) Touch(now time.Time) {
	e.Hits++
	if now.After(e.LastAccessedAt) {
		e.LastAccessedAt = now
	}
}
