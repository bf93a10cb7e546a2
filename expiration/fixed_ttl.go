package expiration

import (
	"time"

	"github.com/krisalay/query-cache/types"
)

/*
FixedTTL expires an entry a fixed duration after it was written.
Reads never extend the lifetime; only a new write does.
*/
type FixedTTL struct{}

// IsExpired reports now > StoredAt + TTL.
func (FixedTTL) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.Expired(now)
}

// OnAccess records the read for recency and hit counting.
func (FixedTTL) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.Touch(now)
}

/*
OnWrite restarts the lifetime of a written entry.
A replaced key gets fresh StoredAt and LastAccessedAt, and its hit count starts over.
*/
func (FixedTTL) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.StoredAt = now
	ent.LastAccessedAt = now
	ent.Hits = 0
}
