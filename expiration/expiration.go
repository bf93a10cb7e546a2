package expiration

import (
	"time"

	"github.com/krisalay/query-cache/types"
)

/*
Strategy decides when an entry stops being served.

The engine calls every method with the cache lock held, so implementations
must not block or call back into the cache. An entry's lifetime is fixed by
OnWrite from its TTL; OnAccess may record the read but must not extend the
deadline.
*/
type Strategy interface {
	// IsExpired reports whether the entry is past its deadline at now.
	IsExpired(*types.CacheEntry, time.Time) bool

	// OnAccess runs after a hit.
	OnAccess(*types.CacheEntry, time.Time)

	// OnWrite runs on every store and sets the deadline from the entry's TTL.
	OnWrite(*types.CacheEntry, time.Time)
}
