package api

import (
	"context"
	"time"

	"github.com/krisalay/query-cache/hooks"
	"github.com/krisalay/query-cache/stats"
	"github.com/krisalay/query-cache/types"
)

/*
Cache defines the PUBLIC API of the query cache.
This is a contract that guarantees certain behaviors, without exposing internals.
Storage, eviction, expiration, concurrency and hook dispatch are hidden behind
this interface.
*/
type Cache interface {

	/*
		Get retrieves the value associated with the given key.

		BEHAVIOR:
		-------------------
		1. If the key exists and is NOT expired:
		   - Return the value (cache hit)
		   - The key becomes the most recently used

		2. If the key does NOT exist or is expired:
		   - An expired entry is removed on the spot
		   - Return (nil, false) (cache miss)

		A miss is never an error.
	*/
	Get(key string) (any, bool)

	/*
		Set stores a key-value pair with the configured default TTL.

		BEHAVIOR:
		---------
		- Consults ShouldCache guards; a veto makes the call a no-op
		- Evicts the least recently used entry if a NEW key would overflow MaxSize
		- Replaces an existing key with fresh metadata
	*/
	Set(key string, value any) error

	/*
		SetWithTTL is Set with an explicit time-to-live.
		ttl <= 0 is rejected, never clamped.
	*/
	SetWithTTL(key string, value any, ttl time.Duration) error

	/*
		GetOrLoad returns the cached value or loads it through load.
		Concurrent misses on the same key share ONE load call.
		A load error is returned and nothing is cached.
	*/
	GetOrLoad(ctx context.Context, key string, load types.LoadFunc) (any, error)

	/*
		Delete removes a key and reports whether it was present.
		This operation is idempotent.
	*/
	Delete(key string) bool

	/*
		Invalidate removes every entry whose key contains pattern
		and returns how many entries were removed.

		USE CASES:
		----------
		- Dropping every cached query of a table after a mutation
		- Dropping one record's cached reads
	*/
	Invalidate(pattern string) int

	// Clear removes every entry and resets the statistics.
	Clear()

	// Stats returns a consistent-enough snapshot of counters and size.
	Stats() stats.Stats

	// RegisterNotification subscribes fn to OnHit, OnMiss or OnEvict.
	RegisterNotification(hook hooks.Notification, fn hooks.NotifyFunc, priority int) hooks.Deregister

	// RegisterGuard adds a ShouldCache guard.
	RegisterGuard(hook hooks.Guard, fn hooks.GuardFunc, priority int) hooks.Deregister

	/*
		Destroy gracefully shuts down the cache.

		BEHAVIOR:
		---------
		- Stops the background sweeper and waits for it
		- Drops every entry
		- Safe to call more than once

		WHEN TO CALL:
		-------------
		- Application shutdown
		- Tests cleanup
	*/
	Destroy()
}
