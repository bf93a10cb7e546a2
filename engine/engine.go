package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/krisalay/query-cache/expiration"
	"github.com/krisalay/query-cache/hooks"
	"github.com/krisalay/query-cache/stats"
	"github.com/krisalay/query-cache/types"
)

/*
CacheEngine is the "brain" of the cache system.
It is responsible for the "behavior" of the cache, NOT storage.

It decides:
- When data is expired
- What a read or write does to an entry's metadata
- Whether a value may be cached at all (ShouldCache guards)
- Which counters move and which hooks fire

It does NOT:
- Store data
- Handle locking
- Decide eviction order
*/
type CacheEngine struct {

	// Expiration controls when a cache entry should be considered "too old".
	Expiration expiration.Strategy

	// Hooks is the bus observers and guards are registered on.
	Hooks *hooks.Bus

	// Stats holds the hit/miss/eviction counters.
	Stats *stats.Collector

	// Clock is the only source of "now" for the cache.
	Clock types.Clock

	Logger zerolog.Logger
}

/*
NewCacheEngine creates a CacheEngine. Nil arguments get working defaults,
so the rest of the code never has to nil-check them.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	bus *hooks.Bus,
	clock types.Clock,
	logger zerolog.Logger,
) *CacheEngine {
	if exp == nil {
		exp = expiration.FixedTTL{}
	}
	if bus == nil {
		bus = hooks.NewBus(logger)
	}
	if clock == nil {
		clock = types.SystemClock{}
	}

	return &CacheEngine{
		Expiration: exp,
		Hooks:      bus,
		Stats:      &stats.Collector{},
		Clock:      clock,
		Logger:     logger,
	}
}

// Now reads the engine clock.
func (e *CacheEngine) Now() time.Time { return e.Clock.Now() }

// IsExpired checks whether a cache entry is expired at now.
func (e *CacheEngine) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return e.Expiration.IsExpired(ent, now)
}

// OnRead applies read-side metadata updates (recency, hit count).
func (e *CacheEngine) OnRead(ent *types.CacheEntry, now time.Time) {
	e.Expiration.OnAccess(ent, now)
}

// OnWrite applies write-side metadata updates.
func (e *CacheEngine) OnWrite(ent *types.CacheEntry, now time.Time) {
	e.Expiration.OnWrite(ent, now)
}

// ShouldCache asks the guard hooks. It must be called without the cache lock.
func (e *CacheEngine) ShouldCache(key string, value any) bool {
	return e.Hooks.Allow(hooks.ShouldCache, key, value)
}

/*
Events buffers notifications raised while the cache lock is held.
Counters move immediately; handlers only run on Flush, after the lock is
released, so a handler may call back into the cache.
*/
type Events []hooks.Event

// Hit records a cache hit.
func (e *CacheEngine) Hit(buf *Events, key string, value any, now time.Time) {
	e.Stats.Hit()
	if e.Hooks.Has(hooks.OnHit) {
		*buf = append(*buf, hooks.Event{Hook: hooks.OnHit, Key: key, Value: value, At: now})
	}
}

// Miss records a cache miss.
func (e *CacheEngine) Miss(buf *Events, key string, now time.Time) {
	e.Stats.Miss()
	if e.Hooks.Has(hooks.OnMiss) {
		*buf = append(*buf, hooks.Event{Hook: hooks.OnMiss, Key: key, At: now})
	}
}

// Removed records an entry leaving the cache for reason.
func (e *CacheEngine) Removed(buf *Events, ent *types.CacheEntry, reason hooks.EvictReason, now time.Time) {
	switch reason {
	case hooks.ReasonCapacity:
		e.Stats.Eviction()
	case hooks.ReasonExpired:
		e.Stats.Expiration(1)
	case hooks.ReasonInvalidated:
		e.Stats.Invalidation(1)
	}
	if e.Hooks.Has(hooks.OnEvict) {
		*buf = append(*buf, hooks.Event{
			Hook:   hooks.OnEvict,
			Key:    ent.Key,
			Value:  ent.Value,
			Reason: reason,
			At:     now,
		})
	}
}

// Flush delivers buffered events in the order they were raised.
func (e *CacheEngine) Flush(buf Events) {
	for _, ev := range buf {
		e.Hooks.Notify(ev)
	}
}
