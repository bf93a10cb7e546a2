// Package stats aggregates per-cache counters.
package stats

import "sync/atomic"

// Stats is a point-in-time snapshot.
type Stats struct {
	Size          int
	Hits          uint64
	Misses        uint64
	Evictions     uint64 // capacity evictions only
	Expirations   uint64 // removed because the TTL passed
	Invalidations uint64 // entries removed by pattern invalidation
	HitRate       float64
}

// Collector counts events with atomics so it can be bumped outside the cache lock.
type Collector struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	evictions     atomic.Uint64
	expirations   atomic.Uint64
	invalidations atomic.Uint64
}

func (c *Collector) Hit()               { c.hits.Add(1) }
func (c *Collector) Miss()              { c.misses.Add(1) }
func (c *Collector) Eviction()          { c.evictions.Add(1) }
func (c *Collector) Expiration(n int)   { c.expirations.Add(uint64(n)) }
func (c *Collector) Invalidation(n int) { c.invalidations.Add(uint64(n)) }

// Snapshot reads all counters; size comes from the store.
func (c *Collector) Snapshot(size int) Stats {
	s := Stats{
		Size:          size,
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Expirations:   c.expirations.Load(),
		Invalidations: c.invalidations.Load(),
	}
	s.HitRate = HitRate(s.Hits, s.Misses)
	return s
}

// Reset zeroes every counter.
func (c *Collector) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.expirations.Store(0)
	c.invalidations.Store(0)
}

// HitRate is hits/(hits+misses), or 0 before any lookup.
func HitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
