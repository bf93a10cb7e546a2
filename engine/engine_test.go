package engine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/krisalay/query-cache/hooks"
	"github.com/krisalay/query-cache/types"
)

func newTestEngine() (*CacheEngine, *types.ManualClock) {
	clock := types.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewCacheEngine(nil, nil, clock, zerolog.Nop()), clock
}

func TestEngineDefaults(t *testing.T) {
	e := NewCacheEngine(nil, nil, nil, zerolog.Nop())
	assert.NotNil(t, e.Expiration)
	assert.NotNil(t, e.Hooks)
	assert.NotNil(t, e.Stats)
	assert.NotNil(t, e.Clock)
	assert.True(t, e.ShouldCache("k", 1))
}

func TestEngineBuffersUntilFlush(t *testing.T) {
	e, clock := newTestEngine()
	var got []hooks.Event
	rec := func(ev hooks.Event) error {
		got = append(got, ev)
		return nil
	}
	e.Hooks.RegisterNotification(hooks.OnHit, rec, hooks.DefaultPriority)
	e.Hooks.RegisterNotification(hooks.OnMiss, rec, hooks.DefaultPriority)
	e.Hooks.RegisterNotification(hooks.OnEvict, rec, hooks.DefaultPriority)

	now := clock.Now()
	ent := types.NewCacheEntry("a", 1, time.Second, now)

	var buf Events
	e.Hit(&buf, "a", 1, now)
	e.Miss(&buf, "b", now)
	e.Removed(&buf, ent, hooks.ReasonCapacity, now)
	e.Removed(&buf, ent, hooks.ReasonExpired, now)
	e.Removed(&buf, ent, hooks.ReasonInvalidated, now)

	assert.Empty(t, got, "handlers must not run before Flush")
	s := e.Stats.Snapshot(0)
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, uint64(1), s.Evictions)
	assert.Equal(t, uint64(1), s.Expirations)
	assert.Equal(t, uint64(1), s.Invalidations)

	e.Flush(buf)
	assert.Len(t, got, 5)
	assert.Equal(t, hooks.OnHit, got[0].Hook)
	assert.Equal(t, hooks.OnMiss, got[1].Hook)
	assert.Equal(t, hooks.ReasonInvalidated, got[4].Reason)
}

func TestEngineSkipsEventsWithoutHandlers(t *testing.T) {
	e, clock := newTestEngine()
	var buf Events
	e.Hit(&buf, "a", 1, clock.Now())
	e.Miss(&buf, "a", clock.Now())
	assert.Empty(t, buf)
}

func TestEngineReadWrite(t *testing.T) {
	e, clock := newTestEngine()
	ent := types.NewCacheEntry("a", 1, time.Second, clock.Now())

	clock.Advance(500 * time.Millisecond)
	e.OnRead(ent, clock.Now())
	assert.Equal(t, clock.Now(), ent.LastAccessedAt)

	clock.Advance(600 * time.Millisecond)
	assert.True(t, e.IsExpired(ent, clock.Now()))

	e.OnWrite(ent, clock.Now())
	assert.False(t, e.IsExpired(ent, clock.Now()))
}
