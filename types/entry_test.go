package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheEntryExpiry(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ent := NewCacheEntry("k", "v", time.Second, start)

	assert.Equal(t, start.Add(time.Second), ent.ExpiresAt())
	assert.False(t, ent.Expired(start.Add(time.Second)), "expiry instant itself is still valid")
	assert.True(t, ent.Expired(start.Add(time.Second+time.Nanosecond)))
}

func TestCacheEntryTouchIsMonotonic(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ent := NewCacheEntry("k", "v", time.Minute, start)

	ent.Touch(start.Add(2 * time.Second))
	ent.Touch(start.Add(time.Second)) // clock went backwards

	assert.Equal(t, uint64(2), ent.Hits)
	assert.Equal(t, start.Add(2*time.Second), ent.LastAccessedAt)
}

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, start.Add(1500*time.Millisecond), c.Now())
}
