package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/query-cache/types"
)

func TestStorePutGetDelete(t *testing.T) {
	s := New(2)
	now := time.Now()

	assert.True(t, s.Put(types.NewCacheEntry("a", 1, time.Minute, now)))
	assert.False(t, s.Put(types.NewCacheEntry("a", 2, time.Minute, now)), "replacement is not new")
	assert.Equal(t, 1, s.Len())

	ent, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, ent.Value)

	_, ok = s.Delete("a")
	assert.True(t, ok)
	_, ok = s.Delete("a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStoreRangeDeleteWhileIterating(t *testing.T) {
	s := New(0)
	now := time.Now()
	for _, k := range []string{"a", "b", "c"} {
		s.Put(types.NewCacheEntry(k, k, time.Minute, now))
	}

	s.Range(func(ent *types.CacheEntry) bool {
		if ent.Key != "b" {
			s.Delete(ent.Key)
		}
		return true
	})
	assert.Equal(t, 1, s.Len())

	s.Reset()
	assert.Equal(t, 0, s.Len())
}
