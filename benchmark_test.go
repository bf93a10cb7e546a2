package cache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	cache "github.com/krisalay/query-cache"
	"github.com/krisalay/query-cache/keys"
)

func newBenchmarkCache(b *testing.B) *cache.Cache {
	cfg := cache.DefaultConfig()
	cfg.MaxSize = 100000

	c, err := cache.New(cfg, cache.WithLogger(zerolog.Nop()))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(c.Destroy)
	return c
}

//
// ================= SINGLE THREAD BENCH =================
//

func BenchmarkCacheGetHit(b *testing.B) {
	c := newBenchmarkCache(b)

	_ = c.Set("key", "value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("key")
	}
}

func BenchmarkCacheGetMiss(b *testing.B) {
	c := newBenchmarkCache(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("miss-%d", i)
		c.Get(key)
	}
}

//
// ================= PARALLEL BENCH =================
//

func BenchmarkCacheParallelGet(b *testing.B) {
	c := newBenchmarkCache(b)

	for i := 0; i < 1000; i++ {
		_ = c.Set(fmt.Sprintf("key-%d", i), i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Get("key-42")
		}
	})
}

//
// ================= WRITE BENCH =================
//

func BenchmarkCacheSet(b *testing.B) {
	c := newBenchmarkCache(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(fmt.Sprintf("key-%d", i), i)
	}
}

// Every Set past MaxSize evicts, so this measures the LRU tail path.
func BenchmarkCacheSetAtCapacity(b *testing.B) {
	cfg := cache.DefaultConfig()
	cfg.MaxSize = 1024
	c, err := cache.New(cfg, cache.WithLogger(zerolog.Nop()))
	if err != nil {
		b.Fatal(err)
	}
	defer c.Destroy()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(fmt.Sprintf("key-%d", i), i)
	}
}

//
// ================= QUERY KEYS =================
//

func BenchmarkGetOrLoadEncodedKey(b *testing.B) {
	c := newBenchmarkCache(b)
	ctx := context.Background()
	load := func(context.Context) (any, error) { return "rows", nil }
	query := map[string]any{"status": "pending", "id": 1}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keys.MustEncode("jobTemplates:getAll", query)
		_, _ = c.GetOrLoad(ctx, key, load)
	}
}

func BenchmarkInvalidate(b *testing.B) {
	c := newBenchmarkCache(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for j := 0; j < 100; j++ {
			_ = c.Set(fmt.Sprintf("departments:getById:%d", j), j)
			_ = c.Set(fmt.Sprintf("machines:getById:%d", j), j)
		}
		b.StartTimer()
		c.Invalidate("departments")
	}
}

//
// ================= HIGH CONCURRENCY TEST =================
//

func BenchmarkCacheHighConcurrency(b *testing.B) {
	c := newBenchmarkCache(b)

	hot := make([]string, 10000)
	for i := range hot {
		hot[i] = fmt.Sprintf("key-%d", i)
		_ = c.Set(hot[i], i)
	}

	b.ResetTimer()

	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < b.N/100; j++ {
				c.Get(hot[(j+id)%len(hot)])
			}
		}(i)
	}
	wg.Wait()
}
