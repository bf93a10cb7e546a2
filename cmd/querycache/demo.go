package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/krisalay/query-cache/keys"
	"github.com/krisalay/query-cache/repository"
)

func newDemoCommand(root *rootOptions) *cobra.Command {
	var capacity int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through miss, hit, TTL, single-flight, eviction and invalidation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cacheCfg := root.cfg.CacheConfig()
			cacheCfg.Enabled = true
			cacheCfg.MaxSize = capacity

			rt, err := newRuntime(root.cfg, cacheCfg)
			if err != nil {
				return err
			}
			defer rt.close()

			return runDemo(cmd.Context(), cmd.OutOrStdout(), rt)
		},
	}
	cmd.Flags().IntVar(&capacity, "capacity", 20, "max entries for the demo cache")
	return cmd
}

// slowOrigin makes concurrent misses overlap so single-flight is visible.
type slowOrigin struct {
	*repository.MemoryOrigin
	delay time.Duration
}

func (s slowOrigin) Read(ctx context.Context, r repository.Read) (any, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.MemoryOrigin.Read(ctx, r)
}

func runDemo(ctx context.Context, out io.Writer, rt *runtime) error {
	c := rt.cache
	say := func(format string, args ...any) { fmt.Fprintf(out, format+"\n", args...) }
	section := func(title string) { say("\n==================== %s ====================", title) }

	section("SYSTEM BOOT")
	cfg := c.Config()
	say("EVICTION POLICY : LRU")
	say("DEFAULT TTL     : %s", cfg.DefaultTTL)
	say("CAPACITY        : %d keys", cfg.MaxSize)
	say("SWEEP INTERVAL  : %s", cfg.SweepInterval)

	// ---------------- Backing Store ----------------
	mem := repository.NewMemoryOrigin()
	origin := slowOrigin{MemoryOrigin: mem, delay: 50 * time.Millisecond}
	departments := repository.NewTable("departments", c, origin)
	machines := repository.NewTable("machines", c, origin)
	defer departments.Close()
	defer machines.Close()

	if _, err := departments.Create(ctx, "7", repository.Record{"name": "Assembly"}); err != nil {
		return err
	}
	if _, err := machines.Create(ctx, "1", repository.Record{"name": "Press", "department": "7"}); err != nil {
		return err
	}

	// ====================================================
	section("1) CACHE MISS")
	v, err := departments.GetByID(ctx, "7")
	if err != nil {
		return err
	}
	say("CACHE  → GET departments/7 = %v (origin reads: %d)", v, mem.Reads())

	// ====================================================
	section("2) CACHE HIT")
	v, err = departments.GetByID(ctx, "7")
	if err != nil {
		return err
	}
	say("CACHE  → GET departments/7 = %v (origin reads: %d)", v, mem.Reads())

	// ====================================================
	section("3) TTL EXPIRATION")
	if err := c.SetWithTTL("x", "temp-value", time.Second); err != nil {
		return err
	}
	say("CACHE  → SET x (TTL = 1s)")
	select {
	case <-time.After(1100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	_, ok := c.Get("x")
	say("CACHE  → GET x after TTL, found = %v", ok)

	// ====================================================
	section("4) SINGLEFLIGHT")
	before := mem.Reads()
	var wg sync.WaitGroup
	results := make([]any, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = machines.GetAll(ctx, nil)
		}()
	}
	wg.Wait()
	for i, r := range results {
		say("GOROUTINE-%d → GET machines = %v", i, r)
	}
	say("ORIGIN → reads for 5 concurrent misses: %d", mem.Reads()-before)

	// ====================================================
	section("5) QUERY KEYS")
	query := map[string]any{"status": "pending", "id": 1}
	k1 := keys.MustEncode("jobTemplates", query)
	k2 := keys.MustEncode("jobTemplates", map[string]any{"id": 1, "status": "pending"})
	say("KEY    → %s", k1)
	say("KEY    → same query, other field order, equal = %v", k1 == k2)

	// ====================================================
	section("6) EVICTION")
	for i := range cfg.MaxSize * 2 {
		if err := c.Set(fmt.Sprintf("k%d", i), i); err != nil {
			return err
		}
	}
	_, ok = c.Get("k0")
	say("CACHE  → %d keys written, size = %d, k0 still cached = %v", cfg.MaxSize*2, c.Len(), ok)

	// ====================================================
	section("7) INVALIDATION")
	if _, err := departments.GetAll(ctx, nil); err != nil {
		return err
	}
	if _, err := machines.GetAll(ctx, nil); err != nil {
		return err
	}
	if err := departments.Update(ctx, "7", repository.Record{"name": "Final Assembly"}); err != nil {
		return err
	}
	reads := mem.Reads()
	v, err = departments.GetByID(ctx, "7")
	if err != nil {
		return err
	}
	say("CACHE  → GET departments/7 after update = %v (refetched = %v)", v, mem.Reads() > reads)
	reads = mem.Reads()
	if _, err := machines.GetAll(ctx, nil); err != nil {
		return err
	}
	say("CACHE  → machines still cached = %v", mem.Reads() == reads)

	// ====================================================
	st := c.Stats()
	section("STATS")
	say("SIZE          : %d", st.Size)
	say("HITS          : %d", st.Hits)
	say("MISSES        : %d", st.Misses)
	say("EVICTIONS     : %d", st.Evictions)
	say("EXPIRATIONS   : %d", st.Expirations)
	say("INVALIDATIONS : %d", st.Invalidations)
	say("HIT RATE      : %.2f", st.HitRate)

	section("SHUTDOWN")
	return nil
}
