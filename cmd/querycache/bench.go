package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	cache "github.com/krisalay/query-cache"
	"github.com/krisalay/query-cache/keys"
)

type benchOptions struct {
	capacity    int
	preloadKeys int
	goroutines  int
	opsPerG     int
	writeEvery  int
}

func newBenchCommand(root *rootOptions) *cobra.Command {
	opts := benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a concurrent load test and print throughput and hit rate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cacheCfg := root.cfg.CacheConfig()
			if cmd.Flags().Changed("capacity") {
				cacheCfg.MaxSize = opts.capacity
			}

			rt, err := newRuntime(root.cfg, cacheCfg)
			if err != nil {
				return err
			}
			defer rt.close()

			return runBench(cmd.Context(), cmd.OutOrStdout(), rt.cache, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.capacity, "capacity", 200000, "max entries (overrides cache.max_size)")
	f.IntVar(&opts.preloadKeys, "keys", 100000, "distinct query keys")
	f.IntVar(&opts.goroutines, "goroutines", 200, "concurrent workers")
	f.IntVar(&opts.opsPerG, "ops", 5000, "operations per worker")
	f.IntVar(&opts.writeEvery, "write-every", 0, "every Nth operation invalidates its table (0 = reads only)")
	return cmd
}

func benchKey(i int) string {
	return keys.MustEncode(fmt.Sprintf("table%d:getAll", i%16), map[string]any{"page": i})
}

func runBench(ctx context.Context, out io.Writer, c *cache.Cache, o benchOptions) error {
	say := func(format string, args ...any) { fmt.Fprintf(out, format+"\n", args...) }
	if o.preloadKeys <= 0 || o.goroutines <= 0 || o.opsPerG <= 0 {
		return errors.New("keys, goroutines and ops must be > 0")
	}

	say("\n================ CACHE LOAD BENCHMARK =================")
	say("CONFIG")
	say("---------------------------------")
	say("Capacity     : %d", c.Config().MaxSize)
	say("Preload Keys : %d", o.preloadKeys)
	say("Goroutines   : %d", o.goroutines)
	say("Ops/Goroutine: %d", o.opsPerG)
	say("Write Every  : %d", o.writeEvery)
	say("---------------------------------")

	// Keys are encoded once so the run measures the cache, not JSON.
	ks := make([]string, o.preloadKeys)
	for i := range ks {
		ks[i] = benchKey(i)
	}

	say("\nPreloading cache...")
	for i, k := range ks {
		if err := c.Set(k, i); err != nil {
			return err
		}
	}
	say("Preload complete.")

	say("\nWarming up cache...")
	for i := range 10000 {
		c.Get(ks[i%len(ks)])
	}
	say("Warmup complete.")

	say("\nRunning concurrency benchmark...")
	load := func(context.Context) (any, error) { return "origin", nil }

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(o.goroutines)
	for g := range o.goroutines {
		go func() {
			defer wg.Done()
			for j := range o.opsPerG {
				if ctx.Err() != nil {
					return
				}
				i := (g*o.opsPerG + j) % len(ks)
				if o.writeEvery > 0 && j%o.writeEvery == 0 {
					c.Invalidate(fmt.Sprintf("table%d:", i%16))
					continue
				}
				_, _ = c.GetOrLoad(ctx, ks[i], load)
			}
		}()
	}
	wg.Wait()
	duration := time.Since(start)
	totalOps := o.goroutines * o.opsPerG

	st := c.Stats()
	say("\n================ RESULTS =================")
	say("Total Operations : %d", totalOps)
	say("Total Time       : %v", duration)
	say("Throughput       : %.2f ops/sec", float64(totalOps)/duration.Seconds())
	say("Hit Rate         : %.4f", st.HitRate)
	say("Evictions        : %d", st.Evictions)
	say("Invalidations    : %d", st.Invalidations)
	say("Final Size       : %d", st.Size)
	say("=========================================")

	return ctx.Err()
}
