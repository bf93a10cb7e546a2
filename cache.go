package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"golang.org/x/sync/singleflight"

	"github.com/krisalay/query-cache/api"
	"github.com/krisalay/query-cache/engine"
	"github.com/krisalay/query-cache/eviction"
	"github.com/krisalay/query-cache/expiration"
	"github.com/krisalay/query-cache/hooks"
	"github.com/krisalay/query-cache/invalidation"
	"github.com/krisalay/query-cache/logging"
	"github.com/krisalay/query-cache/stats"
	"github.com/krisalay/query-cache/store"
	"github.com/krisalay/query-cache/types"
)

var _ api.Cache = (*Cache)(nil)

/*
Cache is the main cache implementation.
This struct is the orchestrator that connects:
- the entry store
- eviction
- expiration and the background sweeper
- hooks and stats (through the engine)
- single-flight loading

Every path that touches the store or the eviction policy holds mu, so
Len() <= MaxSize and the LRU list stay consistent. Hook handlers and origin
loads always run with mu released.
*/
type Cache struct {
	cfg    Config
	name   string
	logger zerolog.Logger

	// engine contains the "rules" of the cache: TTL, hooks, stats, clock.
	engine *engine.CacheEngine

	mu        sync.Mutex
	store     *store.Store
	policy    eviction.Policy
	destroyed bool

	// sf makes concurrent misses on one key share a single origin fetch.
	sf singleflight.Group

	sweeper     *expiration.Sweeper
	stopSweeper context.CancelFunc
	sweeperDone <-chan error
	destroyOnce sync.Once

	// flushing counts sweep passes currently delivering their events.
	flushing atomic.Int32
}

// New validates cfg, builds the cache and, when enabled, starts its sweeper.
// The caller owns the returned cache and must call Destroy when done with it.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{name: "default", policy: eviction.LRU}
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := eviction.NewEvictionPolicy(o.policy)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}

	var logger zerolog.Logger
	if o.logger != nil {
		logger = *o.logger
	} else {
		logger = logging.With().Str("component", "querycache").Logger()
	}
	logger = logger.With().
		Str("cache", o.name).
		Str("instance", uuid.NewString()).
		Logger()

	bus := o.bus
	if bus == nil {
		bus = hooks.NewBus(logger)
	}

	c := &Cache{
		cfg:    cfg,
		name:   o.name,
		logger: logger,
		engine: engine.NewCacheEngine(expiration.FixedTTL{}, bus, o.clock, logger),
		store:  store.New(min(cfg.MaxSize, 1024)),
		policy: policy,
	}

	if cfg.Enabled {
		c.startSweeper()
	}

	logger.Info().
		Bool("enabled", cfg.Enabled).
		Int("max_size", cfg.MaxSize).
		Dur("default_ttl", cfg.DefaultTTL).
		Dur("sweep_interval", cfg.SweepInterval).
		Msg("cache created")
	return c, nil
}

// startSweeper runs the sweeper under its own supervisor so a panicking pass
// is logged and restarted instead of killing the process.
func (c *Cache) startSweeper() {
	c.sweeper = expiration.NewSweeper(sweepTarget{c}, c.cfg.SweepInterval, c.engine.Clock, c.logger)

	sup := suture.New("querycache-"+c.name, suture.Spec{
		EventHook: func(ev suture.Event) {
			c.logger.Warn().Str("event", ev.String()).Msg("sweeper supervisor event")
		},
		Timeout: 10 * time.Second,
	})
	sup.Add(c.sweeper)

	ctx, cancel := context.WithCancel(context.Background())
	c.stopSweeper = cancel
	c.sweeperDone = sup.ServeBackground(ctx)
}

// Name returns the label given with WithName.
func (c *Cache) Name() string { return c.name }

// Config returns the configuration the cache was built with.
func (c *Cache) Config() Config { return c.cfg }

// Hooks exposes the hook bus.
func (c *Cache) Hooks() *hooks.Bus { return c.engine.Hooks }

// RegisterNotification adds an OnHit/OnMiss/OnEvict handler.
func (c *Cache) RegisterNotification(hook hooks.Notification, fn hooks.NotifyFunc, priority int) hooks.Deregister {
	return c.engine.Hooks.RegisterNotification(hook, fn, priority)
}

// RegisterGuard adds a ShouldCache handler.
func (c *Cache) RegisterGuard(hook hooks.Guard, fn hooks.GuardFunc, priority int) hooks.Deregister {
	return c.engine.Hooks.RegisterGuard(hook, fn, priority)
}

/*
Get retrieves a value from the cache.

  - missing key: miss
  - expired key: removed on the spot (OnEvict with ReasonExpired), then miss
  - otherwise: hit; the entry becomes the most recently used

Misses are never errors. A disabled or destroyed cache always misses.
*/
func (c *Cache) Get(key string) (any, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}

	var (
		evs   engine.Events
		value any
		hit   bool
	)

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, false
	}

	now := c.engine.Now()
	ent, ok := c.store.Get(key)
	switch {
	case !ok:
		c.engine.Miss(&evs, key, now)
	case c.engine.IsExpired(ent, now):
		c.removeLocked(key)
		c.engine.Removed(&evs, ent, hooks.ReasonExpired, now)
		c.engine.Miss(&evs, key, now)
	default:
		c.engine.OnRead(ent, now)
		c.policy.OnGet(key)
		value, hit = ent.Value, true
		c.engine.Hit(&evs, key, value, now)
	}
	c.mu.Unlock()

	c.engine.Flush(evs)
	return value, hit
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value any) error {
	return c.SetWithTTL(key, value, c.cfg.DefaultTTL)
}

/*
SetWithTTL stores value under key for ttl.

  - ttl <= 0 is a caller error (ErrInvalidTTL), never clamped
  - a ShouldCache guard returning false turns the call into a no-op
  - a new key on a full cache evicts the least recently used entry first,
    so Len() <= MaxSize holds when SetWithTTL returns
  - an existing key is replaced with fresh metadata and never evicts anything
*/
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.Wrapf(ErrInvalidTTL, "key %q: got %s", key, ttl)
	}
	if c.isDestroyed() {
		return ErrDestroyed
	}
	if !c.cfg.Enabled {
		return nil
	}
	if !c.engine.ShouldCache(key, value) {
		return nil
	}

	var evs engine.Events

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}

	now := c.engine.Now()
	if _, exists := c.store.Get(key); !exists {
		for c.store.Len() >= c.cfg.MaxSize {
			victim, ok := c.policy.Evict()
			if !ok {
				break
			}
			if ent, ok := c.store.Delete(victim); ok {
				c.engine.Removed(&evs, ent, hooks.ReasonCapacity, now)
			}
		}
	}

	ent := types.NewCacheEntry(key, value, ttl, now)
	c.engine.OnWrite(ent, now)
	c.store.Put(ent)
	c.policy.OnPut(key)
	c.mu.Unlock()

	c.engine.Flush(evs)
	return nil
}

// GetOrLoad is GetOrLoadWithTTL with the default TTL.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load types.LoadFunc) (any, error) {
	return c.GetOrLoadWithTTL(ctx, key, c.cfg.DefaultTTL, load)
}

/*
GetOrLoadWithTTL returns the cached value for key, or loads it from the origin.

singleflight ensures that if 100 goroutines miss the same key at once,
only ONE of them calls load; the others wait and share its result. The
loaded value is stored through SetWithTTL, so ShouldCache guards apply.
The shared load keeps the first caller's ctx values but not its
cancellation, so one caller giving up does not fail the others that joined.

A load error is returned as is and nothing is cached.
*/
func (c *Cache) GetOrLoadWithTTL(ctx context.Context, key string, ttl time.Duration, load types.LoadFunc) (any, error) {
	if ttl <= 0 {
		return nil, errors.Wrapf(ErrInvalidTTL, "key %q: got %s", key, ttl)
	}
	if c.isDestroyed() {
		return nil, ErrDestroyed
	}
	if !c.cfg.Enabled {
		return load(ctx)
	}

	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		// A flight that finished just before this one started may already
		// have stored the value.
		if v, ok := c.peek(key); ok {
			return v, nil
		}
		v, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return v, c.SetWithTTL(key, v, ttl)
	})
	return v, err
}

// Delete removes key. It reports whether the key was present; deleting twice is fine.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return false
	}
	return c.removeLocked(key)
}

/*
Invalidate removes every entry whose key contains pattern and returns how
many were removed. Zero is a normal result. The empty pattern removes nothing;
use Clear to drop everything.
*/
func (c *Cache) Invalidate(pattern string) int {
	if pattern == "" {
		return 0
	}

	var evs engine.Events

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return 0
	}
	now := c.engine.Now()
	removed := 0
	c.store.Range(func(ent *types.CacheEntry) bool {
		if invalidation.Matches(ent.Key, pattern) {
			c.removeLocked(ent.Key)
			c.engine.Removed(&evs, ent, hooks.ReasonInvalidated, now)
			removed++
		}
		return true
	})
	c.mu.Unlock()

	c.engine.Flush(evs)
	if removed > 0 {
		c.logger.Debug().Str("pattern", pattern).Int("removed", removed).Msg("invalidated")
	}
	return removed
}

// InvalidateAll runs Invalidate for each pattern and returns the total removed.
func (c *Cache) InvalidateAll(patterns ...string) int {
	total := 0
	for _, p := range patterns {
		total += c.Invalidate(p)
	}
	return total
}

// Clear drops every entry and resets the stats. No OnEvict events fire.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.store.Reset()
	c.policy.Reset()
	c.engine.Stats.Reset()
}

// Len returns the number of stored entries, expired ones included until they are reclaimed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Stats returns a snapshot of the counters and the current size.
func (c *Cache) Stats() stats.Stats {
	return c.engine.Stats.Snapshot(c.Len())
}

// HookFailures counts hook handlers that returned an error or panicked.
func (c *Cache) HookFailures() uint64 {
	return c.engine.Hooks.Failures()
}

/*
TTL returns the remaining lifetime of key. ok is false when the key is
missing or already expired. It does not count as an access.
*/
func (c *Cache) TTL(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.store.Get(key)
	if !ok || c.destroyed {
		return 0, false
	}
	now := c.engine.Now()
	if c.engine.IsExpired(ent, now) {
		return 0, false
	}
	return ent.ExpiresAt().Sub(now), true
}

// SweepNow runs one expiration pass immediately and returns how many entries it removed.
func (c *Cache) SweepNow() int {
	if c.sweeper != nil {
		return c.sweeper.RunOnce()
	}
	return c.sweep(c.engine.Now())
}

/*
Destroy stops the sweeper, waits for it to exit and drops every entry.
A sweep pass already running finishes first. Destroy is idempotent; after it,
writes and loads return ErrDestroyed and reads miss.

Called while a sweep pass is delivering its OnEvict events, typically from
one of those handlers, Destroy cancels the sweeper without waiting for it.
The pass has already released the lock and the sweeper exits once the
delivery returns.
*/
func (c *Cache) Destroy() {
	c.destroyOnce.Do(func() {
		if c.stopSweeper != nil {
			c.stopSweeper()
			if c.flushing.Load() == 0 {
				<-c.sweeperDone
			}
		}

		c.mu.Lock()
		c.destroyed = true
		dropped := c.store.Len()
		c.store.Reset()
		c.policy.Reset()
		c.mu.Unlock()

		c.logger.Info().Int("dropped", dropped).Msg("cache destroyed")
	})
}

// sweep removes every entry expired at now.
func (c *Cache) sweep(now time.Time) int {
	var evs engine.Events

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return 0
	}
	removed := 0
	c.store.Range(func(ent *types.CacheEntry) bool {
		if c.engine.IsExpired(ent, now) {
			c.removeLocked(ent.Key)
			c.engine.Removed(&evs, ent, hooks.ReasonExpired, now)
			removed++
		}
		return true
	})
	c.mu.Unlock()

	c.flushing.Add(1)
	defer c.flushing.Add(-1)
	c.engine.Flush(evs)
	return removed
}

// peek reads a live value without touching stats, hooks or recency.
func (c *Cache) peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, false
	}
	ent, ok := c.store.Get(key)
	if !ok || c.engine.IsExpired(ent, c.engine.Now()) {
		return nil, false
	}
	return ent.Value, true
}

func (c *Cache) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// removeLocked deletes key from the store and the eviction policy. mu must be held.
func (c *Cache) removeLocked(key string) bool {
	_, ok := c.store.Delete(key)
	if ok {
		c.policy.Remove(key)
	}
	return ok
}

// sweepTarget adapts the cache to expiration.Target without exporting Sweep.
type sweepTarget struct{ c *Cache }

func (t sweepTarget) Sweep(now time.Time) int { return t.c.sweep(now) }
