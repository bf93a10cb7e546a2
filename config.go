package cache

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/krisalay/query-cache/eviction"
	"github.com/krisalay/query-cache/hooks"
	"github.com/krisalay/query-cache/types"
)

const (
	DefaultTTL           = 300 * time.Second
	DefaultMaxSize       = 1000
	DefaultSweepInterval = 300 * time.Second
)

/*
Config is fixed when the cache is built and never changes afterwards.
Start from DefaultConfig: the zero value has Enabled == false.
*/
type Config struct {
	// Enabled turns caching off entirely when false: reads always miss,
	// writes are dropped, loads go straight to the origin.
	Enabled bool

	// DefaultTTL applies to Set and GetOrLoad. Must be > 0.
	DefaultTTL time.Duration

	// MaxSize bounds the number of entries. Must be > 0.
	MaxSize int

	// SweepInterval is how often expired entries are reclaimed in the background. Must be > 0.
	SweepInterval time.Duration
}

// DefaultConfig returns {Enabled: true, DefaultTTL: 300s, MaxSize: 1000, SweepInterval: 300s}.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		DefaultTTL:    DefaultTTL,
		MaxSize:       DefaultMaxSize,
		SweepInterval: DefaultSweepInterval,
	}
}

// Validate rejects out-of-range values instead of clamping them.
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max size must be > 0, got %d", c.MaxSize)
	}
	if c.DefaultTTL <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "default ttl must be > 0, got %s", c.DefaultTTL)
	}
	if c.SweepInterval <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "sweep interval must be > 0, got %s", c.SweepInterval)
	}
	return nil
}

type options struct {
	name   string
	clock  types.Clock
	logger *zerolog.Logger
	bus    *hooks.Bus
	policy eviction.PolicyType
}

// Option customises a Cache at construction.
type Option func(*options)

// WithName labels the cache in logs and metrics. Default "default".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c types.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger. Default is a child of the global logging logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithHooks shares an existing bus, e.g. one that already has subscribers.
func WithHooks(b *hooks.Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithEvictionPolicy selects the eviction policy. Only eviction.LRU exists today.
func WithEvictionPolicy(t eviction.PolicyType) Option {
	return func(o *options) { o.policy = t }
}
