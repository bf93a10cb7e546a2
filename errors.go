package cache

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig is returned by New for out-of-range configuration.
	ErrInvalidConfig = errors.New("cache: invalid config")

	// ErrInvalidTTL is returned when a write is given ttl <= 0.
	ErrInvalidTTL = errors.New("cache: ttl must be > 0")

	// ErrDestroyed is returned by writes and loads after Destroy.
	ErrDestroyed = errors.New("cache: destroyed")
)
