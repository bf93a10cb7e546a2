package eviction

import "github.com/pkg/errors"

/*
This file defines how the cache decides what to remove when it runs out of space.
*/

/*
Policy is the interface that all eviction strategies must follow.

The cache does NOT care how eviction works internally.
It only calls these methods, always while holding its own lock,
so implementations need no locking of their own.
*/
type Policy interface {

	// OnGet is called whenever a key is read from the cache.
	// LRU uses it to mark the key as most recently used.
	OnGet(string)

	// OnPut is called whenever a key is written to the cache,
	// both for new keys and for replacements.
	OnPut(string)

	// Remove is called when a key leaves the cache for any reason
	// other than Evict (delete, expiry, invalidation).
	Remove(string)

	// Evict picks the victim when the cache is FULL and forgets it.
	// ok is false when nothing is tracked.
	Evict() (key string, ok bool)

	// Len is the number of tracked keys.
	Len() int

	// Reset forgets every key.
	Reset()
}

// PolicyType is a simple identifier for supported eviction strategies.
type PolicyType string

const (
	// LRU (Least Recently Used): Evicts the key that has NOT been accessed for the longest time.
	LRU PolicyType = "LRU"
)

// ErrUnknownPolicy is returned by NewEvictionPolicy for unsupported types.
var ErrUnknownPolicy = errors.New("eviction: unknown policy")

// NewEvictionPolicy is a small factory function.
// Given a PolicyType, it creates the correct eviction policy.
func NewEvictionPolicy(t PolicyType) (Policy, error) {
	switch t {
	case LRU, "":
		return newLRU(0), nil
	default:
		return nil, errors.Wrapf(ErrUnknownPolicy, "%q", string(t))
	}
}
