package store

import "github.com/krisalay/query-cache/types"

/*
This file defines how entries are actually held in memory.

The cache wraps every call in a single mutex: a read has to move the key in
the LRU list anyway, so there is nothing to gain from lock-free reads here.
Store itself is therefore a plain map with no synchronisation.
*/

// Store is the owned map of key → entry.
type Store struct {
	data map[string]*types.CacheEntry
}

// New creates an empty store; sizeHint pre-sizes the map.
func New(sizeHint int) *Store {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Store{data: make(map[string]*types.CacheEntry, sizeHint)}
}

// Get retrieves an entry by key. Expiry is not checked here.
func (s *Store) Get(key string) (*types.CacheEntry, bool) {
	ent, ok := s.data[key]
	return ent, ok
}

// Put inserts or replaces the entry for ent.Key.
// It reports whether the key was new.
func (s *Store) Put(ent *types.CacheEntry) bool {
	_, existed := s.data[ent.Key]
	s.data[ent.Key] = ent
	return !existed
}

// Delete removes an entry and returns it. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) (*types.CacheEntry, bool) {
	ent, ok := s.data[key]
	if ok {
		delete(s.data, key)
	}
	return ent, ok
}

// Len returns how many entries are stored.
func (s *Store) Len() int {
	return len(s.data)
}

// Range calls fn for every entry until fn returns false.
// fn may delete the entry it is given.
func (s *Store) Range(fn func(*types.CacheEntry) bool) {
	for _, ent := range s.data {
		if !fn(ent) {
			return
		}
	}
}

// Reset drops every entry.
func (s *Store) Reset() {
	s.data = make(map[string]*types.CacheEntry)
}
