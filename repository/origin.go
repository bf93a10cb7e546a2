// Package repository is a cached data-access layer.
//
// Reads go through the cache with keys built by package keys; writes go to
// the origin through a WritePolicy and, once the origin has applied them,
// invalidate every cached read of the table they touched.
package repository

import (
	"context"

	"github.com/pkg/errors"

	"github.com/krisalay/query-cache/invalidation"
)

var (
	// ErrNotFound is returned by an origin for a record that does not exist.
	ErrNotFound = errors.New("repository: not found")

	// ErrIDRequired is returned when a write needs a record id and got none.
	ErrIDRequired = errors.New("repository: record id required")

	// ErrQueueFull is returned by a write-back policy whose queue is full.
	ErrQueueFull = errors.New("repository: write queue full")

	// ErrClosed is returned by a write policy after Close.
	ErrClosed = errors.New("repository: write policy closed")
)

// Read describes one origin read.
type Read struct {
	Table string
	Op    string // invalidation.OpGetAll, OpGetByID, OpSearch or OpFilter
	ID    string // OpGetByID only
	Query any
}

// Write describes one origin mutation.
type Write struct {
	Table   string
	Op      invalidation.Mutation
	ID      string
	Payload any
}

/*
Origin is the backing store (DB, API, etc.) the cache sits in front of.

Write returns the id of the affected record; for a create with an empty ID
the origin assigns one.
*/
type Origin interface {
	Read(ctx context.Context, r Read) (any, error)
	Write(ctx context.Context, w Write) (id string, err error)
}
