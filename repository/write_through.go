package repository

import "context"

/*
This file implements the "write-through" policy.

Whenever the Table writes, the write goes to the origin immediately and the
cache is invalidated before the call returns.

So the flow is: origin write (synchronous) → invalidate → return
*/

// WriteThroughPolicy directly forwards every write to the origin.
type WriteThroughPolicy struct {
	origin Origin
}

// NewWriteThroughPolicy creates a new write-through policy.
func NewWriteThroughPolicy(origin Origin) *WriteThroughPolicy {
	return &WriteThroughPolicy{origin: origin}
}

/*
Submit writes to the origin and runs applied on success.
  - This call is synchronous
  - A read issued after Submit returns never sees a stale cached value
  - If the origin is slow, writes become slow
*/
func (w *WriteThroughPolicy) Submit(ctx context.Context, wr Write, applied func(string)) (string, error) {
	id, err := w.origin.Write(ctx, wr)
	if err != nil {
		return "", err
	}
	applied(id)
	return id, nil
}

// Close has nothing to release.
func (w *WriteThroughPolicy) Close() {}
