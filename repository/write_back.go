package repository

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// This file implements the "write-back" policy.

// writeReq is one pending write that still has to reach the origin.
type writeReq struct {
	ctx     context.Context
	w       Write
	applied func(string)
}

/*
WriteBackPolicy queues writes and applies them to the origin from a single
background worker, in submission order.

Cached reads of the table stay valid until the worker has applied the write;
the invalidation happens right after, so the cache never holds a value older
than the origin's.
*/
type WriteBackPolicy struct {
	origin Origin
	logger zerolog.Logger

	// ch is a buffered channel that holds pending write requests.
	ch chan writeReq

	mu     sync.RWMutex
	closed bool

	// wg is used to wait for the worker to finish during shutdown.
	wg sync.WaitGroup
}

// NewWriteBackPolicy creates a new write-back policy and starts its worker.
func NewWriteBackPolicy(origin Origin, buffer int, logger zerolog.Logger) *WriteBackPolicy {
	w := &WriteBackPolicy{
		origin: origin,
		logger: logger,
		ch:     make(chan writeReq, buffer),
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

/*
Submit queues wr and returns immediately. A create must carry its ID, since
the origin has not assigned one yet. When the queue is full the write is
rejected with ErrQueueFull rather than blocking the caller.
*/
func (w *WriteBackPolicy) Submit(ctx context.Context, wr Write, applied func(string)) (string, error) {
	if wr.ID == "" {
		return "", errors.Wrapf(ErrIDRequired, "write-back %s on %s", wr.Op, wr.Table)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return "", ErrClosed
	}

	select {
	case w.ch <- writeReq{ctx: context.WithoutCancel(ctx), w: wr, applied: applied}:
		return wr.ID, nil
	default:
		return "", errors.Wrapf(ErrQueueFull, "%s %s/%s", wr.Op, wr.Table, wr.ID)
	}
}

/*
worker runs in the background and processes queued writes.
A failed write is logged and dropped; the cache is left untouched for it.
*/
func (w *WriteBackPolicy) worker() {
	defer w.wg.Done()

	for req := range w.ch {
		id, err := w.origin.Write(req.ctx, req.w)
		if err != nil {
			w.logger.Error().Err(err).
				Str("table", req.w.Table).
				Str("op", string(req.w.Op)).
				Str("id", req.w.ID).
				Msg("write-back failed")
			continue
		}
		req.applied(id)
	}
}

/*
Close shuts down the write-back policy gracefully.
------------------
1. Stop accepting writes
2. Wait for the worker to finish processing queued writes

Without this, pending writes could be lost when the application shuts down.
Calling Close more than once is safe.
*/
func (w *WriteBackPolicy) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.wg.Wait()
}
