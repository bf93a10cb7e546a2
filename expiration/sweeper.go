package expiration

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/krisalay/query-cache/types"
)

// Target is whatever the sweeper reclaims entries from.
// Sweep must remove every entry expired at now and return how many it removed.
type Target interface {
	Sweep(now time.Time) int
}

// State is the sweeper's position in its Idle -> Running -> Idle cycle.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

/*
Sweeper proactively removes expired entries that nobody reads.

It runs as a supervised service (Serve blocks until ctx is cancelled). A pass
that has started always finishes: cancellation is only observed between ticks.
*/
type Sweeper struct {
	target   Target
	interval time.Duration
	clock    types.Clock
	logger   zerolog.Logger

	state  atomic.Int32
	passes atomic.Uint64
}

// NewSweeper builds a sweeper; interval must be > 0.
func NewSweeper(target Target, interval time.Duration, clock types.Clock, logger zerolog.Logger) *Sweeper {
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Serve implements suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// A tick and a cancellation can be ready together.
			if ctx.Err() != nil {
				return nil
			}
			s.RunOnce()
		}
	}
}

// RunOnce performs one synchronous pass and returns the number of entries removed.
func (s *Sweeper) RunOnce() int {
	s.state.Store(int32(Running))
	defer s.state.Store(int32(Idle))

	start := time.Now()
	removed := s.target.Sweep(s.clock.Now())
	s.passes.Add(1)

	s.logger.Debug().
		Int("removed", removed).
		Dur("took", time.Since(start)).
		Msg("expiration sweep finished")
	return removed
}

// State returns whether a pass is in progress.
func (s *Sweeper) State() State { return State(s.state.Load()) }

// Passes returns how many passes have completed.
func (s *Sweeper) Passes() uint64 { return s.passes.Load() }

// String names the service in supervisor events.
func (s *Sweeper) String() string { return "expiration-sweeper" }
