// Package hooks is a priority-ordered registry of cache observers and guards.
//
// There are two closed families of hooks, and each has its own dispatch rule:
//
//   - Notification (OnHit, OnMiss, OnEvict): every handler runs, for side
//     effects only. A handler that returns an error or panics is logged and
//     counted, and the next handler still runs. Nothing reaches the caller of
//     the cache operation.
//   - Guard (ShouldCache): handlers run in order and the first one returning
//     false wins. With no handlers the answer is true.
//
// Handlers run in ascending priority (lower value first); handlers with equal
// priority run in registration order. Registering returns a Deregister func
// that removes exactly that registration.
package hooks

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPriority is the priority callers use when they have no preference.
const DefaultPriority = 10

// Notification names a fire-all hook.
type Notification uint8

const (
	OnHit Notification = iota + 1
	OnMiss
	OnEvict
)

func (n Notification) String() string {
	switch n {
	case OnHit:
		return "onHit"
	case OnMiss:
		return "onMiss"
	case OnEvict:
		return "onEvict"
	default:
		return fmt.Sprintf("notification(%d)", uint8(n))
	}
}

func (n Notification) valid() bool { return n >= OnHit && n <= OnEvict }

// Guard names a short-circuiting hook.
type Guard uint8

const (
	ShouldCache Guard = iota + 1
)

func (g Guard) String() string {
	if g == ShouldCache {
		return "shouldCache"
	}
	return fmt.Sprintf("guard(%d)", uint8(g))
}

func (g Guard) valid() bool { return g == ShouldCache }

// EvictReason says why an entry left the cache in an OnEvict event.
type EvictReason uint8

const (
	// ReasonCapacity: removed by the eviction policy to make room.
	ReasonCapacity EvictReason = iota + 1
	// ReasonExpired: TTL passed; removed on read or by the sweeper.
	ReasonExpired
	// ReasonInvalidated: matched an invalidation pattern.
	ReasonInvalidated
)

func (r EvictReason) String() string {
	switch r {
	case ReasonCapacity:
		return "capacity"
	case ReasonExpired:
		return "expired"
	case ReasonInvalidated:
		return "invalidated"
	default:
		return "none"
	}
}

// Event is what notification handlers receive.
// Value is set for OnHit and OnEvict; Reason only for OnEvict.
type Event struct {
	Hook   Notification
	Key    string
	Value  any
	Reason EvictReason
	At     time.Time
}

// NotifyFunc observes an event. A returned error is logged, never propagated.
type NotifyFunc func(Event) error

// GuardFunc decides whether key/value may be cached.
type GuardFunc func(key string, value any) bool

// Deregister removes the registration that returned it. Calling it again is a no-op.
type Deregister func()

type registration[F any] struct {
	id       uint64
	priority int
	fn       F
}

/*
Bus holds the registrations.

Each hook's handler list is copy-on-write: registering builds a new sorted
slice, dispatch grabs the current slice under a read lock and calls handlers
with no lock held. Handlers can therefore register, deregister or call back
into the cache without deadlocking.
*/
type Bus struct {
	mu     sync.RWMutex
	seq    uint64
	notify map[Notification][]registration[NotifyFunc]
	guards map[Guard][]registration[GuardFunc]

	failures atomic.Uint64
	logger   zerolog.Logger
}

// NewBus creates an empty bus. Handler failures are reported to logger.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		notify: make(map[Notification][]registration[NotifyFunc]),
		guards: make(map[Guard][]registration[GuardFunc]),
		logger: logger,
	}
}

// RegisterNotification adds fn to hook. It panics on an unknown hook or nil fn.
func (b *Bus) RegisterNotification(hook Notification, fn NotifyFunc, priority int) Deregister {
	if !hook.valid() {
		panic("hooks: unknown notification " + hook.String())
	}
	if fn == nil {
		panic("hooks: nil handler for " + hook.String())
	}

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.notify[hook] = insertSorted(b.notify[hook], registration[NotifyFunc]{id: id, priority: priority, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.notify[hook] = without(b.notify[hook], id)
			b.mu.Unlock()
		})
	}
}

// RegisterGuard adds fn to hook. It panics on an unknown hook or nil fn.
func (b *Bus) RegisterGuard(hook Guard, fn GuardFunc, priority int) Deregister {
	if !hook.valid() {
		panic("hooks: unknown guard " + hook.String())
	}
	if fn == nil {
		panic("hooks: nil handler for " + hook.String())
	}

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.guards[hook] = insertSorted(b.guards[hook], registration[GuardFunc]{id: id, priority: priority, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.guards[hook] = without(b.guards[hook], id)
			b.mu.Unlock()
		})
	}
}

// Notify runs every handler registered for ev.Hook.
func (b *Bus) Notify(ev Event) {
	b.mu.RLock()
	regs := b.notify[ev.Hook]
	b.mu.RUnlock()

	for _, r := range regs {
		b.callNotify(r.fn, ev)
	}
}

// Allow runs the guards for hook; the first false short-circuits.
func (b *Bus) Allow(hook Guard, key string, value any) bool {
	b.mu.RLock()
	regs := b.guards[hook]
	b.mu.RUnlock()

	for _, r := range regs {
		if !b.callGuard(hook, r.fn, key, value) {
			return false
		}
	}
	return true
}

// Has reports whether hook has any handler, so callers can skip building events.
func (b *Bus) Has(hook Notification) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.notify[hook]) > 0
}

// Len returns the number of handlers for a notification hook.
func (b *Bus) Len(hook Notification) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.notify[hook])
}

// GuardLen returns the number of handlers for a guard hook.
func (b *Bus) GuardLen(hook Guard) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.guards[hook])
}

// Failures counts handler errors and panics since the bus was created.
func (b *Bus) Failures() uint64 { return b.failures.Load() }

// callNotify isolates one handler. Failures are only logged: reporting them
// through Notify again could recurse into the handler that failed.
func (b *Bus) callNotify(fn NotifyFunc, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			b.failures.Add(1)
			b.logger.Error().
				Str("hook", ev.Hook.String()).
				Str("key", ev.Key).
				Interface("panic", p).
				Msg("hook handler panicked")
		}
	}()

	if err := fn(ev); err != nil {
		b.failures.Add(1)
		b.logger.Warn().
			Err(err).
			Str("hook", ev.Hook.String()).
			Str("key", ev.Key).
			Msg("hook handler failed")
	}
}

// callGuard treats a panicking guard as a veto.
func (b *Bus) callGuard(hook Guard, fn GuardFunc, key string, value any) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			b.failures.Add(1)
			b.logger.Error().
				Str("hook", hook.String()).
				Str("key", key).
				Interface("panic", p).
				Msg("guard handler panicked, not caching")
			ok = false
		}
	}()
	return fn(key, value)
}

// insertSorted returns a new slice with r placed after every registration of
// lower or equal priority.
func insertSorted[F any](regs []registration[F], r registration[F]) []registration[F] {
	i, _ := slices.BinarySearchFunc(regs, r.priority, func(e registration[F], p int) int {
		if e.priority <= p {
			return -1
		}
		return 1
	})
	out := make([]registration[F], 0, len(regs)+1)
	out = append(out, regs[:i]...)
	out = append(out, r)
	return append(out, regs[i:]...)
}

func without[F any](regs []registration[F], id uint64) []registration[F] {
	i := slices.IndexFunc(regs, func(r registration[F]) bool { return r.id == id })
	if i < 0 {
		return regs
	}
	out := make([]registration[F], 0, len(regs)-1)
	out = append(out, regs[:i]...)
	return append(out, regs[i+1:]...)
}
