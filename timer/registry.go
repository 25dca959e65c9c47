// Package timer provides a registry that owns every timer it creates, so
// that a UI unit (or any scoped owner) can cancel all of them in one call
// when it is torn down.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
)

// Kind distinguishes one-shot timers from recurring ones.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindInterval
)

// String returns "timeout" or "interval".
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindInterval:
		return "interval"
	default:
		return "unknown"
	}
}

// minInterval bounds recurring timers; time.NewTicker rejects non-positive periods.
const minInterval = time.Millisecond

// Handle identifies a timer owned by a Registry. The zero Handle is never issued.
type Handle struct {
	ID   uint64
	Kind Kind
}

// Stats is a point-in-time count of registered timers.
type Stats struct {
	TotalTimers int
	Intervals   int
	Timeouts    int
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for teardown and retry diagnostics.
func WithLogger(l log.Interface) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// Registry tracks timers and cancels them on demand. All methods are safe
// for concurrent use. A Registry remains usable after ClearAll.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	timers map[uint64]*entry

	// ctx is handed to retry callbacks; it is cancelled by ClearAll.
	ctx    context.Context
	cancel context.CancelFunc

	logger log.Interface
}

type entry struct {
	kind Kind
	t    *time.Timer   // timeouts
	stop chan struct{} // intervals
}

func (e *entry) cancel() {
	if e.t != nil {
		e.t.Stop()
	}
	if e.stop != nil {
		close(e.stop)
	}
}

// New returns an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		timers: make(map[uint64]*entry),
		logger: log.Log,
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetTimeout runs fn once after d. The handle is deregistered before fn
// runs, so fn never observes itself as pending. Panics in fn are not
// recovered.
func (r *Registry) SetTimeout(fn func(), d time.Duration) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, e := r.registerLocked(KindTimeout)
	// fn may fire before we return; release blocks on mu until then.
	e.t = time.AfterFunc(d, func() {
		if !r.release(id, e) {
			return // cleared after the runtime timer fired
		}
		fn()
	})
	return Handle{ID: id, Kind: KindTimeout}
}

// SetInterval runs fn every d until cleared. Ticks are delivered on a
// dedicated goroutine and never overlap; a slow fn drops ticks. Periods
// below one millisecond are rounded up.
func (r *Registry) SetInterval(fn func(), d time.Duration) Handle {
	if d < minInterval {
		d = minInterval
	}

	r.mu.Lock()
	id, e := r.registerLocked(KindInterval)
	e.stop = make(chan struct{})
	r.mu.Unlock()

	go runInterval(fn, d, e.stop)
	return Handle{ID: id, Kind: KindInterval}
}

func runInterval(fn func(), d time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			// A clear racing with a tick wins.
			select {
			case <-stop:
				return
			default:
			}
			fn()
		}
	}
}

// ClearTimer cancels h if it is still registered. It is a no-op otherwise.
func (r *Registry) ClearTimer(h Handle) {
	r.mu.Lock()
	e, ok := r.timers[h.ID]
	if ok {
		delete(r.timers, h.ID)
	}
	r.mu.Unlock()

	if ok {
		e.cancel()
	}
}

// ClearAll cancels every registered timer and empties the registry. It
// also cancels the context handed to running retry callbacks. Calling it
// repeatedly, or before any timer was created, is safe.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	timers := r.timers
	r.timers = make(map[uint64]*entry)
	cancel := r.cancel
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.mu.Unlock()

	cancel()
	for _, e := range timers {
		e.cancel()
	}
	if len(timers) > 0 {
		r.logger.WithField("timers", len(timers)).Debug("timer: cleared all timers")
	}
}

// Stats reports the number of registered timers by kind.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Stats
	for _, e := range r.timers {
		switch e.kind {
		case KindInterval:
			s.Intervals++
		case KindTimeout:
			s.Timeouts++
		}
	}
	s.TotalTimers = len(r.timers)
	return s
}

// HasActiveTimers reports whether any timer is registered.
func (r *Registry) HasActiveTimers() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers) > 0
}

// ---- internals ----

func (r *Registry) registerLocked(kind Kind) (uint64, *entry) {
	r.nextID++
	e := &entry{kind: kind}
	r.timers[r.nextID] = e
	return r.nextID, e
}

// release deregisters a fired timeout. It reports false when the timeout
// was cleared in the meantime.
func (r *Registry) release(id uint64, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.timers[id]; !ok || cur != e {
		return false
	}
	delete(r.timers, id)
	return true
}

func (r *Registry) baseContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}
