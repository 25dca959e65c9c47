package loading

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/MasonSRE/opsorch/notify"
	"github.com/MasonSRE/opsorch/timer"
)

// Key identifies a logical operation.
type Key struct {
	Namespace string
	Name      string
}

// String renders the key for logs as "namespace/name".
func (k Key) String() string {
	if k.Namespace == "" {
		return k.Name
	}
	return k.Namespace + "/" + k.Name
}

// State describes a busy key.
type State struct {
	Message   string
	StartTime time.Time
}

// slot is the busy record for one key. holders counts the WithLoading and
// WithBatchLoading calls currently holding the key; a SetLoading(true) on
// an idle key counts as one holder.
type slot struct {
	State
	holders int
}

// Orchestrator owns the busy state of logical operations and the timers
// used by its wrappers. All methods are safe for concurrent use.
type Orchestrator struct {
	notifier notify.Notifier
	reg      *timer.Registry
	logger   log.Interface
	metrics  Metrics
	clock    Clock
	defaults Defaults

	mu        sync.Mutex
	global    bool
	states    map[Key]*slot
	debounced map[Key]timer.Handle
	lastRun   map[Key]time.Time
}

// New returns an idle Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		notifier:  notify.Noop{},
		logger:    log.Log,
		metrics:   NoopMetrics{},
		clock:     systemClock{},
		defaults:  Defaults{}.withFallbacks(),
		states:    make(map[Key]*slot),
		debounced: make(map[Key]timer.Handle),
		lastRun:   make(map[Key]time.Time),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.reg == nil {
		o.reg = timer.New(timer.WithLogger(o.logger))
	}
	return o
}

// SetGlobalLoading sets the global busy flag. Turning it on with a
// non-empty message also emits an info notice.
func (o *Orchestrator) SetGlobalLoading(loading bool, message string) {
	o.mu.Lock()
	o.global = loading
	o.mu.Unlock()

	if loading && message != "" {
		notify.Info(context.Background(), o.notifier, message)
	}
}

// GlobalLoading reports the global busy flag.
func (o *Orchestrator) GlobalLoading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.global
}

// SetLoading marks key busy with message and StartTime now, replacing any
// existing state, or clears it. Clearing is forced: it drops the key even
// if wrapped operations still hold it.
func (o *Orchestrator) SetLoading(key Key, loading bool, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !loading {
		delete(o.states, key)
		return
	}
	s, ok := o.states[key]
	if !ok {
		s = &slot{holders: 1}
		o.states[key] = s
	}
	s.Message = message
	s.StartTime = o.clock.Now()
}

// IsLoading reports whether key is busy.
func (o *Orchestrator) IsLoading(key Key) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.states[key]
	return ok
}

// LoadingState returns the state of a busy key.
func (o *Orchestrator) LoadingState(key Key) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.states[key]
	if !ok {
		return State{}, false
	}
	return s.State, true
}

// HasAnyLoading reports whether the global flag is set or any key is busy.
func (o *Orchestrator) HasAnyLoading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.global || len(o.states) > 0
}

// AllLoadingStates returns a snapshot of every busy key.
func (o *Orchestrator) AllLoadingStates() map[Key]State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[Key]State, len(o.states))
	for k, s := range o.states {
		out[k] = s.State
	}
	return out
}

// ClearAll resets the global flag, drops every busy key, cancels pending
// debounced calls and forgets throttle history. Wrapped operations still
// running are not interrupted. It is idempotent.
func (o *Orchestrator) ClearAll() {
	o.clear(func(Key) bool { return true }, true)
}

// clear drops the state of every key matched by match, under one lock.
func (o *Orchestrator) clear(match func(Key) bool, global bool) {
	o.mu.Lock()
	if global {
		o.global = false
	}
	var handles []timer.Handle
	for k := range o.states {
		if match(k) {
			delete(o.states, k)
		}
	}
	for k, h := range o.debounced {
		if match(k) {
			handles = append(handles, h)
			delete(o.debounced, k)
		}
	}
	for k := range o.lastRun {
		if match(k) {
			delete(o.lastRun, k)
		}
	}
	o.mu.Unlock()

	for _, h := range handles {
		o.reg.ClearTimer(h)
	}
}

// ---- holds used by the wrappers ----

// acquire adds one holder to key, overwriting its message.
func (o *Orchestrator) acquire(key Key, message string) *slot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.states[key]
	if !ok {
		s = &slot{State: State{StartTime: o.clock.Now()}}
		o.states[key] = s
	}
	s.holders++
	s.Message = message
	return s
}

// release drops one holder. A slot that was cleared or replaced since
// acquire is left alone.
func (o *Orchestrator) release(key Key, s *slot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if cur, ok := o.states[key]; !ok || cur != s {
		return
	}
	s.holders--
	if s.holders <= 0 {
		delete(o.states, key)
	}
}

// held reports whether s is still the live slot for key.
func (o *Orchestrator) held(key Key, s *slot) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	cur, ok := o.states[key]
	return ok && cur == s
}

// setMessage updates the message of a slot that is still live.
func (o *Orchestrator) setMessage(key Key, s *slot, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.states[key]; ok && cur == s {
		s.Message = message
	}
}
