package loading

import (
	"time"

	"github.com/MasonSRE/opsorch/internal/panicutil"
	"github.com/MasonSRE/opsorch/timer"
)

// Debounce returns a function that delays fn by delay. Each call cancels
// the call pending for key and schedules a new one, so only the last call
// of a burst runs, with its own argument. A non-positive delay uses the
// orchestrator default. fn runs on a timer goroutine; a panic in it is
// logged and dropped.
func Debounce[A any](o *Orchestrator, key Key, fn func(A), delay time.Duration) func(A) {
	if delay <= 0 {
		delay = o.defaults.DebounceDelay
	}
	return func(arg A) {
		o.mu.Lock()
		defer o.mu.Unlock()

		if prev, ok := o.debounced[key]; ok {
			o.reg.ClearTimer(prev)
		}
		var h timer.Handle
		// the callback takes o.mu, so it observes h as assigned below
		h = o.reg.SetTimeout(func() {
			o.mu.Lock()
			if cur, ok := o.debounced[key]; !ok || cur != h {
				o.mu.Unlock()
				return
			}
			delete(o.debounced, key)
			o.mu.Unlock()

			if err := panicutil.Call(func() error { fn(arg); return nil }); err != nil {
				o.logger.WithField("key", key.String()).WithError(err).Error("loading: debounced call panicked")
			}
		}, delay)
		o.debounced[key] = h
	}
}

// Throttle returns a function that runs fn immediately when at least
// interval has passed since the last run for key on this orchestrator,
// and otherwise drops the call. It reports whether fn ran. A non-positive
// interval uses the orchestrator default.
func Throttle[A any](o *Orchestrator, key Key, fn func(A), interval time.Duration) func(A) bool {
	if interval <= 0 {
		interval = o.defaults.ThrottleInterval
	}
	return func(arg A) bool {
		now := o.clock.Now()

		o.mu.Lock()
		if last, ok := o.lastRun[key]; ok && now.Sub(last) < interval {
			o.mu.Unlock()
			return false
		}
		o.lastRun[key] = now
		o.mu.Unlock()

		fn(arg)
		return true
	}
}

// PendingDebounced reports whether a debounced call for key is scheduled.
func (o *Orchestrator) PendingDebounced(key Key) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.debounced[key]
	return ok
}
