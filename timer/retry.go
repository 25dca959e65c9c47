package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MasonSRE/opsorch/internal/panicutil"
)

// RetryController controls a timer created by SetRetryInterval.
type RetryController struct {
	reg     *Registry
	fn      func(ctx context.Context) error
	onError func(err error, count int)
	max     int

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards handle until the interval is armed
	handle Handle

	stopped atomic.Bool
	count   atomic.Int64
}

// SetRetryInterval invokes fn every interval. A nil error resets the
// failure count to zero; each error increments it and is passed to
// onError together with the new count. Once maxRetries > 0 consecutive
// failures have been seen the interval cancels itself. maxRetries <= 0
// retries forever.
//
// fn receives a context that is cancelled by Stop, by exhaustion and by
// ClearAll on the owning registry. Cancellation is best-effort: fn must
// observe the context for it to take effect. A panic in fn is reported to
// onError as an error.
func (r *Registry) SetRetryInterval(fn func(ctx context.Context) error, interval time.Duration, maxRetries int, onError func(err error, count int)) *RetryController {
	ctx, cancel := context.WithCancel(r.baseContext())
	rc := &RetryController{
		reg:     r,
		fn:      fn,
		onError: onError,
		max:     maxRetries,
		ctx:     ctx,
		cancel:  cancel,
	}

	rc.mu.Lock()
	rc.handle = r.SetInterval(rc.tick, interval)
	rc.mu.Unlock()
	return rc
}

// Stop cancels the retry timer. It is idempotent, and a callback already in
// flight will neither report its error nor schedule another attempt.
func (rc *RetryController) Stop() {
	rc.stopped.Store(true)
	rc.halt()
}

// RetryCount returns the current number of consecutive failures.
func (rc *RetryController) RetryCount() int {
	return int(rc.count.Load())
}

// Stopped reports whether the controller was stopped or exhausted.
func (rc *RetryController) Stopped() bool {
	return rc.stopped.Load()
}

func (rc *RetryController) tick() {
	if rc.stopped.Load() {
		return
	}

	err := panicutil.Call(func() error { return rc.fn(rc.ctx) })
	if rc.stopped.Load() {
		return
	}
	if err == nil {
		rc.count.Store(0)
		return
	}

	n := int(rc.count.Add(1))
	if rc.onError != nil {
		rc.onError(err, n)
	}
	if rc.max > 0 && n >= rc.max {
		rc.stopped.Store(true)
		rc.halt()
		rc.reg.logger.WithField("retries", rc.max).WithError(err).Warn("timer: max retries reached, stopping")
	}
}

func (rc *RetryController) halt() {
	rc.mu.Lock()
	h := rc.handle
	rc.mu.Unlock()

	rc.reg.ClearTimer(h)
	rc.cancel()
}
