package loading

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/MasonSRE/opsorch/internal/panicutil"
	"github.com/MasonSRE/opsorch/notify"
)

// WithLoading runs op while key is marked busy.
//
// If the timeout elapses while the call still holds key, the hold is
// released, an error notice is sent and the context passed to op is
// cancelled. WithLoading does not return early and does not produce an
// error of its own: it still waits for op and returns whatever op
// returns, but sends no further notices for the call.
//
// Otherwise a success notice is sent when SuccessMessage is set, and a
// failure sends an error notice with the error's text before the error
// is returned unchanged. A panic in op is returned as an error. The
// call's hold on key is released exactly once.
func WithLoading[T any](ctx context.Context, o *Orchestrator, key Key, op func(ctx context.Context) (T, error), opts ...CallOption) (T, error) {
	cfg := o.callConfig(DefaultMessage, opts)
	lg := o.logger.WithFields(log.Fields{"key": key.String(), "op_id": uuid.NewString()})

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := o.acquire(key, cfg.message)
	var once sync.Once
	release := func() { once.Do(func() { o.release(key, s) }) }
	defer release()

	// settled is claimed by whichever of the timeout and op completion
	// happens first.
	var settled atomic.Bool
	h := o.reg.SetTimeout(func() {
		if !o.held(key, s) || !settled.CompareAndSwap(false, true) {
			return
		}
		release()
		cancel()
		o.metrics.TimedOut()
		lg.WithField("timeout", cfg.timeout).Warn("loading: operation timed out")
		if cfg.notify {
			notify.Error(ctx, o.notifier, TimeoutMessage)
		}
	}, cfg.timeout)

	lg.Debug("loading: started")
	o.metrics.Started()
	start := o.clock.Now()

	v, err := panicutil.Value(func() (T, error) { return op(opCtx) })

	o.reg.ClearTimer(h)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	o.metrics.Finished(outcome, o.clock.Now().Sub(start))

	if !settled.CompareAndSwap(false, true) {
		lg.WithError(err).Debug("loading: operation settled after timeout")
		return v, err
	}
	release()

	if err != nil {
		lg.WithError(err).Error("loading: operation failed")
		if cfg.notify {
			msg := err.Error()
			if msg == "" {
				msg = cfg.errorMessage
			}
			notify.Error(ctx, o.notifier, msg)
		}
		return v, err
	}
	if cfg.notify && cfg.successMessage != "" {
		notify.Success(ctx, o.notifier, cfg.successMessage)
	}
	return v, nil
}
