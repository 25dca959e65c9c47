package coalesce

import (
	"context"
	"time"

	"github.com/apex/log"

	"github.com/MasonSRE/opsorch/timer"
)

// DefaultWindow is the quiet window used when none is configured.
const DefaultWindow = 50 * time.Millisecond

// Metrics exposes coalescer observability hooks.
// NoopMetrics is used by default.
type Metrics interface {
	// Enqueued is called once per Batch call that joined a batch.
	Enqueued()
	// Flushed is called when a batch of size waiters is sent upstream.
	Flushed(size int)
	// Failed is called when an upstream request fails for a whole batch.
	Failed()
}

// NoopMetrics discards every signal.
type NoopMetrics struct{}

func (NoopMetrics) Enqueued()   {}
func (NoopMetrics) Flushed(int) {}
func (NoopMetrics) Failed()     {}

var _ Metrics = NoopMetrics{}

// Option configures a Coalescer.
type Option func(*options)

type options struct {
	window  time.Duration
	reg     *timer.Registry
	metrics Metrics
	logger  log.Interface
	ctx     func() context.Context
}

// WithWindow sets the quiet window. Non-positive values keep DefaultWindow.
func WithWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.window = d
		}
	}
}

// WithRegistry schedules window timers on reg instead of a private
// registry. The caller then owns reg and should Close the coalescer
// before clearing it, otherwise pending callers only return when their
// own context ends.
func WithRegistry(reg *timer.Registry) Option {
	return func(o *options) { o.reg = reg }
}

// WithMetrics installs m. A nil m keeps NoopMetrics.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the logger for flush diagnostics.
func WithLogger(l log.Interface) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithContext supplies the context handed to each upstream request. A
// batch serves many callers, so no single caller's context is used. The
// default is context.Background.
func WithContext(fn func() context.Context) Option {
	return func(o *options) {
		if fn != nil {
			o.ctx = fn
		}
	}
}
