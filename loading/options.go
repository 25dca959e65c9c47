package loading

import (
	"time"

	"github.com/apex/log"

	"github.com/MasonSRE/opsorch/notify"
	"github.com/MasonSRE/opsorch/timer"
)

const (
	DefaultTimeout          = 30 * time.Second
	DefaultConcurrency      = 5
	DefaultDebounceDelay    = 300 * time.Millisecond
	DefaultThrottleInterval = time.Second
)

// User-facing default texts.
const (
	DefaultMessage      = "Processing..."
	DefaultBatchMessage = "Batch processing..."
	DefaultErrorMessage = "Operation failed"
	TimeoutMessage      = "Operation timed out, please retry"
)

// Clock reports the current time; useful for deterministic tests.
type Clock interface{ Now() time.Time }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Outcome is how a wrapped operation settled.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
)

// String returns "success" or "error".
func (o Outcome) String() string {
	if o == OutcomeError {
		return "error"
	}
	return "success"
}

// Metrics exposes orchestrator observability hooks. Each operation run by
// WithLoading or WithBatchLoading reports Started once and Finished once;
// TimedOut is reported in between when its timeout fires first.
type Metrics interface {
	Started()
	Finished(outcome Outcome, elapsed time.Duration)
	TimedOut()
}

// NoopMetrics discards every signal.
type NoopMetrics struct{}

func (NoopMetrics) Started()                        {}
func (NoopMetrics) Finished(Outcome, time.Duration) {}
func (NoopMetrics) TimedOut()                       {}

var _ Metrics = NoopMetrics{}

// Defaults holds the orchestrator-wide fallbacks used when a call does not
// set its own value. Zero fields keep the package defaults.
type Defaults struct {
	Timeout          time.Duration
	Concurrency      int
	DebounceDelay    time.Duration
	ThrottleInterval time.Duration
}

func (d Defaults) withFallbacks() Defaults {
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.Concurrency <= 0 {
		d.Concurrency = DefaultConcurrency
	}
	if d.DebounceDelay <= 0 {
		d.DebounceDelay = DefaultDebounceDelay
	}
	if d.ThrottleInterval <= 0 {
		d.ThrottleInterval = DefaultThrottleInterval
	}
	return d
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the notification sink. The default discards notices.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithRegistry schedules timeouts and debounced calls on reg.
func WithRegistry(reg *timer.Registry) Option {
	return func(o *Orchestrator) {
		if reg != nil {
			o.reg = reg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Interface) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics installs m. A nil m keeps NoopMetrics.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock replaces the wall clock used for StartTime and throttling.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithDefaults overrides the package defaults for this orchestrator.
func WithDefaults(d Defaults) Option {
	return func(o *Orchestrator) { o.defaults = d.withFallbacks() }
}

// CallOption tunes a single WithLoading or WithBatchLoading call.
type CallOption func(*callConfig)

type callConfig struct {
	message        string
	errorMessage   string
	successMessage string
	timeout        time.Duration
	concurrency    int
	notify         bool
	progress       bool
}

// Message sets the busy message.
func Message(s string) CallOption { return func(c *callConfig) { c.message = s } }

// ErrorMessage sets the notice used when a failed operation's error has
// no text.
func ErrorMessage(s string) CallOption { return func(c *callConfig) { c.errorMessage = s } }

// SuccessMessage enables a success notice with text s.
func SuccessMessage(s string) CallOption { return func(c *callConfig) { c.successMessage = s } }

// Timeout bounds how long WithLoading keeps the key busy.
func Timeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Concurrency sets the chunk size of WithBatchLoading.
func Concurrency(n int) CallOption {
	return func(c *callConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// ShowNotification toggles user-facing notices. Enabled by default.
func ShowNotification(on bool) CallOption { return func(c *callConfig) { c.notify = on } }

// ShowProgress toggles progress updates of the busy message in
// WithBatchLoading. Enabled by default.
func ShowProgress(on bool) CallOption { return func(c *callConfig) { c.progress = on } }

func (o *Orchestrator) callConfig(message string, opts []CallOption) callConfig {
	c := callConfig{
		message:      message,
		errorMessage: DefaultErrorMessage,
		timeout:      o.defaults.Timeout,
		concurrency:  o.defaults.Concurrency,
		notify:       true,
		progress:     true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
