package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MasonSRE/opsorch/loading"
)

// LoadingAdapter implements loading.Metrics.
type LoadingAdapter struct {
	started  prometheus.Counter
	finished *prometheus.CounterVec
	timeouts prometheus.Counter
	inFlight prometheus.Gauge
	duration prometheus.Histogram
}

// NewLoadingAdapter constructs an orchestrator metrics adapter. Arguments
// follow NewCacheAdapter.
func NewLoadingAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *LoadingAdapter {
	o := opts{ns: ns, sub: sub, labels: constLabels}
	a := &LoadingAdapter{
		started:  prometheus.NewCounter(o.counter("loading_operations_started_total", "Wrapped operations started")),
		finished: prometheus.NewCounterVec(o.counter("loading_operations_finished_total", "Wrapped operations finished by outcome"), []string{"outcome"}),
		timeouts: prometheus.NewCounter(o.counter("loading_timeouts_total", "Operations that outlived their timeout")),
		inFlight: prometheus.NewGauge(o.gauge("loading_in_flight", "Wrapped operations currently running")),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "loading_operation_duration_seconds",
			Help:        "Wall time of wrapped operations",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
	registerer(reg).MustRegister(a.started, a.finished, a.timeouts, a.inFlight, a.duration)
	return a
}

func (a *LoadingAdapter) Started() {
	a.started.Inc()
	a.inFlight.Inc()
}

func (a *LoadingAdapter) Finished(outcome loading.Outcome, elapsed time.Duration) {
	a.finished.WithLabelValues(outcome.String()).Inc()
	a.inFlight.Dec()
	a.duration.Observe(elapsed.Seconds())
}

func (a *LoadingAdapter) TimedOut() { a.timeouts.Inc() }

var _ loading.Metrics = (*LoadingAdapter)(nil)
