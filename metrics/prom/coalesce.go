package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MasonSRE/opsorch/coalesce"
)

// CoalescerAdapter implements coalesce.Metrics.
type CoalescerAdapter struct {
	waiters  prometheus.Counter
	batches  prometheus.Counter
	failures prometheus.Counter
	sizes    prometheus.Histogram
}

// NewCoalescerAdapter constructs a coalescer metrics adapter. Arguments
// follow NewCacheAdapter.
func NewCoalescerAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *CoalescerAdapter {
	o := opts{ns: ns, sub: sub, labels: constLabels}
	a := &CoalescerAdapter{
		waiters:  prometheus.NewCounter(o.counter("coalesce_waiters_total", "Calls that joined a batch")),
		batches:  prometheus.NewCounter(o.counter("coalesce_batches_total", "Batches sent upstream")),
		failures: prometheus.NewCounter(o.counter("coalesce_failures_total", "Batches whose upstream request failed")),
		sizes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "coalesce_batch_size",
			Help:        "Callers served per upstream request",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
	registerer(reg).MustRegister(a.waiters, a.batches, a.failures, a.sizes)
	return a
}

func (a *CoalescerAdapter) Enqueued() { a.waiters.Inc() }

func (a *CoalescerAdapter) Flushed(size int) {
	a.batches.Inc()
	a.sizes.Observe(float64(size))
}

func (a *CoalescerAdapter) Failed() { a.failures.Inc() }

var _ coalesce.Metrics = (*CoalescerAdapter)(nil)
