package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MasonSRE/opsorch/cache"
)

// CacheAdapter implements cache.Metrics with Prometheus counters and a
// size gauge. Safe for concurrent use; all Prometheus metric types are
// goroutine-safe.
type CacheAdapter struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	evicts *prometheus.CounterVec
	size   prometheus.Gauge
}

// NewCacheAdapter constructs a cache metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func NewCacheAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *CacheAdapter {
	o := opts{ns: ns, sub: sub, labels: constLabels}
	a := &CacheAdapter{
		hits:   prometheus.NewCounter(o.counter("cache_hits_total", "Cache hits")),
		misses: prometheus.NewCounter(o.counter("cache_misses_total", "Cache misses")),
		evicts: prometheus.NewCounterVec(o.counter("cache_evictions_total", "Cache evictions by reason"), []string{"reason"}),
		size:   prometheus.NewGauge(o.gauge("cache_size_entries", "Number of resident entries")),
	}
	registerer(reg).MustRegister(a.hits, a.misses, a.evicts, a.size)
	return a
}

// Hit increments the hit counter.
func (a *CacheAdapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *CacheAdapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *CacheAdapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates the resident entries gauge.
func (a *CacheAdapter) Size(entries int) { a.size.Set(float64(entries)) }

var _ cache.Metrics = (*CacheAdapter)(nil)
