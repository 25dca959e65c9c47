// Package prom exports the metrics hooks of the cache, coalesce and
// loading packages to Prometheus.
//
// Each adapter registers its collectors on construction:
//
//	reg := prometheus.NewRegistry()
//	c := cache.New[string, Host](cache.Options[string, Host]{
//	    Metrics: prom.NewCacheAdapter(reg, "opsorch", "hosts", nil),
//	})
package prom
