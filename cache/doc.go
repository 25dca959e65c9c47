// Package cache provides a generic, bounded in-memory cache with per-entry
// TTL, strict LRU eviction, hit-rate statistics and coalesced loading.
//
// Design
//
//   - Concurrency: one mutex guards the whole cache. LRU order is global,
//     so the entry evicted on overflow is always the least recently used
//     of all resident keys.
//
//   - Storage: entries live in a hashicorp/golang-lru simplelru list
//     (front=MRU, back=LRU). Both Get hits and Set writes count as use.
//
//   - Capacity: MaxSize bounds resident entries. The check runs before a
//     new key is inserted; replacing an existing key never evicts.
//
//   - TTL: each entry carries an absolute deadline. Expiry is lazy on Get
//     (an expired read deletes the entry and counts as a miss) and
//     opportunistic in Cleanup. There is no background sweeper: the host
//     owns the timer that calls Cleanup (see package timer).
//
//   - GetOrLoad: coalesces concurrent loads for the same key. If Loader is
//     nil, GetOrLoad returns ErrNoLoader.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals.
//     NoopMetrics is the default; metrics/prom exports them to Prometheus.
//
// Basic usage
//
//	c := cache.New[string, HostStatus](cache.Options[string, HostStatus]{
//	    MaxSize:    500,
//	    DefaultTTL: time.Minute,
//	})
//	c.Set("web-01", status)
//	if s, ok := c.Get("web-01"); ok {
//	    _ = s
//	}
//
// Periodic cleanup driven by the host
//
//	reg := timer.New()
//	reg.SetInterval(func() { c.Cleanup() }, 5*time.Minute)
//	defer reg.ClearAll()
package cache
