package cache

import (
	"context"
	"time"
)

const (
	// DefaultMaxSize is used when Options.MaxSize is zero.
	DefaultMaxSize = 100
	// DefaultTTL is used when Options.DefaultTTL is zero.
	DefaultTTL = 5 * time.Minute
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictCapacity: removed as least recently used to make room.
	EvictCapacity EvictReason = iota
	// EvictTTL: found expired on read or during Cleanup.
	EvictTTL
)

// String returns a stable label for the reason.
func (r EvictReason) String() string {
	if r == EvictTTL {
		return "ttl"
	}
	return "capacity"
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache. Zero values are safe; defaults are
// applied in New:
//   - MaxSize == 0     => DefaultMaxSize
//   - DefaultTTL == 0  => DefaultTTL; negative => entries never expire
//   - nil Metrics      => NoopMetrics
//   - nil Clock        => time.Now
type Options[K comparable, V any] struct {
	// MaxSize is the live entry ceiling.
	MaxSize int

	// DefaultTTL applies to Add/Set and to SetWithTTL with ttl <= 0.
	DefaultTTL time.Duration

	// Loader fetches a value on miss. Used by GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// OnEvict is called for every eviction (not for Delete/Clear) while
	// the cache lock is held; keep it lightweight and do not call back
	// into the cache.
	OnEvict func(k K, v V, reason EvictReason)

	Metrics Metrics

	Clock Clock
}
