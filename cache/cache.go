package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/MasonSRE/opsorch/internal/singleflight"
	"github.com/MasonSRE/opsorch/internal/util"
)

// entry is the resident value plus its absolute deadline in UnixNano.
// Zero exp means the entry never expires.
type entry[V any] struct {
	val V
	exp int64
}

// cache keeps entries in a simplelru list (front=MRU, back=LRU) under a
// single mutex so that LRU order is global across all keys.
type cache[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu  sync.Mutex
	lru *simplelru.LRU[K, entry[V]]

	opt    Options[K, V]
	closed atomic.Bool

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64

	// sf coalesces concurrent loads in GetOrLoad.
	sf singleflight.Group[K, V]
}

// New constructs a cache with the provided Options.
// It panics if MaxSize is negative.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.MaxSize < 0 {
		panic("cache: MaxSize must be >= 0")
	}
	if opt.MaxSize == 0 {
		opt.MaxSize = DefaultMaxSize
	}
	if opt.DefaultTTL == 0 {
		opt.DefaultTTL = DefaultTTL
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}

	// No eviction callback: evictions are performed and reported here so
	// that Delete and Clear are not mistaken for them.
	l, err := simplelru.NewLRU[K, entry[V]](opt.MaxSize, nil)
	if err != nil {
		panic(err)
	}
	return &cache[K, V]{lru: l, opt: opt}
}

// ---- Cache[K,V] implementation ----

func (c *cache[K, V]) Add(k K, v V) bool {
	if c.closed.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.lru.Peek(k); ok && !c.expired(e) {
		return false
	}
	c.setLocked(k, v, c.deadline(0))
	return true
}

func (c *cache[K, V]) Set(k K, v V) {
	c.SetWithTTL(k, v, 0)
}

func (c *cache[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(k, v, c.deadline(ttl))
}

func (c *cache[K, V]) Get(k K) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(k)
	if !ok {
		c.miss()
		return zero, false
	}
	if c.expired(e) {
		c.lru.Remove(k)
		c.evicted(k, e.val, EvictTTL)
		c.miss()
		return zero, false
	}

	c.lru.Get(k) // promote to MRU
	c.hits.Add(1)
	c.opt.Metrics.Hit()
	return e.val, true
}

func (c *cache[K, V]) Peek(k K) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(k)
	if !ok || c.expired(e) {
		return zero, false
	}
	return e.val, true
}

func (c *cache[K, V]) Delete(k K) bool {
	if c.closed.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ok := c.lru.Remove(k)
	if ok {
		c.opt.Metrics.Size(c.lru.Len())
	}
	return ok
}

func (c *cache[K, V]) Clear() {
	if c.closed.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.opt.Metrics.Size(0)
}

func (c *cache[K, V]) Cleanup() int {
	if c.closed.Load() {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, k := range c.lru.Keys() {
		e, ok := c.lru.Peek(k)
		if !ok || !c.expired(e) {
			continue
		}
		c.lru.Remove(k)
		c.evicted(k, e.val, EvictTTL)
		removed++
	}
	if removed > 0 {
		c.opt.Metrics.Size(c.lru.Len())
	}
	return removed
}

func (c *cache[K, V]) Len() int {
	if c.closed.Load() {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *cache[K, V]) Keys() []K {
	if c.closed.Load() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

func (c *cache[K, V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	return Stats{
		Size:    c.Len(),
		MaxSize: c.opt.MaxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: util.Ratio(hits, misses),
	}
}

func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	// fast path
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	v, err, _ := c.sf.Do(ctx, k, func() (V, error) {
		// another flight may have stored k since our miss
		if v, ok := c.Peek(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err == nil {
			c.Set(k, v)
		}
		return v, err
	})
	return v, err
}

func (c *cache[K, V]) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.opt.Metrics.Size(0)
	return nil
}

// ---- internals (mu held where noted) ----

// setLocked inserts or replaces k. The capacity check runs before the
// insertion so a new key never pushes the cache past MaxSize.
func (c *cache[K, V]) setLocked(k K, v V, exp int64) {
	if !c.lru.Contains(k) && c.lru.Len() >= c.opt.MaxSize {
		if lk, le, ok := c.lru.RemoveOldest(); ok {
			c.evicted(lk, le.val, EvictCapacity)
		}
	}
	c.lru.Add(k, entry[V]{val: v, exp: exp})
	c.opt.Metrics.Size(c.lru.Len())
}

func (c *cache[K, V]) evicted(k K, v V, reason EvictReason) {
	c.opt.Metrics.Evict(reason)
	if cb := c.opt.OnEvict; cb != nil {
		cb(k, v, reason)
	}
}

func (c *cache[K, V]) miss() {
	c.misses.Add(1)
	c.opt.Metrics.Miss()
}

func (c *cache[K, V]) expired(e entry[V]) bool {
	return e.exp != 0 && c.now() > e.exp
}

func (c *cache[K, V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// deadline converts a relative TTL into an absolute UnixNano deadline.
// A non-positive ttl uses DefaultTTL; a negative DefaultTTL never expires.
func (c *cache[K, V]) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		ttl = c.opt.DefaultTTL
	}
	if ttl < 0 {
		return 0
	}
	return c.now() + int64(ttl)
}
