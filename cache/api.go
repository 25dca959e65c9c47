package cache

import (
	"context"
	"time"
)

// Cache is a bounded in-memory key/value cache with per-entry TTL and
// strict LRU eviction. All methods are safe for concurrent use.
//
// Every operation is O(1) expected except Cleanup and Keys, which walk
// the resident entries.
type Cache[K comparable, V any] interface {
	// Add inserts k→v only if k is not present (or present but expired).
	// It uses the cache's DefaultTTL. Returns false if a live entry exists.
	Add(k K, v V) bool

	// Set inserts or replaces k→v with DefaultTTL and marks k most
	// recently used. Inserting a new key into a full cache first evicts
	// the least recently used entry; replacing a key never evicts.
	Set(k K, v V)

	// SetWithTTL is Set with a per-entry TTL. A non-positive ttl falls
	// back to DefaultTTL.
	SetWithTTL(k K, v V, ttl time.Duration)

	// Get returns the value for k. Missing or expired keys are misses;
	// an expired entry is deleted as a side effect. A hit promotes k.
	Get(k K) (V, bool)

	// Peek is Get without promotion, expiry deletion or hit accounting.
	Peek(k K) (V, bool)

	// Delete removes k and reports whether it was present.
	Delete(k K) bool

	// Clear removes every entry. Hit/miss counters are kept.
	Clear()

	// Cleanup deletes every expired entry and returns how many it removed.
	// It is meant to be driven by a periodic timer owned by the host.
	Cleanup() int

	// Len returns the number of resident entries, including expired ones
	// that have not been swept yet.
	Len() int

	// Keys returns resident keys from least to most recently used.
	Keys() []K

	// Stats returns size and lifetime hit statistics.
	Stats() Stats

	// GetOrLoad returns the value for k, loading it via Options.Loader on
	// a miss and storing the result. Concurrent loads of one key share a
	// single Loader call. Returns ErrNoLoader when no Loader is set.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// Close marks the cache closed and drops its entries. Later reads miss
	// and writes are ignored. Close is idempotent and returns nil.
	Close() error
}

// Stats is a snapshot of cache statistics.
type Stats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	// HitRate is Hits/(Hits+Misses), or 0 before the first access.
	HitRate float64
}
