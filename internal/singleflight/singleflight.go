// Package singleflight coalesces concurrent loads of the same key.
package singleflight

import (
	"context"
	"sync"

	"github.com/MasonSRE/opsorch/internal/panicutil"
)

// Group runs fn at most once per key at a time; concurrent callers for an
// in-flight key wait for and share its result.
//
// The first caller for a key is the leader and runs fn on its own
// goroutine. Cancelling ctx releases only that caller; fn keeps running
// and its result is still delivered to the remaining waiters. A panic in
// fn is converted into an error for every waiter instead of leaving them
// blocked.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed once val/err are published
	val  V
	err  error
	dups int
}

// Do returns the result of fn for key, sharing it with concurrent callers.
// shared reports whether the result was delivered to more than one caller.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	c, ok := g.m[key]
	if ok {
		c.dups++
	} else {
		c = &call[V]{done: make(chan struct{})}
		g.m[key] = c
		go g.run(key, c, fn)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
		g.mu.Lock()
		shared = c.dups > 0
		g.mu.Unlock()
		return c.val, c.err, shared
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err(), ok
	}
}

// InFlight returns the number of keys currently being loaded.
func (g *Group[K, V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

func (g *Group[K, V]) run(key K, c *call[V], fn func() (V, error)) {
	v, err := panicutil.Value(fn)

	g.mu.Lock()
	c.val, c.err = v, err
	delete(g.m, key)
	g.mu.Unlock()
	close(c.done)
}
