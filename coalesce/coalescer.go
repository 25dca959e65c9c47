package coalesce

import (
	"context"
	"fmt"
	"sync"

	"github.com/apex/log"

	"github.com/MasonSRE/opsorch/internal/panicutil"
	"github.com/MasonSRE/opsorch/timer"
)

// RequestFunc performs one upstream request for a whole batch. It must
// return exactly one result per argument, in argument order.
type RequestFunc[A, R any] func(ctx context.Context, args []A) ([]R, error)

// Coalescer batches calls per key. All methods are safe for concurrent use.
type Coalescer[K comparable, A, R any] struct {
	opt    options
	ownReg bool

	mu      sync.Mutex
	batches map[K]*batch[A, R]
	closed  bool
}

type result[R any] struct {
	val R
	err error
}

// batch is the pending state for one key. gen changes on every re-arm so
// that a timer callback which lost the race with a newer caller is ignored.
type batch[A, R any] struct {
	args    []A
	waiters []chan result[R]
	fn      RequestFunc[A, R]
	handle  timer.Handle
	gen     uint64
}

// New returns a Coalescer. Without WithRegistry it owns a private
// registry that Close tears down.
func New[K comparable, A, R any](opts ...Option) *Coalescer[K, A, R] {
	o := options{
		window:  DefaultWindow,
		metrics: NoopMetrics{},
		logger:  log.Log,
		ctx:     context.Background,
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Coalescer[K, A, R]{opt: o, batches: make(map[K]*batch[A, R])}
	if c.opt.reg == nil {
		c.opt.reg = timer.New(timer.WithLogger(o.logger))
		c.ownReg = true
	}
	return c
}

// Batch adds arg to the pending batch for key and waits for its result.
// fn replaces the RequestFunc of the pending batch: the latest caller's
// function is the one invoked. If ctx ends first Batch returns ctx.Err();
// the batch still runs for the other callers.
func (c *Coalescer[K, A, R]) Batch(ctx context.Context, key K, fn RequestFunc[A, R], arg A) (R, error) {
	var zero R
	ch := make(chan result[R], 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, ErrClosed
	}
	b, ok := c.batches[key]
	if !ok {
		b = &batch[A, R]{}
		c.batches[key] = b
	} else {
		c.opt.reg.ClearTimer(b.handle)
	}
	b.args = append(b.args, arg)
	b.waiters = append(b.waiters, ch)
	b.fn = fn
	b.gen++
	gen := b.gen
	b.handle = c.opt.reg.SetTimeout(func() { c.flush(key, b, gen) }, c.opt.window)
	c.mu.Unlock()

	c.opt.metrics.Enqueued()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Pending returns the number of keys with a batch waiting for its window.
func (c *Coalescer[K, A, R]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

// Close rejects every pending caller with ErrClosed and cancels the
// window timers. Later Batch calls fail with ErrClosed. Batches already
// sent upstream complete normally. Close is idempotent.
func (c *Coalescer[K, A, R]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.batches
	c.batches = make(map[K]*batch[A, R])
	for _, b := range pending {
		c.opt.reg.ClearTimer(b.handle)
	}
	c.mu.Unlock()

	waiters := 0
	for _, b := range pending {
		waiters += len(b.waiters)
		deliverErr(b.waiters, ErrClosed)
	}
	if c.ownReg {
		c.opt.reg.ClearAll()
	}
	if waiters > 0 {
		c.opt.logger.WithField("waiters", waiters).Debug("coalesce: closed with pending callers")
	}
}

func (c *Coalescer[K, A, R]) flush(key K, b *batch[A, R], gen uint64) {
	c.mu.Lock()
	if cur, ok := c.batches[key]; !ok || cur != b || b.gen != gen {
		c.mu.Unlock()
		return
	}
	delete(c.batches, key)
	c.mu.Unlock()

	size := len(b.args)
	c.opt.metrics.Flushed(size)
	ctxLog := c.opt.logger.WithFields(log.Fields{"key": key, "waiters": size})
	ctxLog.Debug("coalesce: flushing batch")

	results, err := panicutil.Value(func() ([]R, error) {
		return b.fn(c.opt.ctx(), b.args)
	})
	if err == nil && len(results) != size {
		err = fmt.Errorf("%w: got %d, want %d", ErrResultCount, len(results), size)
	}
	if err != nil {
		c.opt.metrics.Failed()
		ctxLog.WithError(err).Warn("coalesce: batch request failed")
		deliverErr(b.waiters, err)
		return
	}
	for i, ch := range b.waiters {
		ch <- result[R]{val: results[i]}
	}
}

// deliverErr never blocks: each waiter channel has room for one result.
func deliverErr[R any](waiters []chan result[R], err error) {
	for _, ch := range waiters {
		ch <- result[R]{err: err}
	}
}
