package loading

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/apex/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MasonSRE/opsorch/internal/panicutil"
	"github.com/MasonSRE/opsorch/notify"
)

// Operation is one unit of work in a batch.
type Operation[T any] func(ctx context.Context) (T, error)

// BatchResult is the outcome of the operation at Index.
type BatchResult[T any] struct {
	Success bool
	Data    T
	Err     error
	Index   int
}

// BatchError is a failed operation and its index.
type BatchError struct {
	Err   error
	Index int
}

// BatchRun aggregates one WithBatchLoading call. Results[i] always
// belongs to operation i, and Errors is ordered by Index.
type BatchRun[T any] struct {
	Results      []BatchResult[T]
	Errors       []BatchError
	SuccessCount int
	ErrorCount   int
	Total        int
}

// WithBatchLoading runs ops in consecutive chunks of Concurrency while key
// is busy. Every operation in a chunk starts before any of the next, and a
// chunk fully settles before the next one starts. Item failures and
// panics are recorded in the returned BatchRun; the batch as a whole never
// fails. With progress enabled the busy message becomes
// "<message> (<percent>%)" after each settled operation. One summary
// notice is sent at the end.
func WithBatchLoading[T any](ctx context.Context, o *Orchestrator, key Key, ops []Operation[T], opts ...CallOption) BatchRun[T] {
	cfg := o.callConfig(DefaultBatchMessage, opts)
	lg := o.logger.WithFields(log.Fields{"key": key.String(), "op_id": uuid.NewString()})

	s := o.acquire(key, cfg.message)
	defer o.release(key, s)

	total := len(ops)
	run := BatchRun[T]{Results: make([]BatchResult[T], total), Total: total}

	var (
		mu        sync.Mutex
		completed int
	)
	settle := func(r BatchResult[T]) {
		mu.Lock()
		defer mu.Unlock()
		run.Results[r.Index] = r
		completed++
		if cfg.progress {
			pct := int(math.Round(100 * float64(completed) / float64(total)))
			o.setMessage(key, s, fmt.Sprintf("%s (%d%%)", cfg.message, pct))
		}
	}

	lg.WithField("total", total).Debug("loading: batch started")
	for lo := 0; lo < total; lo += cfg.concurrency {
		hi := min(lo+cfg.concurrency, total)

		var g errgroup.Group
		for i := lo; i < hi; i++ {
			op := ops[i]
			g.Go(func() error {
				o.metrics.Started()
				start := o.clock.Now()
				v, err := panicutil.Value(func() (T, error) { return op(ctx) })
				outcome := OutcomeSuccess
				if err != nil {
					outcome = OutcomeError
				}
				o.metrics.Finished(outcome, o.clock.Now().Sub(start))
				settle(BatchResult[T]{Success: err == nil, Data: v, Err: err, Index: i})
				return nil
			})
		}
		_ = g.Wait() // item errors are recorded, never returned
	}

	for _, r := range run.Results {
		if r.Success {
			run.SuccessCount++
			continue
		}
		run.Errors = append(run.Errors, BatchError{Err: r.Err, Index: r.Index})
	}
	run.ErrorCount = len(run.Errors)

	lg.WithFields(log.Fields{"succeeded": run.SuccessCount, "failed": run.ErrorCount}).Info("loading: batch finished")
	if cfg.notify {
		switch {
		case run.ErrorCount == 0:
			notify.Success(ctx, o.notifier, fmt.Sprintf("Batch completed: %d items processed", run.SuccessCount))
		case run.SuccessCount > 0:
			notify.Warning(ctx, o.notifier, fmt.Sprintf("Batch partially completed: %d succeeded, %d failed", run.SuccessCount, run.ErrorCount))
		default:
			notify.Error(ctx, o.notifier, fmt.Sprintf("Batch failed: %d items failed", run.ErrorCount))
		}
	}
	return run
}
