package coalesce

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/MasonSRE/opsorch/timer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// echo returns "r:<arg>" for every argument and records each invocation.
type echo struct {
	mu    sync.Mutex
	calls [][]int
}

func (e *echo) fn(_ context.Context, args []int) ([]string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]int(nil), args...))
	e.mu.Unlock()
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = fmt.Sprintf("r:%d", a)
	}
	return out, nil
}

func (e *echo) snapshot() [][]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]int(nil), e.calls...)
}

func TestBatch_ConcurrentCallersShareOneRequest(t *testing.T) {
	t.Parallel()

	c := New[string, int, string](WithWindow(30 * time.Millisecond))
	t.Cleanup(c.Close)

	var e echo
	const N = 32
	start := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < N; i++ {
		g.Go(func() error {
			<-start
			got, err := c.Batch(context.Background(), "hosts", e.fn, i)
			if err != nil {
				return err
			}
			if want := fmt.Sprintf("r:%d", i); got != want {
				return fmt.Errorf("caller %d got %q, want %q", i, got, want)
			}
			return nil
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	calls := e.snapshot()
	if len(calls) != 1 {
		t.Fatalf("upstream called %d times, want 1", len(calls))
	}
	args := calls[0]
	sort.Ints(args)
	want := make([]int, N)
	for i := range want {
		want[i] = i
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	if c.Pending() != 0 {
		t.Fatal("batch must be detached after flushing")
	}
}

func TestBatch_ArgsKeepArrivalOrder(t *testing.T) {
	t.Parallel()

	c := New[string, int, string](WithWindow(40 * time.Millisecond))
	t.Cleanup(c.Close)

	var e echo
	var g errgroup.Group
	for i := 0; i < 3; i++ {
		g.Go(func() error {
			_, err := c.Batch(context.Background(), "k", e.fn, i)
			return err
		})
		// wait until the call is queued before issuing the next one
		time.Sleep(5 * time.Millisecond)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]int{{0, 1, 2}}, e.snapshot()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

// Each new caller re-arms the window, so callers spaced closer than the
// window keep joining the same batch even past the first deadline.
func TestBatch_WindowSlides(t *testing.T) {
	t.Parallel()

	c := New[string, int, string](WithWindow(100 * time.Millisecond))
	t.Cleanup(c.Close)

	var e echo
	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			_, err := c.Batch(context.Background(), "k", e.fn, i)
			return err
		})
		time.Sleep(40 * time.Millisecond)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if calls := e.snapshot(); len(calls) != 1 || len(calls[0]) != 4 {
		t.Fatalf("calls = %v, want one call with 4 args", calls)
	}
}

func TestBatch_SeparateWindowsAndKeys(t *testing.T) {
	t.Parallel()

	c := New[string, int, string](WithWindow(10 * time.Millisecond))
	t.Cleanup(c.Close)

	var e echo
	ctx := context.Background()
	if _, err := c.Batch(ctx, "a", e.fn, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Batch(ctx, "a", e.fn, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Batch(ctx, "b", e.fn, 3); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]int{{1}, {2}, {3}}, e.snapshot()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestBatch_ErrorFansOut(t *testing.T) {
	t.Parallel()

	c := New[string, int, string](WithWindow(20 * time.Millisecond))
	t.Cleanup(c.Close)

	boom := errors.New("upstream unavailable")
	var calls atomic.Int32
	fn := func(context.Context, []int) ([]string, error) {
		calls.Add(1)
		return nil, boom
	}

	var g errgroup.Group
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, err := c.Batch(context.Background(), "k", fn, i)
			if !errors.Is(err, boom) {
				return fmt.Errorf("caller %d: err = %v", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("upstream called %d times, want 1", n)
	}
}

func TestBatch_ResultCountMismatch(t *testing.T) {
	t.Parallel()

	c := New[string, int, string](WithWindow(5 * time.Millisecond))
	t.Cleanup(c.Close)

	short := func(context.Context, []int) ([]string, error) { return []string{}, nil }
	if _, err := c.Batch(context.Background(), "k", short, 1); !errors.Is(err, ErrResultCount) {
		t.Fatalf("err = %v, want ErrResultCount", err)
	}
}

func TestBatch_PanicBecomesError(t *testing.T) {
	t.Parallel()

	c := New[string, int, string](WithWindow(5 * time.Millisecond))
	t.Cleanup(c.Close)

	bad := func(context.Context, []int) ([]string, error) { panic("decoder exploded") }
	_, err := c.Batch(context.Background(), "k", bad, 1)
	var rec *panics.ErrRecovered
	if !errors.As(err, &rec) {
		t.Fatalf("err = %v, want *panics.ErrRecovered", err)
	}
}

func TestBatch_LatestFnWins(t *testing.T) {
	t.Parallel()

	c := New[string, int, string](WithWindow(30 * time.Millisecond))
	t.Cleanup(c.Close)

	first := func(_ context.Context, args []int) ([]string, error) {
		return make([]string, len(args)), errors.New("stale fn invoked")
	}
	var latest echo

	var g errgroup.Group
	g.Go(func() error {
		_, err := c.Batch(context.Background(), "k", first, 1)
		return err
	})
	time.Sleep(5 * time.Millisecond)
	g.Go(func() error {
		_, err := c.Batch(context.Background(), "k", latest.fn, 2)
		return err
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if len(latest.snapshot()) != 1 {
		t.Fatal("latest RequestFunc must serve the batch")
	}
}

func TestBatch_CallerCancelDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	c := New[string, int, string](WithWindow(30 * time.Millisecond))
	t.Cleanup(c.Close)

	var e echo
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Batch(ctx, "k", e.fn, 1)
		done <- err
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller err = %v", err)
	}

	got, err := c.Batch(context.Background(), "k", e.fn, 2)
	if err != nil || got != "r:2" {
		t.Fatalf("remaining caller got %q, %v", got, err)
	}
	if diff := cmp.Diff([][]int{{1, 2}}, e.snapshot()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestClose_RejectsPendingAndLaterCalls(t *testing.T) {
	t.Parallel()

	reg := timer.New()
	t.Cleanup(reg.ClearAll)
	c := New[string, int, string](WithWindow(time.Hour), WithRegistry(reg))

	var e echo
	done := make(chan error, 1)
	go func() {
		_, err := c.Batch(context.Background(), "k", e.fn, 1)
		done <- err
	}()
	deadline := time.Now().Add(time.Second)
	for c.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	c.Close()
	c.Close()

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("pending caller err = %v, want ErrClosed", err)
	}
	if _, err := c.Batch(context.Background(), "k", e.fn, 2); !errors.Is(err, ErrClosed) {
		t.Fatalf("Batch after Close err = %v, want ErrClosed", err)
	}
	if reg.HasActiveTimers() {
		t.Fatal("Close must cancel window timers")
	}
	if len(e.snapshot()) != 0 {
		t.Fatal("closed batch must not reach upstream")
	}
}

type countingMetrics struct {
	enqueued, flushed, failed atomic.Int32
	sizes                     sync.Map
}

func (m *countingMetrics) Enqueued() { m.enqueued.Add(1) }
func (m *countingMetrics) Flushed(size int) {
	m.flushed.Add(1)
	m.sizes.Store(size, true)
}
func (m *countingMetrics) Failed() { m.failed.Add(1) }

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c := New[string, int, string](WithWindow(20*time.Millisecond), WithMetrics(m))
	t.Cleanup(c.Close)

	var e echo
	var g errgroup.Group
	for i := 0; i < 3; i++ {
		g.Go(func() error {
			_, err := c.Batch(context.Background(), "k", e.fn, i)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	fail := func(context.Context, []int) ([]string, error) { return nil, errors.New("x") }
	_, _ = c.Batch(context.Background(), "k", fail, 9)

	if m.enqueued.Load() != 4 || m.failed.Load() != 1 {
		t.Fatalf("enqueued=%d failed=%d", m.enqueued.Load(), m.failed.Load())
	}
	if _, ok := m.sizes.Load(3); !ok {
		t.Fatal("expected a flush of size 3")
	}
}
