package loading

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var searchKey = Key{Namespace: "hosts", Name: "search"}

func TestDebounce_OnlyLastCallRuns(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t)

	var (
		mu   sync.Mutex
		args []string
	)
	done := make(chan struct{}, 1)
	search := Debounce(o, searchKey, func(q string) {
		mu.Lock()
		args = append(args, q)
		mu.Unlock()
		done <- struct{}{}
	}, 100*time.Millisecond)

	for _, q := range []string{"w", "we", "web", "web-", "web-0"} {
		search(q)
		time.Sleep(10 * time.Millisecond)
	}
	if !o.PendingDebounced(searchKey) {
		t.Fatal("a call must be pending inside the window")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced call never ran")
	}
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"web-0"}, args); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
	if o.PendingDebounced(searchKey) {
		t.Fatal("nothing may be pending after the call ran")
	}
}

func TestDebounce_ClearAllCancelsPending(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t)
	var calls atomic.Int32
	fn := Debounce(o, searchKey, func(int) { calls.Add(1) }, 20*time.Millisecond)

	fn(1)
	o.ClearAll()
	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Fatalf("cancelled debounce ran %d times", n)
	}
}

func TestDebounce_PanicIsContained(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t)
	var after atomic.Bool
	Debounce(o, searchKey, func(int) { panic("handler bug") }, 5*time.Millisecond)(1)
	time.Sleep(30 * time.Millisecond)
	Debounce(o, searchKey, func(int) { after.Store(true) }, 5*time.Millisecond)(2)
	deadline := time.Now().Add(time.Second)
	for !after.Load() && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if !after.Load() {
		t.Fatal("orchestrator must keep working after a panicking debounced call")
	}
}

func TestThrottle_DropsWithinInterval(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	o, _ := newTestOrchestrator(t, WithClock(clk))

	var got []int
	refresh := Throttle(o, searchKey, func(n int) { got = append(got, n) }, time.Second)

	if !refresh(1) {
		t.Fatal("first call must run")
	}
	clk.add(500 * time.Millisecond)
	if refresh(2) {
		t.Fatal("call within the interval must be dropped")
	}
	clk.add(500 * time.Millisecond)
	if !refresh(3) {
		t.Fatal("call after the interval must run")
	}
	if diff := cmp.Diff([]int{1, 3}, got); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
}

func TestThrottle_SharedPerKeyAndDefaults(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	o, _ := newTestOrchestrator(t, WithClock(clk), WithDefaults(Defaults{ThrottleInterval: time.Minute}))

	a := Throttle(o, searchKey, func(struct{}) {}, 0)
	b := Throttle(o, searchKey, func(struct{}) {}, 0)
	other := Throttle(o, Key{Name: "other"}, func(struct{}) {}, 0)

	if !a(struct{}{}) || b(struct{}{}) {
		t.Fatal("wrappers for one key share the throttle window")
	}
	if !other(struct{}{}) {
		t.Fatal("a different key has its own window")
	}
	clk.add(59 * time.Second)
	if a(struct{}{}) {
		t.Fatal("configured default interval must apply")
	}
	clk.add(time.Second)
	if !b(struct{}{}) {
		t.Fatal("window must reopen after the interval")
	}
}
