package cache

import (
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"
)

// A mixed workload of concurrent Set/Get/SetWithTTL/Delete/Cleanup on
// random keys. Should pass under `-race` without detector reports.
func TestRace_Basic(t *testing.T) {
	const maxSize = 512
	c := New[string, []byte](Options[string, []byte]{MaxSize: maxSize})
	t.Cleanup(func() { _ = c.Close() })

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 5_000
	deadline := time.Now().Add(time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch n := r.Intn(100); {
				case n == 0:
					c.Cleanup()
				case n < 5:
					c.Delete(k)
				case n < 10:
					c.SetWithTTL(k, []byte("x"), time.Duration(1+r.Intn(5))*time.Millisecond)
				case n < 20:
					c.Set(k, []byte("x"))
				default:
					c.Get(k)
				}
			}
		}(w)
	}
	wg.Wait()

	if n := c.Len(); n > maxSize {
		t.Fatalf("Len %d exceeds MaxSize %d", n, maxSize)
	}
}
