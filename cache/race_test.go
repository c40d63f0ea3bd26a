package cache

import (
	"context"
	"io"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cachekit/faascache/bytesize"
)

// A mixed workload of concurrent reads, writes, TTL changes, explicit
// removals, limit changes and snapshots on random keys.
// Should pass under `-race` without detector reports.
func TestRace_MixedOps(t *testing.T) {
	var hookCalls int64
	c := mustNew(t, Options[string, []byte]{
		MaxItems:      4_096,
		MaxBytes:      1 << 20,
		DefaultTTL:    time.Second,
		SweepInterval: 20 * time.Millisecond,
		OnDelete:      func(string, []byte) { atomic.AddInt64(&hookCalls, 1) },
	})

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 10_000
	deadline := time.Now().Add(2 * time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch r.Intn(100) {
				case 0: // rare: move the budgets under load
					_ = c.ChangeMaxItems(2_048 + r.Intn(4_096))
				case 1:
					_ = c.ChangeMaxBytes(bytesize.Size(1<<19 + r.Intn(1<<20)))
				case 2:
					_ = c.Snapshot(io.Discard)
				case 3, 4:
					c.Pop(k)
				case 5, 6, 7:
					_ = c.Delete(k)
				case 8, 9:
					_ = c.SetTTL(k, time.Duration(10+r.Intn(50))*time.Millisecond)
				case 10:
					_ = c.Promote(k)
				case 11:
					_ = c.Demote(k)
				case 12:
					c.Len()
					c.Bytes()
				case 13:
					c.Contains(k)
					c.IsExpired(k)
				case 14:
					c.Keys()
				case 15, 16, 17, 18, 19:
					_ = c.SetWithTTL(k, []byte("x"), time.Duration(10+r.Intn(20))*time.Millisecond)
				case 20, 21, 22, 23, 24, 25, 26, 27, 28, 29:
					_ = c.Set(k, []byte("x"))
				default: // ~70% — Get
					_, _ = c.Get(k)
				}
			}
		}(w)
	}
	wg.Wait()
	t.Logf("stats: %+v, hook calls: %d", c.Stats(), atomic.LoadInt64(&hookCalls))
}

// One hundred goroutines call GetOrLoad on the same key concurrently.
// The Loader should run at most once (singleflight coalescing).
func TestRace_GetOrLoad(t *testing.T) {
	var calls int64

	c := mustNew(t, Options[string, string]{
		MaxItems: 1024,
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(2 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})

	const goroutines = 100
	key := "same-key"

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := c.GetOrLoad(context.Background(), key)
			if err != nil {
				t.Errorf("GetOrLoad error: %v", err)
				return
			}
			if v != "v:"+key {
				t.Errorf("unexpected value: %q", v)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got > 1 {
		t.Fatalf("loader should run at most once, got %d", got)
	}

	// Subsequent call should be a pure cache hit.
	if v, err := c.GetOrLoad(context.Background(), key); err != nil || v != "v:"+key {
		t.Fatalf("second GetOrLoad failed: v=%q err=%v", v, err)
	}
}
