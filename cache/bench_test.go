package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// benchmarkMix exercises a read/write mix against a warm cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines).
// The default size oracle reflects over every stored entry; that cost
// is part of Set and belongs in the measurement.
func benchmarkMix(b *testing.B, readsPct int) {
	c, err := New[string, string](Options[string, string]{
		MaxItems:      100_000,
		SweepInterval: -1,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })

	// Preload half the capacity to get a realistic hit-rate.
	for i := 0; i < 50_000; i++ {
		_ = c.Set("k:"+strconv.Itoa(i), "v")
	}

	// Report per-op allocations for a rough idea where costs go.
	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1 // hot keyspace (power of two for fast &-mask)

	b.RunParallel(func(pb *testing.PB) {
		// Independent RNG stream for each worker.
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.Intn(100) < readsPct {
				_, _ = c.Get(k)
			} else {
				_ = c.Set(k, "v")
			}
			i++
		}
	})
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// benchmarkMixFlat is the same workload with int keys and a constant
// size oracle. This removes strconv and reflection noise and better
// exposes the cache hot path.
func benchmarkMixFlat(b *testing.B, readsPct int) {
	c, err := New[int, int](Options[int, int]{
		MaxItems:      100_000,
		SweepInterval: -1,
		SizeOf:        func(any) int64 { return 8 },
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 50_000; i++ {
		_ = c.Set(i, 1)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := i & keyMask
			if r.Intn(100) < readsPct {
				_, _ = c.Get(k)
			} else {
				_ = c.Set(k, 1)
			}
			i++
		}
	})
}

func BenchmarkCache_IntKeys_90r10w(b *testing.B) { benchmarkMixFlat(b, 90) }
func BenchmarkCache_IntKeys_50r50w(b *testing.B) { benchmarkMixFlat(b, 50) }

// benchmarkTTLMix adds per-entry TTLs so the expiry check sits on the
// read path and corpses accumulate for the purge paths.
func benchmarkTTLMix(b *testing.B, readsPct int) {
	c, err := New[int, int](Options[int, int]{
		MaxItems:      100_000,
		DefaultTTL:    50 * time.Millisecond, // entries churn during the run
		SweepInterval: -1,
		SizeOf:        func(any) int64 { return 8 },
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 50_000; i++ {
		_ = c.Set(i, 1)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := i & keyMask
			if r.Intn(100) < readsPct {
				_, _ = c.Get(k)
			} else {
				_ = c.Set(k, 1)
			}
			i++
		}
	})
}

func BenchmarkCache_TTL_90r10w(b *testing.B) { benchmarkTTLMix(b, 90) }
