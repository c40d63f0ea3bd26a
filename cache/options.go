package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/cachekit/faascache/bytesize"
)

// DefaultSweepInterval is how often the background sweeper scans for
// expired entries when Options.SweepInterval is zero.
const DefaultSweepInterval = 5 * time.Second

// EvictReason explains why an entry was removed by the cache itself.
// Explicit Delete/Pop/Clear calls are not evictions.
type EvictReason int

const (
	// EvictLRU marks removal of the least recently used entry to satisfy
	// the item count budget.
	EvictLRU EvictReason = iota
	// EvictBytes marks removal of the least recently used entry to satisfy
	// the byte budget.
	EvictBytes
	// EvictTTL marks removal of an expired entry, either lazily on access
	// or by the background sweeper.
	EvictTTL
)

// Metrics exposes cache-level observability hooks.
// NoopMetrics is used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int, bytes int64)
}

// Clock supplies the current time; override it in tests to make TTL
// behavior deterministic. Nil means time.Now.
type Clock interface{ Now() time.Time }

// Options configures a Cache. The zero value is a valid unbounded cache
// with no TTLs; defaults for the remaining fields are applied in New:
//   - nil Metrics => NoopMetrics
//   - nil Logger  => slog.Default()
//   - nil SizeOf  => deep size measurement (DmitriyVTitov/size)
//   - SweepInterval 0 => DefaultSweepInterval, negative => no sweeper
type Options[K comparable, V any] struct {
	// DefaultTTL applies to entries stored via Set, GetOrSet and GetOrLoad.
	// Zero means entries do not expire. Negative is rejected by New.
	DefaultTTL time.Duration

	// MaxBytes caps the accounted footprint of the cache, container
	// overhead included. Zero disables the byte budget.
	MaxBytes bytesize.Size

	// MaxItems caps the number of resident entries. Zero disables the
	// count budget.
	MaxItems int

	// OnDelete is called once for every entry removed from the cache,
	// whatever the cause: Delete, Pop, Clear, expiry or eviction. It runs
	// after the entry is already gone and without the cache lock held, so
	// it may call back into the cache. A panicking hook is recovered and
	// logged, never propagated.
	OnDelete func(key K, value V)

	// SizeOf measures the deep footprint of a key or value in bytes.
	// It is called with the cache lock held, so it must be fast and must
	// not call back into the cache. Negative results count as zero.
	// Nil selects a reflection-based deep measurement.
	SizeOf func(v any) int64

	// Loader fetches a value on cache miss. Used by GetOrLoad.
	Loader func(ctx context.Context, key K) (V, error)

	// SweepInterval is the period of the background goroutine that purges
	// expired entries. Zero selects DefaultSweepInterval; a negative value
	// disables the sweeper, leaving expiry purely lazy.
	SweepInterval time.Duration

	// Observability.
	Metrics Metrics
	Logger  *slog.Logger

	// Clock overrides the time source (tests). Nil means time.Now.
	Clock Clock
}
