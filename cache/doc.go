// Package cache provides a generic in-memory key/value store bounded
// three ways at once: by entry count with least-recently-used eviction,
// by per-key TTL, and by a total byte budget measured with a pluggable
// size oracle. It was built for FaaS runtimes, where memory is the
// binding constraint and a function instance lives just long enough for
// stale data to matter.
//
// Design
//
//   - Concurrency: one mutex serializes every operation. Reads mutate
//     recency order, so a read/write lock would buy nothing; keeping a
//     single guard keeps the three bookkeeping structures (map, recency
//     list, byte account) in lockstep.
//
//   - Storage: a map[K]*entry for lookups and an intrusive doubly
//     linked list for ordering, most recent at the head. All operations
//     are O(1) expected, except whole-cache sweeps which are O(n).
//
//   - TTL: entries carry absolute deadlines. Expiry is lazy on access,
//     and a background sweeper purges on a timer (5s by default). The
//     sweeper holds only a weak reference to the cache, so forgetting a
//     cache without Close does not leak it.
//
//   - Byte budget: every entry's deep footprint (key + value + node
//     overhead) is measured once at store time and accounted
//     incrementally; no operation re-walks resident values except
//     ChangeMaxBytes, which re-measures everything on demand. An entry
//     that could not fit even in an empty cache is rejected with
//     ErrValueTooLarge before anything is evicted.
//
//   - Hooks: Options.OnDelete fires exactly once for every entry that
//     leaves the cache, whatever the cause, after the entry is detached
//     and the lock released. Hooks may re-enter the cache.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals.
//     NoopMetrics is the default; metrics/prom exports them to
//     Prometheus.
//
//   - Serialization: Snapshot/Restore move the cache through any
//     io.Writer/io.Reader in gob encoding, preserving recency order and
//     absolute expiry instants. Remaining TTLs keep ticking while
//     serialized; they are never re-based on restore.
//
// Basic usage
//
//	c, err := cache.New[string, []byte](cache.Options[string, []byte]{
//	    MaxBytes: bytesize.MustParse("64M"),
//	    MaxItems: 10_000,
//	})
//	if err != nil {
//	    // only invalid Options fail
//	}
//	defer c.Close()
//
//	_ = c.Set("a", []byte("payload"))
//	if v, err := c.Get("a"); err == nil {
//	    _ = v // use value
//	}
//
// With TTL
//
//	c, _ := cache.New[string, string](cache.Options[string, string]{
//	    DefaultTTL: 90 * time.Second,
//	})
//	defer c.Close()
//	_ = c.SetWithTTL("session", "tok", 5*time.Minute) // per-entry override
//
// With a loader (singleflight)
//
//	c, _ := cache.New[string, string](cache.Options[string, string]{
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        return fetchFromDB(ctx, k)
//	    },
//	})
//	defer c.Close()
//	v, err := c.GetOrLoad(ctx, "key") // concurrent misses load once
//
// Limits can change at runtime (ChangeMaxBytes, ChangeMaxItems), and
// both accept human readable sizes through the bytesize package, so a
// cache can be wired straight to a config file via OptionsFromYAML.
package cache
