package cache

// Stats is a point-in-time snapshot of a cache's lifetime counters.
// Hits and misses count Get, GetOrSet and GetOrLoad lookups.
// Evictions are budget-driven removals; Expirations are TTL removals,
// lazy or swept. Explicit Delete/Pop/Clear appear in neither.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   uint64
	Expirations uint64
}

// Stats returns the counters accumulated since New. Unlike the rest of
// the API it still works after Close.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
}
