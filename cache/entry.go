package cache

import "time"

// entry is an intrusive doubly linked list element owned by the cache.
// It carries the key/value alongside list links, the absolute expiry
// instant and the accounted byte footprint.
type entry[K comparable, V any] struct {
	key K
	val V

	// Intrusive list links: head is most recent, tail is next to evict.
	prev *entry[K, V]
	next *entry[K, V]

	// Absolute expiry instant. Zero means the entry never expires.
	expiresAt time.Time

	// Accounted footprint in bytes (key + value + node overhead),
	// measured when the value was last stored. Budget enforcement works
	// off this cached figure; it is re-measured only by ChangeMaxBytes.
	size int64
}

// expired reports whether the entry is dead at instant now.
// An entry is live only while its deadline is strictly in the future.
func (n *entry[K, V]) expired(now time.Time) bool {
	return !n.expiresAt.IsZero() && !now.Before(n.expiresAt)
}

// Item is a key/value pair as returned by Items.
type Item[K comparable, V any] struct {
	Key   K
	Value V
}
