package cache

import (
	"fmt"
	"time"
)

// removal is a detached entry waiting for hook dispatch. Removals are
// collected while the lock is held and dispatched after it is released.
type removal[K comparable, V any] struct {
	key K
	val V
}

func (c *Cache[K, V]) now() time.Time {
	if c.opt.Clock != nil {
		return c.opt.Clock.Now()
	}
	return time.Now()
}

// deadlineFrom converts a relative TTL to an absolute instant.
// Non-positive TTLs mean no expiry.
func (c *Cache[K, V]) deadlineFrom(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

// retime swaps the deadline of a linked entry, keeping the count of
// armed deadlines in step.
func (c *Cache[K, V]) retime(n *entry[K, V], at time.Time) {
	switch {
	case n.expiresAt.IsZero() && !at.IsZero():
		c.ttls++
	case !n.expiresAt.IsZero() && at.IsZero():
		c.ttls--
	}
	n.expiresAt = at
}

// -------------------- intrusive list (mu held) --------------------

// pushFront links n as most recently used and accounts for it.
func (c *Cache[K, V]) pushFront(n *entry[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
	c.items++
	c.bytes += n.size
	if !n.expiresAt.IsZero() {
		c.ttls++
	}
}

// moveToFront promotes n to most recently used in O(1).
func (c *Cache[K, V]) moveToFront(n *entry[K, V]) {
	if n == c.head {
		return
	}
	// detach
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if c.tail == n {
		c.tail = n.prev
	}
	// insert at head
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
}

// moveToBack parks n at the eviction end in O(1).
func (c *Cache[K, V]) moveToBack(n *entry[K, V]) {
	if n == c.tail {
		return
	}
	// detach
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if c.head == n {
		c.head = n.next
	}
	// insert at tail
	n.next = nil
	n.prev = c.tail
	if c.tail != nil {
		c.tail.next = n
	}
	c.tail = n
}

// unlink removes n from the list and releases its accounted bytes.
func (c *Cache[K, V]) unlink(n *entry[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if c.head == n {
		c.head = n.next
	}
	if c.tail == n {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
	c.items--
	c.bytes -= n.size
	if !n.expiresAt.IsZero() {
		c.ttls--
	}
}

// -------------------- removal paths (mu held) --------------------

// deleteLocked fully detaches n: list, map and accounting.
func (c *Cache[K, V]) deleteLocked(n *entry[K, V]) {
	c.unlink(n)
	delete(c.m, n.key)
}

// evictLocked removes n on the cache's own initiative and queues the
// OnDelete hook. reason feeds metrics and the stats counters.
func (c *Cache[K, V]) evictLocked(n *entry[K, V], reason EvictReason, dead *[]removal[K, V]) {
	c.deleteLocked(n)
	if reason == EvictTTL {
		c.expirations.Add(1)
	} else {
		c.evictions.Add(1)
	}
	c.opt.Metrics.Evict(reason)
	*dead = append(*dead, removal[K, V]{key: n.key, val: n.val})
}

// removeLocked is the caller-driven variant (Delete, Pop, Clear,
// PopOldest). The hook still fires but metrics do not count it as an
// eviction.
func (c *Cache[K, V]) removeLocked(n *entry[K, V], dead *[]removal[K, V]) {
	c.deleteLocked(n)
	*dead = append(*dead, removal[K, V]{key: n.key, val: n.val})
}

// purgeExpiredLocked removes every dead entry. Expiry is independent of
// recency, so the whole list is walked; a cache with no armed deadline
// skips the walk.
func (c *Cache[K, V]) purgeExpiredLocked(now time.Time, dead *[]removal[K, V]) {
	if c.ttls == 0 {
		return
	}
	for n := c.tail; n != nil; {
		prev := n.prev
		if n.expired(now) {
			c.evictLocked(n, EvictTTL, dead)
		}
		n = prev
	}
}

// evictToFitLocked brings the cache back inside both budgets. Expired
// entries surrender their slots first; live entries are then evicted
// least recent first for whatever overflow remains. Admission checking
// in setLocked guarantees the loops terminate before the newest entry.
func (c *Cache[K, V]) evictToFitLocked(dead *[]removal[K, V]) {
	overItems := c.maxItems > 0 && c.items > c.maxItems
	overBytes := c.maxBytes > 0 && c.bytes > c.maxBytes
	if !overItems && !overBytes {
		return
	}
	c.purgeExpiredLocked(c.now(), dead)
	if c.maxItems > 0 {
		for c.items > c.maxItems && c.tail != nil {
			c.evictLocked(c.tail, EvictLRU, dead)
		}
	}
	if c.maxBytes > 0 {
		for c.bytes > c.maxBytes && c.tail != nil {
			c.evictLocked(c.tail, EvictBytes, dead)
		}
	}
}

// syncSizeLocked publishes the resident totals to metrics.
func (c *Cache[K, V]) syncSizeLocked() {
	c.opt.Metrics.Size(c.items, c.bytes)
}

// -------------------- sizing (mu held) --------------------

// measure runs the size oracle with its result clamped to >= 0.
func (c *Cache[K, V]) measure(v any) int64 {
	if n := c.sizeOf(v); n > 0 {
		return n
	}
	return 0
}

// entrySize is the accounted footprint of a prospective entry.
func (c *Cache[K, V]) entrySize(key K, value V) int64 {
	return c.measure(key) + c.measure(value) + c.entryBytes
}

// setLocked stores key=value with the given deadline. The admission
// check runs before any state change, so a rejected entry leaves the
// cache exactly as it was, even when the key is already resident.
func (c *Cache[K, V]) setLocked(key K, value V, expiresAt time.Time, dead *[]removal[K, V]) error {
	size := c.entrySize(key, value)
	if c.maxBytes > 0 && c.baseBytes+size > c.maxBytes {
		return fmt.Errorf("%w: entry needs %d bytes, budget is %d", ErrValueTooLarge, size, c.maxBytes)
	}
	if n, ok := c.m[key]; ok {
		if !n.expired(c.now()) {
			c.bytes += size - n.size
			n.val = value
			n.size = size
			c.retime(n, expiresAt)
			c.moveToFront(n)
			c.evictToFitLocked(dead)
			return nil
		}
		// The slot holds a corpse. Its old value still gets its hook.
		c.evictLocked(n, EvictTTL, dead)
	}
	n := &entry[K, V]{key: key, val: value, size: size, expiresAt: expiresAt}
	c.m[key] = n
	c.pushFront(n)
	c.evictToFitLocked(dead)
	return nil
}

// -------------------- counters --------------------

func (c *Cache[K, V]) hit() {
	c.hits.Add(1)
	c.opt.Metrics.Hit()
}

func (c *Cache[K, V]) miss() {
	c.misses.Add(1)
	c.opt.Metrics.Miss()
}

// -------------------- shared read/sweep paths --------------------

// peek returns a live value without promoting, purging or counting.
func (c *Cache[K, V]) peek(key K) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.m[key]
	if !ok || n.expired(c.now()) {
		return zero, false
	}
	return n.val, true
}

// removeExpired runs one eager purge pass and reports how many entries
// died. The background sweeper calls it on a timer.
func (c *Cache[K, V]) removeExpired() int {
	if c.closed.Load() {
		return 0
	}
	var dead []removal[K, V]
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.purgeExpiredLocked(c.now(), &dead)
		c.syncSizeLocked()
	}()
	c.dispatch(&dead)
	return len(dead)
}
