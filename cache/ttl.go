package cache

import "time"

// NoTTL is returned by TTL for entries that never expire. Passing it
// (or any non-positive duration) to SetTTL removes a deadline.
const NoTTL time.Duration = -1

// TTL reports the remaining lifetime of key. Entries without a deadline
// report NoTTL. Absent and expired keys return ErrKeyNotFound; an
// expired entry found here is purged on the way out. TTL does not touch
// the recency order.
func (c *Cache[K, V]) TTL(key K) (time.Duration, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.m[key]
	if !ok {
		return 0, ErrKeyNotFound
	}
	now := c.now()
	if n.expired(now) {
		c.evictLocked(n, EvictTTL, &dead)
		c.syncSizeLocked()
		return 0, ErrKeyNotFound
	}
	if n.expiresAt.IsZero() {
		return NoTTL, nil
	}
	return n.expiresAt.Sub(now), nil
}

// SetTTL gives key a fresh deadline ttl from now. A non-positive ttl
// removes the deadline. Unlike Set, this leaves the recency order
// alone: refreshing a lease is not a use.
func (c *Cache[K, V]) SetTTL(key K, ttl time.Duration) error {
	return c.setDeadline(key, func(now time.Time) time.Time {
		if ttl <= 0 {
			return time.Time{}
		}
		return now.Add(ttl)
	})
}

// ExpireAt pins key's deadline to an absolute instant, which may lie in
// the past to expire the entry on its next access. A zero instant
// removes the deadline. Recency order is untouched.
func (c *Cache[K, V]) ExpireAt(key K, at time.Time) error {
	return c.setDeadline(key, func(time.Time) time.Time { return at })
}

func (c *Cache[K, V]) setDeadline(key K, deadline func(now time.Time) time.Time) error {
	if c.closed.Load() {
		return ErrClosed
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.m[key]
	if !ok {
		return ErrKeyNotFound
	}
	now := c.now()
	if n.expired(now) {
		c.evictLocked(n, EvictTTL, &dead)
		c.syncSizeLocked()
		return ErrKeyNotFound
	}
	c.retime(n, deadline(now))
	return nil
}

// IsExpired distinguishes three states for key: live (false, true),
// expired but not yet purged (true, true), and unknown (false, false)
// for keys that are absent or already swept. It never purges, promotes
// or counts a hit or miss, so it is safe for monitoring loops.
func (c *Cache[K, V]) IsExpired(key K) (expired, known bool) {
	if c.closed.Load() {
		return false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.m[key]
	if !ok {
		return false, false
	}
	return n.expired(c.now()), true
}
