package cache

import (
	"fmt"

	"github.com/cachekit/faascache/bytesize"
)

// ChangeMaxBytes replaces the byte budget at runtime. Zero removes the
// budget; a negative limit returns ErrInvalidLimit. Every resident
// entry is re-measured with the size oracle before the new budget is
// enforced, so values that grew behind their pointers are accounted
// again. This is the only operation that re-measures: everything else
// works off the per-entry figures cached at store time.
func (c *Cache[K, V]) ChangeMaxBytes(limit bytesize.Size) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if limit < 0 {
		return fmt.Errorf("%w: MaxBytes %d", ErrInvalidLimit, limit)
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	c.purgeExpiredLocked(c.now(), &dead)
	c.maxBytes = int64(limit)
	total := c.baseBytes
	for n := c.head; n != nil; n = n.next {
		n.size = c.entrySize(n.key, n.val)
		total += n.size
	}
	c.bytes = total
	c.evictToFitLocked(&dead)
	return nil
}

// ChangeMaxItems replaces the entry count budget at runtime. Zero
// removes the budget; a negative limit returns ErrInvalidLimit.
// Reapplying the current limit is a no-op.
func (c *Cache[K, V]) ChangeMaxItems(limit int) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if limit < 0 {
		return fmt.Errorf("%w: MaxItems %d", ErrInvalidLimit, limit)
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	c.purgeExpiredLocked(c.now(), &dead)
	c.maxItems = limit
	c.evictToFitLocked(&dead)
	return nil
}
