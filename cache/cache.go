package cache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
	"weak"

	"github.com/DmitriyVTitov/size"

	"github.com/cachekit/faascache/internal/singleflight"
	"github.com/cachekit/faascache/internal/util"
)

// Cache is an in-memory key/value store bounded three ways at once:
// by least-recently-used order, by per-key TTL and by a total byte
// budget. All methods are safe for concurrent use by multiple
// goroutines; one mutex serializes every operation.
type Cache[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu   sync.Mutex
	m    map[K]*entry[K, V]
	head *entry[K, V] // most recently used
	tail *entry[K, V] // least recently used, next to evict

	items int   // resident entries, corpses included until purged
	bytes int64 // accounted footprint, baseBytes included
	ttls  int   // resident entries carrying a deadline

	maxBytes int64 // 0 = unbounded
	maxItems int   // 0 = unbounded

	defaultTTL time.Duration
	sweepEvery time.Duration // resolved; negative means no sweeper

	// Fixed overheads measured once at construction.
	entryBytes int64 // per-entry node overhead
	baseBytes  int64 // container overhead

	sizeOf func(v any) int64
	log    *slog.Logger

	closed atomic.Bool
	swp    *sweeper

	opt Options[K, V]

	// Coalesces concurrent loads in GetOrLoad.
	sf singleflight.Group[K, V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_           util.CacheLinePad
	hits        util.PaddedAtomicInt64
	misses      util.PaddedAtomicInt64
	evictions   util.PaddedAtomicUint64
	expirations util.PaddedAtomicUint64
}

// New constructs a Cache with the provided Options. Zero budgets are
// unbounded; negative budgets and a negative DefaultTTL are rejected
// with ErrInvalidLimit.
func New[K comparable, V any](opt Options[K, V]) (*Cache[K, V], error) {
	if opt.DefaultTTL < 0 {
		return nil, fmt.Errorf("%w: DefaultTTL %v", ErrInvalidLimit, opt.DefaultTTL)
	}
	if opt.MaxBytes < 0 {
		return nil, fmt.Errorf("%w: MaxBytes %d", ErrInvalidLimit, opt.MaxBytes)
	}
	if opt.MaxItems < 0 {
		return nil, fmt.Errorf("%w: MaxItems %d", ErrInvalidLimit, opt.MaxItems)
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}

	c := &Cache[K, V]{
		m:          make(map[K]*entry[K, V]),
		maxBytes:   int64(opt.MaxBytes),
		maxItems:   opt.MaxItems,
		defaultTTL: opt.DefaultTTL,
		sweepEvery: opt.SweepInterval,
		sizeOf:     opt.SizeOf,
		log:        opt.Logger,
		opt:        opt,
	}
	if c.sizeOf == nil {
		c.sizeOf = deepSizeOf
	}
	if c.sweepEvery == 0 {
		c.sweepEvery = DefaultSweepInterval
	}
	c.entryBytes = int64(unsafe.Sizeof(entry[K, V]{}))
	c.baseBytes = int64(unsafe.Sizeof(*c))
	c.bytes = c.baseBytes

	if c.sweepEvery > 0 {
		c.swp = newSweeper(c.sweepEvery)
		go runSweeper(weak.Make(c), c.swp, c.log)
		// Stop the loop promptly if the cache is collected without Close.
		runtime.AddCleanup(c, func(s *sweeper) { s.Stop() }, c.swp)
	}
	return c, nil
}

// deepSizeOf is the default size oracle: a reflection walk over
// everything reachable from v. Failures count as zero bytes.
func deepSizeOf(v any) int64 {
	n := size.Of(v)
	if n < 0 {
		return 0
	}
	return int64(n)
}

// Get returns the value for key and promotes it to most recently used.
// Absent and expired keys return ErrKeyNotFound; an expired entry found
// here is purged and its OnDelete hook fires.
func (c *Cache[K, V]) Get(key K) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	c.mu.Lock()
	n, ok := c.m[key]
	if !ok {
		c.miss()
		c.mu.Unlock()
		return zero, ErrKeyNotFound
	}
	if n.expired(c.now()) {
		var dead []removal[K, V]
		c.evictLocked(n, EvictTTL, &dead)
		c.syncSizeLocked()
		c.miss()
		c.mu.Unlock()
		c.dispatch(&dead)
		return zero, ErrKeyNotFound
	}
	c.moveToFront(n)
	v := n.val
	c.hit()
	c.mu.Unlock()
	return v, nil
}

// Set stores key=value under the cache's DefaultTTL and promotes it to
// most recently used. When the byte budget is set and the entry alone
// cannot fit it, Set returns ErrValueTooLarge and changes nothing;
// otherwise older entries are evicted until both budgets hold.
func (c *Cache[K, V]) Set(key K, value V) error {
	return c.store(key, value, c.defaultTTL)
}

// SetWithTTL is Set with a per-entry TTL overriding the default.
// A non-positive ttl stores the entry without an expiry.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) error {
	return c.store(key, value, ttl)
}

func (c *Cache[K, V]) store(key K, value V, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	return c.setLocked(key, value, c.deadlineFrom(ttl), &dead)
}

// GetOrSet returns the existing live value for key, promoting it, or
// stores value under the DefaultTTL and returns that. The second
// return mirrors Set's errors for the insert path.
func (c *Cache[K, V]) GetOrSet(key K, value V) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	if n, ok := c.m[key]; ok && !n.expired(c.now()) {
		c.moveToFront(n)
		c.hit()
		return n.val, nil
	}
	c.miss()
	if err := c.setLocked(key, value, c.deadlineFrom(c.defaultTTL), &dead); err != nil {
		return zero, err
	}
	return value, nil
}

// Delete removes key and fires its OnDelete hook. Absent and expired
// keys return ErrKeyNotFound; an expired entry found here is purged.
func (c *Cache[K, V]) Delete(key K) error {
	if c.closed.Load() {
		return ErrClosed
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	n, ok := c.m[key]
	if !ok {
		return ErrKeyNotFound
	}
	if n.expired(c.now()) {
		c.evictLocked(n, EvictTTL, &dead)
		return ErrKeyNotFound
	}
	c.removeLocked(n, &dead)
	return nil
}

// Pop removes key and returns its value, reporting whether a live entry
// was there. The hook fires for the popped entry. Expired entries are
// purged across the whole cache first, so a Pop of a dead key is
// (zero, false).
func (c *Cache[K, V]) Pop(key K) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	c.purgeExpiredLocked(c.now(), &dead)
	n, ok := c.m[key]
	if !ok {
		return zero, false
	}
	v := n.val
	c.removeLocked(n, &dead)
	return v, true
}

// PopOldest removes and returns the least recently used live entry.
// An empty cache returns ErrKeyNotFound.
func (c *Cache[K, V]) PopOldest() (K, V, error) {
	var zk K
	var zv V
	if c.closed.Load() {
		return zk, zv, ErrClosed
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	c.purgeExpiredLocked(c.now(), &dead)
	n := c.tail
	if n == nil {
		return zk, zv, ErrKeyNotFound
	}
	k, v := n.key, n.val
	c.removeLocked(n, &dead)
	return k, v, nil
}

// Promote marks key as most recently used without touching its value
// or TTL.
func (c *Cache[K, V]) Promote(key K) error { return c.reorder(key, true) }

// Demote parks key at the eviction end of the recency order, making it
// the next victim. Useful for entries the caller is done with.
func (c *Cache[K, V]) Demote(key K) error { return c.reorder(key, false) }

func (c *Cache[K, V]) reorder(key K, front bool) error {
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
	if n.expired(c.now()) {
		c.evictLocked(n, EvictTTL, &dead)
		c.syncSizeLocked()
		return ErrKeyNotFound
	}
	if front {
		c.moveToFront(n)
	} else {
		c.moveToBack(n)
	}
	return nil
}

// Contains reports whether key is resident and live. Expired entries
// are purged first. Unlike Get it does not promote and counts neither
// a hit nor a miss.
func (c *Cache[K, V]) Contains(key K) bool {
	if c.closed.Load() {
		return false
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	c.purgeExpiredLocked(c.now(), &dead)
	_, ok := c.m[key]
	return ok
}

// Len reports the number of live entries. Expired entries are purged
// first, so the count never includes corpses.
func (c *Cache[K, V]) Len() int {
	if c.closed.Load() {
		return 0
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	c.purgeExpiredLocked(c.now(), &dead)
	return c.items
}

// Bytes reports the accounted footprint in bytes, container overhead
// included. Expired entries are purged first.
func (c *Cache[K, V]) Bytes() int64 {
	if c.closed.Load() {
		return 0
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	c.purgeExpiredLocked(c.now(), &dead)
	return c.bytes
}

// Keys returns the live keys ordered oldest to newest.
func (c *Cache[K, V]) Keys() []K {
	if c.closed.Load() {
		return nil
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	c.purgeExpiredLocked(c.now(), &dead)
	out := make([]K, 0, c.items)
	for n := c.tail; n != nil; n = n.prev {
		out = append(out, n.key)
	}
	return out
}

// Values returns the live values ordered oldest to newest.
func (c *Cache[K, V]) Values() []V {
	if c.closed.Load() {
		return nil
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	c.purgeExpiredLocked(c.now(), &dead)
	out := make([]V, 0, c.items)
	for n := c.tail; n != nil; n = n.prev {
		out = append(out, n.val)
	}
	return out
}

// Items returns the live key/value pairs ordered oldest to newest.
func (c *Cache[K, V]) Items() []Item[K, V] {
	if c.closed.Load() {
		return nil
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	c.purgeExpiredLocked(c.now(), &dead)
	out := make([]Item[K, V], 0, c.items)
	for n := c.tail; n != nil; n = n.prev {
		out = append(out, Item[K, V]{Key: n.key, Value: n.val})
	}
	return out
}

// All returns an iterator over live entries, oldest first. The key set
// is snapshotted up front and the lock is not held while the consumer
// runs, so entries may appear or vanish mid-iteration; keys that died
// since the snapshot are skipped. Iteration does not promote.
func (c *Cache[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range c.Keys() {
			if v, ok := c.peek(k); ok {
				if !yield(k, v) {
					return
				}
			}
		}
	}
}

// Clear removes every entry, firing the OnDelete hook once per entry,
// oldest first. Expired entries still resident get theirs too.
func (c *Cache[K, V]) Clear() {
	if c.closed.Load() {
		return
	}
	var dead []removal[K, V]
	defer c.dispatch(&dead)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncSizeLocked()
	for n := c.tail; n != nil; {
		prev := n.prev
		c.removeLocked(n, &dead)
		n = prev
	}
}

// GetOrLoad returns the value for key, loading it via Options.Loader on
// miss. Concurrent loads for the same key are coalesced so the loader
// runs once. The loader runs without the cache lock held; its result is
// stored through the normal Set path under the DefaultTTL.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if v, err := c.Get(key); err == nil {
		return v, nil
	} else if !errors.Is(err, ErrKeyNotFound) {
		return zero, err
	}
	if c.opt.Loader == nil {
		return zero, ErrNoLoader
	}
	return c.sf.Do(ctx, key, func() (V, error) {
		// Double-check after winning the flight: a concurrent Set or an
		// earlier leader may have filled the slot already.
		if v, err := c.Get(key); err == nil {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, key)
		if err != nil {
			return zero, err
		}
		if serr := c.Set(key, v); serr != nil && !errors.Is(serr, ErrClosed) {
			c.log.Warn("cache: loaded value not stored", "err", serr)
		}
		return v, nil
	})
}

// Close stops the background sweeper and marks the cache closed; it is
// idempotent. Afterwards every operation fails fast: methods with an
// error return ErrClosed, the rest return zero values. Close does not
// fire OnDelete for resident entries; call Clear first if teardown
// hooks are needed.
func (c *Cache[K, V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.swp != nil {
		c.swp.Stop()
		<-c.swp.done
	}
	return nil
}

// FromKeys would build a cache holding value under every key. A
// budgeted cache owns its accounting and sweeper, so wholesale
// construction from a key list is not supported.
func FromKeys[K comparable, V any](keys []K, value V) (*Cache[K, V], error) {
	return nil, ErrNotSupported
}

// Copy is not supported: two caches cannot share one accounted byte
// budget, and a deep copy would silently double resident memory.
func (c *Cache[K, V]) Copy() (*Cache[K, V], error) {
	return nil, ErrNotSupported
}
