package cache

import (
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/cachekit/faascache/bytesize"
)

const snapshotVersion = 1

// snapshotHeader carries the persisted configuration. Runtime
// collaborators (hook, oracle, metrics, clock, logger, loader) cannot
// be serialized; Restore takes them from its Options argument instead.
type snapshotHeader struct {
	Version       int
	DefaultTTL    time.Duration
	MaxBytes      int64
	MaxItems      int
	SweepInterval time.Duration
}

// snapshotEntry is one persisted entry. ExpiresAt is an absolute
// instant: a snapshot taken 10 seconds into a 60 second TTL restores
// with roughly 50 seconds left, however long the bytes sat in transit.
type snapshotEntry[K comparable, V any] struct {
	Key       K
	Value     V
	ExpiresAt time.Time
	Size      int64
}

// Snapshot writes the cache's configuration and entries to w in gob
// encoding, oldest entry first so recency order survives the round
// trip. Expired entries are purged, not written. Interface-typed keys
// or values need gob.Register calls on the caller's side, as with any
// gob stream. The stream is encoded from a copy, so the cache is locked
// only while that copy is taken.
func (c *Cache[K, V]) Snapshot(w io.Writer) error {
	if c.closed.Load() {
		return ErrClosed
	}
	var (
		dead []removal[K, V]
		hdr  snapshotHeader
		ents []snapshotEntry[K, V]
	)
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		defer c.syncSizeLocked()
		c.purgeExpiredLocked(c.now(), &dead)
		hdr = snapshotHeader{
			Version:       snapshotVersion,
			DefaultTTL:    c.defaultTTL,
			MaxBytes:      c.maxBytes,
			MaxItems:      c.maxItems,
			SweepInterval: c.sweepEvery,
		}
		ents = make([]snapshotEntry[K, V], 0, c.items)
		for n := c.tail; n != nil; n = n.prev {
			ents = append(ents, snapshotEntry[K, V]{
				Key:       n.key,
				Value:     n.val,
				ExpiresAt: n.expiresAt,
				Size:      n.size,
			})
		}
	}()
	c.dispatch(&dead)

	enc := gob.NewEncoder(w)
	if err := enc.Encode(hdr); err != nil {
		return fmt.Errorf("cache: snapshot header: %w", err)
	}
	if err := enc.Encode(ents); err != nil {
		return fmt.Errorf("cache: snapshot entries: %w", err)
	}
	return nil
}

// Restore rebuilds a cache from a Snapshot stream. The persisted
// configuration (default TTL, budgets, sweep interval) comes from the
// stream and those fields of opt are ignored; everything runtime-only
// in opt (OnDelete, SizeOf, Loader, Metrics, Clock, Logger) is wired
// into the restored cache. The background sweeper is re-armed. Entries
// whose deadline passed while serialized come back as-is and fall to
// the first access or sweep, like any other expired entry.
func Restore[K comparable, V any](r io.Reader, opt Options[K, V]) (*Cache[K, V], error) {
	dec := gob.NewDecoder(r)
	var hdr snapshotHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadSnapshot, err)
	}
	if hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrBadSnapshot, hdr.Version)
	}
	var ents []snapshotEntry[K, V]
	if err := dec.Decode(&ents); err != nil {
		return nil, fmt.Errorf("%w: entries: %v", ErrBadSnapshot, err)
	}

	opt.DefaultTTL = hdr.DefaultTTL
	opt.MaxBytes = bytesize.Size(hdr.MaxBytes)
	opt.MaxItems = hdr.MaxItems
	opt.SweepInterval = hdr.SweepInterval
	c, err := New(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	var dead []removal[K, V]
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		defer c.syncSizeLocked()
		for _, e := range ents {
			if _, exists := c.m[e.Key]; exists {
				continue
			}
			n := &entry[K, V]{key: e.Key, val: e.Value, expiresAt: e.ExpiresAt, size: e.Size}
			c.m[e.Key] = n
			c.pushFront(n)
		}
		// Budgets hold on return even for a hand-edited stream.
		c.evictToFitLocked(&dead)
	}()
	c.dispatch(&dead)
	return c, nil
}
