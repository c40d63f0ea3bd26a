// Package singleflight deduplicates concurrent loads of the same cache
// key so the expensive fetch runs at most once per flight.
package singleflight

import (
	"context"
	"sync"
)

// Group coalesces concurrent calls for the same key. The first caller
// for a key becomes the leader and runs fn; later callers join the
// flight and wait for the leader's result.
//
// Publishing (val, err) happens before close(done), so a follower that
// returns from <-done always observes the final values. A follower
// whose ctx ends stops waiting and returns ctx.Err(); the leader's fn
// is not cancelled by that. Thread ctx into fn if the underlying work
// itself must be cancellable.
type Group[K comparable, V any] struct {
	mu       sync.Mutex
	inflight map[K]*flight[V]
}

type flight[V any] struct {
	done chan struct{} // closed once val/err are published
	val  V
	err  error
}

// Do runs fn once per flight for the given key and returns the shared
// result.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.inflight == nil {
		g.inflight = make(map[K]*flight[V])
	}
	if f, ok := g.inflight[key]; ok {
		g.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
	f := &flight[V]{done: make(chan struct{})}
	g.inflight[key] = f
	g.mu.Unlock()

	// The leader runs fn outside the lock.
	f.val, f.err = fn()

	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()
	close(f.done)

	return f.val, f.err
}
