package cache

import (
	"log/slog"
	"sync"
	"time"
	"weak"
)

// sweeper owns the shutdown signalling for the background purge loop.
// It deliberately holds no reference to its cache: the loop upgrades a
// weak pointer on every wake, so an abandoned cache can still be
// garbage collected while the loop is parked between ticks.
type sweeper struct {
	every time.Duration
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newSweeper(every time.Duration) *sweeper {
	return &sweeper{
		every: every,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Stop signals the loop to exit. Safe to call repeatedly and from the
// runtime cleanup that fires when the cache is collected.
func (s *sweeper) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// runSweeper wakes every interval, upgrades the weak reference and runs
// one purge pass. It exits when stopped or once the cache has been
// collected. A panicking pass is logged and the loop keeps going.
func runSweeper[K comparable, V any](p weak.Pointer[Cache[K, V]], s *sweeper, log *slog.Logger) {
	defer close(s.done)
	t := time.NewTicker(s.every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			c := p.Value()
			if c == nil {
				return
			}
			sweepOnce(c, log)
		}
	}
}

// sweepOnce scopes the strong reference to a single pass so the loop
// never pins the cache across ticks.
func sweepOnce[K comparable, V any](c *Cache[K, V], log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("cache: sweep pass panicked", "panic", r)
		}
	}()
	c.removeExpired()
}
