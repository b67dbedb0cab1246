package marketcache

import (
	"context"
	"sync"
	"time"

	"github.com/okian/betslip/pkg/logger"
	"github.com/okian/betslip/pkg/metrics"
)

const defaultRefreshInterval = 30 * time.Second

// Refresher periodically reloads the key a session is looking at. At most one
// timer runs at a time: watching a new key replaces the old timer. Every tick
// fetches, even when the entry is still inside its TTL.
type Refresher struct {
	cache    *Cache
	fetch    FetchFunc
	interval time.Duration
	logger   logger.Logger

	mu     sync.Mutex
	key    Key
	armed  bool
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates a refresher bound to the cache. Close, or the cache's
// Close, releases it.
// A non-positive interval falls back to 30s.
func (c *Cache) NewRefresher(fetch FetchFunc, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	r := &Refresher{
		cache:    c,
		fetch:    fetch,
		interval: interval,
		logger:   c.logger.Named("refresher"),
	}

	c.mu.Lock()
	c.refreshers[r] = struct{}{}
	c.mu.Unlock()

	return r
}

// Watch makes key the refreshed key. Watching the key already armed is a no-op.
func (r *Refresher) Watch(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.armed && r.key == key {
		return
	}
	r.stopLocked()

	if r.closed || r.cache.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.cache.ctx)
	done := make(chan struct{})
	r.key, r.armed, r.cancel, r.done = key, true, cancel, done

	r.logger.Debug(ctx, "watching key",
		logger.String("key", key.String()),
		logger.Duration("interval", r.interval),
	)
	go r.loop(ctx, key, done)
}

// Stop cancels the timer and waits for an in-progress tick to return.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// Close stops the timer and detaches the refresher from its cache. Later
// Watch calls are ignored.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.stopLocked()
	r.closed = true
	r.mu.Unlock()

	r.cache.forget(r)
}

// Key returns the armed key.
func (r *Refresher) Key() (Key, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.key, r.armed
}

func (r *Refresher) stopLocked() {
	if !r.armed {
		return
	}
	r.cancel()
	<-r.done
	r.armed = false
	r.cancel = nil
	r.done = nil
}

func (r *Refresher) loop(ctx context.Context, key Key, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.RecordRefreshTick()
			res := r.cache.revalidate(ctx, key, r.fetch)
			if res.Err != nil && ctx.Err() == nil {
				r.logger.Warn(ctx, "auto refresh failed",
					logger.String("key", key.String()),
					logger.Bool("stale", res.Stale),
					logger.Error(res.Err),
				)
			}
		}
	}
}
