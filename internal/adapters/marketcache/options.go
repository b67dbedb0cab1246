package marketcache

import (
	"time"

	"github.com/okian/betslip/pkg/logger"
)

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithTTL sets how long a cold (pre-game) entry stays fresh.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithLiveTTL sets how long a live entry stays fresh.
func WithLiveTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.liveTTL = d
		}
	}
}

// WithFetchTimeout bounds each provider fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithClock replaces the wall clock used for freshness checks.
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMirror saves accepted payloads to m and reads them back when a key has
// nothing cached and its fetch fails.
func WithMirror(m Mirror) Option {
	return func(c *Cache) {
		if m != nil {
			c.mirror = m
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}
