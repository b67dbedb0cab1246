package service

import (
	"time"

	"github.com/okian/betslip/internal/adapters/marketcache"
	"github.com/okian/betslip/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithProvider sets the provider base URL and optional API key.
func WithProvider(baseURL, apiKey string) Option {
	return func(s *Service) {
		if baseURL != "" {
			s.providerURL = baseURL
		}
		s.providerAPIKey = apiKey
	}
}

// WithFetchFunc replaces the HTTP provider, e.g. with a fixture source.
func WithFetchFunc(fetch marketcache.FetchFunc) Option {
	return func(s *Service) {
		if fetch != nil {
			s.fetch = fetch
		}
	}
}

// WithFetchTimeout bounds one provider fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithCacheTTL sets the freshness windows for cold and live keys.
func WithCacheTTL(cold, live time.Duration) Option {
	return func(s *Service) {
		if cold > 0 {
			s.cacheTTL = cold
		}
		if live > 0 {
			s.liveCacheTTL = live
		}
	}
}

// WithRefreshInterval sets the auto-refresh period.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithRedis enables the snapshot mirror on the Redis server at addr.
func WithRedis(addr string, ttl time.Duration) Option {
	return func(s *Service) {
		s.redisAddr = addr
		if ttl > 0 {
			s.snapshotTTL = ttl
		}
	}
}

// WithMirror sets the snapshot mirror directly; it takes precedence over WithRedis.
func WithMirror(m marketcache.Mirror) Option {
	return func(s *Service) {
		if m != nil {
			s.mirror = m
		}
	}
}

// WithSports sets the sports warmed up at start. The first one is auto-refreshed.
func WithSports(sports ...string) Option {
	return func(s *Service) {
		if len(sports) > 0 {
			s.sports = append([]string(nil), sports...)
		}
	}
}

// WithDateBucket pins the date key instead of using today in UTC.
func WithDateBucket(date string) Option {
	return func(s *Service) {
		s.dateBucket = date
	}
}

// WithBankroll sets the starting bankroll of the slip.
func WithBankroll(amount float64) Option {
	return func(s *Service) {
		if amount >= 0 {
			s.bankroll = amount
		}
	}
}

// WithStakeSizing configures fractional Kelly and the stake bounds.
func WithStakeSizing(multiplier, minStake, maxStakeFraction float64) Option {
	return func(s *Service) {
		s.kellyMultiplier = multiplier
		s.minStake = minStake
		s.maxStakeFraction = maxStakeFraction
	}
}

// WithUtilizationWarn sets the bankroll share above which the slip is over-exposed.
func WithUtilizationWarn(ratio float64) Option {
	return func(s *Service) {
		if ratio > 0 {
			s.utilizationWarn = ratio
		}
	}
}

// WithClock sets the time source used for date buckets.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
