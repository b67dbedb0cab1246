// Package config defines engine configuration and its koanf loader.
//
// Conventions:
// - New returns a Config populated with defaults; Load layers file and env on top.
// - Durations are stored as integer milliseconds and read through accessor methods.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the ops HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ProviderURL is the base URL of the recommendations provider.
	ProviderURL string `koanf:"provider_url"`

	// ProviderAPIKey is sent as X-API-Key when non-empty.
	ProviderAPIKey string `koanf:"provider_api_key"`

	// FetchTimeoutMS bounds a single provider fetch.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// CacheTTLMS and LiveCacheTTLMS are freshness windows for cold and live keys.
	CacheTTLMS     int `koanf:"cache_ttl_ms"`
	LiveCacheTTLMS int `koanf:"live_cache_ttl_ms"`

	// RefreshIntervalMS drives the auto-refresher; must sit within 20s..60s.
	RefreshIntervalMS int `koanf:"refresh_interval_ms"`

	// RedisAddr enables the snapshot mirror when set.
	RedisAddr string `koanf:"redis_addr"`

	// SnapshotTTLMS is how long mirrored boards live in Redis.
	SnapshotTTLMS int `koanf:"snapshot_ttl_ms"`

	// Sports are warmed up at start; the first one is auto-refreshed.
	Sports []string `koanf:"sports"`

	// DateBucket pins the date key (YYYY-MM-DD). Empty means today in UTC.
	DateBucket string `koanf:"date_bucket"`

	// Bankroll seeds the bet slip.
	Bankroll float64 `koanf:"bankroll"`

	// KellyMultiplier, MinStake and MaxStakeFraction configure the stake sizer.
	KellyMultiplier  float64 `koanf:"kelly_multiplier"`
	MinStake         float64 `koanf:"min_stake"`
	MaxStakeFraction float64 `koanf:"max_stake_fraction"`

	// UtilizationWarn is the bankroll share above which the slip is over-exposed.
	UtilizationWarn float64 `koanf:"utilization_warn"`

	// CORSOrigins lists origins allowed on the ops API.
	CORSOrigins []string `koanf:"cors_origins"`
}

const (
	minRefreshInterval = 20 * time.Second
	maxRefreshInterval = 60 * time.Second
	dateLayout         = "2006-01-02"
)

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		ProviderURL:       "http://localhost:9090",
		FetchTimeoutMS:    8_000,
		CacheTTLMS:        30_000,
		LiveCacheTTLMS:    20_000,
		RefreshIntervalMS: 30_000,
		SnapshotTTLMS:     6 * 60 * 60 * 1000,
		Sports:            []string{"nba"},
		Bankroll:          1000,
		KellyMultiplier:   0.25,
		MinStake:          10,
		MaxStakeFraction:  0.05,
		UtilizationWarn:   0.10,
		CORSOrigins:       []string{"*"},
	}
}

func (c *Config) FetchTimeout() time.Duration { return ms(c.FetchTimeoutMS) }

func (c *Config) CacheTTL() time.Duration { return ms(c.CacheTTLMS) }

func (c *Config) LiveCacheTTL() time.Duration { return ms(c.LiveCacheTTLMS) }

func (c *Config) RefreshInterval() time.Duration { return ms(c.RefreshIntervalMS) }

func (c *Config) SnapshotTTL() time.Duration { return ms(c.SnapshotTTLMS) }

// Date returns the date bucket to query, falling back to now in UTC.
func (c *Config) Date(now time.Time) string {
	if c.DateBucket != "" {
		return c.DateBucket
	}
	return now.UTC().Format(dateLayout)
}

// Validate reports the first setting outside its allowed range.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ProviderURL == "":
		return fmt.Errorf("%w: provider_url must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.FetchTimeoutMS <= 0:
		return fmt.Errorf("%w: fetch_timeout_ms must be positive", ErrInvalidConfig)
	case c.CacheTTLMS <= 0 || c.LiveCacheTTLMS <= 0:
		return fmt.Errorf("%w: cache ttl must be positive", ErrInvalidConfig)
	case c.SnapshotTTLMS <= 0:
		return fmt.Errorf("%w: snapshot_ttl_ms must be positive", ErrInvalidConfig)
	case c.RefreshInterval() < minRefreshInterval || c.RefreshInterval() > maxRefreshInterval:
		return fmt.Errorf("%w: refresh_interval_ms %d outside [%d, %d]", ErrInvalidConfig,
			c.RefreshIntervalMS, minRefreshInterval.Milliseconds(), maxRefreshInterval.Milliseconds())
	case len(c.Sports) == 0:
		return fmt.Errorf("%w: at least one sport is required", ErrInvalidConfig)
	case c.Bankroll < 0:
		return fmt.Errorf("%w: bankroll must not be negative", ErrInvalidConfig)
	case c.KellyMultiplier <= 0 || c.KellyMultiplier > 1:
		return fmt.Errorf("%w: kelly_multiplier %v outside (0, 1]", ErrInvalidConfig, c.KellyMultiplier)
	case c.MinStake < 0:
		return fmt.Errorf("%w: min_stake must not be negative", ErrInvalidConfig)
	case c.MaxStakeFraction <= 0 || c.MaxStakeFraction > 1:
		return fmt.Errorf("%w: max_stake_fraction %v outside (0, 1]", ErrInvalidConfig, c.MaxStakeFraction)
	case c.UtilizationWarn <= 0 || c.UtilizationWarn > 1:
		return fmt.Errorf("%w: utilization_warn %v outside (0, 1]", ErrInvalidConfig, c.UtilizationWarn)
	}
	if c.DateBucket != "" {
		if _, err := time.Parse(dateLayout, c.DateBucket); err != nil {
			return fmt.Errorf("%w: date_bucket %q: %w", ErrInvalidConfig, c.DateBucket, err)
		}
	}
	return nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
