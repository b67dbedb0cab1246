// Package snapshot mirrors accepted boards into Redis so a restarted engine
// can serve stale-but-valid data while the provider is unreachable.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/betslip/internal/adapters/marketcache"
	"github.com/okian/betslip/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// Default mirror configuration constants.
const (
	defaultTTL    = 6 * time.Hour
	defaultPrefix = "betslip:board:"
)

// Store is the subset of the Redis client the mirror uses.
type Store interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Mirror implements marketcache.Mirror on Redis.
type Mirror struct {
	store  Store
	ttl    time.Duration
	prefix string
}

// Option applies a configuration option to the Mirror.
type Option func(*Mirror)

// WithTTL sets how long a mirrored board is kept.
func WithTTL(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithPrefix sets the Redis key prefix.
func WithPrefix(p string) Option {
	return func(m *Mirror) {
		if p != "" {
			m.prefix = p
		}
	}
}

// New creates a mirror over store.
func New(store Store, opts ...Option) *Mirror {
	m := &Mirror{store: store, ttl: defaultTTL, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ marketcache.Mirror = (*Mirror)(nil)

// Save stores e under key.
func (m *Mirror) Save(ctx context.Context, key marketcache.Key, e marketcache.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		metrics.RecordSnapshotOp("save", "error")
		return fmt.Errorf("marshal snapshot %s: %w", key, err)
	}
	if err := m.store.Set(ctx, m.redisKey(key), data, m.ttl).Err(); err != nil {
		metrics.RecordSnapshotOp("save", "error")
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	metrics.RecordSnapshotOp("save", "ok")
	return nil
}

// Load returns the mirrored entry for key, or false when none exists.
func (m *Mirror) Load(ctx context.Context, key marketcache.Key) (marketcache.Entry, bool, error) {
	data, err := m.store.Get(ctx, m.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordSnapshotOp("load", "miss")
		return marketcache.Entry{}, false, nil
	}
	if err != nil {
		metrics.RecordSnapshotOp("load", "error")
		return marketcache.Entry{}, false, fmt.Errorf("load snapshot %s: %w", key, err)
	}

	var e marketcache.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		metrics.RecordSnapshotOp("load", "error")
		return marketcache.Entry{}, false, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	metrics.RecordSnapshotOp("load", "ok")
	return e, true, nil
}

func (m *Mirror) redisKey(key marketcache.Key) string {
	return m.prefix + key.String()
}
