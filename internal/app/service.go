// Package service wires the engine for one UI session: provider, cache,
// auto-refresh, snapshot mirror and bet slip. It also implements the
// dependencies required by the ops HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/okian/betslip/internal/adapters/http/api"
	"github.com/okian/betslip/internal/adapters/marketcache"
	"github.com/okian/betslip/internal/adapters/provider"
	"github.com/okian/betslip/internal/adapters/snapshot"
	"github.com/okian/betslip/internal/domain/ledger"
	"github.com/okian/betslip/internal/domain/model"
	"github.com/okian/betslip/internal/domain/pipeline"
	"github.com/okian/betslip/internal/domain/stake"
	"github.com/okian/betslip/pkg/logger"
)

const (
	dateLayout        = "2006-01-02"
	warmUpConcurrency = 4
	redisPingTimeout  = 2 * time.Second
)

// Service implements the API dependencies for the engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	fetch     marketcache.FetchFunc
	cache     *marketcache.Cache
	refresher *marketcache.Refresher
	mirror    marketcache.Mirror
	redis     *redis.Client
	slip      *ledger.Slip

	// Configuration
	providerURL      string
	providerAPIKey   string
	fetchTimeout     time.Duration
	cacheTTL         time.Duration
	liveCacheTTL     time.Duration
	refreshInterval  time.Duration
	redisAddr        string
	snapshotTTL      time.Duration
	sports           []string
	dateBucket       string
	bankroll         float64
	kellyMultiplier  float64
	minStake         float64
	maxStakeFraction float64
	utilizationWarn  float64
	now              func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		providerURL:      "http://localhost:9090",
		fetchTimeout:     8 * time.Second,
		cacheTTL:         30 * time.Second,
		liveCacheTTL:     20 * time.Second,
		refreshInterval:  30 * time.Second,
		snapshotTTL:      6 * time.Hour,
		sports:           []string{"nba"},
		bankroll:         1000,
		kellyMultiplier:  0.25,
		minStake:         10,
		maxStakeFraction: 0.05,
		utilizationWarn:  0.10,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the components, warms the configured sports and arms the
// auto-refresher on the first one. Provider failures during warm-up are
// logged, not returned; only cancellation of ctx fails Start.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting betslip service...")

	if s.fetch == nil {
		client := provider.New(s.providerURL,
			provider.WithAPIKey(s.providerAPIKey),
			provider.WithLogger(s.logger.Named("provider")),
		)
		s.fetch = client.Fetch
	}
	if s.mirror == nil && s.redisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: s.redisAddr})
		s.mirror = snapshot.New(s.redis, snapshot.WithTTL(s.snapshotTTL))
	}

	cacheOpts := []marketcache.Option{
		marketcache.WithTTL(s.cacheTTL),
		marketcache.WithLiveTTL(s.liveCacheTTL),
		marketcache.WithFetchTimeout(s.fetchTimeout),
		marketcache.WithLogger(s.logger.Named("marketcache")),
	}
	if s.mirror != nil {
		cacheOpts = append(cacheOpts, marketcache.WithMirror(s.mirror))
	}
	s.cache = marketcache.New(cacheOpts...)
	s.refresher = s.cache.NewRefresher(s.fetch, s.refreshInterval)
	if s.slip == nil {
		s.slip = ledger.New(
			ledger.WithBankroll(s.bankroll),
			ledger.WithSizer(stake.NewSizer(
				stake.WithMultiplier(s.kellyMultiplier),
				stake.WithMinStake(s.minStake),
				stake.WithMaxStakeFraction(s.maxStakeFraction),
			)),
			ledger.WithWarnThreshold(s.utilizationWarn),
		)
	}
	s.started = true
	redisClient := s.redis
	s.mu.Unlock()

	if redisClient != nil {
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			s.logger.Warn(ctx, "snapshot mirror unreachable; continuing without it until it recovers",
				logger.String("redis_addr", s.redisAddr),
				logger.Error(err))
		}
		cancel()
	}

	if err := s.warmUp(ctx); err != nil {
		return err
	}
	if len(s.sports) > 0 {
		s.refresher.Watch(s.Key(s.sports[0], false))
	}
	s.publishSlip(ctx)

	s.logger.Info(ctx, "betslip service started",
		logger.String("provider", s.providerURL),
		logger.Any("sports", s.sports),
		logger.Bool("mirror", s.mirror != nil),
		logger.Duration("refresh_interval", s.refreshInterval),
	)
	return nil
}

// warmUp loads every configured sport concurrently.
func (s *Service) warmUp(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmUpConcurrency)

	for _, sport := range s.sports {
		key := s.Key(sport, false)
		g.Go(func() error {
			res := s.cache.Get(gctx, key, s.fetch)
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrWarmUp, key, err)
			}
			if res.Err != nil {
				s.logger.Warn(gctx, "warm-up fetch failed",
					logger.String("key", key.String()),
					logger.Bool("retryable", provider.IsRetryable(res.Err)),
					logger.Bool("stale_available", res.Stale),
					logger.Error(res.Err))
				return nil
			}
			s.logger.Debug(gctx, "warmed key",
				logger.String("key", key.String()),
				logger.Int("items", res.Data.Len()),
				logger.Uint64("generation", res.Generation))
			return nil
		})
	}
	return g.Wait()
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping betslip service...")

	if s.refresher != nil {
		s.refresher.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing redis client", logger.Error(err))
		}
		s.redis = nil
		s.mirror = nil
	}

	s.started = false
	s.logger.Info(context.Background(), "betslip service stopped")
}

// Key builds the cache key for sport on the service's date bucket.
func (s *Service) Key(sport string, live bool) marketcache.Key {
	date := s.dateBucket
	if date == "" {
		date = s.now().UTC().Format(dateLayout)
	}
	return marketcache.Key{
		Sport:      strings.ToLower(strings.TrimSpace(sport)),
		DateBucket: date,
		Live:       live,
	}
}

// Query selects and orders a board view.
type Query struct {
	Filters pipeline.Filters
	Sort    pipeline.SortKey
}

// BoardView is a filtered, sorted board plus cache metadata.
type BoardView struct {
	Key             marketcache.Key
	Recommendations []model.MarketQuote
	Parlays         []model.Parlay
	FromCache       bool
	Stale           bool
	FetchedAt       time.Time
	Generation      uint64
	Err             error
}

// Board reads key through the cache and runs the pipeline over both lists.
// When the fetch fails but an older board exists, the view carries that
// board with Stale set and the error in Err.
func (s *Service) Board(ctx context.Context, key marketcache.Key, q Query) BoardView {
	cache, fetch, err := s.components()
	if err != nil {
		return BoardView{Key: key, Err: err}
	}
	return view(key, cache.Get(ctx, key, fetch), q)
}

// Refresh forces a fetch of key, bypassing freshness. This is the manual
// refresh action; it supersedes any fetch already in flight for key.
func (s *Service) Refresh(ctx context.Context, key marketcache.Key) marketcache.Result {
	cache, fetch, err := s.components()
	if err != nil {
		return marketcache.Result{Err: err}
	}
	res := cache.Refresh(ctx, key, fetch)
	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		s.logger.Warn(ctx, "refresh failed",
			logger.String("key", key.String()),
			logger.Bool("retryable", provider.IsRetryable(res.Err)),
			logger.Bool("stale_available", res.Stale),
			logger.Error(res.Err))
	}
	return res
}

// RefreshBoard is Refresh followed by the pipeline.
func (s *Service) RefreshBoard(ctx context.Context, key marketcache.Key, q Query) BoardView {
	return view(key, s.Refresh(ctx, key), q)
}

// Watch points the auto-refresher at key, replacing the previous key.
func (s *Service) Watch(key marketcache.Key) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	s.refresher.Watch(key)
	return nil
}

// Invalidate drops key so the next read fetches; late results are discarded.
func (s *Service) Invalidate(key marketcache.Key) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache != nil {
		s.cache.Invalidate(key)
	}
}

// Pick looks up id on the stored board for key without fetching.
func (s *Service) Pick(key marketcache.Key, id string) (model.Pick, bool) {
	s.mu.RLock()
	cache := s.cache
	s.mu.RUnlock()
	if cache == nil {
		return nil, false
	}

	res, ok := cache.Peek(key)
	if !ok {
		return nil, false
	}
	for _, q := range res.Data.Recommendations {
		if q.ID == id {
			return q, true
		}
	}
	for _, p := range res.Data.Parlays {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// GetStats returns cache key states and slip totals for monitoring.
func (s *Service) GetStats() api.Stats {
	s.mu.RLock()
	cache, refresher, slip := s.cache, s.refresher, s.slip
	s.mu.RUnlock()

	var stats api.Stats
	if slip != nil {
		stats.SlipID = slip.ID()
		stats.Bankroll = slip.Bankroll()
		stats.Slip = slip.Aggregate()
		for _, sel := range slip.Selections() {
			stats.Selections = append(stats.Selections, api.SelectionView{ID: sel.Pick.PickID(), Stake: sel.Stake})
		}
	}
	if cache != nil {
		stats.Keys = cache.Snapshot()
	}
	if refresher != nil {
		if key, ok := refresher.Key(); ok {
			stats.Watching = key.String()
		}
	}
	return stats
}

func (s *Service) components() (*marketcache.Cache, marketcache.FetchFunc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil {
		return nil, nil, ErrNotStarted
	}
	return s.cache, s.fetch, nil
}

func view(key marketcache.Key, res marketcache.Result, q Query) BoardView {
	return BoardView{
		Key:             key,
		Recommendations: pipeline.Quotes(res.Data.Recommendations, q.Filters, q.Sort),
		Parlays:         pipeline.Parlays(res.Data.Parlays, q.Filters, q.Sort),
		FromCache:       res.FromCache,
		Stale:           res.Stale,
		FetchedAt:       res.FetchedAt,
		Generation:      res.Generation,
		Err:             res.Err,
	}
}

var _ api.Dependencies = (*Service)(nil)
