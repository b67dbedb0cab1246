// Package marketcache caches provider boards per (sport, date, live) key.
//
// Concurrent reads of a missing or expired key share one provider call. Every
// fetch carries a per-key generation number; a result is stored only when its
// generation is newer than the stored one, so a slow old fetch can never
// overwrite the answer of a later refresh. All state transitions happen under
// a single mutex and never span a blocking call.
package marketcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/betslip/internal/domain/model"
	"github.com/okian/betslip/pkg/logger"
	"github.com/okian/betslip/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Default cache configuration constants.
const (
	defaultTTL          = 30 * time.Second
	defaultLiveTTL      = 20 * time.Second
	defaultFetchTimeout = 8 * time.Second
)

// Cache holds the latest accepted board per key.
type Cache struct {
	ttl          time.Duration
	liveTTL      time.Duration
	fetchTimeout time.Duration
	clock        Clock
	mirror       Mirror
	logger       logger.Logger

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	states     map[Key]*state
	refreshers map[*Refresher]struct{}
}

type state struct {
	status     Status
	generation uint64 // last issued
	floor      uint64 // results at or below this were invalidated
	entry      *Entry
	lastErr    error
	pending    *flight
}

// flight is the in-progress fetch of one generation.
type flight struct {
	gen  uint64
	name string
	run  func() (any, error)
}

// New creates a cache. Close releases its background work.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:          defaultTTL,
		liveTTL:      defaultLiveTTL,
		fetchTimeout: defaultFetchTimeout,
		clock:        wallClock{},
		states:       make(map[Key]*state),
		refreshers:   make(map[*Refresher]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.Get().Named("marketcache")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	return c
}

// Get returns the board for key. A fresh entry is returned without I/O; a key
// with a fetch in flight joins it; otherwise a new generation is fetched.
// Fetch failures come back in Result.Err, with the last good board attached
// as stale data when there is one.
func (c *Cache) Get(ctx context.Context, key Key, fetch FetchFunc) Result {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{Err: ErrClosed}
	}

	st := c.stateLocked(key)
	if e := st.entry; e != nil && c.freshLocked(key, e) {
		c.mu.Unlock()
		metrics.RecordCacheHit(key.mode())
		return Result{Data: e.Data, FromCache: true, FetchedAt: e.FetchedAt, Generation: e.Generation}
	}

	if st.pending == nil {
		metrics.RecordCacheMiss(key.mode())
	}
	ch := c.joinOrStartLocked(key, st, fetch)
	c.mu.Unlock()

	return c.wait(ctx, key, ch)
}

// revalidate fetches key whether or not its entry is still fresh. A fetch
// already in flight for key is joined instead of starting another one.
func (c *Cache) revalidate(ctx context.Context, key Key, fetch FetchFunc) Result {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{Err: ErrClosed}
	}
	ch := c.joinOrStartLocked(key, c.stateLocked(key), fetch)
	c.mu.Unlock()

	return c.wait(ctx, key, ch)
}

// Refresh fetches key now, ignoring the TTL. It starts a new generation even
// while an older fetch is still in flight; whichever of the two is newer wins.
func (c *Cache) Refresh(ctx context.Context, key Key, fetch FetchFunc) Result {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{Err: ErrClosed}
	}
	ch := c.startLocked(key, c.stateLocked(key), fetch)
	c.mu.Unlock()

	return c.wait(ctx, key, ch)
}

// Peek returns the stored entry for key without fetching. Stale reports
// whether the entry has outlived its TTL.
func (c *Cache) Peek(key Key) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[key]
	if !ok || st.entry == nil {
		return Result{}, false
	}
	e := st.entry
	return Result{
		Data:       e.Data,
		FromCache:  true,
		Stale:      !c.freshLocked(key, e),
		FetchedAt:  e.FetchedAt,
		Generation: e.Generation,
	}, true
}

// Invalidate drops the entry for key. Fetches already in flight for it are
// discarded when they land.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[key]
	if !ok {
		return
	}
	st.floor = st.generation
	st.entry = nil
	st.pending = nil
	st.lastErr = nil
	st.status = StatusEmpty
}

// Snapshot lists every known key, sorted by key.
func (c *Cache) Snapshot() []KeyState {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	out := make([]KeyState, 0, len(c.states))
	for key, st := range c.states {
		ks := KeyState{
			Key:        key.String(),
			Status:     st.status,
			Generation: st.generation,
		}
		if e := st.entry; e != nil {
			ks.Stored = e.Generation
			ks.FetchedAt = e.FetchedAt
			ks.Age = now.Sub(e.FetchedAt)
			ks.Fresh = c.freshLocked(key, e)
			ks.Items = e.Data.Len()
		}
		if st.lastErr != nil {
			ks.LastError = st.lastErr.Error()
		}
		out = append(out, ks)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (c *Cache) forget(r *Refresher) {
	c.mu.Lock()
	delete(c.refreshers, r)
	c.mu.Unlock()
}

// Close cancels in-flight fetches and stops every refresher. Later reads fail
// with ErrClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	refreshers := make([]*Refresher, 0, len(c.refreshers))
	for r := range c.refreshers {
		refreshers = append(refreshers, r)
	}
	c.refreshers = make(map[*Refresher]struct{})
	c.mu.Unlock()

	c.cancel()
	for _, r := range refreshers {
		r.Stop()
	}
	return nil
}

// TTL returns the freshness window used for key.
func (c *Cache) TTL(key Key) time.Duration {
	if key.Live {
		return c.liveTTL
	}
	return c.ttl
}

func (c *Cache) stateLocked(key Key) *state {
	st, ok := c.states[key]
	if !ok {
		st = &state{}
		c.states[key] = st
		metrics.UpdateCacheKeys(len(c.states))
	}
	return st
}

func (c *Cache) freshLocked(key Key, e *Entry) bool {
	return c.clock.Now().Sub(e.FetchedAt) < c.TTL(key)
}

func (c *Cache) joinOrStartLocked(key Key, st *state, fetch FetchFunc) <-chan singleflight.Result {
	f := st.pending
	if f == nil {
		return c.startLocked(key, st, fetch)
	}
	metrics.RecordCacheCoalesced(key.mode())
	// Joining under c.mu keeps the singleflight key alive: the flight
	// cannot finish until it takes c.mu to complete.
	return c.group.DoChan(f.name, f.run)
}

func (c *Cache) startLocked(key Key, st *state, fetch FetchFunc) <-chan singleflight.Result {
	st.generation++
	gen := st.generation
	f := &flight{gen: gen, name: fmt.Sprintf("%s#%d", key, gen)}
	f.run = func() (any, error) {
		return c.fetch(key, gen, fetch), nil
	}
	st.pending = f
	st.status = StatusFetching

	c.logger.Debug(c.ctx, "fetch started",
		logger.String("key", key.String()),
		logger.Uint64("generation", gen),
	)
	return c.group.DoChan(f.name, f.run)
}

func (c *Cache) wait(ctx context.Context, key Key, ch <-chan singleflight.Result) Result {
	select {
	case r := <-ch:
		res, _ := r.Val.(Result)
		return res
	case <-ctx.Done():
		// The caller gave up; the shared fetch keeps running for the others.
		return c.abandoned(key, ctx.Err())
	}
}

func (c *Cache) abandoned(key Key, err error) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := Result{Err: err}
	if st, ok := c.states[key]; ok && st.entry != nil {
		res.Data = st.entry.Data
		res.FromCache = true
		res.Stale = true
		res.FetchedAt = st.entry.FetchedAt
		res.Generation = st.entry.Generation
	}
	return res
}

// fetch runs one generation end to end. It always returns a Result for the
// waiters of that generation, even when the board itself is discarded.
func (c *Cache) fetch(key Key, gen uint64, fetch FetchFunc) Result {
	mode := key.mode()
	metrics.RecordFetchStarted(mode)

	started := time.Now()
	board, err := c.runWithTimeout(key, fetch)
	took := time.Since(started)
	metrics.RecordFetchLatency(mode, float64(took.Milliseconds()))

	res, accepted := c.complete(key, gen, board, err)
	if accepted != nil {
		c.saveMirror(key, *accepted)
	}
	if res.Err != nil {
		metrics.RecordErrorByComponent("marketcache", errorKind(res.Err))
		c.logger.Warn(c.ctx, "fetch failed",
			logger.String("key", key.String()),
			logger.Uint64("generation", gen),
			logger.Duration("took", took),
			logger.Bool("stale_served", res.Stale),
			logger.Error(res.Err),
		)
		if !res.Stale {
			res = c.fromMirror(key, res)
		}
	}
	return res
}

// runWithTimeout races fetch against the fetch timeout. The fetch context is
// cancelled as soon as the race is decided.
func (c *Cache) runWithTimeout(key Key, fetch FetchFunc) (model.Board, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout)
	defer cancel()

	type outcome struct {
		board model.Board
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		b, err := fetch(ctx, key)
		done <- outcome{board: b, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() != nil {
			return model.Board{}, c.contextErr(ctx)
		}
		return o.board, o.err
	case <-ctx.Done():
		return model.Board{}, c.contextErr(ctx)
	}
}

func (c *Cache) contextErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		metrics.RecordFetchTimeout()
		return fmt.Errorf("%w after %s", ErrTimeout, c.fetchTimeout)
	}
	return ErrClosed
}

// complete applies the outcome of generation gen. The returned entry is
// non-nil when the board was accepted.
func (c *Cache) complete(key Key, gen uint64, board model.Board, err error) (Result, *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stateLocked(key)
	current := st.pending != nil && st.pending.gen == gen
	if current {
		st.pending = nil
	}

	if err != nil {
		if current {
			st.status = StatusError
			st.lastErr = err
		}
		res := Result{Err: err, Generation: gen}
		if e := st.entry; e != nil {
			res.Data = e.Data
			res.FromCache = true
			res.Stale = true
			res.FetchedAt = e.FetchedAt
			res.Generation = e.Generation
			metrics.RecordStaleServed()
		}
		return res, nil
	}

	now := c.clock.Now()
	res := Result{Data: board, FetchedAt: now, Generation: gen}

	stored := st.floor
	if st.entry != nil && st.entry.Generation > stored {
		stored = st.entry.Generation
	}
	if gen <= stored {
		metrics.RecordStaleDiscard()
		c.logger.Debug(c.ctx, "discarding fetch result",
			logger.String("key", key.String()),
			logger.Error(fmt.Errorf("%w: %d <= %d", ErrStaleGeneration, gen, stored)),
		)
		if current {
			st.status = readyOrEmpty(st)
		}
		return res, nil
	}

	st.entry = &Entry{Data: board, FetchedAt: now, Generation: gen}
	// The accepted board is newer than any failure recorded so far.
	st.lastErr = nil
	if st.pending == nil {
		st.status = StatusReady
	}
	accepted := *st.entry
	return res, &accepted
}

func readyOrEmpty(st *state) Status {
	if st.entry != nil {
		return StatusReady
	}
	return StatusEmpty
}

func (c *Cache) saveMirror(key Key, e Entry) {
	if c.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout)
	defer cancel()

	if err := c.mirror.Save(ctx, key, e); err != nil {
		c.logger.Warn(ctx, "snapshot save failed", logger.String("key", key.String()), logger.Error(err))
	}
}

// fromMirror answers a failed fetch with a mirrored board when the key has
// nothing in memory. The mirrored board seeds the key so later failures keep
// serving it.
func (c *Cache) fromMirror(key Key, res Result) Result {
	if c.mirror == nil {
		return res
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout)
	defer cancel()

	e, ok, err := c.mirror.Load(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "snapshot load failed", logger.String("key", key.String()), logger.Error(err))
		return res
	}
	if !ok {
		return res
	}

	c.mu.Lock()
	st := c.stateLocked(key)
	if st.entry == nil {
		st.entry = &Entry{Data: e.Data, FetchedAt: e.FetchedAt}
	}
	c.mu.Unlock()

	metrics.RecordStaleServed()
	res.Data = e.Data
	res.FromCache = true
	res.Stale = true
	res.FetchedAt = e.FetchedAt
	res.Generation = 0
	return res
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "fetch"
	}
}
