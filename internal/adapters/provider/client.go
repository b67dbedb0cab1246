// Package provider fetches recommendation boards from the odds provider's
// HTTP/JSON API.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/betslip/internal/adapters/marketcache"
	"github.com/okian/betslip/internal/domain/model"
	"github.com/okian/betslip/pkg/logger"
	"github.com/okian/betslip/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultHintTolerance = 0.01
	maxErrorBody         = 512
	coldPath             = "/api/recommendations"
	livePath             = "/api/live"
)

// Client calls the provider. Fetch matches marketcache.FetchFunc.
type Client struct {
	baseURL       string
	apiKey        string
	http          *http.Client
	hintTolerance float64
	logger        logger.Logger
}

// New creates a client for the provider at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{},
		hintTolerance: defaultHintTolerance,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.Get().Named("provider")
	}

	return c
}

var _ marketcache.FetchFunc = (*Client)(nil).Fetch

// Fetch loads the board for key. Live keys read the live endpoint.
func (c *Client) Fetch(ctx context.Context, key marketcache.Key) (model.Board, error) {
	req, err := c.newRequest(ctx, key)
	if err != nil {
		return model.Board{}, err
	}
	requestID := req.Header.Get("X-Request-ID")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return model.Board{}, ctx.Err()
		}
		metrics.RecordFetchError("network")
		return model.Board{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		metrics.RecordFetchError("http")
		return model.Board{}, &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	board, err := Decode(resp.Body, key.Sport)
	if err != nil {
		if ctx.Err() != nil {
			return model.Board{}, ctx.Err()
		}
		metrics.RecordFetchError("decode")
		metrics.RecordDecodeFailure()
		c.logger.Warn(ctx, "rejected provider payload",
			logger.String("key", key.String()),
			logger.String("request_id", requestID),
			logger.Error(err),
		)
		return model.Board{}, err
	}
	c.checkHints(ctx, board)

	c.logger.Debug(ctx, "fetched board",
		logger.String("key", key.String()),
		logger.String("request_id", requestID),
		logger.Int("recommendations", len(board.Recommendations)),
		logger.Int("parlays", len(board.Parlays)),
		logger.Duration("took", time.Since(started)),
	)
	return board, nil
}

func (c *Client) newRequest(ctx context.Context, key marketcache.Key) (*http.Request, error) {
	path := coldPath
	if key.Live {
		path = livePath
	}
	q := url.Values{}
	q.Set("sport", key.Sport)
	if key.DateBucket != "" {
		q.Set("date", key.DateBucket)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

// checkHints compares provider-supplied combined odds with the recomputed
// product. The recomputed value is kept either way.
func (c *Client) checkHints(ctx context.Context, board model.Board) {
	for _, p := range board.Parlays {
		if p.ProviderCombinedOdds == 0 {
			continue
		}
		if math.Abs(p.ProviderCombinedOdds-p.CombinedOdds) > c.hintTolerance {
			metrics.RecordParlayHintMismatch()
			c.logger.Warn(ctx, "parlay combined odds disagree with legs",
				logger.String("parlay", p.ID),
				logger.Float64("provider", p.ProviderCombinedOdds),
				logger.Float64("computed", p.CombinedOdds),
			)
		}
	}
}

// IsRetryable reports whether err is worth retrying on the next refresh.
func IsRetryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status >= http.StatusInternalServerError || he.Status == http.StatusTooManyRequests
	}
	return errors.Is(err, ErrNetwork)
}
