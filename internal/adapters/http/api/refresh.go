package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/betslip/internal/adapters/marketcache"
	"github.com/okian/betslip/pkg/logger"
)

const dateLayout = "2006-01-02"

// Refresher forces a provider fetch for one key. Key builds the key the
// service serves for a sport, including its date bucket.
type Refresher interface {
	Key(sport string, live bool) marketcache.Key
	Refresh(ctx context.Context, key marketcache.Key) marketcache.Result
}

// RefreshHandler handles POST /refresh/{sport}?date=&live=.
type RefreshHandler struct {
	refresher Refresher
	log       logger.Logger
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(r Refresher, log logger.Logger) *RefreshHandler {
	return &RefreshHandler{refresher: r, log: log}
}

type refreshResponse struct {
	Key        string    `json:"key"`
	Generation uint64    `json:"generation"`
	FetchedAt  time.Time `json:"fetched_at,omitzero"`
	Items      int       `json:"items"`
	Stale      bool      `json:"stale"`
	Error      string    `json:"error,omitempty"`
}

// HandleRefresh handles POST /refresh/{sport}.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r, h.refresher)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res := h.refresher.Refresh(r.Context(), key)
	body := refreshResponse{
		Key:        key.String(),
		Generation: res.Generation,
		FetchedAt:  res.FetchedAt,
		Items:      res.Data.Len(),
		Stale:      res.Stale,
	}
	if res.Err != nil {
		h.log.Warn(r.Context(), "manual refresh failed",
			logger.String("key", key.String()),
			logger.Error(res.Err))
		body.Error = fmt.Errorf("%w: %w", ErrRefresh, res.Err).Error()
		writeJSON(w, http.StatusBadGateway, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// parseKey reads sport, date and live from the request. Without a date the
// service's own key for the sport is used.
func parseKey(r *http.Request, keys Refresher) (marketcache.Key, error) {
	sport := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "sport")))
	if sport == "" {
		return marketcache.Key{}, fmt.Errorf("%w: missing sport", ErrBadRequest)
	}

	q := r.URL.Query()
	date := q.Get("date")
	if date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return marketcache.Key{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrBadRequest)
		}
	}

	var live bool
	if v := q.Get("live"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return marketcache.Key{}, fmt.Errorf("%w: live must be a boolean", ErrBadRequest)
		}
		live = b
	}
	if date == "" {
		return keys.Key(sport, live), nil
	}
	return marketcache.Key{Sport: sport, DateBucket: date, Live: live}, nil
}
