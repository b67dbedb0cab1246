// Package api serves the engine's operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/betslip/internal/adapters/marketcache"
	"github.com/okian/betslip/internal/domain/ledger"
	"github.com/okian/betslip/pkg/logger"
)

const (
	defaultRequestTimeout = 15 * time.Second
	corsMaxAge            = 300
)

// Stats is the body of GET /stats.
type Stats struct {
	SlipID     string                 `json:"slip_id"`
	Bankroll   float64                `json:"bankroll"`
	Slip       ledger.Totals          `json:"slip"`
	Selections []SelectionView        `json:"selections"`
	Keys       []marketcache.KeyState `json:"keys"`
	Watching   string                 `json:"watching,omitempty"`
}

// SelectionView is one slip entry as reported by /stats.
type SelectionView struct {
	ID    string  `json:"id"`
	Stake float64 `json:"stake"`
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// GetStats reports cache key states and slip totals.
	GetStats() Stats

	// Key builds the key served for sport on the configured date bucket.
	Key(sport string, live bool) marketcache.Key

	// Refresh forces a fetch of key, bypassing freshness.
	Refresh(ctx context.Context, key marketcache.Key) marketcache.Result
}

// Server wires HTTP routes for the ops API.
type Server struct {
	deps           Dependencies
	corsOrigins    []string
	requestTimeout time.Duration
	log            logger.Logger

	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	refreshHandler *RefreshHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		corsOrigins:    []string{"*"},
		requestTimeout: defaultRequestTimeout,
		log:            logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.refreshHandler = NewRefreshHandler(deps, s.log)
	return s
}

// Handler returns the router with all routes attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(s.requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         corsMaxAge,
	}))

	r.With(MetricsMiddleware("healthz")).Get("/healthz", s.healthHandler.HandleHealth)
	r.With(MetricsMiddleware("stats")).Get("/stats", s.statsHandler.HandleStats)
	r.With(MetricsMiddleware("refresh")).Post("/refresh/{sport}", s.refreshHandler.HandleRefresh)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
