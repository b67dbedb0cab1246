package testprovider

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/betslip/pkg/logger"
)

// Server emulates the odds provider over HTTP.
type Server struct {
	cfg      *Config
	log      logger.Logger
	requests atomic.Int64
	failures atomic.Int64
}

// NewServer creates a mock provider for cfg.
func NewServer(cfg *Config) *Server {
	return &Server{cfg: cfg, log: logger.Get().Named("mock-provider")}
}

// Handler returns the provider routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count, s.auth)
	r.Get("/api/recommendations", s.board(false))
	r.Get("/api/live", s.board(true))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// Requests returns how many board requests were served or refused.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Failures returns how many requests were answered with an injected 503.
func (s *Server) Failures() int64 { return s.failures.Load() }

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			s.requests.Add(1)
		}
		if s.cfg.Verbose {
			s.log.Info(r.Context(), "request",
				logger.String("path", r.URL.Path),
				logger.String("query", r.URL.RawQuery),
				logger.String("request_id", r.Header.Get("X-Request-ID")),
			)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" && r.Header.Get("X-API-Key") != s.cfg.APIKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) board(live bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sport := strings.ToLower(r.URL.Query().Get("sport"))
		if sport == "" {
			http.Error(w, "sport is required", http.StatusBadRequest)
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format(time.DateOnly)
		}

		if s.cfg.Latency > 0 {
			select {
			case <-time.After(s.cfg.Latency):
			case <-r.Context().Done():
				return
			}
		}

		if n := s.cfg.FailEvery; n > 0 && s.requests.Load()%int64(n) == 0 {
			s.failures.Add(1)
			http.Error(w, "provider overloaded", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(Generate(s.cfg, sport, date, live)); err != nil {
			s.log.Warn(r.Context(), "encode failed", logger.Error(err))
		}
	}
}
