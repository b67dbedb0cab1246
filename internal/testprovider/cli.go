package testprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/okian/betslip/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// SetupLogging initializes the logger for the mock provider binary.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// Run serves the mock provider until ctx is cancelled.
func Run(ctx context.Context, cfg *Config) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewServer(cfg).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Get().Info(ctx, "mock provider listening",
			logger.String("addr", cfg.Addr),
			logger.Int("recommendations", cfg.Recommendations),
			logger.Int("parlays", cfg.Parlays),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ShowHelp prints usage information for the mock provider.
func ShowHelp() {
	os.Stdout.WriteString(`Betslip Mock Provider
=====================

Serves deterministic recommendation and parlay boards shaped like the
real odds provider, for local development of the engine.

Usage:
  go run ./cmd/mock-provider [options]

Options:
  -addr string
        Listen address (default ":9090")
  -seed uint
        Seed for board generation (default 42)
  -recs int
        Recommendations per board (default 12)
  -parlays int
        Parlays per board (default 4)
  -latency duration
        Delay added to every response (default 0)
  -fail-every int
        Answer every Nth request with 503 (default 0, never)
  -api-key string
        Require this X-API-Key header
  -verbose
        Log every request
  -help
        Show this help message

Examples:
  # Serve on the default port
  go run ./cmd/mock-provider

  # Exercise the engine timeout and stale fallback paths
  go run ./cmd/mock-provider -latency 9s -fail-every 3
`)
}
