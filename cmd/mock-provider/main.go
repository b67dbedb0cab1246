package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/betslip/internal/testprovider"
)

// Default configuration constants.
const (
	defaultSeed            = 42
	defaultRecommendations = 12
	defaultParlays         = 4
)

func main() {
	var (
		addr      = flag.String("addr", ":9090", "Listen address")
		seed      = flag.Uint64("seed", defaultSeed, "Seed for board generation")
		recs      = flag.Int("recs", defaultRecommendations, "Recommendations per board")
		parlays   = flag.Int("parlays", defaultParlays, "Parlays per board")
		latency   = flag.Duration("latency", 0, "Delay added to every response")
		failEvery = flag.Int("fail-every", 0, "Answer every Nth request with 503")
		apiKey    = flag.String("api-key", "", "Require this X-API-Key header")
		verbose   = flag.Bool("verbose", false, "Log every request")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testprovider.ShowHelp()
		return
	}

	if err := testprovider.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := &testprovider.Config{
		Addr:            *addr,
		Seed:            *seed,
		Recommendations: *recs,
		Parlays:         *parlays,
		Latency:         *latency,
		FailEvery:       *failEvery,
		APIKey:          *apiKey,
		Verbose:         *verbose,
	}

	if err := testprovider.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Mock provider failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
