package testprovider

import "time"

// Config holds configuration for the mock provider.
type Config struct {
	Addr            string        // Listen address
	Seed            uint64        // Base seed; same seed, same boards
	Recommendations int           // Recommendations per board
	Parlays         int           // Parlays per board
	Latency         time.Duration // Delay added to every response
	FailEvery       int           // Every Nth request answers 503; 0 disables
	APIKey          string        // Required X-API-Key when set
	Verbose         bool          // Log every request
}

// Payload is the provider response body.
type Payload struct {
	Recommendations []Recommendation `json:"recommendations"`
	Parlays         []Parlay         `json:"parlays"`
}

// Odds wraps an American price the way the provider nests it.
type Odds struct {
	American int `json:"american"`
}

// Recommendation is one moneyline pick on the wire.
type Recommendation struct {
	ID            string  `json:"id"`
	Sport         string  `json:"sport"`
	Matchup       string  `json:"matchup"`
	Bet           string  `json:"bet"`
	Odds          Odds    `json:"odds"`
	Confidence    float64 `json:"confidence"`
	ExpectedValue float64 `json:"expected_value"`
	KellyPct      float64 `json:"kelly_pct"`
	Risk          string  `json:"risk"`
	Reasoning     string  `json:"reasoning"`
	StartTime     string  `json:"start_time,omitempty"`
}

// Leg is one parlay leg on the wire; its odds are a bare American integer.
type Leg struct {
	Matchup    string  `json:"matchup"`
	Bet        string  `json:"bet"`
	Odds       int     `json:"odds"`
	Confidence float64 `json:"confidence"`
}

// Parlay is a parlay on the wire. CombinedOdds is decimal.
type Parlay struct {
	ID              string  `json:"id"`
	Legs            []Leg   `json:"legs"`
	CombinedOdds    float64 `json:"combined_odds"`
	TotalConfidence float64 `json:"total_confidence"`
	CorrelationRisk float64 `json:"correlation_risk"`
	RiskLevel       string  `json:"risk_level"`
	Reasoning       string  `json:"reasoning"`
}
