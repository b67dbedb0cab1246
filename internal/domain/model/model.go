// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/betslip/internal/domain/odds"
)

// Percentage bounds for confidence and kelly values.
const (
	minPercent = 0
	maxPercent = 100
)

// Risk is the provider's qualitative risk grade.
type Risk string

// Known risk grades.
const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

// ParseRisk accepts any casing of low, medium or high.
func ParseRisk(s string) (Risk, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "medium", "med":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRisk, s)
	}
}

// Pick is anything that can sit on a bet slip.
type Pick interface {
	PickID() string
	// DecimalOdds is derived from the American prices on every call.
	DecimalOdds() (float64, error)
	// WinProbability is the provider confidence scaled to [0, 1].
	WinProbability() float64
}

// MarketQuote is a single moneyline recommendation.
type MarketQuote struct {
	ID            string        `json:"id"`
	Sport         string        `json:"sport"`
	Matchup       string        `json:"matchup"`
	Bet           string        `json:"bet"`
	StartTime     time.Time     `json:"start_time"`
	Odds          odds.American `json:"odds"`
	Confidence    float64       `json:"confidence"`
	ExpectedValue float64       `json:"expected_value"`
	KellyPct      float64       `json:"kelly_pct"`
	Risk          Risk          `json:"risk"`
	Reasoning     string        `json:"reasoning"`
}

// Validate checks the quote invariants.
func (q MarketQuote) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuote)
	}
	if err := q.Odds.Validate(); err != nil {
		return fmt.Errorf("%w %s: %w", ErrInvalidQuote, q.ID, err)
	}
	if !inPercent(q.Confidence) {
		return fmt.Errorf("%w %s: confidence %v outside [0, 100]", ErrInvalidQuote, q.ID, q.Confidence)
	}
	if !inPercent(q.KellyPct) {
		return fmt.Errorf("%w %s: kelly_pct %v outside [0, 100]", ErrInvalidQuote, q.ID, q.KellyPct)
	}
	if _, err := ParseRisk(string(q.Risk)); err != nil {
		return fmt.Errorf("%w %s: %w", ErrInvalidQuote, q.ID, err)
	}
	return nil
}

func (q MarketQuote) PickID() string { return q.ID }

// DecimalOdds derives the decimal price from the American quote.
func (q MarketQuote) DecimalOdds() (float64, error) { return q.Odds.Decimal() }

// WinProbability scales confidence to [0, 1].
func (q MarketQuote) WinProbability() float64 { return q.Confidence / maxPercent }

// ParlayLeg is one leg of a parlay.
type ParlayLeg struct {
	Matchup    string        `json:"matchup"`
	Bet        string        `json:"bet"`
	Odds       odds.American `json:"odds"`
	Confidence float64       `json:"confidence"`
}

// Parlay is a combined bet whose legs must all win.
type Parlay struct {
	ID   string      `json:"id"`
	Legs []ParlayLeg `json:"legs"`
	// CombinedOdds is the product of the legs' decimal odds, recomputed by NewParlay.
	CombinedOdds float64 `json:"combined_odds"`
	// ProviderCombinedOdds is the upstream value, kept only as a hint.
	ProviderCombinedOdds float64 `json:"provider_combined_odds,omitempty"`
	TotalConfidence      float64 `json:"total_confidence"`
	CorrelationRisk      float64 `json:"correlation_risk"`
	RiskLevel            Risk    `json:"risk_level"`
	Reasoning            string  `json:"reasoning"`
}

// NewParlay validates p and derives CombinedOdds from its legs.
func NewParlay(p Parlay) (Parlay, error) {
	if strings.TrimSpace(p.ID) == "" {
		return Parlay{}, fmt.Errorf("%w: missing id", ErrInvalidParlay)
	}
	combo, err := odds.CombineParlay(p.LegOdds())
	if err != nil {
		return Parlay{}, fmt.Errorf("%w %s: %w", ErrInvalidParlay, p.ID, err)
	}
	for i, leg := range p.Legs {
		if !inPercent(leg.Confidence) {
			return Parlay{}, fmt.Errorf("%w %s: leg %d confidence %v outside [0, 100]", ErrInvalidParlay, p.ID, i, leg.Confidence)
		}
	}
	if !inPercent(p.TotalConfidence) {
		return Parlay{}, fmt.Errorf("%w %s: total_confidence %v outside [0, 100]", ErrInvalidParlay, p.ID, p.TotalConfidence)
	}
	if p.CorrelationRisk < 0 || p.CorrelationRisk > 1 {
		return Parlay{}, fmt.Errorf("%w %s: correlation_risk %v outside [0, 1]", ErrInvalidParlay, p.ID, p.CorrelationRisk)
	}
	if _, err := ParseRisk(string(p.RiskLevel)); err != nil {
		return Parlay{}, fmt.Errorf("%w %s: %w", ErrInvalidParlay, p.ID, err)
	}

	out := p
	out.Legs = append([]ParlayLeg(nil), p.Legs...)
	out.CombinedOdds = combo.Decimal
	return out, nil
}

// LegOdds returns the American price of each leg in order.
func (p Parlay) LegOdds() []odds.American {
	out := make([]odds.American, len(p.Legs))
	for i, leg := range p.Legs {
		out[i] = leg.Odds
	}
	return out
}

func (p Parlay) PickID() string { return p.ID }

// DecimalOdds recomputes the combined price from the legs.
func (p Parlay) DecimalOdds() (float64, error) {
	combo, err := odds.CombineParlay(p.LegOdds())
	if err != nil {
		return 0, err
	}
	return combo.Decimal, nil
}

func (p Parlay) WinProbability() float64 { return p.TotalConfidence / maxPercent }

// Board is everything the provider returns for one (sport, date) key.
type Board struct {
	Recommendations []MarketQuote `json:"recommendations"`
	Parlays         []Parlay      `json:"parlays"`
}

// Len is the total number of picks on the board.
func (b Board) Len() int {
	return len(b.Recommendations) + len(b.Parlays)
}

func inPercent(v float64) bool {
	return v >= minPercent && v <= maxPercent
}
