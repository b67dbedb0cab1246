package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/okian/betslip/internal/domain/model"
	"github.com/okian/betslip/internal/domain/odds"
)

const maxBodyBytes = 8 << 20

type wirePayload struct {
	Recommendations []wireQuote  `json:"recommendations"`
	Parlays         []wireParlay `json:"parlays"`
}

type wireOdds struct {
	American *int `json:"american"`
}

type wireQuote struct {
	ID            string    `json:"id"`
	Sport         string    `json:"sport"`
	Matchup       string    `json:"matchup"`
	Bet           string    `json:"bet"`
	Odds          *wireOdds `json:"odds"`
	Confidence    *float64  `json:"confidence"`
	ExpectedValue float64   `json:"expected_value"`
	KellyPct      float64   `json:"kelly_pct"`
	Risk          string    `json:"risk"`
	Reasoning     string    `json:"reasoning"`
	StartTime     string    `json:"start_time"`
}

type wireLeg struct {
	Matchup    string  `json:"matchup"`
	Bet        string  `json:"bet"`
	Odds       *int    `json:"odds"`
	Confidence float64 `json:"confidence"`
}

type wireParlay struct {
	ID              string    `json:"id"`
	Legs            []wireLeg `json:"legs"`
	CombinedOdds    float64   `json:"combined_odds"`
	TotalConfidence float64   `json:"total_confidence"`
	CorrelationRisk float64   `json:"correlation_risk"`
	RiskLevel       string    `json:"risk_level"`
	Reasoning       string    `json:"reasoning"`
}

// Decode reads a provider body into a validated board. Every item is checked;
// a single bad item fails the whole payload with ErrDecode naming each
// offending entry. sport fills quotes that omit their own.
func Decode(r io.Reader, sport string) (model.Board, error) {
	var p wirePayload
	dec := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		return model.Board{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	var errs []error
	board := model.Board{
		Recommendations: make([]model.MarketQuote, 0, len(p.Recommendations)),
		Parlays:         make([]model.Parlay, 0, len(p.Parlays)),
	}
	for i, w := range p.Recommendations {
		q, err := w.quote(sport)
		if err != nil {
			errs = append(errs, fmt.Errorf("recommendations[%d]: %w", i, err))
			continue
		}
		board.Recommendations = append(board.Recommendations, q)
	}
	for i, w := range p.Parlays {
		par, err := w.parlay()
		if err != nil {
			errs = append(errs, fmt.Errorf("parlays[%d]: %w", i, err))
			continue
		}
		board.Parlays = append(board.Parlays, par)
	}

	if len(errs) > 0 {
		return model.Board{}, fmt.Errorf("%w: %w", ErrDecode, errors.Join(errs...))
	}
	return board, nil
}

func (w wireQuote) quote(sport string) (model.MarketQuote, error) {
	if w.Odds == nil || w.Odds.American == nil {
		return model.MarketQuote{}, fmt.Errorf("%s: missing odds.american", w.ID)
	}
	if w.Confidence == nil {
		return model.MarketQuote{}, fmt.Errorf("%s: missing confidence", w.ID)
	}
	risk, err := model.ParseRisk(w.Risk)
	if err != nil {
		return model.MarketQuote{}, fmt.Errorf("%s: %w", w.ID, err)
	}

	var start time.Time
	if s := strings.TrimSpace(w.StartTime); s != "" {
		start, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return model.MarketQuote{}, fmt.Errorf("%s: start_time: %w", w.ID, err)
		}
	}
	if w.Sport != "" {
		sport = w.Sport
	}

	q := model.MarketQuote{
		ID:            w.ID,
		Sport:         sport,
		Matchup:       w.Matchup,
		Bet:           w.Bet,
		StartTime:     start,
		Odds:          odds.American(*w.Odds.American),
		Confidence:    *w.Confidence,
		ExpectedValue: w.ExpectedValue,
		KellyPct:      w.KellyPct,
		Risk:          risk,
		Reasoning:     w.Reasoning,
	}
	if err := q.Validate(); err != nil {
		return model.MarketQuote{}, err
	}
	return q, nil
}

func (w wireParlay) parlay() (model.Parlay, error) {
	legs := make([]model.ParlayLeg, len(w.Legs))
	for i, l := range w.Legs {
		if l.Odds == nil {
			return model.Parlay{}, fmt.Errorf("%s: leg %d missing odds", w.ID, i)
		}
		legs[i] = model.ParlayLeg{
			Matchup:    l.Matchup,
			Bet:        l.Bet,
			Odds:       odds.American(*l.Odds),
			Confidence: l.Confidence,
		}
	}
	risk, err := model.ParseRisk(w.RiskLevel)
	if err != nil {
		return model.Parlay{}, fmt.Errorf("%s: %w", w.ID, err)
	}

	return model.NewParlay(model.Parlay{
		ID:                   w.ID,
		Legs:                 legs,
		ProviderCombinedOdds: w.CombinedOdds,
		TotalConfidence:      w.TotalConfidence,
		CorrelationRisk:      w.CorrelationRisk,
		RiskLevel:            risk,
		Reasoning:            w.Reasoning,
	})
}
