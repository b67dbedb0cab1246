// Package stake sizes bets with the Kelly criterion against a bankroll.
package stake

import (
	"fmt"
	"math"

	"github.com/okian/betslip/internal/domain/model"
	"github.com/okian/betslip/internal/domain/odds"
	"github.com/shopspring/decimal"
)

// Default sizing configuration constants.
const (
	defaultMultiplier       = 0.25
	defaultMinStake         = 10
	defaultMaxStakeFraction = 0.05
	centPlaces              = 2
)

// KellyFraction returns the growth-optimal bankroll fraction for a bet that wins
// with probability p at the given decimal odds. Negative edges clip to 0.
func KellyFraction(p, decimalOdds float64) (float64, error) {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: %v outside [0, 1]", ErrInvalidProbability, p)
	}
	if math.IsNaN(decimalOdds) || math.IsInf(decimalOdds, 0) || decimalOdds <= 1 {
		return 0, fmt.Errorf("%w: decimal %v must be > 1", odds.ErrInvalidOdds, decimalOdds)
	}
	b := decimalOdds - 1
	q := 1 - p
	f := (p*b - q) / b
	return math.Max(0, math.Min(1, f)), nil
}

// Sizer turns a Kelly fraction into a stake.
type Sizer struct {
	multiplier       float64
	minStake         float64
	maxStakeFraction float64
}

// NewSizer creates a sizer with quarter Kelly, a 10 minimum and a 5% cap by default.
func NewSizer(opts ...Option) *Sizer {
	s := &Sizer{
		multiplier:       defaultMultiplier,
		minStake:         defaultMinStake,
		maxStakeFraction: defaultMaxStakeFraction,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Size returns clamp(bankroll*f*multiplier, minStake, bankroll*maxStakeFraction)
// rounded to cents. The cap wins when the minimum exceeds it. A zero bankroll or a
// non-positive fraction means no bet.
func (s *Sizer) Size(bankroll, kellyFraction float64) (float64, error) {
	if math.IsNaN(bankroll) || bankroll < 0 {
		return 0, fmt.Errorf("%w: bankroll %v", ErrInvalidStake, bankroll)
	}
	if bankroll == 0 || !(kellyFraction > 0) {
		return 0, nil
	}

	raw := bankroll * kellyFraction * s.multiplier
	ceiling := bankroll * s.maxStakeFraction
	sized := math.Min(math.Max(raw, s.minStake), ceiling)

	return decimal.NewFromFloat(sized).Round(centPlaces).InexactFloat64(), nil
}

// SizePick sizes a stake for a slip pick using its own probability and price.
func (s *Sizer) SizePick(bankroll float64, p model.Pick) (float64, error) {
	d, err := p.DecimalOdds()
	if err != nil {
		return 0, fmt.Errorf("pick %s: %w", p.PickID(), err)
	}
	f, err := KellyFraction(p.WinProbability(), d)
	if err != nil {
		return 0, fmt.Errorf("pick %s: %w", p.PickID(), err)
	}
	return s.Size(bankroll, f)
}

// Multiplier returns the fractional Kelly multiplier in use.
func (s *Sizer) Multiplier() float64 { return s.multiplier }

// MinStake returns the configured minimum stake.
func (s *Sizer) MinStake() float64 { return s.minStake }

// MaxStakeFraction returns the configured per-bet cap as a bankroll fraction.
func (s *Sizer) MaxStakeFraction() float64 { return s.maxStakeFraction }
