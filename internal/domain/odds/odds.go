// Package odds converts between American and decimal odds and combines parlay legs.
//
// Decimal odds are always derived from an American price; rounding only happens when
// converting back to American, using half-away-from-zero.
package odds

import (
	"fmt"
	"math"
	"strconv"
)

// Price boundaries for American odds.
const (
	minAbsAmerican = 100
	maxAbsAmerican = 1_000_000
	evenDecimal    = 2.0
	minParlayLegs  = 2
)

// American is a signed American odds quote such as +150 or -110.
type American int

// Validate reports whether the quote satisfies v != 0 and 100 <= |v| <= 1,000,000.
// Past the upper bound the decimal price is too close to 1 to convert back exactly.
func (a American) Validate() error {
	if a == 0 {
		return fmt.Errorf("%w: zero", ErrInvalidOdds)
	}
	if a > -minAbsAmerican && a < minAbsAmerican {
		return fmt.Errorf("%w: %d is inside (-100, +100)", ErrInvalidOdds, int(a))
	}
	if a > maxAbsAmerican || a < -maxAbsAmerican {
		return fmt.Errorf("%w: %d is beyond %d in magnitude", ErrInvalidOdds, int(a), maxAbsAmerican)
	}
	return nil
}

// Decimal returns the decimal odds for the quote.
func (a American) Decimal() (float64, error) {
	return AmericanToDecimal(a)
}

// String formats the quote with an explicit sign.
func (a American) String() string {
	return FormatAmerican(a)
}

// AmericanToDecimal converts American odds to decimal odds.
// +150 -> 2.5, -200 -> 1.5.
func AmericanToDecimal(a American) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if a > 0 {
		return 1 + float64(a)/100, nil
	}
	return 1 + 100/float64(-a), nil
}

// DecimalToAmerican converts decimal odds back to American odds.
// Decimal 2.0 maps to +100; -100 and +100 quote the same price.
func DecimalToAmerican(d float64) (American, error) {
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 1 {
		return 0, fmt.Errorf("%w: decimal %v must be > 1", ErrInvalidOdds, d)
	}
	if d >= evenDecimal {
		return American(math.Round((d - 1) * 100)), nil
	}
	return American(math.Round(-100 / (d - 1))), nil
}

// ImpliedProbability returns 1 / decimal odds.
func ImpliedProbability(a American) (float64, error) {
	d, err := AmericanToDecimal(a)
	if err != nil {
		return 0, err
	}
	return 1 / d, nil
}

// ProbabilityToAmerican returns the fair American price for a win probability in (0, 1).
func ProbabilityToAmerican(p float64) (American, error) {
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return 0, fmt.Errorf("%w: probability %v outside (0, 1)", ErrInvalidOdds, p)
	}
	return DecimalToAmerican(1 / p)
}

// FormatAmerican renders odds as "+150" or "-110".
func FormatAmerican(a American) string {
	if a > 0 {
		return "+" + strconv.Itoa(int(a))
	}
	return strconv.Itoa(int(a))
}

// Combination is the combined price of a parlay.
type Combination struct {
	Legs    int
	Decimal float64
}

// CombineParlay multiplies the decimal odds of every leg.
func CombineParlay(legs []American) (Combination, error) {
	if len(legs) < minParlayLegs {
		return Combination{}, fmt.Errorf("%w: got %d", ErrParlayTooShort, len(legs))
	}
	product := 1.0
	for i, leg := range legs {
		d, err := AmericanToDecimal(leg)
		if err != nil {
			return Combination{}, fmt.Errorf("leg %d: %w", i, err)
		}
		product *= d
	}
	return Combination{Legs: len(legs), Decimal: product}, nil
}

// ExpectedPayout is the total return (stake included) if every leg wins.
func (c Combination) ExpectedPayout(stake float64) float64 {
	return stake * c.Decimal
}

// Profit is the payout minus the stake.
func (c Combination) Profit(stake float64) float64 {
	return c.ExpectedPayout(stake) - stake
}

// American converts the combined price back to American odds.
func (c Combination) American() (American, error) {
	return DecimalToAmerican(c.Decimal)
}
