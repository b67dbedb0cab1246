// Package pipeline filters and sorts recommendation and parlay lists.
//
// Apply is pure: it never mutates its input and keeps no state between calls.
// Sorting is stable because upstream order already encodes a secondary ranking.
package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/betslip/internal/domain/model"
	"github.com/okian/betslip/internal/domain/odds"
	"github.com/okian/betslip/internal/domain/stake"
)

// Bucket boundaries in American odds.
const (
	favoriteLow   = -200
	favoriteHigh  = -100
	underdogLow   = 150
	pickemLow     = -150
	pickemHigh    = 150
	percentScaler = 100
)

// Bucket groups prices into favorites, underdogs and pick'ems.
type Bucket string

// Known odds buckets.
const (
	BucketAll       Bucket = "all"
	BucketFavorites Bucket = "favorites"
	BucketUnderdogs Bucket = "underdogs"
	BucketPickems   Bucket = "pickems"
)

// ParseBucket maps a query value to a Bucket; empty means all.
func ParseBucket(s string) (Bucket, error) {
	switch Bucket(strings.ToLower(strings.TrimSpace(s))) {
	case "", BucketAll:
		return BucketAll, nil
	case BucketFavorites:
		return BucketFavorites, nil
	case BucketUnderdogs:
		return BucketUnderdogs, nil
	case BucketPickems:
		return BucketPickems, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBucket, s)
	}
}

// Contains reports whether a falls inside the bucket.
// favorites is (-200, -100], underdogs [+150, inf), pickems [-150, +150].
func (b Bucket) Contains(a odds.American) bool {
	switch b {
	case BucketFavorites:
		return a > favoriteLow && a <= favoriteHigh
	case BucketUnderdogs:
		return a >= underdogLow
	case BucketPickems:
		return a >= pickemLow && a <= pickemHigh
	default:
		return true
	}
}

// SortKey selects the ordering applied after filtering.
type SortKey string

// Supported sort keys.
const (
	SortNone          SortKey = ""
	SortConfidence    SortKey = "confidence"
	SortExpectedValue SortKey = "expected_value"
	SortKellyPct      SortKey = "kelly_pct"
	SortStartTime     SortKey = "start_time"
)

// ParseSortKey maps a query value to a SortKey; empty or "none" keeps input order.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, "none":
		return SortNone, nil
	case SortConfidence, SortExpectedValue, SortKellyPct, SortStartTime:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
	}
}

// Filters are AND-combined; a nil or empty field lets everything through.
type Filters struct {
	MinConfidence    *float64
	MinExpectedValue *float64
	RiskIn           []model.Risk
	OddsBucket       Bucket
}

// Facts are the fields the pipeline reads from an item.
type Facts struct {
	Confidence    float64
	ExpectedValue float64
	KellyPct      float64
	StartTime     time.Time
	Risk          model.Risk
	Odds          odds.American
}

// Apply returns the items passing f, ordered by key. The input slice is untouched.
func Apply[T any](items []T, facts func(T) Facts, f Filters, key SortKey) []T {
	type row struct {
		item  T
		facts Facts
	}

	rows := make([]row, 0, len(items))
	for _, it := range items {
		fx := facts(it)
		if f.match(fx) {
			rows = append(rows, row{item: it, facts: fx})
		}
	}

	if cmp := comparator(key); cmp != nil {
		slices.SortStableFunc(rows, func(a, b row) int { return cmp(a.facts, b.facts) })
	}

	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.item
	}
	return out
}

// Quotes applies the pipeline to moneyline recommendations.
func Quotes(items []model.MarketQuote, f Filters, key SortKey) []model.MarketQuote {
	return Apply(items, QuoteFacts, f, key)
}

// Parlays applies the pipeline to parlays using derived facts.
func Parlays(items []model.Parlay, f Filters, key SortKey) []model.Parlay {
	return Apply(items, ParlayFacts, f, key)
}

// QuoteFacts reads pipeline facts from a quote.
func QuoteFacts(q model.MarketQuote) Facts {
	return Facts{
		Confidence:    q.Confidence,
		ExpectedValue: q.ExpectedValue,
		KellyPct:      q.KellyPct,
		StartTime:     q.StartTime,
		Risk:          q.Risk,
		Odds:          q.Odds,
	}
}

// ParlayFacts derives pipeline facts for a parlay from its legs and blended
// confidence. A parlay whose legs no longer price yields zero odds, which only
// the all bucket accepts.
func ParlayFacts(p model.Parlay) Facts {
	fx := Facts{
		Confidence: p.TotalConfidence,
		Risk:       p.RiskLevel,
	}
	d, err := p.DecimalOdds()
	if err != nil {
		return fx
	}
	if a, err := odds.DecimalToAmerican(d); err == nil {
		fx.Odds = a
	}
	prob := p.WinProbability()
	fx.ExpectedValue = (prob*d - 1) * percentScaler
	if k, err := stake.KellyFraction(prob, d); err == nil {
		fx.KellyPct = k * percentScaler
	}
	return fx
}

func (f Filters) match(fx Facts) bool {
	if f.MinConfidence != nil && fx.Confidence < *f.MinConfidence {
		return false
	}
	if f.MinExpectedValue != nil && fx.ExpectedValue < *f.MinExpectedValue {
		return false
	}
	if len(f.RiskIn) > 0 && !slices.Contains(f.RiskIn, fx.Risk) {
		return false
	}
	if f.OddsBucket != "" && f.OddsBucket != BucketAll {
		// Zero odds mean the item has no price.
		if fx.Odds == 0 || !f.OddsBucket.Contains(fx.Odds) {
			return false
		}
	}
	return true
}

func comparator(key SortKey) func(a, b Facts) int {
	switch key {
	case SortConfidence:
		return func(a, b Facts) int { return descending(a.Confidence, b.Confidence) }
	case SortExpectedValue:
		return func(a, b Facts) int { return descending(a.ExpectedValue, b.ExpectedValue) }
	case SortKellyPct:
		return func(a, b Facts) int { return descending(a.KellyPct, b.KellyPct) }
	case SortStartTime:
		return byStartTime
	default:
		return nil
	}
}

func descending(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

// byStartTime sorts ascending with unknown (zero) start times last.
func byStartTime(a, b Facts) int {
	switch {
	case a.StartTime.IsZero() && b.StartTime.IsZero():
		return 0
	case a.StartTime.IsZero():
		return 1
	case b.StartTime.IsZero():
		return -1
	default:
		return a.StartTime.Compare(b.StartTime)
	}
}
