// Package ledger keeps the bet slip: picked selections, their stakes and the
// aggregate exposure against a bankroll.
package ledger

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/betslip/internal/domain/model"
	"github.com/okian/betslip/internal/domain/stake"
	"github.com/shopspring/decimal"
)

const defaultWarnThreshold = 0.10

// Selection is a pick on the slip with the amount risked on it.
type Selection struct {
	Pick  model.Pick
	Stake float64
}

// Totals aggregates the slip.
type Totals struct {
	TotalRisk            decimal.Decimal `json:"total_risk"`
	TotalPotentialPayout decimal.Decimal `json:"total_potential_payout"`
	TotalProfit          decimal.Decimal `json:"total_profit"`
	BankrollUtilization  float64         `json:"bankroll_utilization"`
	OverExposed          bool            `json:"over_exposed"`
	Selections           int             `json:"selections"`
}

// Slip is one session's bet slip. Safe for concurrent use.
type Slip struct {
	id            string
	mu            sync.RWMutex
	order         []string
	selections    map[string]*Selection
	bankroll      float64
	sizer         *stake.Sizer
	warnThreshold float64
}

// New creates an empty slip.
func New(opts ...Option) *Slip {
	s := &Slip{
		id:            uuid.NewString(),
		selections:    make(map[string]*Selection),
		sizer:         stake.NewSizer(),
		warnThreshold: defaultWarnThreshold,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ID identifies the slip.
func (s *Slip) ID() string { return s.id }

// Add appends p with a zero stake. Adding an id already on the slip is a no-op
// and returns false.
func (s *Slip) Add(p model.Pick) bool {
	if p == nil {
		return false
	}
	id := p.PickID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.selections[id]; ok {
		return false
	}
	s.selections[id] = &Selection{Pick: p}
	s.order = append(s.order, id)
	return true
}

// Remove drops the selection with the given id and reports whether it was present.
func (s *Slip) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.selections[id]; !ok {
		return false
	}
	delete(s.selections, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the slip. The bankroll is kept.
func (s *Slip) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.selections = make(map[string]*Selection)
}

// SetStake sets the amount risked on a selection.
func (s *Slip) SetStake(id string, amount float64) error {
	if !validAmount(amount) {
		return fmt.Errorf("%w: %v", ErrInvalidStake, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sel, ok := s.selections[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sel.Stake = amount
	return nil
}

// SetBankroll replaces the bankroll used for sizing and utilization.
func (s *Slip) SetBankroll(amount float64) error {
	if !validAmount(amount) {
		return fmt.Errorf("%w: bankroll %v", ErrInvalidStake, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bankroll = amount
	return nil
}

// Bankroll returns the current bankroll.
func (s *Slip) Bankroll() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bankroll
}

// AutoSize overwrites every stake with the Kelly-sized amount for the current
// bankroll. Nothing changes if any pick fails to size.
func (s *Slip) AutoSize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sized := make([]float64, len(s.order))
	for i, id := range s.order {
		amount, err := s.sizer.SizePick(s.bankroll, s.selections[id].Pick)
		if err != nil {
			return fmt.Errorf("auto size: %w", err)
		}
		sized[i] = amount
	}
	for i, id := range s.order {
		s.selections[id].Stake = sized[i]
	}
	return nil
}

// Selections returns a copy of the slip in insertion order.
func (s *Slip) Selections() []Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Selection, len(s.order))
	for i, id := range s.order {
		out[i] = *s.selections[id]
	}
	return out
}

// Len is the number of selections on the slip.
func (s *Slip) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Aggregate sums risk and payout across the slip. Each selection pays
// stake * decimal odds; a pick whose odds no longer price contributes its
// stake to risk only.
func (s *Slip) Aggregate() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()

	risk := decimal.Zero
	payout := decimal.Zero
	for _, id := range s.order {
		sel := s.selections[id]
		amount := decimal.NewFromFloat(sel.Stake)
		risk = risk.Add(amount)

		d, err := sel.Pick.DecimalOdds()
		if err != nil {
			continue
		}
		payout = payout.Add(amount.Mul(decimal.NewFromFloat(d)))
	}

	t := Totals{
		TotalRisk:            risk.Round(2),
		TotalPotentialPayout: payout.Round(2),
		TotalProfit:          payout.Sub(risk).Round(2),
		Selections:           len(s.order),
	}
	if s.bankroll > 0 {
		t.BankrollUtilization = risk.Div(decimal.NewFromFloat(s.bankroll)).InexactFloat64()
	}
	t.OverExposed = t.BankrollUtilization > s.warnThreshold
	return t
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
