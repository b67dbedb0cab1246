package service

import (
	"context"
	"fmt"

	"github.com/okian/betslip/internal/adapters/marketcache"
	"github.com/okian/betslip/internal/domain/ledger"
	"github.com/okian/betslip/pkg/logger"
	"github.com/okian/betslip/pkg/metrics"
)

// Slip returns the session's bet slip, or nil before Start.
func (s *Service) Slip() *ledger.Slip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slip
}

// AddToSlip adds the pick id from the stored board for key. It reports
// ledger.ErrNotFound when the board does not carry id.
func (s *Service) AddToSlip(ctx context.Context, key marketcache.Key, id string) (bool, error) {
	slip, err := s.session()
	if err != nil {
		return false, err
	}
	pick, ok := s.Pick(key, id)
	if !ok {
		return false, fmt.Errorf("%w: %s on %s", ledger.ErrNotFound, id, key)
	}
	added := slip.Add(pick)
	s.publishSlip(ctx)
	return added, nil
}

// RemoveFromSlip drops id from the slip.
func (s *Service) RemoveFromSlip(ctx context.Context, id string) (bool, error) {
	slip, err := s.session()
	if err != nil {
		return false, err
	}
	removed := slip.Remove(id)
	s.publishSlip(ctx)
	return removed, nil
}

// SetStake sets a manual stake on id.
func (s *Service) SetStake(ctx context.Context, id string, amount float64) error {
	slip, err := s.session()
	if err != nil {
		return err
	}
	if err := slip.SetStake(id, amount); err != nil {
		return err
	}
	s.publishSlip(ctx)
	return nil
}

// SetBankroll replaces the slip bankroll.
func (s *Service) SetBankroll(ctx context.Context, amount float64) error {
	slip, err := s.session()
	if err != nil {
		return err
	}
	if err := slip.SetBankroll(amount); err != nil {
		return err
	}
	s.publishSlip(ctx)
	return nil
}

// AutoSize stakes every selection with fractional Kelly.
func (s *Service) AutoSize(ctx context.Context) error {
	slip, err := s.session()
	if err != nil {
		return err
	}
	if err := slip.AutoSize(); err != nil {
		return err
	}
	s.publishSlip(ctx)
	return nil
}

// ClearSlip empties the slip and keeps the bankroll.
func (s *Service) ClearSlip(ctx context.Context) error {
	slip, err := s.session()
	if err != nil {
		return err
	}
	slip.Clear()
	s.publishSlip(ctx)
	return nil
}

// SlipTotals aggregates the current slip.
func (s *Service) SlipTotals() (ledger.Totals, error) {
	slip, err := s.session()
	if err != nil {
		return ledger.Totals{}, err
	}
	return slip.Aggregate(), nil
}

func (s *Service) session() (*ledger.Slip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.slip == nil {
		return nil, ErrNotStarted
	}
	return s.slip, nil
}

// publishSlip pushes slip totals to metrics and warns on over-exposure.
func (s *Service) publishSlip(ctx context.Context) {
	slip := s.Slip()
	if slip == nil {
		return
	}
	t := slip.Aggregate()
	metrics.UpdateSlipUtilization(t.BankrollUtilization)
	metrics.UpdateSlipSelections(t.Selections)
	if t.OverExposed {
		metrics.RecordSlipOverExposed()
		s.logger.Warn(ctx, "bet slip over-exposed",
			logger.String("slip_id", slip.ID()),
			logger.String("total_risk", t.TotalRisk.String()),
			logger.Float64("utilization", t.BankrollUtilization),
			logger.Float64("threshold", s.utilizationWarn))
	}
}
