package ledger

import "github.com/okian/betslip/internal/domain/stake"

// Option applies a configuration option to the Slip.
type Option func(*Slip)

// WithBankroll sets the starting bankroll. Negative values are ignored.
func WithBankroll(amount float64) Option {
	return func(s *Slip) {
		if amount >= 0 {
			s.bankroll = amount
		}
	}
}

// WithSizer sets the sizer used by AutoSize.
func WithSizer(sizer *stake.Sizer) Option {
	return func(s *Slip) {
		if sizer != nil {
			s.sizer = sizer
		}
	}
}

// WithWarnThreshold sets the utilization above which the slip is over-exposed.
func WithWarnThreshold(ratio float64) Option {
	return func(s *Slip) {
		if ratio > 0 {
			s.warnThreshold = ratio
		}
	}
}
