package stake

// Option applies a configuration option to the Sizer.
type Option func(*Sizer)

// WithMultiplier sets the fractional Kelly multiplier (0.25 is quarter Kelly).
func WithMultiplier(m float64) Option {
	return func(s *Sizer) {
		if m > 0 && m <= 1 {
			s.multiplier = m
		}
	}
}

// WithMinStake sets the smallest stake placed once sizing says to bet.
func WithMinStake(v float64) Option {
	return func(s *Sizer) {
		if v >= 0 {
			s.minStake = v
		}
	}
}

// WithMaxStakeFraction caps any single stake at bankroll * f.
func WithMaxStakeFraction(f float64) Option {
	return func(s *Sizer) {
		if f > 0 && f <= 1 {
			s.maxStakeFraction = f
		}
	}
}
