package odds

import "errors"

// Sentinel kinds for odds errors.
var (
	ErrInvalidOdds    = errors.New("invalid odds")
	ErrParlayTooShort = errors.New("parlay needs at least two legs")
)
