package stake

import "errors"

// Sentinel kinds for stake sizing errors.
var (
	ErrInvalidStake       = errors.New("invalid stake")
	ErrInvalidProbability = errors.New("invalid win probability")
)
