package ledger

import (
	"errors"

	"github.com/okian/betslip/internal/domain/stake"
)

// Sentinel errors for slip operations.
var (
	ErrNotFound = errors.New("selection not found")

	// ErrInvalidStake is the stake package's sentinel, so callers can match
	// either name.
	ErrInvalidStake = stake.ErrInvalidStake
)
