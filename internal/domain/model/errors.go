package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrInvalidRisk   = errors.New("invalid risk level")
	ErrInvalidQuote  = errors.New("invalid market quote")
	ErrInvalidParlay = errors.New("invalid parlay")
)
