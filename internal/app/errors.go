package service

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNotStarted = errors.New("service not started")
	ErrWarmUp     = errors.New("warm-up failed")
)
