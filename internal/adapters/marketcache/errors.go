package marketcache

import "errors"

// Sentinel errors returned in Result.Err or by cache methods.
var (
	ErrTimeout = errors.New("fetch timed out")
	ErrClosed  = errors.New("cache closed")
	// ErrStaleGeneration marks a result that lost to a newer generation. It is
	// only logged; waiters of that fetch still receive its data.
	ErrStaleGeneration = errors.New("stale generation")
)
