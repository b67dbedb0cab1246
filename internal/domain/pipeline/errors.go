package pipeline

import "errors"

// Sentinel kinds for pipeline parsing errors.
var (
	ErrUnknownSortKey = errors.New("unknown sort key")
	ErrUnknownBucket  = errors.New("unknown odds bucket")
)
