package marketcache

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/betslip/internal/domain/model"
	"github.com/okian/betslip/pkg/metrics"
)

// Key identifies one provider board.
type Key struct {
	Sport      string
	DateBucket string
	Live       bool
}

func (k Key) String() string {
	if k.Live {
		return fmt.Sprintf("%s/%s/live", k.Sport, k.DateBucket)
	}
	return fmt.Sprintf("%s/%s", k.Sport, k.DateBucket)
}

func (k Key) mode() string {
	if k.Live {
		return metrics.ModeLive
	}
	return metrics.ModeCold
}

// FetchFunc loads a board from the provider. It must honour ctx cancellation.
type FetchFunc func(ctx context.Context, key Key) (model.Board, error)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Mirror persists accepted boards outside the process.
type Mirror interface {
	Save(ctx context.Context, key Key, e Entry) error
	// Load returns false when nothing is stored for key.
	Load(ctx context.Context, key Key) (Entry, bool, error)
}

// Status is the lifecycle state of a key.
type Status int

// Key states.
const (
	StatusEmpty Status = iota
	StatusFetching
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusFetching:
		return "fetching"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "empty"
	}
}

// MarshalText renders the status name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Entry is an accepted board.
type Entry struct {
	Data       model.Board `json:"data"`
	FetchedAt  time.Time   `json:"fetched_at"`
	Generation uint64      `json:"generation"`
}

// Result is what a read returns. Data is shared between callers and must not
// be modified. When Err is set and Stale is true, Data holds the last good board.
type Result struct {
	Data       model.Board
	FromCache  bool
	Stale      bool
	Err        error
	FetchedAt  time.Time
	Generation uint64
}

// KeyState is a point-in-time view of one key.
type KeyState struct {
	Key        string        `json:"key"`
	Status     Status        `json:"status"`
	Generation uint64        `json:"generation"`
	Stored     uint64        `json:"stored_generation"`
	FetchedAt  time.Time     `json:"fetched_at,omitzero"`
	Age        time.Duration `json:"age_ns"`
	Fresh      bool          `json:"fresh"`
	Items      int           `json:"items"`
	LastError  string        `json:"last_error,omitempty"`
}
