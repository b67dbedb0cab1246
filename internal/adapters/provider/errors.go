package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider calls.
var (
	ErrNetwork = errors.New("provider network error")
	ErrHTTP    = errors.New("provider http error")
	ErrDecode  = errors.New("provider payload invalid")
)

// HTTPError is a non-2xx provider response. It matches ErrHTTP with errors.Is.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.Status)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

func (e *HTTPError) Unwrap() error { return ErrHTTP }
