package provider

import (
	"net/http"

	"github.com/okian/betslip/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithAPIKey sends key in the X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the HTTP client. Timeouts belong to the caller's
// context; the client itself should not set one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithHintTolerance sets how far the provider's combined parlay odds may drift
// from the leg product before a mismatch is reported.
func WithHintTolerance(t float64) Option {
	return func(c *Client) {
		if t > 0 {
			c.hintTolerance = t
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
