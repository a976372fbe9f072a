package medfind

import (
	"net/http"
	"time"
)

// Option configures the Client.
type Option interface {
	apply(*Client)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *Client) {
		c.apiKey = key
	})
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Client) {
		c.httpClient = hc
	})
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Client) {
		c.httpClient.Timeout = d
	})
}

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	limit int
}

// WithLimit caps the number of results. The server clamps it to its
// configured maximum.
func WithLimit(n int) RequestOption {
	return func(o *requestOptions) {
		o.limit = n
	}
}
