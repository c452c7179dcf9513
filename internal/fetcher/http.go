package fetcher

import (
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPFetcher is the base of the middleware chain, a plain HTTP client
// with a request timeout.
type HTTPFetcher struct {
	client *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher with the default timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return NewHTTPFetcherWithTimeout(defaultTimeout)
}

// NewHTTPFetcherWithTimeout creates an HTTPFetcher with the given
// request timeout. A non-positive timeout falls back to the default.
func NewHTTPFetcherWithTimeout(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (h *HTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	return h.client.Do(req)
}

func (h *HTTPFetcher) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
