package fetcher

import (
	"math/rand/v2"
	"net/http"
)

// defaultUserAgents are common browser identifiers used to avoid
// scraping blocks.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// UserAgentFetcher injects a User-Agent header into requests that do
// not carry one. Requests with an explicit User-Agent pass through
// unmodified.
type UserAgentFetcher struct {
	delegate Fetcher

	userAgents []string
}

var _ Fetcher = (*UserAgentFetcher)(nil)

// NewUserAgentFetcher creates a UserAgentFetcher. An empty userAgents
// slice falls back to the built-in browser pool.
func NewUserAgentFetcher(delegate Fetcher, userAgents []string) *UserAgentFetcher {
	return &UserAgentFetcher{
		delegate:   delegate,
		userAgents: userAgents,
	}
}

// Do performs the request, picking a random User-Agent when the caller
// set none. The original request is never modified; injection happens
// on a clone.
func (f *UserAgentFetcher) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return f.delegate.Do(req)
	}

	uas := f.userAgents
	if len(uas) == 0 {
		uas = defaultUserAgents
	}

	ua := uas[rand.IntN(len(uas))]

	clonedReq := req.Clone(req.Context())
	clonedReq.Header.Set("User-Agent", ua)

	return f.delegate.Do(clonedReq)
}

func (f *UserAgentFetcher) Close() error {
	return f.delegate.Close()
}
