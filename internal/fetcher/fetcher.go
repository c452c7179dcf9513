// Package fetcher provides the HTTP client middleware chain used for
// every request against mydealz.de: a base client wrapped by
// User-Agent injection and retry with exponential backoff.
package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	"golang.org/x/net/html/charset"
)

const component = "fetcher"

// Fetcher performs HTTP requests. Implementations may delegate to
// another Fetcher to form a middleware chain.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
	Close() error
}

// Get sends a GET request to the given URL.
func Get(ctx context.Context, f Fetcher, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return f.Do(req)
}

// FetchHTMLDocument fetches the URL and parses the response into a
// goquery.Document. Non-UTF-8 pages are converted based on the
// Content-Type header.
func FetchHTMLDocument(ctx context.Context, f Fetcher, url string, header map[string]string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Internal, "failed to build request for %s", url)
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}

	resp, err := f.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "HTML page request to %s failed", url)
	}
	defer resp.Body.Close()

	if err := CheckResponseStatus(resp); err != nil {
		return nil, err
	}

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ExecutionFailed, "charset conversion for %s failed", url)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ParsingFailed, "parsing the page at %s failed", url)
	}

	return doc, nil
}

// FetchJSON performs the request and decodes the JSON response body
// into v.
func FetchJSON(ctx context.Context, f Fetcher, method, url string, header map[string]string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.Internal, "failed to build JSON request for %s", url)
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}

	resp, err := f.Do(req)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.Unavailable, "JSON request to %s failed", url)
	}
	defer resp.Body.Close()

	if err := CheckResponseStatus(resp); err != nil {
		return err
	}

	if err = json.NewDecoder(resp.Body).Decode(v); err != nil {
		return apperrors.Wrapf(err, apperrors.ParsingFailed, "decoding the JSON response from %s failed", url)
	}

	return nil
}
