package fetcher

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
)

// maxDrainBytes limits how much of an abandoned response body is read
// before closing. Connections with larger remainders are not reused.
const maxDrainBytes = 64 * 1024

// HTTPStatusError carries the response context of a failed HTTP
// request: status, URL, redacted headers and a body snippet for
// debugging. Cause supports standard error chaining.
type HTTPStatusError struct {
	StatusCode  int
	Status      string
	URL         string
	Header      http.Header
	BodySnippet string
	Cause       error
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d (%s) URL: %s", e.StatusCode, e.Status, e.URL)
	if e.BodySnippet != "" {
		msg += fmt.Sprintf(", Body: %s", e.BodySnippet)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Cause
}

// CheckResponseStatus converts a non-200 response into a typed error.
// 5xx and 429 map to Unavailable so the retry layer treats them as
// transient.
func CheckResponseStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	errType := apperrors.ExecutionFailed
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		errType = apperrors.Unavailable
	}
	if resp.StatusCode == http.StatusNotFound {
		errType = apperrors.NotFound
	}

	var bodySnippet string
	if resp.Body != nil {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(bodyBytes) > 0 {
			bodySnippet = string(bodyBytes)
		}
	}

	var requestURL string
	if resp.Request != nil {
		requestURL = redactURL(resp.Request.URL)
	}

	return &HTTPStatusError{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		URL:         requestURL,
		Header:      redactHeaders(resp.Header),
		BodySnippet: bodySnippet,
		Cause:       apperrors.Newf(errType, "HTTP request failed with status %s", resp.Status),
	}
}

// drainAndCloseBody empties the remaining body so the underlying
// connection can be reused, then closes it.
func drainAndCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	defer body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
}

// redactHeaders masks credential-bearing headers for safe logging.
func redactHeaders(h http.Header) http.Header {
	if h == nil {
		return nil
	}

	masked := h.Clone()

	sensitive := []string{"Authorization", "Proxy-Authorization", "Cookie", "Set-Cookie"}
	for _, key := range sensitive {
		if masked.Get(key) != "" {
			masked.Set(key, "***")
		}
	}

	return masked
}

// redactURL masks userinfo and sensitive query values of a URL.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	ru := *u

	if u.User != nil {
		if _, has := u.User.Password(); has {
			ru.User = url.UserPassword(u.User.Username(), "xxxxx")
		} else if u.User.Username() != "" {
			ru.User = url.User("xxxxx")
		}
	}

	if u.RawQuery != "" {
		query := ru.Query()
		for key := range query {
			switch key {
			case "token", "key", "apikey", "api_key", "password", "secret", "xsrf_t":
				query.Set(key, "xxxxx")
			}
		}
		ru.RawQuery = query.Encode()
	}

	return ru.String()
}
