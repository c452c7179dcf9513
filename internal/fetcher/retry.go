package fetcher

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	applog "github.com/darkkaiser/mydealz-monitor/pkg/log"
)

const (
	minAllowedRetries = 0
	maxAllowedRetries = 10

	defaultMaxRetryDelay = 30 * time.Second
)

// ErrMaxRetriesExceeded is returned when every retry attempt has been
// used up.
var ErrMaxRetriesExceeded = apperrors.New(apperrors.Unavailable, "request failed after exhausting all retries")

func newErrMaxRetriesExceeded(cause error) error {
	return apperrors.Wrap(cause, apperrors.Unavailable, "request failed after exhausting all retries")
}

func newErrRetryAfterExceeded(retryAfter, maxDelay string) error {
	return apperrors.Newf(apperrors.Unavailable, "server requested a retry delay of %s which exceeds the limit of %s", retryAfter, maxDelay)
}

func newErrGetBodyFailed(cause error) error {
	return apperrors.Wrap(cause, apperrors.Internal, "request body could not be recreated for a retry")
}

// RetryFetcher retries failed requests with exponential backoff and
// jitter. A Retry-After header from the server takes precedence over
// the computed delay, and context cancellation aborts any wait.
type RetryFetcher struct {
	delegate Fetcher

	maxRetries    int
	minRetryDelay time.Duration
	maxRetryDelay time.Duration
}

var _ Fetcher = (*RetryFetcher)(nil)

// NewRetryFetcher creates a RetryFetcher. Out-of-range settings are
// normalized: retries are clamped to [0, 10], the minimum delay to at
// least one second.
func NewRetryFetcher(delegate Fetcher, maxRetries int, minRetryDelay, maxRetryDelay time.Duration) *RetryFetcher {
	maxRetries = normalizeMaxRetries(maxRetries)
	minRetryDelay, maxRetryDelay = normalizeRetryDelays(minRetryDelay, maxRetryDelay)

	return &RetryFetcher{
		delegate:      delegate,
		maxRetries:    maxRetries,
		minRetryDelay: minRetryDelay,
		maxRetryDelay: maxRetryDelay,
	}
}

// Do performs the request, retrying transient failures. Non-idempotent
// methods (POST, PATCH) and requests whose body cannot be recreated
// are never retried.
func (f *RetryFetcher) Do(req *http.Request) (*http.Response, error) {
	effectiveMaxRetries := f.maxRetries

	if !isIdempotentMethod(req.Method) {
		effectiveMaxRetries = 0
	}

	if req.Body != nil && req.GetBody == nil && f.maxRetries > 0 {
		applog.WithComponentAndFields(component, applog.Fields{
			"url":    redactURL(req.URL),
			"method": req.Method,
		}).Warn("retries disabled: request body cannot be recreated (GetBody is nil)")

		effectiveMaxRetries = 0
	}

	var lastErr error
	var lastResp *http.Response

	for i := 0; i <= effectiveMaxRetries; i++ {
		if i > 0 {
			// Exponential backoff capped at maxRetryDelay, with full
			// jitter to avoid synchronized retries.
			delay := f.minRetryDelay * time.Duration(1<<(i-1))
			if delay > f.maxRetryDelay {
				delay = f.maxRetryDelay
			}
			if delay > 0 {
				delay = time.Duration(rand.Int64N(int64(delay) + 1))
			}

			// A Retry-After header overrides the computed delay. A
			// requested wait beyond maxRetryDelay aborts the retry
			// instead of stalling the poll loop.
			var retryAfter string
			var explicitDelayFound bool

			if lastResp != nil {
				retryAfter = lastResp.Header.Get("Retry-After")
			} else if lastErr != nil {
				var statusErr *HTTPStatusError
				if errors.As(lastErr, &statusErr) {
					retryAfter = statusErr.Header.Get("Retry-After")
				}
			}

			if retryAfter != "" {
				if retryAfterDelay, ok := parseRetryAfter(retryAfter); ok {
					if retryAfterDelay > f.maxRetryDelay {
						if lastResp != nil && lastResp.Body != nil {
							drainAndCloseBody(lastResp.Body)
						}

						return nil, newErrRetryAfterExceeded(retryAfterDelay.String(), f.maxRetryDelay.String())
					}

					delay = retryAfterDelay
					explicitDelayFound = true
				}
			}

			if !explicitDelayFound {
				if delay < time.Millisecond {
					delay = f.minRetryDelay
				}
			}

			fields := applog.Fields{
				"url":               redactURL(req.URL),
				"retry":             i,
				"max_retries":       f.maxRetries,
				"remaining_retries": effectiveMaxRetries - i,
				"delay":             delay.String(),
			}
			if lastErr != nil {
				fields["error"] = lastErr.Error()
			}
			if lastResp != nil {
				fields["status_code"] = lastResp.StatusCode
			}

			applog.WithComponentAndFields(component, fields).
				Warn("waiting before retrying a transiently failed request")

			timer := time.NewTimer(delay)

			select {
			case <-req.Context().Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}

				if lastResp != nil && lastResp.Body != nil {
					lastResp.Body.Close()
				}

				return nil, req.Context().Err()

			case <-timer.C:
			}
		}

		// Recreate the consumed body on a clone so the caller's
		// request stays untouched.
		if i > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				if lastResp != nil && lastResp.Body != nil {
					drainAndCloseBody(lastResp.Body)
				}

				return nil, newErrGetBodyFailed(err)
			}

			req = req.Clone(req.Context())
			req.Body = body
		}

		resp, err := f.delegate.Do(req)
		lastResp = resp

		shouldRetry := false

		if resp != nil {
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
				shouldRetry = true
			} else if resp.StatusCode >= 500 {
				// 501, 505 and 511 are permanent conditions.
				switch resp.StatusCode {
				case http.StatusNotImplemented, http.StatusHTTPVersionNotSupported, http.StatusNetworkAuthenticationRequired:
					shouldRetry = false

				default:
					shouldRetry = true
				}
			}
		}

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && req.Context().Err() != nil {
				if resp != nil && resp.Body != nil {
					resp.Body.Close()
				}

				return nil, err
			}

			if !isRetriable(err) {
				if resp != nil && resp.Body != nil {
					if errors.Is(err, context.Canceled) {
						resp.Body.Close()
					} else {
						drainAndCloseBody(resp.Body)
					}
				}

				return nil, err
			}
		} else if !shouldRetry {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if i == effectiveMaxRetries {
				finalErr := lastErr
				if finalErr == nil {
					var bodySnippet string
					if resp.Body != nil {
						bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
						if len(bodyBytes) > 0 {
							bodySnippet = string(bodyBytes)
						}
					}

					finalErr = &HTTPStatusError{
						StatusCode:  resp.StatusCode,
						Status:      resp.Status,
						URL:         redactURL(req.URL),
						Header:      redactHeaders(resp.Header),
						BodySnippet: bodySnippet,
						Cause:       ErrMaxRetriesExceeded,
					}
				} else {
					finalErr = newErrMaxRetriesExceeded(finalErr)
				}

				drainAndCloseBody(resp.Body)

				return nil, finalErr
			}

			drainAndCloseBody(resp.Body)
		}
	}

	return nil, newErrMaxRetriesExceeded(lastErr)
}

func (f *RetryFetcher) Close() error {
	return f.delegate.Close()
}

func normalizeMaxRetries(maxRetries int) int {
	if maxRetries < minAllowedRetries {
		return minAllowedRetries
	}
	if maxRetries > maxAllowedRetries {
		return maxAllowedRetries
	}
	return maxRetries
}

func normalizeRetryDelays(minRetryDelay, maxRetryDelay time.Duration) (time.Duration, time.Duration) {
	if minRetryDelay < time.Second {
		minRetryDelay = 1 * time.Second
	}

	if maxRetryDelay == 0 {
		maxRetryDelay = defaultMaxRetryDelay
	}

	if maxRetryDelay < minRetryDelay {
		maxRetryDelay = minRetryDelay
	}

	return minRetryDelay, maxRetryDelay
}

// isRetriable reports whether the error is transient. Cancellation,
// certificate problems and typed client-side errors are permanent.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var x509HostnameErr x509.HostnameError
	var x509UnknownAuthorityErr x509.UnknownAuthorityError
	var x509CertificateInvalidErr x509.CertificateInvalidError
	if errors.As(err, &x509HostnameErr) || errors.As(err, &x509UnknownAuthorityErr) || errors.As(err, &x509CertificateInvalidErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	if apperrors.Is(err, apperrors.Unavailable) {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			switch statusErr.StatusCode {
			case http.StatusNotImplemented, http.StatusHTTPVersionNotSupported, http.StatusNetworkAuthenticationRequired:
				return false
			}
		}

		return true
	}

	if apperrors.Is(err, apperrors.ExecutionFailed) ||
		apperrors.Is(err, apperrors.InvalidInput) ||
		apperrors.Is(err, apperrors.ParsingFailed) ||
		apperrors.Is(err, apperrors.NotFound) {
		return false
	}

	// Unclassified errors (DNS failures, refused connections) are
	// treated as transient.
	return true
}

func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace, http.MethodPut, http.MethodDelete:
		return true

	default:
		return false
	}
}

// parseRetryAfter parses a Retry-After header, either delay seconds or
// an HTTP date (RFC 7231 section 7.1.3).
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			delay = 0
		}
		return delay, true
	}

	return 0, false
}
