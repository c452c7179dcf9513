package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchHTMLDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><article data-comment-id="42">hello</article></body></html>`))
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	defer f.Close()

	doc, err := FetchHTMLDocument(context.Background(), f, server.URL, nil)
	require.NoError(t, err)

	sel := doc.Find("article[data-comment-id]")
	assert.Equal(t, 1, sel.Length())
	assert.Equal(t, "hello", sel.Text())
}

func TestFetchHTMLDocumentSendsHeaders(t *testing.T) {
	var gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	defer f.Close()

	_, err := FetchHTMLDocument(context.Background(), f, server.URL, map[string]string{
		"Referer": "https://www.mydealz.de/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://www.mydealz.de/", gotReferer)
}

func TestFetchJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"comments":{"items":[{"commentId":"1"}]}}}`))
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	defer f.Close()

	var payload struct {
		Data struct {
			Comments struct {
				Items []struct {
					CommentID string `json:"commentId"`
				} `json:"items"`
			} `json:"comments"`
		} `json:"data"`
	}

	err := FetchJSON(context.Background(), f, http.MethodGet, server.URL, nil, nil, &payload)
	require.NoError(t, err)
	require.Len(t, payload.Data.Comments.Items, 1)
	assert.Equal(t, "1", payload.Data.Comments.Items[0].CommentID)
}

func TestFetchJSONStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	defer f.Close()

	var payload map[string]any
	err := FetchJSON(context.Background(), f, http.MethodGet, server.URL, nil, nil, &payload)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
}

func TestUserAgentFetcherInjectsWhenMissing(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	f := NewUserAgentFetcher(NewHTTPFetcher(), nil)
	defer f.Close()

	resp, err := Get(context.Background(), f, server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, gotUA, "Mozilla/5.0")
}

func TestUserAgentFetcherKeepsExplicitUA(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	f := NewUserAgentFetcher(NewHTTPFetcher(), []string{"pool-agent"})
	defer f.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "explicit-agent")

	resp, err := f.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "explicit-agent", gotUA)
}

func TestRetryFetcherRecoversFromServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewRetryFetcher(NewHTTPFetcher(), 2, time.Second, 5*time.Second)
	defer f.Close()

	resp, err := Get(context.Background(), f, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryFetcherDoesNotRetryPost(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewRetryFetcher(NewHTTPFetcher(), 3, time.Second, 5*time.Second)
	defer f.Close()

	req, err := http.NewRequest(http.MethodPost, server.URL, nil)
	require.NoError(t, err)

	_, err = f.Do(req)

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryFetcherGivesUpOnExcessiveRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3600")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewRetryFetcher(NewHTTPFetcher(), 3, time.Second, 5*time.Second)
	defer f.Close()

	_, err := Get(context.Background(), f, server.URL)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Unavailable))
}

func TestCheckResponseStatus(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		expectedType apperrors.ErrorType
		wantErr      bool
	}{
		{
			name:       "200 OK passes",
			statusCode: http.StatusOK,
			wantErr:    false,
		},
		{
			name:         "404 maps to NotFound",
			statusCode:   http.StatusNotFound,
			expectedType: apperrors.NotFound,
			wantErr:      true,
		},
		{
			name:         "500 maps to Unavailable",
			statusCode:   http.StatusInternalServerError,
			expectedType: apperrors.Unavailable,
			wantErr:      true,
		},
		{
			name:         "429 maps to Unavailable",
			statusCode:   http.StatusTooManyRequests,
			expectedType: apperrors.Unavailable,
			wantErr:      true,
		},
		{
			name:         "403 maps to ExecutionFailed",
			statusCode:   http.StatusForbidden,
			expectedType: apperrors.ExecutionFailed,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			resp, err := http.Get(server.URL)
			require.NoError(t, err)
			defer resp.Body.Close()

			checkErr := CheckResponseStatus(resp)

			if !tt.wantErr {
				assert.NoError(t, checkErr)
				return
			}

			require.Error(t, checkErr)
			assert.True(t, apperrors.Is(checkErr, tt.expectedType))
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
		ok       bool
	}{
		{
			name:     "seconds",
			value:    "120",
			expected: 120 * time.Second,
			ok:       true,
		},
		{
			name:  "negative seconds rejected",
			value: "-5",
			ok:    false,
		},
		{
			name:  "empty value",
			value: "",
			ok:    false,
		},
		{
			name:  "garbage",
			value: "soon",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRetryAfter(tt.value)

			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	when := time.Now().Add(10 * time.Second).UTC()

	got, ok := parseRetryAfter(when.Format(http.TimeFormat))

	require.True(t, ok)
	assert.InDelta(t, (10 * time.Second).Seconds(), got.Seconds(), 2)
}

func TestIsIdempotentMethod(t *testing.T) {
	assert.True(t, isIdempotentMethod(http.MethodGet))
	assert.True(t, isIdempotentMethod(http.MethodDelete))
	assert.False(t, isIdempotentMethod(http.MethodPost))
	assert.False(t, isIdempotentMethod(http.MethodPatch))
}

func TestRedactURL(t *testing.T) {
	u, err := url.Parse("https://www.mydealz.de/graphql?xsrf_t=secrettoken&page=2")
	require.NoError(t, err)

	got := redactURL(u)

	assert.NotContains(t, got, "secrettoken")
	assert.Contains(t, got, "page=2")
}
