package monitor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/mydealz-monitor/internal/fetcher"
	"github.com/darkkaiser/mydealz-monitor/internal/pepper"
	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
)

// scriptedSource replays one batch (or error) per call; the last entry
// repeats.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]pepper.Comment
	errs    []error
	calls   int
}

func (s *scriptedSource) FetchComments(context.Context) ([]pepper.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++

	if len(s.errs) > 0 {
		if i >= len(s.errs) {
			i = len(s.errs) - 1
		}
		if err := s.errs[i]; err != nil {
			return nil, err
		}
	}

	if len(s.batches) == 0 {
		return nil, nil
	}
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	return s.batches[i], nil
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestPageSourceFetchComments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><body>
			<article data-comment-id="11"><div class="comment__body">elf</div></article>
			<article data-comment-id="12"><div class="comment__body">zwölf</div></article>
		</body></html>`)
	}))
	t.Cleanup(server.Close)

	f := fetcher.NewHTTPFetcher()
	t.Cleanup(func() { _ = f.Close() })

	source := NewPageSource(f, server.URL+"/deals/x-1#comment-3")

	comments, err := source.FetchComments(context.Background())
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "11", comments[0].ID)
	assert.Equal(t, "elf", comments[0].Text)
	assert.Equal(t, "12", comments[1].ID)
}

func TestPageSourceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	f := fetcher.NewHTTPFetcher()
	t.Cleanup(func() { _ = f.Close() })

	source := NewPageSource(f, server.URL+"/deals/x-1")

	_, err := source.FetchComments(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Unavailable))
}

func TestFallbackSourcePrefersPrimary(t *testing.T) {
	primary := &scriptedSource{batches: [][]pepper.Comment{{{ID: "1"}}}}
	secondary := &scriptedSource{batches: [][]pepper.Comment{{{ID: "2"}}}}

	source := NewFallbackSource(primary, secondary, nil)

	comments, err := source.FetchComments(context.Background())
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "1", comments[0].ID)
	assert.Equal(t, 0, secondary.callCount())
}

func TestFallbackSourceFallsBackOnPrimaryError(t *testing.T) {
	primary := &scriptedSource{errs: []error{apperrors.New(apperrors.Unavailable, "api down")}}
	secondary := &scriptedSource{batches: [][]pepper.Comment{{{ID: "2"}}}}

	invalidated := false
	source := NewFallbackSource(primary, secondary, func() { invalidated = true })

	comments, err := source.FetchComments(context.Background())
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "2", comments[0].ID)
	assert.True(t, invalidated)
}

func TestFallbackSourceReportsPrimaryErrorWhenBothFail(t *testing.T) {
	primary := &scriptedSource{errs: []error{apperrors.New(apperrors.Unavailable, "api down")}}
	secondary := &scriptedSource{errs: []error{apperrors.New(apperrors.ParsingFailed, "bad markup")}}

	source := NewFallbackSource(primary, secondary, nil)

	_, err := source.FetchComments(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Unavailable))
	assert.Contains(t, err.Error(), "api down")
}
