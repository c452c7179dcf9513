package monitor

import (
	"context"
	"io"

	"github.com/darkkaiser/mydealz-monitor/internal/fetcher"
	"github.com/darkkaiser/mydealz-monitor/internal/pepper"
	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	applog "github.com/darkkaiser/mydealz-monitor/pkg/log"
)

// maxPageBytes bounds how much of the thread page the markup source
// reads.
const maxPageBytes = 8 * 1024 * 1024

// CommentSource produces the current snapshot of thread comments,
// sorted ascending.
type CommentSource interface {
	FetchComments(ctx context.Context) ([]pepper.Comment, error)
}

// APISource reads comments through the GraphQL API.
type APISource struct {
	client   *pepper.Client
	threadID string
}

var _ CommentSource = (*APISource)(nil)

func NewAPISource(client *pepper.Client, threadID string) *APISource {
	return &APISource{
		client:   client,
		threadID: threadID,
	}
}

func (s *APISource) FetchComments(ctx context.Context) ([]pepper.Comment, error) {
	return s.client.FetchComments(ctx, s.threadID, 1)
}

// PageSource recovers comments from the rendered thread page markup.
type PageSource struct {
	fetcher   fetcher.Fetcher
	threadURL string
}

var _ CommentSource = (*PageSource)(nil)

func NewPageSource(f fetcher.Fetcher, threadURL string) *PageSource {
	return &PageSource{
		fetcher:   f,
		threadURL: pepper.BaseThreadURL(threadURL),
	}
}

func (s *PageSource) FetchComments(ctx context.Context) ([]pepper.Comment, error) {
	resp, err := fetcher.Get(ctx, s.fetcher, s.threadURL)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "the thread page '%s' could not be fetched", s.threadURL)
	}
	defer resp.Body.Close()

	if err := fetcher.CheckResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "the thread page could not be read")
	}

	return pepper.ExtractComments(string(body), s.threadURL)
}

// FallbackSource tries the API first and falls back to the page markup
// when it fails, dropping the cached anti-forgery token so the next API
// attempt starts fresh.
type FallbackSource struct {
	primary   CommentSource
	secondary CommentSource

	// invalidate resets primary-side session state after a failure.
	// May be nil.
	invalidate func()
}

var _ CommentSource = (*FallbackSource)(nil)

func NewFallbackSource(primary, secondary CommentSource, invalidate func()) *FallbackSource {
	return &FallbackSource{
		primary:    primary,
		secondary:  secondary,
		invalidate: invalidate,
	}
}

func (s *FallbackSource) FetchComments(ctx context.Context) ([]pepper.Comment, error) {
	comments, err := s.primary.FetchComments(ctx)
	if err == nil {
		return comments, nil
	}

	if s.invalidate != nil {
		s.invalidate()
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"error": err,
	}).Warn("the comment API failed, falling back to page markup")

	comments, fallbackErr := s.secondary.FetchComments(ctx)
	if fallbackErr != nil {
		// The API error names the root problem, keep it.
		return nil, err
	}

	return comments, nil
}
