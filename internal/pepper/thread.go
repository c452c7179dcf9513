package pepper

import (
	"context"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/darkkaiser/mydealz-monitor/internal/fetcher"
	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	applog "github.com/darkkaiser/mydealz-monitor/pkg/log"
)

// maxThreadPageBytes bounds how much of a thread page is read when
// resolving the thread id from markup.
const maxThreadPageBytes = 4 * 1024 * 1024

var (
	threadIDHTMLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"threadId"\s*:\s*"?(\d+)"?`),
		regexp.MustCompile(`(?i)data-thread-id=["'](\d+)["']`),
	}

	canonicalLinkRe = regexp.MustCompile(`(?i)<link[^>]+rel=["']canonical["'][^>]+href=["']([^"']+)["']`)
)

// BaseThreadURL strips the fragment from a thread URL.
func BaseThreadURL(threadURL string) string {
	base, _, _ := strings.Cut(threadURL, "#")
	return base
}

// ThreadIDFromURL extracts the thread id as the last run of digits in
// the URL path, the usual deal-URL convention
// (…/deals/some-deal-123456).
func ThreadIDFromURL(threadURL string) string {
	if threadURL == "" {
		return ""
	}

	parsed, err := url.Parse(threadURL)
	if err != nil {
		return ""
	}

	digits := digitRunRe.FindAllString(parsed.Path, -1)
	if len(digits) == 0 {
		return ""
	}
	return digits[len(digits)-1]
}

// threadIDFromHTML recovers the thread id from page markup. A single
// distinct id among the known patterns wins; otherwise the canonical
// link URL is consulted.
func threadIDFromHTML(htmlText, baseURL string) string {
	var candidates []string
	for _, pattern := range threadIDHTMLPatterns {
		for _, match := range pattern.FindAllStringSubmatch(htmlText, -1) {
			if match[1] != "" {
				candidates = append(candidates, match[1])
			}
		}
	}

	unique := dedupeStrings(candidates)
	if len(unique) == 1 {
		return unique[0]
	}

	if match := canonicalLinkRe.FindStringSubmatch(htmlText); match != nil {
		return ThreadIDFromURL(ResolveURL(baseURL, match[1]))
	}

	return ""
}

// ResolveThreadID determines the monitored thread's id: an explicit
// override wins, then the digits of the configured URL, then a page
// fetch whose final URL or markup carries the id. Failure to resolve
// is a configuration error.
func ResolveThreadID(ctx context.Context, f fetcher.Fetcher, threadURL, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	baseURL := BaseThreadURL(threadURL)

	if id := ThreadIDFromURL(baseURL); id != "" {
		return id, nil
	}

	id, err := resolveThreadIDFromPage(ctx, f, baseURL)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", apperrors.Newf(apperrors.NotFound, "the thread id could not be determined from '%s'; configure thread_id explicitly or use a URL ending in -<id>", threadURL)
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"thread_id": id,
	}).Info("resolved the thread id via page fetch")

	return id, nil
}

func resolveThreadIDFromPage(ctx context.Context, f fetcher.Fetcher, baseURL string) (string, error) {
	resp, err := fetcher.Get(ctx, f, baseURL)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.Unavailable, "fetching '%s' to resolve the thread id failed", baseURL)
	}
	defer resp.Body.Close()

	if err := fetcher.CheckResponseStatus(resp); err != nil {
		return "", err
	}

	// Redirects may land on the canonical URL which carries the id.
	if resp.Request != nil {
		if id := ThreadIDFromURL(resp.Request.URL.String()); id != "" {
			return id, nil
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxThreadPageBytes))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.System, "reading the thread page failed")
	}

	return threadIDFromHTML(string(body), baseURL), nil
}
