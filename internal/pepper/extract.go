package pepper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
)

// ExtractComments recovers all comments from raw thread page markup by
// running the DOM pass and the embedded-state pass and merging their
// results per comment id. The DOM pass is assumed structurally more
// complete and forms the base; embedded-state records fill fields the
// DOM pass left empty and contribute additional image URLs. Records
// only the embedded-state pass found are appended as new comments.
// The merged list is sorted by the comment sort key.
func ExtractComments(htmlText, baseURL string) ([]Comment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ParsingFailed, "thread page markup could not be parsed")
	}

	comments := ExtractCommentsFromDOM(doc, baseURL)

	index := make(map[string]int, len(comments))
	for i := range comments {
		index[comments[i].ID] = i
	}

	for _, fb := range ExtractCommentsFromPreloadedState(htmlText, baseURL) {
		i, ok := index[fb.ID]
		if !ok {
			index[fb.ID] = len(comments)
			comments = append(comments, fb)
			continue
		}

		existing := &comments[i]
		if existing.Author == "" && fb.Author != "" {
			existing.Author = fb.Author
		}
		if existing.Text == "" && fb.Text != "" {
			existing.Text = fb.Text
		}
		if existing.Timestamp == "" && fb.Timestamp != "" {
			existing.Timestamp = fb.Timestamp
		}
		if existing.CreatedTS == nil && fb.CreatedTS != nil {
			existing.CreatedTS = fb.CreatedTS
		}
		if len(fb.Images) > 0 {
			existing.Images = dedupeStrings(append(existing.Images, fb.Images...))
		}
	}

	SortComments(comments)

	return comments, nil
}
