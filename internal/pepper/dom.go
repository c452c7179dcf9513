package pepper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// domSelectorStrategies locates comment containers in rendered page
// markup. Strategies are tried in order and the first one yielding any
// matches wins; results are never mixed across strategies.
var domSelectorStrategies = []string{
	"article[data-comment-id]",
	"[data-comment-id]",
	"div.comment, li.comment",
}

// ExtractCommentsFromDOM recovers comments from the rendered DOM of a
// thread page. Containers without a recoverable id are skipped.
func ExtractCommentsFromDOM(doc *goquery.Document, baseURL string) []Comment {
	var candidates *goquery.Selection
	for _, selector := range domSelectorStrategies {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			candidates = sel
			break
		}
	}
	if candidates == nil {
		return nil
	}

	var comments []Comment
	candidates.Each(func(_ int, el *goquery.Selection) {
		id := extractCommentID(el)
		if id == "" {
			return
		}

		comments = append(comments, Comment{
			ID:        id,
			Author:    extractAuthor(el),
			Text:      extractBodyText(el),
			Timestamp: extractTimestamp(el),
			Images:    extractImages(el, baseURL),
		})
	})

	return comments
}

func extractCommentID(el *goquery.Selection) string {
	if id, ok := el.Attr("data-comment-id"); ok && id != "" {
		return id
	}

	elemID, _ := el.Attr("id")
	if elemID == "" {
		return ""
	}

	// Element ids of the form comment-<digits> carry the identifier.
	if rest, found := strings.CutPrefix(elemID, "comment-"); found {
		return rest
	}

	return elemID
}

func extractAuthor(el *goquery.Selection) string {
	if sel := el.Find(".user, .user-name").First(); sel.Length() > 0 {
		if author := strings.TrimSpace(sel.Text()); author != "" {
			return author
		}
	}

	if sel := el.Find("[data-user-name]").First(); sel.Length() > 0 {
		if author, ok := sel.Attr("data-user-name"); ok && author != "" {
			return author
		}
		return strings.TrimSpace(sel.Text())
	}

	return ""
}

func extractBodyText(el *goquery.Selection) string {
	body := el
	if sel := el.Find(".comment__body").First(); sel.Length() > 0 {
		body = sel
	}

	if sel := body.Find(".content, .text, .comment-body, .comment-content").First(); sel.Length() > 0 {
		return collapseWhitespace(sel.Text())
	}

	return collapseWhitespace(body.Text())
}

func extractTimestamp(el *goquery.Selection) string {
	if sel := el.Find("time[datetime]").First(); sel.Length() > 0 {
		if ts, ok := sel.Attr("datetime"); ok && ts != "" {
			return ts
		}
	}

	if sel := el.Find("time").First(); sel.Length() > 0 {
		return strings.TrimSpace(sel.Text())
	}

	return ""
}

// extractImages collects image URLs from img elements (src, lazy-load
// attributes, first source-set entry) and from anchors pointing at
// image files, resolved against the thread base URL.
func extractImages(el *goquery.Selection, baseURL string) []string {
	var images []string

	el.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := firstNonEmptyAttr(img, "src", "data-src", "data-lazy")
		if src == "" {
			if srcset, ok := img.Attr("srcset"); ok && srcset != "" {
				src = firstSrcsetURL(srcset)
			}
		}
		if resolved, ok := acceptImageURL(baseURL, src); ok {
			images = append(images, resolved)
		}
	})

	el.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if resolved, ok := acceptImageURL(baseURL, href); ok {
			images = append(images, resolved)
		}
	})

	return dedupeStrings(images)
}

func firstNonEmptyAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if value, ok := sel.Attr(name); ok && value != "" {
			return value
		}
	}
	return ""
}

func firstSrcsetURL(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	url, _, _ := strings.Cut(strings.TrimSpace(first), " ")
	return url
}

// ParseCommentContent converts a rich comment body into plain text plus
// the image URLs embedded in it.
func ParseCommentContent(htmlContent, baseURL string) (string, []string) {
	if htmlContent == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return PlainText(htmlContent), nil
	}

	return PlainText(htmlContent), extractImages(doc.Selection, baseURL)
}
