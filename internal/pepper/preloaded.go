package pepper

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// preloadedStateRe captures the JSON blob assigned to the client
// bootstrap global. Non-greedy so multiple assignments in one page are
// matched individually.
var preloadedStateRe = regexp.MustCompile(`(?s)window\.__PRELOADED_STATE__\s*=\s*(\{.*?\})\s*;`)

// Field lookup orders for embedded-state records. Each list is tried in
// order and the first non-empty value wins.
var (
	preloadedIDFields     = []string{"id", "commentId", "commentID"}
	preloadedAuthorFields = []string{"authorName", "userName", "username", "name"}
	preloadedUserFields   = []string{"name", "username", "displayName"}
	preloadedTextFields   = []string{"content", "body", "text"}
	preloadedTimeFields   = []string{"createdAt", "timestamp", "dateCreated"}
	preloadedMediaFields  = []string{"media", "sharedMedia", "attachments", "images"}
	preloadedMediaURLKeys = []string{"url", "src", "image", "imageUrl", "path"}
)

// ExtractCommentsFromPreloadedState recovers comments from the
// client-state JSON blobs embedded in page markup. Malformed blobs are
// skipped individually; the pass never fails as a whole.
func ExtractCommentsFromPreloadedState(htmlText, baseURL string) []Comment {
	var comments []Comment

	for _, match := range preloadedStateRe.FindAllStringSubmatch(htmlText, -1) {
		blob := match[1]
		if !gjson.Valid(blob) {
			continue
		}

		entities := gjson.Get(blob, "entities")
		raw := entities.Get("comments")
		if !raw.Exists() {
			raw = entities.Get("comment")
		}
		if !raw.IsArray() && !raw.IsObject() {
			continue
		}

		raw.ForEach(func(_, record gjson.Result) bool {
			if !record.IsObject() {
				return true
			}
			if comment, ok := preloadedComment(record, baseURL); ok {
				comments = append(comments, comment)
			}
			return true
		})
	}

	return comments
}

func preloadedComment(record gjson.Result, baseURL string) (Comment, bool) {
	id := firstNonEmptyField(record, preloadedIDFields)
	if id == "" {
		return Comment{}, false
	}

	author := firstNonEmptyField(record, preloadedAuthorFields)
	if author == "" {
		if user := record.Get("user"); user.IsObject() {
			author = firstNonEmptyField(user, preloadedUserFields)
		}
	}

	return Comment{
		ID:        id,
		Author:    author,
		Text:      preloadedText(record),
		Timestamp: firstNonEmptyField(record, preloadedTimeFields),
		Images:    preloadedImages(record, baseURL),
	}, true
}

func firstNonEmptyField(record gjson.Result, fields []string) string {
	for _, field := range fields {
		if value := record.Get(field); value.Exists() {
			if s := strings.TrimSpace(value.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// preloadedText picks the first non-empty text candidate and strips
// markup from it, since embedded-state bodies may be rich HTML.
func preloadedText(record gjson.Result) string {
	for _, field := range preloadedTextFields {
		value := record.Get(field)
		if !value.Exists() {
			continue
		}

		candidate := value.String()
		// Structured bodies expose the real content under one of a few
		// known keys.
		if value.IsObject() {
			candidate = firstNonEmptyField(value, []string{"text", "body", "content", "html", "value"})
			if candidate == "" {
				candidate = value.Raw
			}
		}

		if candidate != "" {
			return PlainText(candidate)
		}
	}
	return ""
}

// preloadedImages walks the known media container fields. Every entry
// may be a bare URL string or an object exposing the URL under one of
// several keys.
func preloadedImages(record gjson.Result, baseURL string) []string {
	var entries []gjson.Result
	for _, field := range preloadedMediaFields {
		value := record.Get(field)
		if !value.Exists() {
			continue
		}

		switch {
		case value.IsArray(), value.IsObject():
			value.ForEach(func(_, entry gjson.Result) bool {
				entries = append(entries, entry)
				return true
			})
		default:
			entries = append(entries, value)
		}
	}

	var images []string
	for _, entry := range entries {
		var rawURL string
		if entry.IsObject() {
			rawURL = firstNonEmptyField(entry, preloadedMediaURLKeys)
		} else if entry.Type == gjson.String {
			rawURL = entry.String()
		}

		if resolved, ok := acceptImageURL(baseURL, rawURL); ok {
			images = append(images, resolved)
		}
	}

	return dedupeStrings(images)
}
