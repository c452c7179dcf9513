package pepper

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// imageExtRe accepts URLs carrying a known image file suffix.
var imageExtRe = regexp.MustCompile(`(?i)\.(?:jpg|jpeg|png|gif|webp)\b`)

// PlainText strips markup from rich content and collapses all
// whitespace runs into single spaces. Plain input passes through with
// the same whitespace normalization.
func PlainText(content string) string {
	if content == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return collapseWhitespace(content)
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				parts = append(parts, collapseWhitespace(trimmed))
			}
			return
		}
		// Script and style bodies are markup plumbing, not content.
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.Join(parts, " ")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsImageURL reports whether the URL carries a recognized image file
// suffix.
func IsImageURL(rawURL string) bool {
	return rawURL != "" && imageExtRe.MatchString(rawURL)
}

// ResolveURL resolves ref against base, mirroring browser link
// resolution. An unparsable ref resolves to the empty string.
func ResolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	return baseURL.ResolveReference(refURL).String()
}

// acceptImageURL keeps the URL only when it looks like an image,
// resolved against the thread base URL.
func acceptImageURL(baseURL, rawURL string) (string, bool) {
	if !IsImageURL(rawURL) {
		return "", false
	}
	resolved := ResolveURL(baseURL, rawURL)
	if resolved == "" {
		return "", false
	}
	return resolved, true
}

// dedupeStrings removes duplicates while preserving first-seen order.
func dedupeStrings(values []string) []string {
	if len(values) < 2 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
