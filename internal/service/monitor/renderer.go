package monitor

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/darkkaiser/mydealz-monitor/internal/notification"
	"github.com/darkkaiser/mydealz-monitor/internal/pepper"
)

// Notification texts are German, matching the monitored site.
const (
	titleNewComment     = "Neuer Kommentar"
	titleStartupComment = "Letzter Kommentar beim Start"

	labelAuthor  = "Autor:"
	labelTime    = "Zeit:"
	labelComment = "Kommentar:"
	linkText     = "Zum Kommentar"

	textUnknown = "Unbekannt"
	textNoBody  = "Kein Text im Kommentar"
)

// captionSnippetLength bounds the comment text inside a photo caption,
// leaving headroom for the header lines within the caption limit.
const captionSnippetLength = 900

// commentLink builds the deep link to a single comment.
func commentLink(threadURL, commentID string) string {
	return pepper.BaseThreadURL(threadURL) + "#comment-" + commentID
}

// renderCommentMessage builds the HTML text message for one comment.
// All comment-supplied fields are escaped; the markup is ours alone.
func renderCommentMessage(threadURL, title string, c *pepper.Comment) string {
	lines := commentHeader(threadURL, title, c)

	lines = append(lines, "")
	if text := strings.TrimSpace(c.Text); text != "" {
		lines = append(lines, "<b>"+labelComment+"</b>", html.EscapeString(text))
	} else {
		lines = append(lines, "<i>"+textNoBody+"</i>")
	}

	return trimText(strings.Join(lines, "\n"), notification.MessageMaxLength)
}

// renderPhotoCaption builds the caption for image idx (1-based) of
// total. The comment text is cut to a snippet so the header always
// survives the caption limit.
func renderPhotoCaption(threadURL, title string, c *pepper.Comment, idx, total int) string {
	lines := commentHeader(threadURL, title, c)

	lines = append(lines, "")
	if text := strings.TrimSpace(c.Text); text != "" {
		lines = append(lines, "<b>"+labelComment+"</b>", trimText(html.EscapeString(text), captionSnippetLength))
	} else {
		lines = append(lines, "<i>"+textNoBody+"</i>")
	}

	if total > 1 {
		lines = append(lines, fmt.Sprintf("Bild %d/%d", idx, total))
	}

	return trimText(strings.Join(lines, "\n"), notification.CaptionMaxLength)
}

func commentHeader(threadURL, title string, c *pepper.Comment) []string {
	return []string{
		"<b>" + html.EscapeString(title) + "</b>",
		labelAuthor + " " + html.EscapeString(orUnknown(c.Author)),
		labelTime + " " + html.EscapeString(orUnknown(c.Timestamp)),
		`<a href="` + html.EscapeString(commentLink(threadURL, c.ID)) + `">` + linkText + `</a>`,
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return textUnknown
	}
	return s
}

// trimText cuts text down to limit characters, marking the cut with an
// ellipsis and stripping trailing whitespace before it.
func trimText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	const ellipsis = "..."
	if limit <= len(ellipsis) {
		return text[:limit]
	}

	cut := limit - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	return strings.TrimRight(text[:cut], " \t\n") + ellipsis
}
