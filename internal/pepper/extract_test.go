package pepper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://www.mydealz.de/deals/super-deal-123456"

func parseDocument(t *testing.T, htmlText string) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	require.NoError(t, err)
	return doc
}

func TestExtractCommentsFromDOM(t *testing.T) {
	htmlText := `
		<html><body>
			<article data-comment-id="101">
				<span class="user">alice</span>
				<time datetime="2026-08-01T10:00:00Z">vor 2 Stunden</time>
				<div class="comment__body">
					<div class="content">Bester <b>Preis</b> seit Wochen</div>
					<img src="/img/one.jpg">
					<a href="https://cdn.example.com/two.png">Bild</a>
					<a href="/deals/other-deal-99">kein Bild</a>
				</div>
			</article>
			<article data-comment-id="102">
				<span data-user-name="bob"></span>
				<time>gestern</time>
				<div class="comment__body">Gutschein funktioniert nicht mehr</div>
			</article>
		</body></html>`

	comments := ExtractCommentsFromDOM(parseDocument(t, htmlText), testBaseURL)
	require.Len(t, comments, 2)

	assert.Equal(t, "101", comments[0].ID)
	assert.Equal(t, "alice", comments[0].Author)
	assert.Equal(t, "Bester Preis seit Wochen", comments[0].Text)
	assert.Equal(t, "2026-08-01T10:00:00Z", comments[0].Timestamp)
	assert.Equal(t, []string{
		"https://www.mydealz.de/img/one.jpg",
		"https://cdn.example.com/two.png",
	}, comments[0].Images)

	assert.Equal(t, "102", comments[1].ID)
	assert.Equal(t, "bob", comments[1].Author)
	assert.Equal(t, "Gutschein funktioniert nicht mehr", comments[1].Text)
	assert.Equal(t, "gestern", comments[1].Timestamp)
	assert.Empty(t, comments[1].Images)
}

func TestExtractCommentsFromDOMStrategies(t *testing.T) {
	tests := []struct {
		name        string
		htmlText    string
		expectedIDs []string
	}{
		{
			name: "data attribute on non-article containers",
			htmlText: `<div data-comment-id="7">x</div>
				<li class="comment" id="comment-8">y</li>`,
			expectedIDs: []string{"7"},
		},
		{
			name: "class fallback with id prefix strip",
			htmlText: `<li class="comment" id="comment-8">y</li>
				<div class="comment" id="raw-9">z</div>`,
			expectedIDs: []string{"8", "raw-9"},
		},
		{
			name:        "containers without any id are skipped",
			htmlText:    `<div class="comment">anonym</div>`,
			expectedIDs: nil,
		},
		{
			name:        "no containers at all",
			htmlText:    `<p>keine Kommentare</p>`,
			expectedIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comments := ExtractCommentsFromDOM(parseDocument(t, tt.htmlText), testBaseURL)

			var ids []string
			for _, c := range comments {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.expectedIDs, ids)
		})
	}
}

func TestExtractImagesLazyAndSrcset(t *testing.T) {
	htmlText := `
		<div data-comment-id="1">
			<img data-src="/lazy/a.jpg">
			<img data-lazy="/lazy/b.png">
			<img srcset="/set/c.webp 1x, /set/d.webp 2x">
			<img src="/lazy/a.jpg">
		</div>`

	comments := ExtractCommentsFromDOM(parseDocument(t, htmlText), testBaseURL)
	require.Len(t, comments, 1)

	assert.Equal(t, []string{
		"https://www.mydealz.de/lazy/a.jpg",
		"https://www.mydealz.de/lazy/b.png",
		"https://www.mydealz.de/set/c.webp",
	}, comments[0].Images)
}

func TestExtractCommentsFromPreloadedState(t *testing.T) {
	htmlText := `<html><script>
		window.__PRELOADED_STATE__ = {"entities":{"comments":[
			{"id":201,"authorName":"carol","content":"<p>Preis ist wieder hoch</p>",
			 "createdAt":"2026-08-02T09:00:00Z",
			 "media":[{"url":"/m/a.jpg"},"/m/b.png",{"path":"/m/doc.pdf"}]},
			{"commentId":"202","user":{"displayName":"dave"},
			 "body":{"text":"Versand ist kostenlos"},"timestamp":"2026-08-02T10:00:00Z"},
			{"content":"kein Bezeichner, wird verworfen"}
		]}};
	</script></html>`

	comments := ExtractCommentsFromPreloadedState(htmlText, testBaseURL)
	require.Len(t, comments, 2)

	assert.Equal(t, "201", comments[0].ID)
	assert.Equal(t, "carol", comments[0].Author)
	assert.Equal(t, "Preis ist wieder hoch", comments[0].Text)
	assert.Equal(t, "2026-08-02T09:00:00Z", comments[0].Timestamp)
	assert.Equal(t, []string{
		"https://www.mydealz.de/m/a.jpg",
		"https://www.mydealz.de/m/b.png",
	}, comments[0].Images)

	assert.Equal(t, "202", comments[1].ID)
	assert.Equal(t, "dave", comments[1].Author)
	assert.Equal(t, "Versand ist kostenlos", comments[1].Text)
	assert.Equal(t, "2026-08-02T10:00:00Z", comments[1].Timestamp)
}

func TestExtractCommentsFromPreloadedStateMapShape(t *testing.T) {
	htmlText := `<script>window.__PRELOADED_STATE__ = {"entities":{"comment":{
		"301":{"id":"301","username":"erin","text":"Code EXTRA10 geht noch"}
	}}};</script>`

	comments := ExtractCommentsFromPreloadedState(htmlText, testBaseURL)
	require.Len(t, comments, 1)
	assert.Equal(t, "301", comments[0].ID)
	assert.Equal(t, "erin", comments[0].Author)
	assert.Equal(t, "Code EXTRA10 geht noch", comments[0].Text)
}

func TestExtractCommentsFromPreloadedStateSkipsMalformedBlobs(t *testing.T) {
	htmlText := `<script>
		window.__PRELOADED_STATE__ = {"entities":{"comments":[{"id":"1","content":"ok"}]};
		window.__PRELOADED_STATE__ = {"entities":{"comments":[{"id":"2","content":"auch ok"}]}};
	</script>`

	comments := ExtractCommentsFromPreloadedState(htmlText, testBaseURL)
	require.Len(t, comments, 1)
	assert.Equal(t, "2", comments[0].ID)
}

func TestExtractCommentsMergesBothPasses(t *testing.T) {
	htmlText := `
		<article data-comment-id="401">
			<div class="comment__body">DOM-Text bleibt erhalten</div>
			<img src="/img/dom.jpg">
		</article>
		<article data-comment-id="402"></article>
		<script>window.__PRELOADED_STATE__ = {"entities":{"comments":[
			{"id":"401","authorName":"frank","content":"Fallback-Text verliert",
			 "media":["/img/dom.jpg","/img/state.png"]},
			{"id":"402","authorName":"grace","content":"nur im Zustand vorhanden",
			 "createdAt":"2026-08-03T08:00:00Z"},
			{"id":"400","authorName":"heidi","content":"ganz neuer Kommentar"}
		]}};</script>`

	comments, err := ExtractComments(htmlText, testBaseURL)
	require.NoError(t, err)
	require.Len(t, comments, 3)

	// Sorted by the numeric id key.
	assert.Equal(t, "400", comments[0].ID)
	assert.Equal(t, "heidi", comments[0].Author)

	assert.Equal(t, "401", comments[1].ID)
	assert.Equal(t, "DOM-Text bleibt erhalten", comments[1].Text)
	assert.Equal(t, "frank", comments[1].Author)
	assert.Equal(t, []string{
		"https://www.mydealz.de/img/dom.jpg",
		"https://www.mydealz.de/img/state.png",
	}, comments[1].Images)

	assert.Equal(t, "402", comments[2].ID)
	assert.Equal(t, "grace", comments[2].Author)
	assert.Equal(t, "nur im Zustand vorhanden", comments[2].Text)
	assert.Equal(t, "2026-08-03T08:00:00Z", comments[2].Timestamp)
}

func TestParseCommentContent(t *testing.T) {
	text, images := ParseCommentContent(
		`<p>Schaut euch das an: <img src="/pic/deal.jpg"></p>`, testBaseURL)

	assert.Equal(t, "Schaut euch das an:", text)
	assert.Equal(t, []string{"https://www.mydealz.de/pic/deal.jpg"}, images)

	text, images = ParseCommentContent("", testBaseURL)
	assert.Equal(t, "", text)
	assert.Nil(t, images)
}
