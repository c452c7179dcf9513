package pepper

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/darkkaiser/mydealz-monitor/internal/fetcher"
	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	applog "github.com/darkkaiser/mydealz-monitor/pkg/log"
)

const component = "pepper"

// GraphQLEndpoint is the mydealz.de GraphQL API endpoint.
const GraphQLEndpoint = "https://www.mydealz.de/graphql"

// xsrfCookieName is the anti-forgery cookie the site sets on page
// loads; its value must accompany every GraphQL request.
const xsrfCookieName = "xsrf_t"

const commentsQuery = `
query Comments($threadId: ID!, $page: Int, $limit: Int) {
  comments(filter: {threadId: {eq: $threadId}}, page: $page, limit: $limit) {
    items {
      commentId
      content
      createdAt
      createdAtTs
      user { username }
    }
  }
}
`

// Client fetches thread comments through the structured GraphQL API.
type Client struct {
	fetcher  fetcher.Fetcher
	endpoint string

	// threadURL is the base thread URL, used as Referer and for
	// obtaining the anti-forgery token.
	threadURL string

	pageSize int

	xsrfToken string
}

// NewClient creates a GraphQL client for the given thread.
func NewClient(f fetcher.Fetcher, threadURL string, pageSize int) *Client {
	return &Client{
		fetcher:   f,
		endpoint:  GraphQLEndpoint,
		threadURL: BaseThreadURL(threadURL),
		pageSize:  pageSize,
	}
}

// ensureXSRFToken returns the cached anti-forgery token, fetching the
// thread page to obtain one when the cache is empty.
func (c *Client) ensureXSRFToken(ctx context.Context) (string, error) {
	if c.xsrfToken != "" {
		return c.xsrfToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.threadURL, nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "failed to build the token request")
	}
	req.Header.Set("Referer", c.threadURL)

	resp, err := c.fetcher.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Unavailable, "fetching the thread page for the anti-forgery token failed")
	}
	defer resp.Body.Close()

	if err := fetcher.CheckResponseStatus(resp); err != nil {
		return "", err
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == xsrfCookieName && cookie.Value != "" {
			c.xsrfToken = strings.Trim(cookie.Value, `"`)

			applog.WithComponent(component).Debug("obtained a fresh anti-forgery token")

			return c.xsrfToken, nil
		}
	}

	return "", apperrors.New(apperrors.ExecutionFailed, "the thread page did not set an anti-forgery token cookie")
}

// InvalidateToken drops the cached anti-forgery token so the next
// request obtains a fresh one.
func (c *Client) InvalidateToken() {
	c.xsrfToken = ""
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLCommentItem struct {
	// CommentID and CreatedAtTs arrive as either JSON numbers or
	// strings depending on the API version, so both are decoded
	// leniently.
	CommentID   json.RawMessage `json:"commentId"`
	Content     string          `json:"content"`
	CreatedAt   string          `json:"createdAt"`
	CreatedAtTs json.RawMessage `json:"createdAtTs"`
	User        struct {
		Username string `json:"username"`
	} `json:"user"`
}

// rawScalarString renders a raw JSON scalar as its plain string form,
// unquoting strings and keeping numbers verbatim. Null and composite
// values yield the empty string.
func rawScalarString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	if s[0] == '{' || s[0] == '[' {
		return ""
	}
	return s
}

type graphQLCommentsResponse struct {
	Data struct {
		Comments struct {
			Items []graphQLCommentItem `json:"items"`
		} `json:"comments"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// FetchComments queries one page of comments for the thread and returns
// them normalized and sorted. Items without an id are dropped; when the
// same id appears more than once, the last occurrence wins.
func (c *Client) FetchComments(ctx context.Context, threadID string, page int) ([]Comment, error) {
	token, err := c.ensureXSRFToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"operationName": "Comments",
		"query":         commentsQuery,
		"variables": map[string]any{
			"threadId": threadID,
			"page":     page,
			"limit":    c.pageSize,
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "failed to encode the GraphQL request payload")
	}

	header := map[string]string{
		"Accept":           "application/json",
		"Content-Type":     "application/json",
		"Referer":          c.threadURL,
		"X-Requested-With": "XMLHttpRequest",
		"X-XSRF-Token":     token,
		"Cookie":           xsrfCookieName + "=" + token,
	}

	var response graphQLCommentsResponse
	if err := fetcher.FetchJSON(ctx, c.fetcher, http.MethodPost, c.endpoint, header, bytes.NewReader(payload), &response); err != nil {
		return nil, err
	}

	if len(response.Errors) > 0 {
		return nil, apperrors.Newf(apperrors.ExecutionFailed, "the GraphQL comment query was rejected: %s", response.Errors[0].Message)
	}

	// Dedupe by id, last occurrence wins.
	byID := make(map[string]Comment, len(response.Data.Comments.Items))
	order := make([]string, 0, len(response.Data.Comments.Items))
	for _, item := range response.Data.Comments.Items {
		comment := c.normalizeItem(item)
		if comment.ID == "" {
			continue
		}
		if _, ok := byID[comment.ID]; !ok {
			order = append(order, comment.ID)
		}
		byID[comment.ID] = comment
	}

	comments := make([]Comment, 0, len(byID))
	for _, id := range order {
		comments = append(comments, byID[id])
	}

	SortComments(comments)

	return comments, nil
}

// normalizeItem converts one GraphQL record into the canonical Comment
// shape, preferring the epoch timestamp over the display one.
func (c *Client) normalizeItem(item graphQLCommentItem) Comment {
	var createdTS *int64
	if raw := rawScalarString(item.CreatedAtTs); raw != "" {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			createdTS = &ts
		}
	}

	timestamp := item.CreatedAt
	if createdTS != nil {
		timestamp = time.Unix(*createdTS, 0).Format(time.RFC3339)
	}

	text, images := ParseCommentContent(item.Content, c.threadURL)

	return Comment{
		ID:        rawScalarString(item.CommentID),
		Author:    item.User.Username,
		Text:      text,
		Timestamp: timestamp,
		Images:    images,
		CreatedTS: createdTS,
	}
}
