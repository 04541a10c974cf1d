// ABOUTME: Graph-API style page publisher: text posts go to the page feed, images to the photos edge.
// ABOUTME: Requests carry an idempotency key so an orchestration retry cannot double-post.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// GraphClient publishes posts to a Facebook-style Graph API page.
type GraphClient struct {
	BaseURL     string
	PageID      string
	AccessToken string
	HTTPClient  *http.Client
}

// NewGraphClient creates a publisher for the given page.
func NewGraphClient(baseURL, pageID, accessToken string) *GraphClient {
	return &GraphClient{
		BaseURL:     baseURL,
		PageID:      pageID,
		AccessToken: accessToken,
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// publishResponse is the JSON body returned by the Graph API on success.
type publishResponse struct {
	ID string `json:"id"`
}

// Publish posts to the page feed, or to the photos edge when the post
// carries an image reference. Returns the platform post ID.
func (c *GraphClient) Publish(ctx context.Context, post Post) (string, error) {
	if post.Text == "" && post.ImageRef == "" {
		return "", fmt.Errorf("post has no content")
	}

	form := url.Values{}
	form.Set("access_token", c.AccessToken)

	var edge string
	if post.ImageRef != "" {
		edge = "photos"
		form.Set("url", post.ImageRef)
		if post.Text != "" {
			form.Set("caption", post.Text)
		}
	} else {
		edge = "feed"
		form.Set("message", post.Text)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.BaseURL, c.PageID, edge)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read publish response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 280 {
			// Back up to a rune boundary so a multi-byte character is
			// never split.
			cut := 280
			for cut > 0 && !utf8.RuneStart(msg[cut]) {
				cut--
			}
			msg = msg[:cut]
		}
		return "", fmt.Errorf("publish rejected with status %d: %s", resp.StatusCode, msg)
	}

	var result publishResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode publish response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("publish response missing post ID")
	}
	return result.ID, nil
}
