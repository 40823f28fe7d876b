// Package wordpress is a minimal client for the WordPress REST API, covering
// the two calls the row pipeline needs: media upload and post creation.
package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hkim-dev/autopress/internal/site"
)

type Post struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Status        string `json:"status"`
	FeaturedMedia int64  `json:"featured_media,omitempty"`
}

type Client struct {
	HTTP *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{HTTP: &http.Client{Timeout: timeout}}
}

// authHeader builds the Basic auth token from the site's username and its
// base64-encoded application password.
func authHeader(s *site.Site) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s.AppPasswordB64)
	if err != nil {
		return "", fmt.Errorf("decode app password: %w", err)
	}
	token := base64.StdEncoding.EncodeToString([]byte(s.Username + ":" + string(raw)))
	return "Basic " + token, nil
}

func apiURL(s *site.Site, path string) string {
	return strings.TrimRight(s.URL, "/") + "/wp-json/wp/v2" + path
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("wordpress: %s", msg)
}

// UploadMedia posts raw image bytes to the media endpoint and returns the
// attachment id.
func (c *Client) UploadMedia(ctx context.Context, s *site.Site, data []byte, filename string) (int64, error) {
	auth, err := authHeader(s)
	if err != nil {
		return 0, err
	}
	if filename == "" {
		filename = "image.png"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL(s, "/media"), bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	req.Header.Set("Content-Type", "image/png")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, readError(resp)
	}

	var decoded struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("wordpress media response: %w", err)
	}
	if decoded.ID == 0 {
		return 0, fmt.Errorf("wordpress media response: missing id")
	}
	return decoded.ID, nil
}

// PublishPost creates a post and returns its id.
func (c *Client) PublishPost(ctx context.Context, s *site.Site, post Post) (int64, error) {
	auth, err := authHeader(s)
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(post)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL(s, "/posts"), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, readError(resp)
	}

	var decoded struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("wordpress post response: %w", err)
	}
	if decoded.ID == 0 {
		return 0, fmt.Errorf("wordpress post response: missing id")
	}
	return decoded.ID, nil
}
