// Package fetch is the HTTP collaborator the pipeline pulls payloads
// through.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-view/internal/pipeline"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 64 << 20
	userAgent      = "plat-view/1.0"
)

// Client fetches URLs over HTTP. A non-2xx status becomes a
// pipeline.FetchError carrying the status and a clip of the response body.
type Client struct {
	hc *http.Client
}

// NewClient creates a client with the given timeout, zero meaning 30s.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{hc: &http.Client{Timeout: timeout}}
}

// Fetch returns the response body and content type.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request %q: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %q: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read %q: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &pipeline.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(clip(string(body), 512)),
		}
	}
	log.WithFields(log.Fields{"url": url, "bytes": len(body)}).Debug("fetched")
	return body, resp.Header.Get("Content-Type"), nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
