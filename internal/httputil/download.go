// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Client bundles the HTTP client with the request settings every fetch uses.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Policy    RetryPolicy
}

// get issues a GET with retry and fails on any non-200 final status.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := DoWithRetry(ctx, hc, req, c.Policy)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return resp, nil
}

// Download fetches url to destPath using a temporary file in the same
// directory and renames it on success, so destPath never holds a partial
// download. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, url, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating directory: %w", err)
	}

	resp, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

// Fetch returns the body of url as a string. The waitFor selector is
// ignored: plain HTTP pages are complete when the response ends.
func (c *Client) Fetch(ctx context.Context, url, waitFor string) (string, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(data), nil
}

// Fetcher returns the HTML of a page. Implementations that render
// client-side pages wait for the waitFor CSS selector, bounded by their own
// timeout, and return whatever DOM is present once it expires.
type Fetcher interface {
	Fetch(ctx context.Context, url, waitFor string) (string, error)
}

// Downloader saves a remote resource to a local path.
type Downloader interface {
	Download(ctx context.Context, url, destPath string) (int64, error)
}
