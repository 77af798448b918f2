// Package httpclient checks that the map editor answers over plain HTTP
// before a browser is spent on it.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/mapcheck/internal/models"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// CheckReachable issues a GET for rawURL. Transport failures, bad URLs and
// 5xx answers are a *models.NavigationError; any other status counts as up.
func CheckReachable(ctx context.Context, client *http.Client, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("not an absolute URL")
		}
		return &models.NavigationError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &models.NavigationError{URL: rawURL, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return &models.NavigationError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= http.StatusInternalServerError {
		return &models.NavigationError{URL: rawURL, Err: fmt.Errorf("server answered %s", resp.Status)}
	}
	return nil
}
