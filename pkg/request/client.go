// Package request provides a small HTTP client with retries and per-provider
// exponential backoff for the external data providers the station talks to.
package request

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client is an HTTP GET client with bounded retries.
type Client struct {
	httpClient *http.Client
	backoff    *ProviderBackoff
	maxRetries int
}

// NewClient creates a request client. Timeout applies per attempt.
func NewClient(timeout time.Duration, maxRetries int, backoff *ProviderBackoff) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		backoff:    backoff,
		maxRetries: maxRetries,
	}
}

// Get fetches a URL, retrying transient failures. The provider name keys the
// backoff state so one flaky endpoint does not slow down the others.
func (c *Client) Get(ctx context.Context, provider, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.backoff != nil {
			c.backoff.Wait(provider)
		}

		body, err := c.doGet(ctx, url)
		if err == nil {
			if c.backoff != nil {
				c.backoff.RecordSuccess(provider)
			}
			return body, nil
		}
		lastErr = err
		if c.backoff != nil {
			c.backoff.RecordFailure(provider)
		}
		slog.Debug("request failed", "provider", provider, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%s: all %d attempts failed: %w", provider, c.maxRetries+1, lastErr)
}

func (c *Client) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "aetherfm/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
