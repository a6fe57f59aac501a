package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/observability"
)

// maxBody bounds how much of a feed response is read.
const maxBody = 32 << 20

// Client fetches a JSON feed document over HTTP.
type Client struct {
	feed       string
	url        string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client for the named feed at url.
func NewClient(feed, url string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		feed: feed,
		url:  url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch downloads the feed document.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	body, err := c.do(ctx)
	c.metrics.FeedFetchDuration.WithLabelValues(c.feed).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FeedFetches.WithLabelValues(c.feed, "error").Inc()
		return nil, err
	}
	c.metrics.FeedFetches.WithLabelValues(c.feed, "success").Inc()
	c.logger.Debug("feed fetched", "feed", c.feed, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

func (c *Client) do(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s feed request: %w", c.feed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s feed error: status %d: %s", c.feed, resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s feed: %w", c.feed, err)
	}
	return body, nil
}
