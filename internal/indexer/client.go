package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodyBytes bounds a single indexer response.
var maxBodyBytes = 32 << 20

// Response is a raw indexer reply.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client queries a Torznab endpoint such as a Jackett indexer.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates an indexer client for the full Torznab API url, e.g.
// http://jackett:9117/api/v2.0/indexers/torrentsir/results/torznab/api.
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("indexer url required")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parse indexer url: %w", err)
	}
	client := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Query sends params to the indexer unchanged. Non-2xx replies are errors.
func (c *Client) Query(ctx context.Context, params url.Values) (*Response, error) {
	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse indexer url: %w", err)
	}
	// Parameters already in the configured url are kept unless the request
	// sets them.
	query := endpoint.Query()
	for k, v := range params {
		query[k] = v
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBodyBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("read indexer response (latency=%v): %w", latency, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("indexer response exceeds %d bytes", maxBodyBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("indexer returned %d (latency=%v): %s", resp.StatusCode, latency, truncate(string(body), 200))
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
