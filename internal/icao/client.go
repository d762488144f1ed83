// Package icao is a client for the upstream notice API.
package icao

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/renderinc/notice-cache/internal/notice"
)

// DefaultTimeout bounds a single upstream request
const DefaultTimeout = 30 * time.Second

// Client is an upstream notice API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new upstream API client
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchNotices fetches every current notice for locations in one request.
// Any failure is returned as a *notice.UpstreamError.
func (c *Client) FetchNotices(ctx context.Context, locations []string) ([]notice.Raw, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &notice.UpstreamError{Err: fmt.Errorf("parse base url: %w", err)}
	}

	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")
	q.Set("criticality", "")
	q.Set("locations", strings.Join(locations, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &notice.UpstreamError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &notice.UpstreamError{Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &notice.UpstreamError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &notice.UpstreamError{StatusCode: resp.StatusCode}
	}

	var raws []notice.Raw
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, &notice.UpstreamError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	return raws, nil
}
