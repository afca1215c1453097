// Package httpclient provides the HTTP client used to talk to a running daemon's control API.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stacklok/toolhive-autosave/pkg/versions"
)

const (
	// DefaultTimeout is used when a non-positive timeout is given
	DefaultTimeout = 30 * time.Second

	// maxResponseSize caps control API responses; they are small JSON documents
	maxResponseSize = 1 << 20
)

// ErrResponseTooLarge is returned when a response exceeds the size limit
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// Client performs requests against the control API
type Client interface {
	// Get fetches url and returns the response body
	Get(ctx context.Context, url string) ([]byte, error)

	// Post sends an empty POST to url and returns the response body
	Post(ctx context.Context, url string) ([]byte, error)
}

type defaultClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewDefaultClient creates a client with the given timeout
func NewDefaultClient(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &defaultClient{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "thv-autosave/" + versions.Version,
	}
}

// Get fetches url and returns the response body
func (c *defaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url)
}

// Post sends an empty POST to url and returns the response body
func (c *defaultClient) Post(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url)
}

func (c *defaultClient) do(ctx context.Context, method, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.ContentLength > maxResponseSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, ErrResponseTooLarge
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, NewHTTPError(resp.StatusCode, url, body)
	}

	return body, nil
}
