package platform

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HTTPClient posts JSON with retries and exponential backoff on transport
// errors and 5xx responses.
type HTTPClient struct {
	Client  *http.Client
	Retries int
	Timeout time.Duration
	Backoff time.Duration
	Logger  *slog.Logger
}

// NewHTTPClient returns a client making retries+1 attempts. Negative
// retries are treated as zero.
func NewHTTPClient(retries int, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		Client: &http.Client{
			Timeout: timeout,
		},
		Retries: max(0, retries),
		Timeout: timeout,
		Backoff: 200 * time.Millisecond,
		Logger:  slog.Default(),
	}
}

// PostJSON sends body to url. The caller owns the returned response body.
// The last 5xx response is returned without error once retries run out.
func (c *HTTPClient) PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var resp *http.Response
	var err error
	retries := max(0, c.Retries)

	for i := 0; i <= retries; i++ {
		req, rErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if rErr != nil {
			return nil, rErr
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err = c.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if i < retries {
			status := 0
			if resp != nil {
				status = resp.StatusCode
				resp.Body.Close()
			}
			c.Logger.Warn("HTTP request failed, retrying", "url", url, "attempt", i+1, "status", status, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<i) * c.Backoff):
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", retries, err)
	}
	return resp, nil
}
