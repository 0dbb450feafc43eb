package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/veralix/server/internal/utils/metrics"
)

// httpResult is the raw response of a gateway call.
type httpResult struct {
	status int
	body   []byte
}

// httpClient wraps outbound gateway requests with a circuit breaker
// and per-operation duration metrics.
type httpClient struct {
	gateway string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[httpResult]
	metrics *metrics.Metrics
}

func newHTTPClient(gateway, baseURL string, timeout time.Duration, m *metrics.Metrics) *httpClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        gateway,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &httpClient{
		gateway: gateway,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[httpResult](settings),
		metrics: m,
	}
}

// do performs a gateway request through the circuit breaker.
// A non-nil reqBody is JSON-encoded. Non-2xx responses count as
// breaker failures and return an error carrying the response body.
func (c *httpClient) do(ctx context.Context, operation, method, path string, headers map[string]string, reqBody any) (httpResult, error) {
	start := time.Now()
	result, err := c.breaker.Execute(func() (httpResult, error) {
		var body io.Reader
		if reqBody != nil {
			data, err := json.Marshal(reqBody)
			if err != nil {
				return httpResult{}, fmt.Errorf("marshal request: %w", err)
			}
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return httpResult{}, fmt.Errorf("build request: %w", err)
		}
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return httpResult{}, fmt.Errorf("%s %s: %w", c.gateway, operation, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return httpResult{}, fmt.Errorf("read response: %w", err)
		}

		result := httpResult{status: resp.StatusCode, body: respBody}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return result, fmt.Errorf("%s %s: status %d: %s", c.gateway, operation, resp.StatusCode, truncate(respBody, 512))
		}
		return result, nil
	})
	c.metrics.RecordGatewayRequest(c.gateway, operation, time.Since(start))
	return result, err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
