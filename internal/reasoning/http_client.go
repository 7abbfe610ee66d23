package reasoning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/interview-engine/internal/envelope"
	"github.com/lexiqai/interview-engine/internal/observability"
	"github.com/lexiqai/interview-engine/internal/resilience"
)

const maxResponseBytes = 4 << 20

// Options tunes a reasoning transport
type Options struct {
	Timeout time.Duration
	Retry   *resilience.RetryConfig
	Breaker *resilience.CircuitBreaker
}

// HTTPClient posts sealed requests to <baseURL>/v1/reply
type HTTPClient struct {
	baseURL    string
	codec      *envelope.Codec
	httpClient *http.Client
	retry      *resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

// NewHTTPClient creates an HTTP reasoning client
func NewHTTPClient(baseURL string, codec *envelope.Codec, opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("reasoning", 5, 30*time.Second)
	}
	trackBreaker(opts.Breaker)

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		codec:   codec,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:   opts.Retry,
		breaker: opts.Breaker,
	}
}

// Reply seals req, posts it and opens the sealed response.
// Transport and decode failures are returned; they never become an empty reply.
func (c *HTTPClient) Reply(ctx context.Context, req Request) (Response, error) {
	if req.History == nil {
		req.History = []Turn{}
	}

	body, err := c.codec.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to seal request: %w", err)
	}

	var resp Response
	err = c.breaker.Call(func() error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			raw, err := c.post(ctx, body)
			if err != nil {
				return err
			}
			if err := c.codec.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("failed to open response: %w", err)
			}
			return nil
		}, c.retry, resilience.IsRetryableNetworkError)
	})
	if err != nil {
		observability.IncrementCircuitBreakerFailures(c.breaker.Name())
		return Response{}, fmt.Errorf("reasoning reply: %w", err)
	}

	if strings.TrimSpace(resp.Reply) == "" {
		return Response{}, ErrEmptyReply
	}
	return resp, nil
}

func (c *HTTPClient) post(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/reply", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, resilience.NewRetryableError(fmt.Errorf("failed to read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("reasoning service returned status %d", httpResp.StatusCode)
		if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
			return nil, resilience.NewRetryableError(statusErr)
		}
		return nil, statusErr
	}

	return raw, nil
}

// HealthCheck probes <baseURL>/healthz
func (c *HTTPClient) HealthCheck(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}
	resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func trackBreaker(cb *resilience.CircuitBreaker) {
	observability.UpdateCircuitBreakerState(cb.Name(), int(cb.GetState()))
	cb.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
	})
}
