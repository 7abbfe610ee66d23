package reasoning

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/lexiqai/interview-engine/internal/envelope"
	"github.com/lexiqai/interview-engine/internal/observability"
	"github.com/lexiqai/interview-engine/internal/resilience"
)

// ReplyMethod is the full gRPC method name of the reply RPC
const ReplyMethod = "/interview.v1.Reasoning/Reply"

// EnvelopeCodec is a gRPC codec whose wire format is a sealed JSON envelope.
// Client and server must share the envelope secret.
type EnvelopeCodec struct {
	Codec *envelope.Codec
}

// Name implements encoding.Codec
func (EnvelopeCodec) Name() string { return "envelope" }

// Marshal implements encoding.Codec
func (c EnvelopeCodec) Marshal(v any) ([]byte, error) { return c.Codec.Marshal(v) }

// Unmarshal implements encoding.Codec
func (c EnvelopeCodec) Unmarshal(data []byte, v any) error { return c.Codec.Unmarshal(data, v) }

// GRPCClient calls the reasoning service over a long-lived gRPC connection
type GRPCClient struct {
	target  string
	codec   EnvelopeCodec
	timeout time.Duration
	retry   *resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	dialOpt []grpc.DialOption

	mu   sync.RWMutex
	conn *grpc.ClientConn
}

// NewGRPCClient creates a gRPC reasoning client. The connection is
// established lazily by gRPC on the first call.
func NewGRPCClient(target string, codec *envelope.Codec, opts Options, dialOpts ...grpc.DialOption) (*GRPCClient, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("reasoning", 5, 30*time.Second)
	}
	trackBreaker(opts.Breaker)

	c := &GRPCClient{
		target:  target,
		codec:   EnvelopeCodec{Codec: codec},
		timeout: opts.Timeout,
		retry:   opts.Retry,
		breaker: opts.Breaker,
		dialOpt: dialOpts,
	}
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to reasoning service: %w", err)
	}
	return c, nil
}

func (c *GRPCClient) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		// Keepalive settings for long-lived connections
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, c.dialOpt...)

	conn, err := grpc.NewClient(c.target, opts...)
	if err != nil {
		return fmt.Errorf("failed to dial reasoning service at %s: %w", c.target, err)
	}
	c.conn = conn
	return nil
}

// Reply implements Client
func (c *GRPCClient) Reply(ctx context.Context, req Request) (Response, error) {
	if req.History == nil {
		req.History = []Turn{}
	}

	var resp Response
	err := c.breaker.Call(func() error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			if err := c.connect(); err != nil {
				return resilience.NewRetryableError(err)
			}

			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return conn.Invoke(callCtx, ReplyMethod, &req, &resp, grpc.ForceCodec(c.codec))
		}, c.retry, isRetryableRPCError)
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

// HealthCheck uses the standard gRPC health service
func (c *GRPCClient) HealthCheck(ctx context.Context) (bool, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return false, fmt.Errorf("reasoning client is not connected")
	}

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING, nil
}

// Close closes the gRPC connection
func (c *GRPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// isRetryableRPCError retries transport failures but never authentication failures
func isRetryableRPCError(err error) bool {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "authentication failed") || strings.Contains(msg, "malformed envelope") {
		return false
	}
	return resilience.IsRetryableNetworkError(err)
}
