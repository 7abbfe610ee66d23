// Package app wires configuration into the long-lived collaborators shared
// by every interview: the reasoning client, the session store, the plan
// lookup and the speech providers.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-engine/internal/config"
	"github.com/lexiqai/interview-engine/internal/envelope"
	"github.com/lexiqai/interview-engine/internal/gateway"
	"github.com/lexiqai/interview-engine/internal/observability"
	"github.com/lexiqai/interview-engine/internal/plan"
	"github.com/lexiqai/interview-engine/internal/reasoning"
	"github.com/lexiqai/interview-engine/internal/resilience"
	"github.com/lexiqai/interview-engine/internal/speech"
	"github.com/lexiqai/interview-engine/internal/store"
	"github.com/lexiqai/interview-engine/internal/stt"
	"github.com/lexiqai/interview-engine/internal/tts"
)

// Components are built once per process
type Components struct {
	Config      *config.Config
	Codec       *envelope.Codec
	Reasoning   reasoning.Client
	Store       store.Store
	Plans       plan.EntitlementLookup
	Synthesizer speech.Synthesizer

	redis *redis.Client
}

// New builds every component named by cfg
func New(cfg *config.Config, logger zerolog.Logger) (*Components, error) {
	codec, err := envelope.NewCodec(cfg.EnvelopeSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create envelope codec: %w", err)
	}

	c := &Components{Config: cfg, Codec: codec}

	c.Reasoning, err = NewReasoningClient(cfg, codec)
	if err != nil {
		return nil, err
	}

	if err := c.buildStore(); err != nil {
		c.Reasoning.Close()
		return nil, err
	}

	c.Plans = newPlanLookup(cfg, logger)

	if cfg.CartesiaAPIKey != "" {
		c.Synthesizer = tts.NewCartesiaClient(cfg)
	} else {
		logger.Info().Msg("CARTESIA_API_KEY not set, replies are delivered as text only")
	}

	return c, nil
}

// NewReasoningClient creates the reasoning transport named by cfg
func NewReasoningClient(cfg *config.Config, codec *envelope.Codec) (reasoning.Client, error) {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond

	opts := reasoning.Options{
		Timeout: time.Duration(cfg.ReasoningTimeout) * time.Second,
		Retry:   retry,
		Breaker: resilience.NewCircuitBreaker(
			"reasoning",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}

	switch cfg.ReasoningTransport {
	case "grpc":
		client, err := reasoning.NewGRPCClient(cfg.ReasoningURL, codec, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return reasoning.NewHTTPClient(cfg.ReasoningURL, codec, opts), nil
	}
}

func (c *Components) buildStore() error {
	cfg := c.Config

	var err error
	switch store.StoreType(cfg.StoreDriver) {
	case store.StoreTypeRedis:
		opts, perr := redis.ParseURL(cfg.RedisURL)
		if perr != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", perr)
		}
		c.redis = redis.NewClient(opts)
		c.Store, err = store.NewStore(store.StoreTypeRedis,
			store.WithRedisClient(c.redis),
			store.WithRedisTTL(time.Duration(cfg.RedisTTL)*time.Second),
		)

	case store.StoreTypeSupabase:
		client, cerr := store.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseKey)
		if cerr != nil {
			return cerr
		}
		c.Store, err = store.NewStore(store.StoreTypeSupabase, store.WithSupabase(client, "interviews"))

	default:
		c.Store, err = store.NewStore(store.StoreTypeMemory)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s store: %w", cfg.StoreDriver, err)
	}
	return nil
}

func newPlanLookup(cfg *config.Config, logger zerolog.Logger) plan.EntitlementLookup {
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		lookup, err := plan.NewSupabaseLookup(cfg.SupabaseURL, cfg.SupabaseKey)
		if err == nil {
			return lookup
		}
		logger.Warn().Err(err).Msg("Failed to create plan lookup, falling back to the default limit")
	}
	return plan.Static{Limits: plan.Limits{MaxMinutesPerInterview: cfg.DefaultMaxMinutes}}
}

// GatewayOptions returns the WebSocket handler configuration
func (c *Components) GatewayOptions() gateway.Options {
	cfg := c.Config

	opts := gateway.Options{
		Reasoning:        c.Reasoning,
		Store:            c.Store,
		Plans:            c.Plans,
		Synthesizer:      c.Synthesizer,
		TickInterval:     time.Duration(cfg.TickInterval) * time.Millisecond,
		SilenceThreshold: time.Duration(cfg.SilenceThreshold) * time.Second,
		WrapupThreshold:  time.Duration(cfg.WrapupThreshold) * time.Second,
		Debounce:         time.Duration(cfg.UtteranceDebounce) * time.Millisecond,
		MaxMinutes:       cfg.MaxInterviewMinutes,
		FeedbackBaseURL:  cfg.AppBaseURL,
		AllowedOrigins:   cfg.AllowedOrigins,
	}
	if cfg.DeepgramAPIKey != "" {
		opts.NewCapture = func(logger zerolog.Logger) speech.Capture {
			return stt.NewDeepgramCapture(cfg, cfg.AudioSampleRate, logger)
		}
	}
	return opts
}

// ReadinessChecks returns the dependency probes for /ready
func (c *Components) ReadinessChecks() map[string]observability.HealthCheckFunc {
	checks := map[string]observability.HealthCheckFunc{
		"reasoning": c.Reasoning.HealthCheck,
	}
	if c.redis != nil {
		checks["redis"] = func(ctx context.Context) (bool, error) {
			if err := c.redis.Ping(ctx).Err(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return checks
}

// Close releases network clients
func (c *Components) Close() error {
	var firstErr error
	if err := c.Reasoning.Close(); err != nil {
		firstErr = err
	}
	if err := c.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
