// Package tts synthesizes interviewer replies with Cartesia.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/interview-engine/internal/audio"
	"github.com/lexiqai/interview-engine/internal/config"
	"github.com/lexiqai/interview-engine/internal/observability"
	"github.com/lexiqai/interview-engine/internal/resilience"
)

const (
	defaultAPIURL   = "https://api.cartesia.ai/tts/bytes"
	cartesiaVersion = "2024-06-10"
	sampleRate      = 24000
)

// CartesiaRequest is the request payload of the bytes endpoint
type CartesiaRequest struct {
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        Voice        `json:"voice"`
	OutputFormat OutputFormat `json:"output_format"`
}

// Voice selects a voice by id
type Voice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

// OutputFormat describes the requested audio encoding
type OutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// CartesiaClient implements speech.Synthesizer. Audio is returned as a
// 24 kHz mono WAV file the browser can play directly.
type CartesiaClient struct {
	apiKey     string
	apiURL     string
	voiceID    string
	modelID    string
	httpClient *http.Client
	retry      *resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

// NewCartesiaClient creates a Cartesia client from config
func NewCartesiaClient(cfg *config.Config) *CartesiaClient {
	breaker := resilience.NewCircuitBreaker(
		"cartesia",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
	})

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond

	return &CartesiaClient{
		apiKey:     cfg.CartesiaAPIKey,
		apiURL:     defaultAPIURL,
		voiceID:    cfg.CartesiaVoiceID,
		modelID:    cfg.CartesiaModelID,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		retry:      retry,
		breaker:    breaker,
	}
}

// WithURL points the client at a different endpoint
func (c *CartesiaClient) WithURL(url string) *CartesiaClient {
	c.apiURL = url
	return c
}

// Synthesize converts text to a WAV file
func (c *CartesiaClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	body, err := json.Marshal(CartesiaRequest{
		ModelID:    c.modelID,
		Transcript: text,
		Voice:      Voice{Mode: "id", ID: c.voiceID},
		OutputFormat: OutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: sampleRate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var pcm []byte
	err = c.breaker.Call(func() error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			pcm, err = c.post(ctx, body)
			return err
		}, c.retry, resilience.IsRetryableNetworkError)
	})
	observability.RecordTTS(err == nil)
	if err != nil {
		observability.IncrementCircuitBreakerFailures(c.breaker.Name())
		return nil, fmt.Errorf("cartesia synthesis: %w", err)
	}

	return audio.EncodeWAV(pcm, sampleRate, 1)
}

func (c *CartesiaClient) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("cartesia API returned status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, resilience.NewRetryableError(statusErr)
		}
		return nil, statusErr
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewRetryableError(fmt.Errorf("failed to read audio: %w", err))
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("cartesia returned empty audio data")
	}
	return pcm, nil
}
