package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the interview engine service
type Config struct {
	// Server configuration
	Port           string   `envconfig:"PORT" default:"8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:""` // comma separated; empty allows any

	// Base URL of the web app; the finalizer navigates to <base>/interviews/<id>/feedback
	AppBaseURL string `envconfig:"APP_BASE_URL" default:"http://localhost:3000"`

	// Pre-shared secret for the request/response envelope
	EnvelopeSecret string `envconfig:"ENVELOPE_SECRET" required:"true"`

	// Reasoning service endpoint
	ReasoningURL       string `envconfig:"REASONING_URL" required:"true"`
	ReasoningTransport string `envconfig:"REASONING_TRANSPORT" default:"http"` // http, grpc
	ReasoningTimeout   int    `envconfig:"REASONING_TIMEOUT" default:"30"`     // seconds

	// Deepgram STT (optional; when unset the browser streams recognised text instead of audio)
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`
	AudioSampleRate  int    `envconfig:"AUDIO_SAMPLE_RATE" default:"48000"` // rate of the PCM the browser sends

	// Cartesia TTS (optional; when unset replies are delivered as text only)
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"sonic-english"`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`

	// Session store
	StoreDriver string `envconfig:"STORE_DRIVER" default:"memory"` // memory, redis, supabase
	RedisURL    string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	RedisTTL    int    `envconfig:"REDIS_TTL" default:"86400"` // seconds
	SupabaseURL string `envconfig:"SUPABASE_URL" default:""`
	SupabaseKey string `envconfig:"SUPABASE_KEY" default:""`

	// Entitlements; plan lookup goes to Supabase when configured, otherwise the static default applies
	DefaultMaxMinutes int `envconfig:"DEFAULT_MAX_MINUTES" default:"0"` // 0 = unknown (fail open)

	// Session timing
	TickInterval        int `envconfig:"TICK_INTERVAL_MS" default:"1000"`
	SilenceThreshold    int `envconfig:"SILENCE_THRESHOLD" default:"120"`      // seconds of mutual idleness
	WrapupThreshold     int `envconfig:"WRAPUP_THRESHOLD" default:"30"`        // seconds left
	UtteranceDebounce   int `envconfig:"UTTERANCE_DEBOUNCE_MS" default:"1500"` // quiet period before an utterance is complete
	MaxInterviewMinutes int `envconfig:"MAX_INTERVIEW_MINUTES" default:"90"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if c.EnvelopeSecret == "" {
		return fmt.Errorf("ENVELOPE_SECRET is required")
	}
	if c.ReasoningURL == "" {
		return fmt.Errorf("REASONING_URL is required")
	}

	switch c.ReasoningTransport {
	case "http", "grpc":
	default:
		return fmt.Errorf("REASONING_TRANSPORT must be http or grpc, got %q", c.ReasoningTransport)
	}

	switch c.StoreDriver {
	case "memory", "redis":
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required for the supabase store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be memory, redis or supabase, got %q", c.StoreDriver)
	}

	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL_MS must be positive")
	}
	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive")
	}
	if c.MaxInterviewMinutes <= 0 {
		return fmt.Errorf("MAX_INTERVIEW_MINUTES must be positive")
	}

	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
