package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Speech-to-text provider names accepted by STT_PROVIDER
const (
	ProviderDeepgram = "deepgram"
	ProviderMistral  = "mistral"
)

// Storage backends accepted by STORAGE_BACKEND
const (
	StorageLocal    = "local"
	StoragePostgres = "postgres"
)

// Config holds all configuration for the meeting recorder
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:"9090"`

	// Public base URL for this service, used only for logging the websocket endpoint.
	PublicURL string `envconfig:"PUBLIC_URL" default:""`

	// Speech-to-text provider selection
	STTProvider string `envconfig:"STT_PROVIDER" default:"deepgram"` // deepgram, mistral

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"pt-BR"`

	// Mistral Voxtral configuration
	MistralAPIKey string `envconfig:"MISTRAL_API_KEY"`
	MistralModel  string `envconfig:"MISTRAL_MODEL" default:"voxtral-mini-latest"`

	// Interim captions through the Deepgram streaming API while recording
	LiveCaptionsEnabled bool `envconfig:"LIVE_CAPTIONS_ENABLED" default:"false"`

	// Recording configuration
	MaxAudioBytes                int  `envconfig:"MAX_AUDIO_BYTES" default:"10485760"` // Hard cap on buffered audio (10 MB)
	ChunkIntervalMs              int  `envconfig:"CHUNK_INTERVAL_MS" default:"1000"`   // Recorder timeslice
	SampleRate                   int  `envconfig:"SAMPLE_RATE" default:"48000"`        // Capture sample rate
	OutputSampleRate             int  `envconfig:"OUTPUT_SAMPLE_RATE" default:"16000"` // Encoded sample rate
	SystemAudioEnabled           bool `envconfig:"SYSTEM_AUDIO_ENABLED" default:"false"`
	SpeakerIdentificationEnabled bool `envconfig:"SPEAKER_IDENTIFICATION_ENABLED" default:"true"`

	// Resilience configuration
	RetryMaxAttempts           int     `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Total persistence attempts
	RetryInitialBackoff        int     `envconfig:"RETRY_INITIAL_BACKOFF" default:"1000"`       // Initial backoff in milliseconds
	RetryBackoffFactor         float64 `envconfig:"RETRY_BACKOFF_FACTOR" default:"2.0"`         // Exponential growth factor
	CircuitBreakerMaxFailures  int     `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int     `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	ReconnectMaxAttempts       int     `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int     `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Durable storage
	StorageBackend  string `envconfig:"STORAGE_BACKEND" default:"local"` // local, postgres
	AudioStorageDir string `envconfig:"AUDIO_STORAGE_DIR" default:"./data"`
	DatabaseURL     string `envconfig:"DATABASE_URL" default:""`

	// Transcription quota
	RedisURL        string `envconfig:"REDIS_URL" default:""`
	QuotaDailyLimit int    `envconfig:"QUOTA_DAILY_LIMIT" default:"0"` // 0 disables the quota
	QuotaKeyPrefix  string `envconfig:"QUOTA_KEY_PREFIX" default:"quota:transcriptions"`

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

// Validate checks enumerations and limits. Provider keys are checked when a
// recording starts, not here.
func (c *Config) Validate() error {
	switch c.STTProvider {
	case ProviderDeepgram, ProviderMistral:
	default:
		return fmt.Errorf("STT_PROVIDER must be %q or %q, got %q", ProviderDeepgram, ProviderMistral, c.STTProvider)
	}

	switch c.StorageBackend {
	case StorageLocal:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageLocal, StoragePostgres, c.StorageBackend)
	}

	if c.MaxAudioBytes <= 0 {
		return fmt.Errorf("MAX_AUDIO_BYTES must be positive")
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive")
	}
	if c.SampleRate <= 0 || c.OutputSampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE and OUTPUT_SAMPLE_RATE must be positive")
	}
	if c.QuotaDailyLimit < 0 {
		return fmt.Errorf("QUOTA_DAILY_LIMIT must not be negative")
	}
	return nil
}

// ProviderAPIKey returns the API key of the active speech-to-text provider
func (c *Config) ProviderAPIKey() string {
	if c.STTProvider == ProviderMistral {
		return c.MistralAPIKey
	}
	return c.DeepgramAPIKey
}

// IsPlaceholderKey reports whether key is empty or an obvious template value
// copied from a sample .env file.
func IsPlaceholderKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return true
	}
	if strings.HasPrefix(k, "<") && strings.HasSuffix(k, ">") {
		return true
	}
	switch k {
	case "your-api-key", "your_api_key", "changeme", "change-me", "todo", "placeholder":
		return true
	}
	return strings.Trim(k, "x") == ""
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
