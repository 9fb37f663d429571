package config

import (
	"os"
	"testing"
)

func clearEnv() {
	for _, k := range []string{
		"STT_PROVIDER", "DEEPGRAM_API_KEY", "MISTRAL_API_KEY", "STORAGE_BACKEND",
		"DATABASE_URL", "MAX_AUDIO_BYTES", "LOG_LEVEL", "QUOTA_DAILY_LIMIT",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	clearEnv()
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	defer os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
	if cfg.ProviderAPIKey() != "test-deepgram-key" {
		t.Errorf("Expected ProviderAPIKey to return the Deepgram key, got '%s'", cfg.ProviderAPIKey())
	}
}

func TestLoad_MissingKeyIsNotFatal(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected missing provider key to be deferred to recording start, got %v", err)
	}
	if !IsPlaceholderKey(cfg.ProviderAPIKey()) {
		t.Error("Expected empty provider key to be reported as placeholder")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.STTProvider != ProviderDeepgram {
		t.Errorf("Expected default STTProvider 'deepgram', got '%s'", cfg.STTProvider)
	}
	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
	if cfg.DeepgramLanguage != "pt-BR" {
		t.Errorf("Expected default DeepgramLanguage 'pt-BR', got '%s'", cfg.DeepgramLanguage)
	}
	if cfg.MaxAudioBytes != 10*1024*1024 {
		t.Errorf("Expected default MaxAudioBytes 10485760, got %d", cfg.MaxAudioBytes)
	}
	if cfg.ChunkIntervalMs != 1000 {
		t.Errorf("Expected default ChunkIntervalMs 1000, got %d", cfg.ChunkIntervalMs)
	}
	if !cfg.SpeakerIdentificationEnabled {
		t.Error("Expected speaker identification to be enabled by default")
	}
	if cfg.StorageBackend != StorageLocal {
		t.Errorf("Expected default StorageBackend 'local', got '%s'", cfg.StorageBackend)
	}
}

func TestLoad_InvalidProvider(t *testing.T) {
	clearEnv()
	os.Setenv("STT_PROVIDER", "whisper")
	defer os.Unsetenv("STT_PROVIDER")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown STT_PROVIDER")
	}
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	clearEnv()
	os.Setenv("STORAGE_BACKEND", "postgres")
	defer os.Unsetenv("STORAGE_BACKEND")

	if _, err := Load(); err == nil {
		t.Error("Expected error when DATABASE_URL is missing for postgres backend")
	}
}

func TestLoadFromEnv_MistralKey(t *testing.T) {
	clearEnv()
	os.Setenv("STT_PROVIDER", "mistral")
	os.Setenv("MISTRAL_API_KEY", "test-mistral-key")
	defer os.Unsetenv("STT_PROVIDER")
	defer os.Unsetenv("MISTRAL_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.ProviderAPIKey() != "test-mistral-key" {
		t.Errorf("Expected Mistral key, got '%s'", cfg.ProviderAPIKey())
	}
}

func TestIsPlaceholderKey(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"", true},
		{"   ", true},
		{"your-api-key", true},
		{"<DEEPGRAM_API_KEY>", true},
		{"xxxxxxxx", true},
		{"CHANGEME", true},
		{"3f9a1c0e7b", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsPlaceholderKey(tt.key); got != tt.expected {
				t.Errorf("IsPlaceholderKey(%q) = %v, expected %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("Expected default RetryMaxAttempts 3, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryInitialBackoff != 1000 {
		t.Errorf("Expected default RetryInitialBackoff 1000, got %d", cfg.RetryInitialBackoff)
	}
	if cfg.RetryBackoffFactor != 2.0 {
		t.Errorf("Expected default RetryBackoffFactor 2.0, got %f", cfg.RetryBackoffFactor)
	}
	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}
	if cfg.ReconnectMaxAttempts != 5 {
		t.Errorf("Expected default ReconnectMaxAttempts 5, got %d", cfg.ReconnectMaxAttempts)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
