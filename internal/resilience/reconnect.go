package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ReconnectConfig holds configuration for reconnection logic
type ReconnectConfig struct {
	MaxAttempts int           // Maximum number of reconnection attempts
	Backoff     time.Duration // Backoff duration between attempts
	Multiplier  float64       // Backoff multiplier for exponential backoff
	MaxBackoff  time.Duration // Maximum backoff duration
}

// DefaultReconnectConfig returns a default reconnection configuration
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxAttempts: 5,
		Backoff:     1 * time.Second,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}
}

// ReconnectFunc is a function that attempts to reconnect
type ReconnectFunc func() error

// Reconnect attempts to reconnect with exponential backoff until ctx is done
func Reconnect(ctx context.Context, fn ReconnectFunc, config *ReconnectConfig, logger zerolog.Logger) error {
	if config == nil {
		config = DefaultReconnectConfig()
	}

	retry := &RetryConfig{
		MaxAttempts:       config.MaxAttempts,
		InitialBackoff:    config.Backoff,
		MaxBackoff:        config.MaxBackoff,
		BackoffMultiplier: config.Multiplier,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", config.MaxAttempts).
				Dur("backoff", delay).
				Msg("Reconnection attempt failed")
		},
	}

	if err := Retry(ctx, RetryableFunc(fn), retry, nil); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to reconnect after %d attempts: %w", config.MaxAttempts, err)
	}
	logger.Info().Msg("Reconnection successful")
	return nil
}
