package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts       int           // Total attempts, including the first
	InitialBackoff    time.Duration // Wait before the second attempt
	MaxBackoff        time.Duration // Cap on any single wait; zero means uncapped
	BackoffMultiplier float64       // Growth factor applied per attempt
	Jitter            bool          // Spread waits by up to ±12.5%

	// OnRetry is called before each wait with the 1-based attempt that failed.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns the configuration used for durable storage writes
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// NewRetryConfig builds a config from the millisecond settings in config.Config
func NewRetryConfig(maxAttempts, initialBackoffMs int, multiplier float64) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    time.Duration(initialBackoffMs) * time.Millisecond,
		BackoffMultiplier: multiplier,
	}
}

func (c *RetryConfig) withDefaults() RetryConfig {
	out := *c
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 1
	}
	if out.BackoffMultiplier <= 0 {
		out.BackoffMultiplier = 2.0
	}
	if out.Sleep == nil {
		out.Sleep = sleepContext
	}
	return out
}

// RetryableFunc is a function that can be retried
type RetryableFunc func() error

// IsRetryableError checks if an error is retryable
type IsRetryableError func(error) bool

// Do runs fn until it succeeds or MaxAttempts is exhausted, waiting
// InitialBackoff * BackoffMultiplier^attempt between attempts. The last error
// is returned unchanged.
func Do[T any](ctx context.Context, config *RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	return DoIf(ctx, config, nil, fn)
}

// DoIf is Do with an optional predicate; errors it rejects are returned
// without further attempts.
func DoIf[T any](ctx context.Context, config *RetryConfig, isRetryable IsRetryableError, fn func(ctx context.Context) (T, error)) (T, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}
	cfg := config.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := backoffFor(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, delay, err)
		}
		if err := cfg.Sleep(ctx, delay); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// Retry executes a function with retry logic
func Retry(ctx context.Context, fn RetryableFunc, config *RetryConfig, isRetryable IsRetryableError) error {
	_, err := DoIf(ctx, config, isRetryable, func(context.Context) (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func backoffFor(cfg RetryConfig, attempt int) time.Duration {
	delay := CalculateBackoff(attempt, cfg.InitialBackoff, cfg.MaxBackoff, cfg.BackoffMultiplier)
	if cfg.Jitter {
		delay += time.Duration(float64(delay) * 0.25 * (rand.Float64() - 0.5))
	}
	return delay
}

// CalculateBackoff calculates the backoff duration for a given zero-based
// attempt. A zero maxBackoff leaves the result uncapped.
func CalculateBackoff(attempt int, initialBackoff time.Duration, maxBackoff time.Duration, multiplier float64) time.Duration {
	backoff := time.Duration(float64(initialBackoff) * math.Pow(multiplier, float64(attempt)))
	if maxBackoff > 0 && backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetryableNetworkError checks if an error is a retryable network error
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if IsRetryable(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, substr := range []string{
		// Connection errors
		"connection refused",
		"connection reset",
		"connection closed",
		"broken pipe",
		"unavailable",
		"network is unreachable",
		"no route to host",
		// Timeouts
		"deadline exceeded",
		"timeout",
		// Resource exhaustion (may be temporary)
		"resource exhausted",
		"too many connections",
		"rate limit",
		"status 429",
		"status 502",
		"status 503",
		"status 504",
	} {
		if strings.Contains(errStr, substr) {
			return true
		}
	}
	return false
}

// RetryableError wraps an error to indicate it's retryable
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable checks if an error is a RetryableError
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
