// Package quota decides whether another transcription may be persisted.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/lexiqai/meeting-recorder/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Gate is consulted before a transcript is persisted
type Gate interface {
	Allow(ctx context.Context) bool
}

// Releaser is implemented by gates that can hand back an allowance
// when the transcription it was granted for fails
type Releaser interface {
	Release(ctx context.Context)
}

// GateFunc adapts a function to Gate
type GateFunc func(ctx context.Context) bool

func (f GateFunc) Allow(ctx context.Context) bool { return f(ctx) }

// Unlimited allows everything
var Unlimited Gate = GateFunc(func(context.Context) bool { return true })

// RedisGate enforces a daily transcription limit with a Redis counter
type RedisGate struct {
	client *redis.Client
	prefix string
	limit  int64
	now    func() time.Time
	logger zerolog.Logger
}

// NewRedisGate creates a gate allowing limit transcriptions per UTC day
func NewRedisGate(client *redis.Client, prefix string, limit int64, logger zerolog.Logger) *RedisGate {
	return &RedisGate{
		client: client,
		prefix: prefix,
		limit:  limit,
		now:    time.Now,
		logger: logger.With().Str("component", "quota").Logger(),
	}
}

// NewFromURL parses a redis:// URL and creates the gate
func NewFromURL(redisURL, prefix string, limit int64, logger zerolog.Logger) (*RedisGate, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	return NewRedisGate(redis.NewClient(opts), prefix, limit, logger), nil
}

// FromConfig returns the Redis gate when both QUOTA_DAILY_LIMIT and
// REDIS_URL are set. It returns nil when the quota is disabled.
func FromConfig(cfg *config.Config, logger zerolog.Logger) (*RedisGate, error) {
	if cfg.QuotaDailyLimit <= 0 {
		return nil, nil
	}
	if cfg.RedisURL == "" {
		logger.Warn().Int("limit", cfg.QuotaDailyLimit).Msg("QUOTA_DAILY_LIMIT set without REDIS_URL, quota disabled")
		return nil, nil
	}
	return NewFromURL(cfg.RedisURL, cfg.QuotaKeyPrefix, int64(cfg.QuotaDailyLimit), logger)
}

// Key returns the counter key for the day containing t
func (g *RedisGate) Key(t time.Time) string {
	return g.prefix + ":" + t.UTC().Format("2006-01-02")
}

// Allow counts one transcription against today's limit. When Redis is
// unavailable the gate fails open.
func (g *RedisGate) Allow(ctx context.Context) bool {
	key := g.Key(g.now())

	count, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("Quota check failed, allowing transcription")
		return true
	}
	if count == 1 {
		if err := g.client.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
			g.logger.Warn().Err(err).Str("key", key).Msg("Failed to set quota expiry")
		}
	}

	if count > g.limit {
		// Denied attempts do not consume quota
		if err := g.client.Decr(ctx, key).Err(); err != nil {
			g.logger.Warn().Err(err).Str("key", key).Msg("Failed to release quota")
		}
		g.logger.Warn().Int64("count", count).Int64("limit", g.limit).Msg("Daily transcription quota exceeded")
		return false
	}
	return true
}

// Release returns one transcription to today's allowance. A release that
// would take the counter below zero, as after a day rollover, is ignored.
func (g *RedisGate) Release(ctx context.Context) {
	key := g.Key(g.now())

	count, err := g.client.Decr(ctx, key).Result()
	if err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("Failed to release quota")
		return
	}
	if count < 0 {
		if err := g.client.Del(ctx, key).Err(); err != nil {
			g.logger.Warn().Err(err).Str("key", key).Msg("Failed to reset quota counter")
		}
	}
}

// Ping checks Redis connectivity
func (g *RedisGate) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (g *RedisGate) Close() error {
	return g.client.Close()
}
