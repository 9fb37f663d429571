package quota

import (
	"context"
	"testing"
	"time"

	"github.com/lexiqai/meeting-recorder/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlimited(t *testing.T) {
	assert.True(t, Unlimited.Allow(context.Background()))
}

func TestGateFunc(t *testing.T) {
	calls := 0
	g := GateFunc(func(context.Context) bool {
		calls++
		return false
	})
	assert.False(t, g.Allow(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestRedisGate_Key(t *testing.T) {
	g := NewRedisGate(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "quota:transcriptions", 5, zerolog.Nop())
	defer g.Close()

	day := time.Date(2026, 3, 2, 23, 30, 0, 0, time.FixedZone("BRT", -3*3600))
	assert.Equal(t, "quota:transcriptions:2026-03-03", g.Key(day))
}

func TestRedisGate_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	g := NewRedisGate(client, "quota", 1, zerolog.Nop())
	defer g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.True(t, g.Allow(ctx))
	assert.Error(t, g.Ping(ctx))

	var r Releaser = g
	assert.NotPanics(t, func() { r.Release(ctx) })
}

func TestNewFromURL(t *testing.T) {
	g, err := NewFromURL("redis://localhost:6379/2", "quota", 10, zerolog.Nop())
	require.NoError(t, err)
	defer g.Close()

	_, err = NewFromURL("http://nope", "quota", 10, zerolog.Nop())
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	g, err := FromConfig(&config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = FromConfig(&config.Config{QuotaDailyLimit: 3}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, g, "no Redis URL disables the quota")

	g, err = FromConfig(&config.Config{QuotaDailyLimit: 3, RedisURL: "redis://localhost:6379/0", QuotaKeyPrefix: "q"}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, g)
	defer g.Close()
	assert.Equal(t, int64(3), g.limit)
}
