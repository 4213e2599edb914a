package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.WebSocketAddr)
	assert.Equal(t, 50000, cfg.BufferSize)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Zero(t, cfg.IdleTimeout)
	assert.Equal(t, TimeReplyBroadcast, cfg.TimeReplyMode)
	assert.Zero(t, cfg.RateLimit.Burst, "rate limiting is off by default")
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("RELAY_ADDR", "127.0.0.1:9000")
	t.Setenv("RELAY_WS_ADDR", ":9001")
	t.Setenv("RELAY_ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("RELAY_BUFFER_SIZE", "1024")
	t.Setenv("RELAY_WRITE_TIMEOUT", "3")
	t.Setenv("RELAY_IDLE_TIMEOUT", "1m30s")
	t.Setenv("RELAY_TIME_REPLY", "Sender")
	t.Setenv("RELAY_RATE_LIMIT_BURST", "7")
	t.Setenv("RELAY_RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("RELAY_SHUTDOWN_TIMEOUT", "500ms")

	cfg := NewConfigFromEnv()

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, ":9001", cfg.WebSocketAddr)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 1024, cfg.BufferSize)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
	assert.Equal(t, TimeReplySender, cfg.TimeReplyMode)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.ShutdownTimeout)
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("RELAY_BUFFER_SIZE", "lots")
	t.Setenv("RELAY_WRITE_TIMEOUT", "-4")
	t.Setenv("RELAY_RATE_LIMIT_BURST", "-1")

	cfg := NewConfigFromEnv()

	assert.Equal(t, 50000, cfg.BufferSize)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Zero(t, cfg.RateLimit.Burst)
}

func TestConfigSanitize(t *testing.T) {
	cfg := Config{
		BufferSize:    -1,
		IdleTimeout:   -time.Second,
		TimeReplyMode: "shout",
		RateLimit:     RateLimitConfig{Burst: -3},
	}.sanitize()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 50000, cfg.BufferSize)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Zero(t, cfg.IdleTimeout)
	assert.Equal(t, TimeReplyBroadcast, cfg.TimeReplyMode)
	assert.Zero(t, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}
