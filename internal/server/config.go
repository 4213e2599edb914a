// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// TimeReplyMode selects who receives the answer to a "get time" request.
type TimeReplyMode string

const (
	// TimeReplyBroadcast sends the time-of-day to every registered connection.
	TimeReplyBroadcast TimeReplyMode = "broadcast"
	// TimeReplySender sends the time-of-day only to the requesting connection.
	TimeReplySender TimeReplyMode = "sender"
)

const (
	defaultAddr            = ":8080"
	defaultBufferSize      = 50000
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
// A Burst of zero disables rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay configuration.
type Config struct {
	// Addr is the TCP listen address of the relay.
	Addr string
	// WebSocketAddr enables the WebSocket bridge when non-empty.
	WebSocketAddr  string
	AllowedOrigins []string
	// BufferSize bounds a single read on one connection.
	BufferSize   int
	WriteTimeout time.Duration
	// IdleTimeout closes a connection that sends nothing for this long. Zero waits forever.
	IdleTimeout     time.Duration
	TimeReplyMode   TimeReplyMode
	RateLimit       RateLimitConfig
	ShutdownTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		Addr: defaultAddr,
		AllowedOrigins: []string{
			"http://localhost:8080",
			"http://localhost:8081",
		},
		BufferSize:      defaultBufferSize,
		WriteTimeout:    defaultWriteTimeout,
		TimeReplyMode:   TimeReplyBroadcast,
		ShutdownTimeout: defaultShutdownTimeout,
		RateLimit: RateLimitConfig{
			RefillInterval: time.Second,
		},
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// sanitize returns a copy of cfg where every invalid value is replaced by its default.
func (cfg Config) sanitize() Config {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	if cfg.IdleTimeout < 0 {
		cfg.IdleTimeout = 0
	}

	switch cfg.TimeReplyMode {
	case TimeReplyBroadcast, TimeReplySender:
	default:
		cfg.TimeReplyMode = TimeReplyBroadcast
	}

	if cfg.RateLimit.Burst < 0 {
		cfg.RateLimit.Burst = 0
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set or invalid.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr := os.Getenv("RELAY_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	if wsAddr := os.Getenv("RELAY_WS_ADDR"); wsAddr != "" {
		cfg.WebSocketAddr = wsAddr
	}

	if origins := os.Getenv("RELAY_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if size := os.Getenv("RELAY_BUFFER_SIZE"); size != "" {
		cfg.BufferSize = parseIntValue(size, cfg.BufferSize)
	}

	if timeout := os.Getenv("RELAY_WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseDuration(timeout, cfg.WriteTimeout)
	}

	if timeout := os.Getenv("RELAY_IDLE_TIMEOUT"); timeout != "" {
		cfg.IdleTimeout = parseDuration(timeout, cfg.IdleTimeout)
	}

	if mode := os.Getenv("RELAY_TIME_REPLY"); mode != "" {
		cfg.TimeReplyMode = TimeReplyMode(strings.ToLower(strings.TrimSpace(mode)))
	}

	if burst := os.Getenv("RELAY_RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RELAY_RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseDuration(interval, cfg.RateLimit.RefillInterval)
	}

	if timeout := os.Getenv("RELAY_SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseDuration(timeout, cfg.ShutdownTimeout)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts Go duration strings ("1m30s") and bare integers, read as seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return d
	}
	return defaultValue
}
