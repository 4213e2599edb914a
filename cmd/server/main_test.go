package main

import (
	"bytes"
	"flag"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relay/internal/server"
)

func TestParseFlagsOverridesEnvironment(t *testing.T) {
	t.Setenv("RELAY_ADDR", ":7000")
	t.Setenv("LOG_LEVEL", "debug")
	cfg := server.NewConfigFromEnv()

	opts, err := parseFlags([]string{
		"-ws-addr", ":7001",
		"-time-reply", "SENDER",
		"-rate-limit-burst", "3",
		"-allowed-origins", "http://a.example,http://b.example",
		"-console=false",
	}, cfg)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr, "unset flags keep the environment value")
	assert.Equal(t, ":7001", cfg.WebSocketAddr)
	assert.Equal(t, server.TimeReplySender, cfg.TimeReplyMode)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "debug", opts.logLevel)
	assert.False(t, opts.console)
}

func TestParseFlagsHelp(t *testing.T) {
	_, err := parseFlags([]string{"-help"}, server.NewConfig())
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(io.Discard, "loud", "text")
	assert.Error(t, err)

	_, err = newLogger(io.Discard, "info", "xml")
	assert.Error(t, err)
}

func TestWaitForConsole(t *testing.T) {
	var stopped atomic.Bool
	waitForConsole(strings.NewReader("\n"), func() { stopped.Store(true) })
	assert.True(t, stopped.Load(), "a line on the console stops the relay")

	stopped.Store(false)
	waitForConsole(strings.NewReader(""), func() { stopped.Store(true) })
	assert.False(t, stopped.Load(), "end of input alone keeps the relay running")
}

func TestRunStopsOnConsoleLine(t *testing.T) {
	console, enter := io.Pipe()
	var out bytes.Buffer

	done := make(chan error, 1)
	go func() {
		done <- run([]string{"-addr", "127.0.0.1:0", "-log-level", "error"}, console, &out)
	}()

	go func() {
		_, _ = enter.Write([]byte("\n"))
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop after a console line")
	}
	assert.Contains(t, out.String(), "Relay listening on 127.0.0.1:")
}
