package main

import (
	"flag"
	"os"
	"strings"

	"github.com/Tyrowin/relay/internal/server"
)

type cliOptions struct {
	logLevel  string
	logFormat string
	console   bool
}

// parseFlags overlays command line flags on cfg, which already carries the
// environment configuration.
func parseFlags(args []string, cfg *server.Config) (cliOptions, error) {
	opts := cliOptions{
		logLevel:  envOr("LOG_LEVEL", "info"),
		logFormat: envOr("LOG_FORMAT", "text"),
		console:   true,
	}

	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP listen address")
	fs.StringVar(&cfg.WebSocketAddr, "ws-addr", cfg.WebSocketAddr, "WebSocket bridge listen address (empty disables the bridge)")
	origins := fs.String("allowed-origins", strings.Join(cfg.AllowedOrigins, ","), "Comma separated origins allowed to open WebSocket connections")
	fs.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "Maximum bytes taken by one read")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Deadline for one send to one client")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Disconnect clients silent for this long (0 waits forever)")
	timeReply := fs.String("time-reply", string(cfg.TimeReplyMode), "Recipients of the \"get time\" answer: broadcast or sender")
	fs.IntVar(&cfg.RateLimit.Burst, "rate-limit-burst", cfg.RateLimit.Burst, "Messages a client may send per refill interval (0 disables)")
	fs.DurationVar(&cfg.RateLimit.RefillInterval, "rate-limit-interval", cfg.RateLimit.RefillInterval, "Rate limit refill interval")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Time allowed for connections to close on shutdown")
	fs.StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&opts.logFormat, "log-format", opts.logFormat, "Log format: text or json")
	fs.BoolVar(&opts.console, "console", opts.console, "Stop the relay when a line is entered on stdin")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	cfg.AllowedOrigins = strings.Split(*origins, ",")
	cfg.TimeReplyMode = server.TimeReplyMode(strings.ToLower(*timeReply))
	return opts, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
