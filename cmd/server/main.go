package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Tyrowin/relay/internal/server"
)

func main() {
	err := run(os.Args[1:], os.Stdin, os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}

func run(args []string, console io.Reader, out io.Writer) error {
	config := server.NewConfigFromEnv()
	opts, err := parseFlags(args, config)
	if err != nil {
		return err
	}

	logger, err := newLogger(out, opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	fmt.Fprintln(out, "Setting up relay server...")

	relay, err := server.New(config, server.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := relay.Listen(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Relay listening on %s\n", relay.Addr())
	if ip, err := localIPv4(); err == nil {
		fmt.Fprintf(out, "IPv4 of the host is: %s\n", ip)
	} else {
		logger.Warn("Host IPv4 lookup failed", "error", err)
	}
	if opts.console {
		fmt.Fprintln(out, "Press Enter to stop the relay.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.console {
		go waitForConsole(console, stop)
	}

	served := make(chan error, 1)
	go func() {
		served <- relay.Serve()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Stop requested")
	case serveErr = <-served:
		served = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), relay.Config().ShutdownTimeout)
	defer cancel()
	shutdownErr := relay.ShutdownAll(shutdownCtx)

	if served != nil {
		serveErr = <-served
	}
	return errors.Join(serveErr, shutdownErr)
}

// waitForConsole calls stop once the operator enters a line. End of input
// without a line, as when stdin is /dev/null, leaves the relay running.
func waitForConsole(console io.Reader, stop func()) {
	_, err := bufio.NewReader(console).ReadString('\n')
	if err != nil {
		return
	}
	stop()
}

func newLogger(out io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(out, handlerOpts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(out, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
