// Package server constructs the HTTP service that carries the WebSocket
// bridge, with helpers that apply sensible production defaults.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified address and handler.
// The timeouts cover plain HTTP requests; the upgrader clears them on
// connections it hijacks.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for in-flight
// requests until ctx expires.
func ShutdownServer(ctx context.Context, server *http.Server) error {
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
