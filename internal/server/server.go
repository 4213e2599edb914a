// Package server constructs the relay: it binds the TCP listener and the
// optional WebSocket bridge, runs one receive loop per connection, and
// coordinates shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Server relays text between every connected client.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
	registry   *Registry
	dispatcher *Dispatcher
	origins    *originPolicy
	upgrader   websocket.Upgrader

	ordinal atomic.Uint64
	// wg tracks accept loops and receive loops.
	wg   sync.WaitGroup
	done chan struct{}

	mu         sync.Mutex
	listener   net.Listener
	wsListener net.Listener
	httpServer *http.Server
	closed     bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option customises a Server.
type Option func(s *Server) error

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return errors.New("server.WithLogger: logger is nil")
		}
		s.logger = logger
		return nil
	}
}

// WithClock replaces the wall clock used to answer "get time".
func WithClock(now func() time.Time) Option {
	return func(s *Server) error {
		if now == nil {
			return errors.New("server.WithClock: clock is nil")
		}
		s.now = now
		return nil
	}
}

// New builds a Server from cfg. A nil cfg selects the defaults.
func New(cfg *Config, options ...Option) (*Server, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	s := &Server{
		cfg:    cfg.sanitize(),
		logger: slog.Default(),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return nil, err
		}
	}

	s.registry = NewRegistry(s.logger)
	s.dispatcher = NewDispatcher(s.registry, s.logger)
	s.origins = newOriginPolicy(s.cfg.AllowedOrigins, s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// Config returns the sanitised configuration in effect.
func (s *Server) Config() Config {
	cfg := s.cfg
	cfg.AllowedOrigins = append([]string(nil), s.cfg.AllowedOrigins...)
	return cfg
}

// Registry exposes the live connection set.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Dispatcher exposes the broadcast fan-out, for server-originated messages.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Handler returns the HTTP routes of the WebSocket bridge.
func (s *Server) Handler() http.Handler {
	return SetupRoutes(s)
}

// Listen binds the TCP listener and, when configured, the WebSocket bridge.
// A bind failure leaves nothing bound.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.listener != nil {
		return errors.New("server: already listening")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", s.cfg.Addr, err)
	}

	if s.cfg.WebSocketAddr != "" {
		wsLn, err := net.Listen("tcp", s.cfg.WebSocketAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen websocket %s: %w", s.cfg.WebSocketAddr, err)
		}
		s.wsListener = wsLn
		s.httpServer = CreateServer(wsLn.Addr().String(), s.Handler())
		s.logger.Info("WebSocket bridge listening", "addr", wsLn.Addr().String())
	}

	s.listener = ln
	s.logger.Info("Relay listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound TCP address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr returns the bound bridge address, or nil when the bridge is disabled.
func (s *Server) WebSocketAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// Serve accepts connections until ShutdownAll closes the listeners. It
// returns nil after a planned shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	if s.listener == nil {
		s.mu.Unlock()
		return ErrNotListening
	}
	ln, wsLn, httpServer := s.listener, s.wsListener, s.httpServer
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	var g errgroup.Group
	g.Go(func() error {
		return s.acceptLoop(ln)
	})
	if wsLn != nil {
		g.Go(func() error {
			if err := httpServer.Serve(wsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("websocket bridge: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ListenAndServe binds and serves. Bind failures are returned immediately.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// start registers c and launches its receive loop. During shutdown c is
// closed instead.
func (s *Server) start(c *Connection) {
	if !s.admit(c) {
		s.logger.Info("Rejected connection during shutdown", "conn", c.ID(), "remote", c.RemoteAddr())
		_ = c.Close()
		return
	}
	go func() {
		defer s.wg.Done()
		s.serveConnection(c)
	}()
}

func (s *Server) admit(c *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if err := s.registry.Add(c); err != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

// ShutdownAll closes every live connection, then the listeners, and waits
// for every receive loop to finish or for ctx to expire. Only the first
// call does any work; later calls return its result.
func (s *Server) ShutdownAll(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	s.logger.Info("Initiating relay shutdown...")

	s.mu.Lock()
	s.closed = true
	ln, wsLn, httpServer := s.listener, s.wsListener, s.httpServer
	s.mu.Unlock()
	close(s.done)

	s.registry.DrainAndClose()

	var errs []error
	if ln != nil {
		if err := ln.Close(); err != nil && !isExpectedCloseError(err) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
	}
	if httpServer != nil {
		if err := ShutdownServer(ctx, httpServer); err != nil {
			errs = append(errs, err)
		}
		// Serve may never have been called, in which case Shutdown does not own wsLn.
		if err := wsLn.Close(); err != nil && !isExpectedCloseError(err) {
			errs = append(errs, fmt.Errorf("close websocket listener: %w", err))
		}
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.logger.Info("Relay shutdown completed successfully")
	case <-ctx.Done():
		s.logger.Warn("Relay shutdown timeout reached, some connections may still be running")
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
