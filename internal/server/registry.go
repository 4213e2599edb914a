package server

import (
	"log/slog"
	"sync"
)

// Registry is the set of live connections. It is the only structure shared
// between the acceptors, every receive loop and the shutdown path.
type Registry struct {
	mu          sync.RWMutex
	connections map[*Connection]struct{}
	closed      bool
	logger      *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		connections: make(map[*Connection]struct{}),
		logger:      logger,
	}
}

// Add registers c. After DrainAndClose it refuses with ErrRegistryClosed and
// the caller owns closing c.
func (r *Registry) Add(c *Connection) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	r.connections[c] = struct{}{}
	count := len(r.connections)
	r.mu.Unlock()

	r.logger.Info("Client registered",
		"conn", c.ID(), "remote", c.RemoteAddr(), "transport", c.Transport(), "clients", count)
	return nil
}

// Remove unregisters c and reports whether it was present. Removing a
// connection twice is a no-op.
func (r *Registry) Remove(c *Connection) bool {
	r.mu.Lock()
	if _, ok := r.connections[c]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.connections, c)
	count := len(r.connections)
	r.mu.Unlock()

	r.logger.Info("Client unregistered",
		"conn", c.ID(), "remote", c.RemoteAddr(), "clients", count)
	return true
}

// Contains reports whether c is currently registered.
func (r *Registry) Contains(c *Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connections[c]
	return ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Snapshot returns the registered connections at this instant.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.connections))
	for c := range r.connections {
		connections = append(connections, c)
	}
	return connections
}

// ForEach calls fn for every connection in a snapshot. The lock is not held
// while fn runs, so fn may call Remove and other ForEach callers proceed in
// parallel.
func (r *Registry) ForEach(fn func(*Connection)) {
	for _, c := range r.Snapshot() {
		fn(c)
	}
}

// DrainAndClose empties the registry, closes every former member and
// refuses further additions. It returns the number of connections closed.
func (r *Registry) DrainAndClose() int {
	r.mu.Lock()
	r.closed = true
	connections := make([]*Connection, 0, len(r.connections))
	for c := range r.connections {
		connections = append(connections, c)
	}
	clear(r.connections)
	r.mu.Unlock()

	for _, c := range connections {
		if err := c.shutdown(); err != nil && !isExpectedCloseError(err) {
			r.logger.Debug("Error closing client connection",
				"conn", c.ID(), "remote", c.RemoteAddr(), "error", err)
		}
	}

	r.logger.Info("Closed client connections", "count", len(connections))
	return len(connections)
}
