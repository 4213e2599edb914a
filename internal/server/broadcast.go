package server

import (
	"errors"
	"log/slog"
)

// Delivery summarises one fan-out.
type Delivery struct {
	Delivered int
	// Skipped counts connections closed after the snapshot was taken.
	Skipped int
	// Failed counts connections whose send failed; they are removed and closed.
	Failed int
}

// Dispatcher sends payloads to the members of a Registry.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher bound to registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Broadcast sends payload to every connection in a registry snapshot. One
// recipient failing never stops delivery to the others.
func (d *Dispatcher) Broadcast(payload []byte) Delivery {
	clients := d.registry.Snapshot()
	d.logger.Debug("Broadcasting message", "clients", len(clients), "bytes", len(payload))

	var result Delivery
	var failed []*Connection
	for _, c := range clients {
		switch err := c.Send(payload); {
		case err == nil:
			result.Delivered++
		case errors.Is(err, ErrConnectionClosed), closedDuringSend(c, err):
			result.Skipped++
		default:
			d.logSendError(c, err)
			failed = append(failed, c)
		}
	}

	result.Failed = len(failed)
	d.removeFailedClients(failed)
	return result
}

// Unicast sends payload to c alone, removing it on failure.
func (d *Dispatcher) Unicast(c *Connection, payload []byte) error {
	err := c.Send(payload)
	if closedDuringSend(c, err) {
		return ErrConnectionClosed
	}
	if err == nil || errors.Is(err, ErrConnectionClosed) {
		return err
	}
	d.logSendError(c, err)
	d.removeFailedClients([]*Connection{c})
	return err
}

// closedDuringSend reports whether err comes from c being closed locally
// while the write was in flight.
func closedDuringSend(c *Connection, err error) bool {
	return err != nil && c.Closed() && isExpectedCloseError(err)
}

func (d *Dispatcher) logSendError(c *Connection, err error) {
	if isExpectedCloseError(err) {
		d.logger.Info("Send to departed client failed", "conn", c.ID(), "remote", c.RemoteAddr(), "error", err)
		return
	}
	d.logger.Warn("Send failed", "conn", c.ID(), "remote", c.RemoteAddr(), "error", err)
}

// removeFailedClients unregisters then closes connections a send failed on.
// Closing unblocks their receive loops, which find them already removed.
func (d *Dispatcher) removeFailedClients(failed []*Connection) {
	for _, c := range failed {
		if d.registry.Remove(c) {
			d.logger.Info("Client removed after failed send", "conn", c.ID(), "remote", c.RemoteAddr())
		}
		if err := c.Close(); err != nil && !isExpectedCloseError(err) {
			d.logger.Debug("Error closing client connection", "conn", c.ID(), "error", err)
		}
	}
}
