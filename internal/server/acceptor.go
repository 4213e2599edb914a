package server

import (
	"errors"
	"net"
	"time"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// acceptLoop accepts TCP connections until ln is closed. Each accepted
// connection is registered and served by its own goroutine, so accepting
// never waits on an existing client.
func (s *Server) acceptLoop(ln net.Listener) error {
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Debug("Acceptor stopped", "addr", ln.Addr().String())
				return nil
			}

			delay = nextAcceptDelay(delay)
			s.logger.Warn("Accept failed; retrying", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-s.done:
				return nil
			}
			continue
		}
		delay = 0

		id := s.ordinal.Add(1)
		c := newConnection(id, newTCPTransport(conn, s.cfg.BufferSize), s.cfg.WriteTimeout)
		s.start(c)
	}
}

func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	if next := prev * 2; next < maxAcceptDelay {
		return next
	}
	return maxAcceptDelay
}
