package server

// serveConnection runs the receive loop of c until the peer leaves, a read
// fails or the server shuts down, then unregisters and closes c.
func (s *Server) serveConnection(c *Connection) {
	limiter := newRateLimiter(s.cfg.RateLimit)
	reason := s.receiveLoop(c, limiter)
	s.finishConnection(c, reason)
}

// receiveLoop issues one read at a time. The next read starts only after
// the action for the previous one, including its broadcast, has completed.
func (s *Server) receiveLoop(c *Connection, limiter *rateLimiter) closeReason {
	for {
		raw, err := c.receive(s.cfg.IdleTimeout)
		if len(raw) > 0 {
			if exit := s.handleText(c, decodeASCII(raw), limiter); exit {
				return reasonExit
			}
		}
		if err != nil {
			return classifyReadError(err)
		}
		// A zero-byte TCP read means the peer closed its side.
		if len(raw) == 0 && c.Transport() == TransportTCP {
			return reasonPeerClosed
		}
	}
}

// handleText classifies one decoded read and acts on it. It reports true
// when the sender asked to leave.
func (s *Server) handleText(c *Connection, text string, limiter *rateLimiter) bool {
	act := classify(text)
	s.logger.Debug("Received text", "conn", c.ID(), "action", act.String(), "bytes", len(text))

	switch act {
	case actionExit:
		return true

	case actionGetTime:
		reply := []byte(formatTimeOfDay(s.now()))
		if s.cfg.TimeReplyMode == TimeReplySender {
			_ = s.dispatcher.Unicast(c, reply)
		} else {
			s.dispatcher.Broadcast(reply)
		}
		s.logger.Debug("Answered time request", "conn", c.ID(), "time", string(reply), "mode", string(s.cfg.TimeReplyMode))

	default:
		if !limiter.allow() {
			s.logger.Warn("Rate limit exceeded; discarding message",
				"conn", c.ID(), "remote", c.RemoteAddr(),
				"burst", s.cfg.RateLimit.Burst, "interval", s.cfg.RateLimit.RefillInterval)
			return false
		}
		s.dispatcher.Broadcast([]byte(text))
	}
	return false
}

// finishConnection removes c before closing it, so the registry never holds
// a closed handle. An exit request closes both directions in order first.
func (s *Server) finishConnection(c *Connection, reason closeReason) {
	removed := s.registry.Remove(c)

	var err error
	if reason == reasonExit {
		err = c.shutdown()
	} else {
		err = c.Close()
	}
	if err != nil && !isExpectedCloseError(err) {
		s.logger.Debug("Error closing connection", "conn", c.ID(), "error", err)
	}

	switch {
	case reason == reasonLocalClose || !removed:
		s.logger.Debug("Receive loop stopped", "conn", c.ID(), "remote", c.RemoteAddr(), "reason", string(reason))
	case reason == reasonPeerReset || reason == reasonReadError:
		s.logger.Warn("Client disconnected", "conn", c.ID(), "remote", c.RemoteAddr(), "reason", string(reason))
	default:
		s.logger.Info("Client disconnected", "conn", c.ID(), "remote", c.RemoteAddr(), "reason", string(reason))
	}
}
