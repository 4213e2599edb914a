package server

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

var (
	// ErrConnectionClosed is returned by Send once a Connection has been closed.
	ErrConnectionClosed = errors.New("relay: connection closed")

	// ErrRegistryClosed is returned by Registry.Add after DrainAndClose.
	ErrRegistryClosed = errors.New("relay: registry closed")

	// ErrServerClosed is returned by Listen and Serve after ShutdownAll.
	ErrServerClosed = errors.New("relay: server closed")

	// ErrNotListening is returned by Serve when Listen has not bound a listener.
	ErrNotListening = errors.New("relay: server is not listening")
)

// closeReason describes why a receive loop ended.
type closeReason string

const (
	reasonExit        closeReason = "exit requested"
	reasonPeerClosed  closeReason = "peer closed connection"
	reasonPeerReset   closeReason = "forcefully disconnected"
	reasonIdleTimeout closeReason = "idle timeout"
	reasonLocalClose  closeReason = "closed by server"
	reasonReadLimit   closeReason = "message exceeded read limit"
	reasonReadError   closeReason = "read error"
)

// classifyReadError maps a failed read to the reason logged for the closed connection.
func classifyReadError(err error) closeReason {
	var netErr net.Error
	switch {
	case errors.Is(err, net.ErrClosed):
		return reasonLocalClose
	case errors.Is(err, websocket.ErrReadLimit):
		return reasonReadLimit
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return reasonPeerClosed
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return reasonPeerClosed
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED),
		websocket.IsCloseError(err, websocket.CloseAbnormalClosure):
		return reasonPeerReset
	case errors.As(err, &netErr) && netErr.Timeout():
		return reasonIdleTimeout
	default:
		return reasonReadError
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe")
}
