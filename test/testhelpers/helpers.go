// Package testhelpers provides common utilities for testing the relay over
// real sockets.
//
// It provides functions for dialling TCP and WebSocket clients, reading
// with deadlines, and asserting what a client did or did not receive, to
// reduce code duplication in test files.
package testhelpers

import (
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// DefaultTimeout bounds every blocking helper.
const DefaultTimeout = 2 * time.Second

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:8080"

// DialTCP connects to addr and closes the connection when the test ends.
func DialTCP(t *testing.T, addr string) *net.TCPConn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	require.NoError(t, err, "dial %s", addr)
	t.Cleanup(func() { _ = conn.Close() })
	return conn.(*net.TCPConn)
}

// Send writes text to conn in a single write.
func Send(t *testing.T, conn net.Conn, text string) {
	t.Helper()

	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(DefaultTimeout)))
	_, err := conn.Write([]byte(text))
	require.NoError(t, err, "write %q", text)
}

// ReadExactly reads until n bytes arrived or DefaultTimeout passed.
func ReadExactly(t *testing.T, conn net.Conn, n int) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(DefaultTimeout)))
	buf := make([]byte, n)
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err, "read %d bytes", n)
	return string(buf)
}

// ReadSome returns whatever a single read yields within DefaultTimeout.
func ReadSome(t *testing.T, conn net.Conn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(DefaultTimeout)))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err, "read")
	return string(buf[:n])
}

// ExpectNothing fails if conn yields any byte within wait. It reports
// whether the peer closed the connection.
func ExpectNothing(t *testing.T, conn net.Conn, wait time.Duration) (closed bool) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.Zero(t, n, "unexpected data %q", string(buf[:n]))

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	return err != nil
}

// ExpectClosed fails unless the peer closes conn within DefaultTimeout
// without sending anything more.
func ExpectClosed(t *testing.T, conn net.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(DefaultTimeout)))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.Zero(t, n, "unexpected data %q", string(buf[:n]))
	require.Error(t, err)

	var netErr net.Error
	require.False(t, errors.As(err, &netErr) && netErr.Timeout(), "connection still open")
}

// Reset closes conn with SO_LINGER 0 so the peer observes a connection reset.
func Reset(t *testing.T, conn *net.TCPConn) {
	t.Helper()

	require.NoError(t, conn.SetLinger(0))
	require.NoError(t, conn.Close())
}

// ConnectWebSocket dials a WebSocket URL with the test Origin and closes the
// connection when the test ends.
func ConnectWebSocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, err := DialWebSocket(url, TestOrigin)
	require.NoError(t, err, "dial %s", url)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DialWebSocket dials url with the given Origin header. An empty origin sends none.
func DialWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: DefaultTimeout,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil && resp != nil {
		return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
	}
	return conn, err
}

// HandshakeError carries the HTTP status of a rejected WebSocket handshake.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return e.Err.Error()
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ReadWebSocketText reads one text frame within DefaultTimeout.
func ReadWebSocketText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(DefaultTimeout)))
	messageType, payload, err := conn.ReadMessage()
	require.NoError(t, err, "read websocket frame")
	require.Equal(t, websocket.TextMessage, messageType)
	return string(payload)
}

// SendWebSocketText writes one text frame.
func SendWebSocketText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()

	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(DefaultTimeout)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
}
