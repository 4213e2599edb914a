package server

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Transport names reported in logs and by the health endpoint.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// transport is the byte-level handle a Connection owns exclusively.
type transport interface {
	// receive blocks for the next chunk of inbound bytes. The returned slice
	// is only valid until the following receive call.
	receive() ([]byte, error)
	send(payload []byte, deadline time.Time) error
	setReadDeadline(t time.Time) error
	// shutdown closes both directions in an orderly way before close.
	shutdown() error
	close() error
	remoteAddr() string
	kind() string
}

// Connection represents one accepted client endpoint. It is created by an
// acceptor, registered once, and inert after Close.
type Connection struct {
	id           uint64
	transport    transport
	addr         string
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newConnection(id uint64, t transport, writeTimeout time.Duration) *Connection {
	return &Connection{
		id:           id,
		transport:    t,
		addr:         t.remoteAddr(),
		writeTimeout: writeTimeout,
	}
}

// ID returns the ordinal assigned when the connection was accepted.
func (c *Connection) ID() uint64 {
	return c.id
}

// RemoteAddr returns the peer address captured at accept time.
func (c *Connection) RemoteAddr() string {
	return c.addr
}

// Transport reports whether the connection arrived over TCP or the WebSocket bridge.
func (c *Connection) Transport() string {
	return c.transport.kind()
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// Send writes payload to the peer. Writes from concurrent broadcasts are
// serialised so each payload reaches the wire as one contiguous write.
func (c *Connection) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return c.transport.send(payload, time.Now().Add(c.writeTimeout))
}

func (c *Connection) receive(idle time.Duration) ([]byte, error) {
	if idle > 0 {
		if err := c.transport.setReadDeadline(time.Now().Add(idle)); err != nil {
			return nil, err
		}
	}
	return c.transport.receive()
}

// shutdown performs an orderly close of both directions and then closes the
// handle. It does not take writeMu: a Send stalled on a peer that stopped
// reading must not hold up the close, which is what unblocks that Send.
func (c *Connection) shutdown() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.transport.shutdown()
		if closeErr := c.transport.close(); err == nil {
			err = closeErr
		}
		c.closeErr = err
	})
	return err
}

// Close closes the underlying handle. It is safe to call more than once and
// unblocks a pending read.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.transport.close()
	})
	return c.closeErr
}

// tcpTransport reads into a buffer owned by its connection, so reads from
// different connections never share memory.
type tcpTransport struct {
	conn net.Conn
	buf  []byte
}

func newTCPTransport(conn net.Conn, bufferSize int) *tcpTransport {
	return &tcpTransport{
		conn: conn,
		buf:  make([]byte, bufferSize),
	}
}

func (t *tcpTransport) receive() ([]byte, error) {
	n, err := t.conn.Read(t.buf)
	return t.buf[:n], err
}

func (t *tcpTransport) send(payload []byte, deadline time.Time) error {
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := t.conn.Write(payload)
	return err
}

func (t *tcpTransport) setReadDeadline(d time.Time) error {
	return t.conn.SetReadDeadline(d)
}

func (t *tcpTransport) shutdown() error {
	tcp, ok := t.conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tcp.CloseWrite(); err != nil {
		return err
	}
	return tcp.CloseRead()
}

func (t *tcpTransport) close() error {
	return t.conn.Close()
}

func (t *tcpTransport) remoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *tcpTransport) kind() string {
	return TransportTCP
}

// wsTransport carries one text frame per receive and per send.
type wsTransport struct {
	conn *websocket.Conn
	addr string
}

func newWSTransport(conn *websocket.Conn, addr string, readLimit int) *wsTransport {
	conn.SetReadLimit(int64(readLimit))
	return &wsTransport{conn: conn, addr: addr}
}

func (t *wsTransport) receive() ([]byte, error) {
	_, payload, err := t.conn.ReadMessage()
	return payload, err
}

func (t *wsTransport) send(payload []byte, deadline time.Time) error {
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *wsTransport) setReadDeadline(d time.Time) error {
	return t.conn.SetReadDeadline(d)
}

func (t *wsTransport) shutdown() error {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return t.conn.WriteControl(websocket.CloseMessage, msg, deadline)
}

func (t *wsTransport) close() error {
	return t.conn.Close()
}

func (t *wsTransport) remoteAddr() string {
	return t.addr
}

func (t *wsTransport) kind() string {
	return TransportWebSocket
}
