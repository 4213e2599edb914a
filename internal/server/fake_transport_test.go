package server

import (
	"net"
	"sync"
	"time"
)

// fakeTransport records sends and lets a test feed reads.
type fakeTransport struct {
	mu      sync.Mutex
	addr    string
	sent    [][]byte
	sendErr error
	// stalled sends block until the transport is closed, like a peer that stopped reading.
	stalled bool
	// onSend runs outside the lock before a send completes; a non-nil result is returned.
	onSend       func() error
	shutdownDone bool
	closeCount   int

	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport(addr string) *fakeTransport {
	return &fakeTransport{
		addr:   addr,
		inbox:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func newFakeConnection(id uint64) (*Connection, *fakeTransport) {
	t := newFakeTransport("fake:" + string(rune('a'+id%26)))
	return newConnection(id, t, time.Second), t
}

func (f *fakeTransport) receive() ([]byte, error) {
	select {
	case b := <-f.inbox:
		return b, nil
	case <-f.closed:
		return nil, net.ErrClosed
	}
}

func (f *fakeTransport) send(payload []byte, _ time.Time) error {
	f.mu.Lock()
	stalled, onSend := f.stalled, f.onSend
	f.mu.Unlock()

	if stalled {
		<-f.closed
		return net.ErrClosed
	}
	if onSend != nil {
		if err := onSend(); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), payload...))
	return nil
}

func (f *fakeTransport) setReadDeadline(time.Time) error { return nil }

func (f *fakeTransport) shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdownDone = true
	return nil
}

func (f *fakeTransport) close() error {
	f.mu.Lock()
	f.closeCount++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) remoteAddr() string { return f.addr }

func (f *fakeTransport) kind() string { return "fake" }

func (f *fakeTransport) failSends(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeTransport) stallSends() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stalled = true
}

func (f *fakeTransport) beforeSend(hook func() error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSend = hook
}

func (f *fakeTransport) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, b := range f.sent {
		out[i] = string(b)
	}
	return out
}

func (f *fakeTransport) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

func (f *fakeTransport) wasShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdownDone
}
