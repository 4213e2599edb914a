package server

import (
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, n int) (*Dispatcher, *Registry, []*Connection, []*fakeTransport) {
	t.Helper()

	r := NewRegistry(discardLogger())
	conns := make([]*Connection, n)
	transports := make([]*fakeTransport, n)
	for i := range conns {
		conns[i], transports[i] = newFakeConnection(uint64(i + 1))
		require.NoError(t, r.Add(conns[i]))
	}
	return NewDispatcher(r, discardLogger()), r, conns, transports
}

func TestBroadcastDeliversToEveryConnection(t *testing.T) {
	d, _, _, transports := newTestDispatcher(t, 3)

	result := d.Broadcast([]byte("hello"))

	assert.Equal(t, Delivery{Delivered: 3}, result)
	for _, ft := range transports {
		assert.Equal(t, []string{"hello"}, ft.received())
	}
}

func TestBroadcastFailedSendRemovesOnlyThatConnection(t *testing.T) {
	d, r, conns, transports := newTestDispatcher(t, 3)
	transports[1].failSends(syscall.EPIPE)

	result := d.Broadcast([]byte("payload"))

	assert.Equal(t, Delivery{Delivered: 2, Failed: 1}, result)
	assert.Equal(t, []string{"payload"}, transports[0].received())
	assert.Equal(t, []string{"payload"}, transports[2].received())
	assert.False(t, r.Contains(conns[1]))
	assert.True(t, conns[1].Closed())
	assert.Equal(t, 2, r.Len())

	result = d.Broadcast([]byte("next"))
	assert.Equal(t, Delivery{Delivered: 2}, result)
}

func TestBroadcastSkipsConnectionClosedAfterSnapshot(t *testing.T) {
	d, _, conns, transports := newTestDispatcher(t, 2)
	require.NoError(t, conns[0].Close())

	result := d.Broadcast([]byte("late"))

	assert.Equal(t, Delivery{Delivered: 1, Skipped: 1}, result)
	assert.Empty(t, transports[0].received())
}

func TestBroadcastToEmptyRegistry(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t, 0)
	assert.Equal(t, Delivery{}, d.Broadcast([]byte("nobody")))
}

func TestUnicast(t *testing.T) {
	d, r, conns, transports := newTestDispatcher(t, 2)

	require.NoError(t, d.Unicast(conns[0], []byte("only you")))
	assert.Equal(t, []string{"only you"}, transports[0].received())
	assert.Empty(t, transports[1].received())

	transports[1].failSends(syscall.ECONNRESET)
	assert.Error(t, d.Unicast(conns[1], []byte("gone")))
	assert.False(t, r.Contains(conns[1]))

	assert.ErrorIs(t, d.Unicast(conns[1], []byte("again")), ErrConnectionClosed)
}

func TestBroadcastCountsCloseDuringWriteAsSkipped(t *testing.T) {
	d, r, conns, transports := newTestDispatcher(t, 2)
	transports[1].beforeSend(func() error {
		_ = conns[1].Close()
		return net.ErrClosed
	})

	result := d.Broadcast([]byte("hi"))

	assert.Equal(t, Delivery{Delivered: 1, Skipped: 1}, result)
	assert.Equal(t, []string{"hi"}, transports[0].received())
	assert.True(t, r.Contains(conns[1]), "a skipped connection is left to its own receive loop")
	assert.ErrorIs(t, d.Unicast(conns[1], []byte("again")), ErrConnectionClosed)
}
