// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/bassosimone/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewBridge registers the bridge on the transport and forwards sends to it.
func TestNewBridge(t *testing.T) {
	tx := newStubTransport()
	logger, records := newCapturingLogger()

	b := NewBridge(NewConfig(), tx, logger)

	assert.Equal(t, Transport(tx), b.Transport())
	assert.Equal(t, Sender(tx), b.Sender())
	assert.True(t, tx.HasReceiver(b))
	assert.NotEmpty(t, b.ID())
	assert.Equal(t, []string{"bridgeBind"}, recordMessages(*records))

	count, err := b.Send([]byte("abc"), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Len(t, tx.sent, 1)
}

// An unbound bridge can be bound once using Swap.
func TestBridgeSwap(t *testing.T) {
	b := NewBridge(NewConfig(), nil, DefaultSLogger())
	assert.Nil(t, b.Transport())

	_, err := b.Send([]byte("abc"), 0)
	require.ErrorIs(t, err, ErrNoSender)

	tx := newStubTransport()
	b.Swap(tx)
	assert.Equal(t, Transport(tx), b.Transport())
	assert.True(t, tx.HasReceiver(b))

	other := newStubTransport()
	assert.Panics(t, func() { b.Swap(other) })
	assert.Equal(t, Transport(tx), b.Transport())
	assert.False(t, other.HasReceiver(b))
}

// Close deregisters the bridge from the transport once.
func TestBridgeClose(t *testing.T) {
	tx := newStubTransport()
	logger, records := newCapturingLogger()
	b := NewBridge(NewConfig(), tx, logger)
	var calls []string
	b.AddReceiver(newTracingReceiver(&calls, "S", Continue))

	require.NoError(t, b.Close())
	require.ErrorIs(t, b.Close(), net.ErrClosed)
	assert.True(t, b.Closed())
	assert.Equal(t, []string{"bridgeBind", "bridgeUnbind"}, recordMessages(*records))

	tx.Adapter.OnSocketConnect(tx)
	assert.Empty(t, calls)

	assert.Panics(t, func() { b.Swap(newStubTransport()) })
}

// A plain receiver and a subscriber each receive one copy of each event.
func TestBridgeDualChannelDelivery(t *testing.T) {
	tx := newStubTransport()
	b := NewBridge(NewConfig(), tx, DefaultSLogger())
	var calls []string
	plain := newTracingReceiver(&calls, "plain", Continue)
	subscriber := newTracingReceiver(&calls, "subscriber", Continue)

	b.Adapter.AddReceiver(plain)
	b.AddReceiver(subscriber)

	assert.True(t, b.Adapter.HasReceiver(plain))
	assert.False(t, b.Adapter.HasReceiver(subscriber))
	assert.True(t, b.HasReceiver(subscriber))

	tx.Adapter.OnSocketConnect(tx)
	tx.Adapter.OnSocketRecv(tx, []byte("abc"), netip.AddrPort{})
	tx.Adapter.OnSocketError(tx, errors.New("mocked"))
	tx.Adapter.OnSocketClose(tx)

	assert.Equal(t, []string{
		"plain:connect", "subscriber:connect",
		"plain:recv", "subscriber:recv",
		"plain:error", "subscriber:error",
		"plain:close", "subscriber:close",
	}, calls)
}

// Subscribers are reached by descending priority, ties in attach order.
func TestBridgeSubscriberPriority(t *testing.T) {
	tx := newStubTransport()
	b := NewBridge(NewConfig(), tx, DefaultSLogger())
	var calls []string
	s1 := newTracingReceiver(&calls, "S1", Continue)
	s1.PriorityValue = 10
	s2 := newTracingReceiver(&calls, "S2", Continue)
	s2.PriorityValue = 90
	s3 := newTracingReceiver(&calls, "S3", Continue)
	s3.PriorityValue = 10
	b.AddReceiver(s1)
	b.AddReceiver(s2)
	b.AddReceiver(s3)

	tx.Adapter.OnSocketRecv(tx, []byte("abc"), netip.AddrPort{})

	assert.Equal(t, []string{"S2:recv", "S1:recv", "S3:recv"}, calls)
}

// A stop in the registry does not prevent the channel emission.
func TestBridgeRegistryStopDoesNotBlockChannel(t *testing.T) {
	tx := newStubTransport()
	b := NewBridge(NewConfig(), tx, DefaultSLogger())
	var calls []string
	b.Adapter.AddReceiver(newTracingReceiver(&calls, "plain", StopPropagation))
	b.AddReceiver(newTracingReceiver(&calls, "subscriber", Continue))

	tx.Adapter.OnSocketClose(tx)

	assert.Equal(t, []string{"plain:close", "subscriber:close"}, calls)
}

// RemoveReceiver detaches the subscriber from every channel.
func TestBridgeRemoveReceiver(t *testing.T) {
	tx := newStubTransport()
	b := NewBridge(NewConfig(), tx, DefaultSLogger())
	var calls []string
	s := newTracingReceiver(&calls, "S", Continue)
	b.AddReceiver(s)
	b.AddReceiver(s)
	assert.Equal(t, 1, b.OnRecv.Len())

	b.RemoveReceiver(s)

	assert.False(t, b.HasReceiver(s))
	assert.Equal(t, 0, b.OnConnect.Len())
	assert.Equal(t, 0, b.OnRecv.Len())
	assert.Equal(t, 0, b.OnError.Len())
	assert.Equal(t, 0, b.OnClose.Len())

	tx.Adapter.OnSocketConnect(tx)
	assert.Empty(t, calls)
}

// The channels accept plain handlers and carry the event arguments.
func TestBridgeChannelEvents(t *testing.T) {
	tx := newStubTransport()
	b := NewBridge(NewConfig(), tx, DefaultSLogger())
	wantErr := errors.New("mocked")
	peer := netip.MustParseAddrPort("10.0.0.1:53")
	var gotRecv RecvEvent
	var gotErr ErrorEvent
	b.OnRecv.Attach("recv", func(ev RecvEvent) Propagation {
		gotRecv = ev
		return Continue
	}, 0)
	b.OnError.Attach("error", func(ev ErrorEvent) Propagation {
		gotErr = ev
		return Continue
	}, 0)

	tx.Adapter.OnSocketRecv(tx, []byte("abc"), peer)
	tx.Adapter.OnSocketError(tx, wantErr)

	assert.Equal(t, Transport(tx), gotRecv.Transport)
	assert.Equal(t, []byte("abc"), gotRecv.Data)
	assert.Equal(t, peer, gotRecv.Peer)
	assert.Equal(t, Transport(tx), gotErr.Transport)
	assert.Same(t, wantErr, gotErr.Err)
}

// Events from a transport other than the bound one are contract violations.
func TestBridgeForeignTransport(t *testing.T) {
	b := NewBridge(NewConfig(), newStubTransport(), DefaultSLogger())
	assert.Panics(t, func() { b.OnSocketConnect(newStubTransport()) })
}

// The bridge rejects itself and out of range priorities as subscribers.
func TestBridgeAddReceiverContracts(t *testing.T) {
	b := NewBridge(NewConfig(), newStubTransport(), DefaultSLogger())

	assert.Panics(t, func() { b.AddReceiver(b) })
	assert.Panics(t, func() { b.Adapter.AddReceiver(b) })
	assert.Panics(t, func() { b.AddReceiver(&FuncReceiver{PriorityValue: 101}) })
	assert.Panics(t, func() { b.SetSender(b) })
	assert.Equal(t, 0, b.OnConnect.Len())
	assert.Empty(t, b.Adapter.Receivers())
}

// Error events are logged with their classification.
func TestBridgeLogsErrors(t *testing.T) {
	tx := newStubTransport()
	logger, records := newCapturingLogger()
	b := NewBridge(NewConfig(), tx, logger)
	*records = nil

	tx.Adapter.OnSocketError(tx, errors.New("mocked"))

	require.Equal(t, []string{"bridgeEvent", "bridgeError"}, recordMessages(*records))
	value, found := recordAttr((*records)[1], "bridgeID")
	require.True(t, found)
	assert.Equal(t, b.ID(), value.String())
	value, found = recordAttr((*records)[1], "errClass")
	require.True(t, found)
	assert.Equal(t, errclass.EGENERIC, value.String())
}

// The bridge methods report the channels and the adapter methods the registry.
func TestBridgeReceiverViews(t *testing.T) {
	tx := newStubTransport()
	b := NewBridge(NewConfig(), tx, DefaultSLogger())
	var calls []string
	plain := newTracingReceiver(&calls, "plain", Continue)
	low := newTracingReceiver(&calls, "low", Continue)
	high := newTracingReceiver(&calls, "high", Continue)
	high.PriorityValue = 50

	b.Adapter.AddReceiver(plain)
	b.AddReceiver(low)
	b.AddReceiver(high)

	assert.Equal(t, []Receiver{high, low}, b.Receivers())
	assert.False(t, b.HasReceiver(plain))
	assert.True(t, b.HasReceiver(low))
	assert.Equal(t, []Receiver{plain}, b.Adapter.Receivers())
	assert.True(t, b.Adapter.HasReceiver(plain))
	assert.False(t, b.Adapter.HasReceiver(low))

	b.RemoveReceiver(low)
	assert.Equal(t, []Receiver{high}, b.Receivers())
}
