// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"net/netip"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/sockpipe/pubsub"
)

// Propagation tells a broadcast whether to keep delivering an event.
type Propagation = pubsub.Propagation

const (
	// Continue lets the broadcast deliver the event to the next receiver.
	Continue = pubsub.Continue

	// StopPropagation halts the current broadcast. It is not an error and
	// it never reaches the transport that originated the event.
	StopPropagation = pubsub.Stop
)

// Sender is the outbound side of a pipeline element.
//
// Implementations return the number of bytes sent or an error.
type Sender interface {
	// Send sends data over a connected transport.
	Send(data []byte, flags int) (int, error)

	// SendTo sends data to the given peer over a connectionless transport.
	SendTo(data []byte, peer netip.AddrPort, flags int) (int, error)
}

// Receiver is the inbound side of a pipeline element.
//
// Each handler receives the transport that originated the event and returns
// whether the broadcast invoking it should continue.
//
// Receivers are compared by identity and must be comparable (typically pointers).
type Receiver interface {
	// Priority returns the receiver priority in [0, 100].
	Priority() int

	// OnSocketConnect handles the transport becoming connected.
	OnSocketConnect(tx Transport) Propagation

	// OnSocketRecv handles data received from peer. The data is only
	// valid for the duration of the call.
	OnSocketRecv(tx Transport, data []byte, peer netip.AddrPort) Propagation

	// OnSocketError handles a transport error. The error is forwarded unmodified.
	OnSocketError(tx Transport, err error) Propagation

	// OnSocketClose handles the transport being closed.
	OnSocketClose(tx Transport) Propagation
}

// Node is a pipeline element that both sends and receives.
type Node interface {
	Sender
	Receiver
}

// Transport is the root of a pipeline: it performs the actual I/O and
// delivers inbound events to its receivers.
type Transport interface {
	Sender

	// AddReceiver registers r to receive the transport events.
	AddReceiver(r Receiver)

	// RemoveReceiver deregisters r.
	RemoveReceiver(r Receiver)
}

// Adapter is the chain-of-responsibility element of a pipeline.
//
// It forwards outbound sends to its sender and broadcasts inbound events
// to its receivers, most recently added first. Embed *Adapter to build
// layered adapters and call [Adapter.SetSelf] with the embedding value.
//
// An Adapter does not own its sender or its receivers: closing an adapter
// does not remove it from the registries referencing it, but registries
// skip closed receivers and purge them at the next sweep.
//
// Adapter is not safe for concurrent use. Use it from the goroutine
// delivering the transport events, reentrantly if needed.
//
// The zero value is ready to use.
type Adapter struct {
	closed   bool
	priority int
	registry Registry
	self     any
	sender   Sender
}

var _ Node = &Adapter{}

// NewAdapter returns a new [*Adapter] forwarding to sender, which may be nil.
func NewAdapter(sender Sender) *Adapter {
	a := &Adapter{}
	a.SetSender(sender)
	return a
}

// SetSelf records the value embedding this adapter.
//
// Self-reference checks then also reject the embedding value, and the
// packet methods send through its Send and SendTo when it is a [Sender].
func (a *Adapter) SetSelf(self any) {
	a.self = self
}

func (a *Adapter) isSelf(v any) bool {
	if v == nil {
		return false
	}
	return v == any(a) || (a.self != nil && v == a.self)
}

// Priority implements [Receiver].
func (a *Adapter) Priority() int {
	return a.priority
}

// SetPriority sets the priority used when registered as a receiver.
//
// The priority must be in [0, 100].
func (a *Adapter) SetPriority(priority int) {
	runtimex.Assert(priority >= 0 && priority <= 100)
	a.priority = priority
}

// Sender returns the current sender or nil.
func (a *Adapter) Sender() Sender {
	return a.sender
}

// SetSender replaces the sender. The adapter cannot be its own sender.
func (a *Adapter) SetSender(sender Sender) {
	runtimex.Assert(!a.isSelf(sender))
	if a.sender == sender {
		return
	}
	a.sender = sender
}

// Send implements [Sender] by forwarding to the sender.
//
// Returns [ErrNoSender] if no sender is configured.
func (a *Adapter) Send(data []byte, flags int) (int, error) {
	if a.sender == nil {
		return 0, ErrNoSender
	}
	return a.sender.Send(data, flags)
}

// SendTo implements [Sender] by forwarding to the sender.
//
// Returns [ErrNoSender] if no sender is configured.
func (a *Adapter) SendTo(data []byte, peer netip.AddrPort, flags int) (int, error) {
	if a.sender == nil {
		return 0, ErrNoSender
	}
	return a.sender.SendTo(data, peer, flags)
}

// outer returns the value registered with [Adapter.SetSelf] when it is
// a [Sender], so that its Send and SendTo are used, or the adapter.
func (a *Adapter) outer() Sender {
	if s, ok := a.self.(Sender); ok {
		return s
	}
	return a
}

// SendPacket calls [SendPacket] with the embedding value as the [Sender].
func (a *Adapter) SendPacket(pkt Packet, flags int) (int, error) {
	return SendPacket(a.outer(), pkt, flags)
}

// SendPacketTo calls [SendPacketTo] with the embedding value as the [Sender].
func (a *Adapter) SendPacketTo(pkt Packet, peer netip.AddrPort, flags int) (int, error) {
	return SendPacketTo(a.outer(), pkt, peer, flags)
}

// WritePacket calls [WritePacket] with the embedding value as the [Sender].
func (a *Adapter) WritePacket(pkt Packet) error {
	return WritePacket(a.outer(), pkt)
}

// AddReceiver registers r. Adding an already registered receiver is a no-op.
//
// The receiver must not be the adapter itself and its priority must be in [0, 100].
// A receiver added during a broadcast is only reached by the next broadcast.
func (a *Adapter) AddReceiver(r Receiver) {
	runtimex.Assert(r != nil)
	runtimex.Assert(!a.isSelf(r))
	runtimex.Assert(r.Priority() >= 0 && r.Priority() <= 100)
	a.registry.Add(r)
}

// RemoveReceiver deregisters r. The receiver stops receiving events at once,
// but its registry entry is only purged after a later [Adapter.AddReceiver].
func (a *Adapter) RemoveReceiver(r Receiver) {
	runtimex.Assert(!a.isSelf(r))
	a.registry.Remove(r)
}

// HasReceiver returns whether r is registered, including removed receivers
// whose entry has not been purged yet.
func (a *Adapter) HasReceiver(r Receiver) bool {
	return a.registry.Has(r)
}

// Receivers returns the registered receivers in registration order,
// including removed receivers whose entry has not been purged yet.
func (a *Adapter) Receivers() []Receiver {
	return a.registry.Receivers()
}

// CleanupReceivers purges removed receivers if a receiver was added since
// the last purge.
func (a *Adapter) CleanupReceivers() {
	a.registry.Cleanup()
}

// OnSocketConnect implements [Receiver] by broadcasting to the receivers.
func (a *Adapter) OnSocketConnect(tx Transport) Propagation {
	a.registry.Broadcast(func(r Receiver) Propagation {
		return r.OnSocketConnect(tx)
	})
	return Continue
}

// OnSocketRecv implements [Receiver] by broadcasting to the receivers.
func (a *Adapter) OnSocketRecv(tx Transport, data []byte, peer netip.AddrPort) Propagation {
	a.registry.Broadcast(func(r Receiver) Propagation {
		return r.OnSocketRecv(tx, data, peer)
	})
	return Continue
}

// OnSocketError implements [Receiver] by broadcasting to the receivers.
func (a *Adapter) OnSocketError(tx Transport, err error) Propagation {
	a.registry.Broadcast(func(r Receiver) Propagation {
		return r.OnSocketError(tx, err)
	})
	return Continue
}

// OnSocketClose implements [Receiver] by broadcasting to the receivers.
func (a *Adapter) OnSocketClose(tx Transport) Propagation {
	a.registry.Broadcast(func(r Receiver) Propagation {
		return r.OnSocketClose(tx)
	})
	return Continue
}

// Close marks the adapter as closed. Registries holding it stop invoking it.
//
// Close does not close the sender or the receivers.
func (a *Adapter) Close() error {
	a.closed = true
	return nil
}

// Closed returns whether [Adapter.Close] was called.
func (a *Adapter) Closed() bool {
	return a.closed
}
