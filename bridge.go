// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/sockpipe/pubsub"
)

// RecvEvent is the event emitted by [Bridge.OnRecv].
type RecvEvent struct {
	// Transport is the transport that received the data.
	Transport Transport

	// Data is the received data, only valid during the emission.
	Data []byte

	// Peer is the peer that sent the data.
	Peer netip.AddrPort
}

// ErrorEvent is the event emitted by [Bridge.OnError].
type ErrorEvent struct {
	// Transport is the transport that failed.
	Transport Transport

	// Err is the transport error, forwarded unmodified.
	Err error
}

// NewBridge returns a new [*Bridge] bound to tx.
//
// The cfg argument contains the common configuration for sockpipe operations.
//
// The tx argument may be nil, in which case the bridge is unbound
// and may be bound later using [Bridge.Swap].
//
// The logger argument is the [SLogger] to use for structured logging.
func NewBridge(cfg *Config, tx Transport, logger SLogger) *Bridge {
	b := &Bridge{
		Adapter:       &Adapter{},
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
		id:            NewSpanID(),
	}
	b.Adapter.SetSelf(b)
	if tx != nil {
		b.bind(tx)
	}
	return b
}

// Bridge is the root [Node] of a pipeline, bound to one [Transport].
//
// The bridge registers itself as a receiver of the transport and relays
// every transport event twice: first through the embedded [*Adapter]
// registry and then through the pubsub channel matching the event kind.
//
// [Bridge.AddReceiver] attaches a receiver to the four channels, using
// the receiver priority. Receivers added through the embedded adapter,
// using b.Adapter.AddReceiver, are reached through the registry instead.
// The AddReceiver, RemoveReceiver, HasReceiver, and Receivers methods of
// the bridge operate on the channels, while the same methods of b.Adapter,
// as well as CleanupReceivers, operate on the registry.
//
// Outbound sends are forwarded to the transport.
type Bridge struct {
	// Adapter provides the registry broadcast and the outbound forwarding.
	*Adapter

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewBridge] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewBridge] to the user-provided logger.
	Logger SLogger

	// OnConnect emits connect events.
	OnConnect pubsub.Channel[Transport]

	// OnRecv emits receive events.
	OnRecv pubsub.Channel[RecvEvent]

	// OnError emits error events.
	OnError pubsub.Channel[ErrorEvent]

	// OnClose emits close events.
	OnClose pubsub.Channel[Transport]

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewBridge] from [Config.TimeNow].
	TimeNow func() time.Time

	destroyed bool
	id        string
	transport Transport
}

var _ Node = &Bridge{}

// ID returns the bridge identifier used in log events.
func (b *Bridge) ID() string {
	return b.id
}

// Transport returns the bound transport or nil.
func (b *Bridge) Transport() Transport {
	return b.transport
}

// Swap binds an unbound bridge to tx.
//
// Calling Swap on a bound bridge is a programming error.
func (b *Bridge) Swap(tx Transport) {
	runtimex.Assert(b.transport == nil)
	runtimex.Assert(!b.destroyed)
	if tx != nil {
		b.bind(tx)
	}
}

func (b *Bridge) bind(tx Transport) {
	b.Adapter.SetSender(tx)
	b.transport = tx
	tx.AddReceiver(b)
	b.Logger.Info(
		"bridgeBind",
		slog.String("bridgeID", b.id),
		slog.Time("t", b.TimeNow()),
	)
}

// Close deregisters the bridge from its transport and closes the adapter.
//
// The transport itself is not closed because the bridge does not own it.
// Subsequent calls return [net.ErrClosed].
func (b *Bridge) Close() error {
	if b.destroyed {
		return net.ErrClosed
	}
	b.destroyed = true
	if b.transport != nil {
		b.transport.RemoveReceiver(b)
		b.Logger.Info(
			"bridgeUnbind",
			slog.String("bridgeID", b.id),
			slog.Time("t", b.TimeNow()),
		)
	}
	return b.Adapter.Close()
}

// AddReceiver attaches the handlers of r to the four pubsub channels
// using r's priority. Attaching the same receiver twice is a no-op.
func (b *Bridge) AddReceiver(r Receiver) {
	runtimex.Assert(r != nil)
	runtimex.Assert(!b.isSelf(r))
	runtimex.Assert(r.Priority() >= 0 && r.Priority() <= 100)
	if b.OnConnect.Has(r) {
		return
	}
	b.OnConnect.Attach(r, r.OnSocketConnect, r.Priority())
	b.OnRecv.Attach(r, func(ev RecvEvent) Propagation {
		return r.OnSocketRecv(ev.Transport, ev.Data, ev.Peer)
	}, r.Priority())
	b.OnError.Attach(r, func(ev ErrorEvent) Propagation {
		return r.OnSocketError(ev.Transport, ev.Err)
	}, r.Priority())
	b.OnClose.Attach(r, r.OnSocketClose, r.Priority())
}

// RemoveReceiver detaches the handlers of r from the four pubsub channels.
func (b *Bridge) RemoveReceiver(r Receiver) {
	b.OnConnect.Detach(r)
	b.OnRecv.Detach(r)
	b.OnError.Detach(r)
	b.OnClose.Detach(r)
}

// HasReceiver returns whether r is attached to the pubsub channels.
//
// Use b.Adapter.HasReceiver to query the registry instead.
func (b *Bridge) HasReceiver(r Receiver) bool {
	return b.OnConnect.Has(r)
}

// Receivers returns the receivers attached to the pubsub channels in
// emission order, that is, higher priority first.
//
// Use b.Adapter.Receivers to list the registry instead.
func (b *Bridge) Receivers() []Receiver {
	owners := b.OnConnect.Owners()
	out := make([]Receiver, 0, len(owners))
	for _, owner := range owners {
		out = append(out, owner.(Receiver))
	}
	return out
}

// OnSocketConnect implements [Receiver].
func (b *Bridge) OnSocketConnect(tx Transport) Propagation {
	b.checkTransport(tx, "connect")
	b.Adapter.OnSocketConnect(tx)
	b.OnConnect.Emit(tx)
	return Continue
}

// OnSocketRecv implements [Receiver].
func (b *Bridge) OnSocketRecv(tx Transport, data []byte, peer netip.AddrPort) Propagation {
	b.checkTransport(tx, "recv")
	b.Adapter.OnSocketRecv(tx, data, peer)
	b.OnRecv.Emit(RecvEvent{Transport: tx, Data: data, Peer: peer})
	return Continue
}

// OnSocketError implements [Receiver].
func (b *Bridge) OnSocketError(tx Transport, err error) Propagation {
	b.checkTransport(tx, "error")
	b.Logger.Debug(
		"bridgeError",
		slog.String("bridgeID", b.id),
		slog.Any("err", err),
		slog.String("errClass", b.ErrClassifier.Classify(err)),
		slog.Time("t", b.TimeNow()),
	)
	b.Adapter.OnSocketError(tx, err)
	b.OnError.Emit(ErrorEvent{Transport: tx, Err: err})
	return Continue
}

// OnSocketClose implements [Receiver].
func (b *Bridge) OnSocketClose(tx Transport) Propagation {
	b.checkTransport(tx, "close")
	b.Adapter.OnSocketClose(tx)
	b.OnClose.Emit(tx)
	return Continue
}

func (b *Bridge) checkTransport(tx Transport, event string) {
	runtimex.Assert(tx == b.transport)
	b.Logger.Debug(
		"bridgeEvent",
		slog.String("bridgeID", b.id),
		slog.String("event", event),
		slog.Time("t", b.TimeNow()),
	)
}
