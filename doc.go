// SPDX-License-Identifier: GPL-3.0-or-later

// Package sockpipe provides composable nodes for socket event pipelines.
//
// # Core Abstraction
//
// A pipeline is a chain of nodes sitting between the application and a
// [Transport]. Outbound data flows down the chain: each [Sender] forwards
// to exactly one next sender, ending at the transport. Inbound events flow
// up the chain: the transport delivers each event to every [Receiver] it
// knows about, which in turn relays it to its own receivers.
//
// The [Adapter] is the building block for nodes. It forwards Send and SendTo
// to its configured sender and broadcasts connect, receive, error, and close
// events to a [Registry] of receivers. Embed an [*Adapter] and override the
// methods you care about to build custom nodes. Call [Adapter.SetSelf] with
// the embedding value so that self-registration is detected and so that the
// packet methods send through the embedding value's Send and SendTo.
//
// # Propagation
//
// Receiver handlers return a [Propagation] value. Returning [StopPropagation]
// halts delivery of the current event to the remaining receivers. Receivers
// are visited newest first, so the last receiver added gets the first chance
// to consume an event.
//
// Receivers may remove themselves (or any other receiver) during delivery.
// Removal is deferred: the receiver is skipped immediately and swept from the
// registry once delivery completes. A receiver exposing a Closed method is
// skipped and swept once it reports being closed.
//
// # Packets
//
// The [Packet] interface describes a serializable outbound message. Packets
// implementing [ContiguousPacket] are sent without copying. Other packets are
// serialized into a temporary buffer. See [SendPacket] and [SendPacketTo].
//
// # Bridges
//
// A [Bridge] binds an [Adapter] to a [Transport]. It registers itself as a
// receiver of the transport and republishes every event on four [pubsub.Channel]
// values (OnConnect, OnRecv, OnError, OnClose) after broadcasting it to its own
// registry. Receivers added through [Bridge.AddReceiver] are attached to the
// channels in priority order.
//
// # Transports
//
// [ConnTransport] turns a [net.Conn] into a [Transport]. Compose [ConnectFunc]
// and [TransportFunc] with [Compose2] to dial and wrap in a single step:
//
//	pipeline := sockpipe.Compose2(
//		sockpipe.NewConnectFunc(cfg, "udp", logger),
//		sockpipe.NewTransportFunc(cfg, logger),
//	)
//	tx, err := pipeline.Call(ctx, netip.MustParseAddrPort("8.8.8.8:53"))
//
// Then call [ConnTransport.Run] to deliver events until the connection fails
// or the context is done. Run closes the connection when the context is done,
// so blocking reads honor the context deadline.
//
// Stream transports carry no message boundaries. A [StreamFramer] registered
// as a receiver of the node it sends through adds a two-byte length prefix
// to outbound messages and delivers inbound messages one event at a time.
// Compose [TLSFunc] between dialing and wrapping for DNS over TLS.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with [log/slog]).
// By default, logging is disabled. Error classification is configurable via
// [ErrClassifier] and uses [github.com/bassosimone/errclass] by default.
//
// Span events (*Start/*Done pairs) share a common set of fields: localAddr,
// remoteAddr, protocol, and t (timestamp). Completion events additionally include
// t0, err, and errClass. I/O-level events are emitted at [slog.LevelDebug]; all
// other events use [slog.LevelInfo].
//
// Use [LogReceiver] to log every transport event and [MetricsReceiver] to count
// them with Prometheus collectors.
//
// # Concurrency
//
// Adapters, registries, and bridges are not safe for concurrent use. Event
// delivery and receiver management must happen on the goroutine running the
// transport event loop.
package sockpipe
