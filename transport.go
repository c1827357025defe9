//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/observeconn.go
// Adapted from: https://github.com/bassosimone/nop/blob/main/cancelwatch.go
//

package sockpipe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
)

// NewTransportFunc returns a new [*TransportFunc].
//
// The cfg argument contains the common configuration for sockpipe operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewTransportFunc(cfg *Config, logger SLogger) *TransportFunc {
	return &TransportFunc{Config: cfg, Logger: logger}
}

// TransportFunc wraps a [net.Conn] into a [*ConnTransport].
type TransportFunc struct {
	// Config is the configuration passed to [NewConnTransport].
	Config *Config

	// Logger is the [SLogger] passed to [NewConnTransport].
	Logger SLogger
}

var _ Func[net.Conn, *ConnTransport] = &TransportFunc{}

// Call implements [Func].
func (op *TransportFunc) Call(ctx context.Context, conn net.Conn) (*ConnTransport, error) {
	return NewConnTransport(op.Config, conn, op.Logger), nil
}

// NewConnTransport returns a new [*ConnTransport] owning conn.
//
// The cfg argument contains the common configuration for sockpipe operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewConnTransport(cfg *Config, conn net.Conn, logger SLogger) *ConnTransport {
	runtimex.Assert(conn != nil)
	runtimex.Assert(cfg.ReadBufferSize > 0)
	tx := &ConnTransport{
		ErrClassifier:  cfg.ErrClassifier,
		Logger:         logger,
		ReadBufferSize: cfg.ReadBufferSize,
		TimeNow:        cfg.TimeNow,
		closeonce:      sync.Once{},
		conn:           conn,
		events:         &Adapter{},
		id:             NewSpanID(),
		laddr:          safeconn.LocalAddr(conn),
		protocol:       safeconn.Network(conn),
		raddr:          safeconn.RemoteAddr(conn),
	}
	tx.events.SetSelf(tx)
	tx.peer, _ = netip.ParseAddrPort(tx.raddr)
	return tx
}

// ConnTransport is a [Transport] performing I/O on a [net.Conn].
//
// [ConnTransport.Run] is the event loop: it delivers connect, receive,
// error, and close events to the receivers on the calling goroutine.
// Receivers must be added and removed either before Run or from that
// goroutine. Send and SendTo may be called from any goroutine.
//
// The ConnTransport owns the connection: call [ConnTransport.Close] when
// done, or let Run close it when the connection fails.
//
// The flags passed to Send and SendTo are ignored.
type ConnTransport struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConnTransport] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewConnTransport] to the user-provided logger.
	Logger SLogger

	// ReadBufferSize is the size of the read buffer used by Run.
	//
	// Set by [NewConnTransport] from [Config.ReadBufferSize].
	ReadBufferSize int

	// TimeNow is the function to get the current time.
	//
	// Set by [NewConnTransport] from [Config.TimeNow].
	TimeNow func() time.Time

	closeonce sync.Once
	conn      net.Conn
	events    *Adapter
	id        string
	laddr     string
	peer      netip.AddrPort
	protocol  string
	raddr     string
}

var _ Transport = &ConnTransport{}

// Conn returns the underlying connection.
func (tx *ConnTransport) Conn() net.Conn {
	return tx.conn
}

// ID returns the transport identifier used in log events.
func (tx *ConnTransport) ID() string {
	return tx.id
}

// Peer returns the remote endpoint or the zero value if the
// remote address is not an IP endpoint.
func (tx *ConnTransport) Peer() netip.AddrPort {
	return tx.peer
}

// AddReceiver implements [Transport].
func (tx *ConnTransport) AddReceiver(r Receiver) {
	tx.events.AddReceiver(r)
}

// RemoveReceiver implements [Transport].
func (tx *ConnTransport) RemoveReceiver(r Receiver) {
	tx.events.RemoveReceiver(r)
}

// HasReceiver returns whether r is registered.
func (tx *ConnTransport) HasReceiver(r Receiver) bool {
	return tx.events.HasReceiver(r)
}

// Send implements [Sender] by writing data to the connection.
func (tx *ConnTransport) Send(data []byte, flags int) (int, error) {
	t0 := tx.TimeNow()
	count, err := tx.conn.Write(data)
	tx.logWriteDone(t0, len(data), count, tx.raddr, err)
	return count, err
}

// packetWriter is implemented by connectionless connections such as [*net.UDPConn].
type packetWriter interface {
	WriteTo(data []byte, addr net.Addr) (int, error)
}

// SendTo implements [Sender].
//
// Sending to the connected peer, or to the zero [netip.AddrPort], writes
// to the connection. Sending to other peers requires an unconnected
// connection implementing WriteTo, such as the one returned by
// [net.ListenUDP], and otherwise fails with [ErrNotAddressable].
func (tx *ConnTransport) SendTo(data []byte, peer netip.AddrPort, flags int) (int, error) {
	if !peer.IsValid() || peer == tx.peer {
		return tx.Send(data, flags)
	}
	if tx.peer.IsValid() {
		return 0, ErrNotAddressable
	}
	pw, ok := tx.conn.(packetWriter)
	if !ok {
		return 0, ErrNotAddressable
	}
	t0 := tx.TimeNow()
	count, err := pw.WriteTo(data, net.UDPAddrFromAddrPort(peer))
	tx.logWriteDone(t0, len(data), count, peer.String(), err)
	return count, err
}

// Run delivers the transport events to the receivers until the
// connection fails or ctx is done, then closes the connection.
//
// Returns nil when the peer closes the connection, the context error when
// ctx is done, and the read error otherwise. The read error, unless caused
// by EOF or by the context, is also delivered as an error event. A close
// event is always delivered last.
func (tx *ConnTransport) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		tx.Close()
	})
	defer stop()

	t0 := tx.TimeNow()
	tx.Logger.Info(
		"transportStart",
		slog.String("localAddr", tx.laddr),
		slog.String("protocol", tx.protocol),
		slog.String("remoteAddr", tx.raddr),
		slog.Time("t", t0),
		slog.String("transportID", tx.id),
	)

	tx.events.OnSocketConnect(tx)
	err := tx.loop(ctx)
	tx.events.OnSocketClose(tx)
	tx.Close()

	tx.Logger.Info(
		"transportDone",
		slog.Any("err", err),
		slog.String("errClass", tx.ErrClassifier.Classify(err)),
		slog.String("localAddr", tx.laddr),
		slog.String("protocol", tx.protocol),
		slog.String("remoteAddr", tx.raddr),
		slog.Time("t0", t0),
		slog.Time("t", tx.TimeNow()),
		slog.String("transportID", tx.id),
	)
	return err
}

func (tx *ConnTransport) loop(ctx context.Context) error {
	buf := make([]byte, tx.ReadBufferSize)
	for {
		t0 := tx.TimeNow()
		count, err := tx.conn.Read(buf)
		tx.logReadDone(t0, len(buf), count, err)
		if count > 0 {
			tx.events.OnSocketRecv(tx, buf[:count], tx.peer)
		}
		switch {
		case err == nil:
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, io.EOF):
			return nil
		default:
			tx.events.OnSocketError(tx, err)
			return err
		}
	}
}

// Close closes the connection. Subsequent calls return [net.ErrClosed].
func (tx *ConnTransport) Close() (err error) {
	err = net.ErrClosed
	tx.closeonce.Do(func() {
		err = tx.conn.Close()
	})
	return
}

func (tx *ConnTransport) logReadDone(t0 time.Time, size, count int, err error) {
	tx.Logger.Debug(
		"readDone",
		slog.Int("ioBufferSize", size),
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", tx.ErrClassifier.Classify(err)),
		slog.String("localAddr", tx.laddr),
		slog.String("protocol", tx.protocol),
		slog.String("remoteAddr", tx.raddr),
		slog.Time("t0", t0),
		slog.Time("t", tx.TimeNow()),
	)
}

func (tx *ConnTransport) logWriteDone(t0 time.Time, size, count int, raddr string, err error) {
	tx.Logger.Debug(
		"writeDone",
		slog.Int("ioBufferSize", size),
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", tx.ErrClassifier.Classify(err)),
		slog.String("localAddr", tx.laddr),
		slog.String("protocol", tx.protocol),
		slog.String("remoteAddr", raddr),
		slog.Time("t0", t0),
		slog.Time("t", tx.TimeNow()),
	)
}
