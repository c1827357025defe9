//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/tls.go
//

package sockpipe

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
)

// TLSConn abstracts over [*tls.Conn].
type TLSConn interface {
	// ConnectionState returns the connection state.
	ConnectionState() tls.ConnectionState

	// HandshakeContext performs the handshake unless interrupted by the context.
	HandshakeContext(ctx context.Context) error

	net.Conn
}

// NewTLSFunc returns a new [*TLSFunc] using the given [*tls.Config].
//
// The cfg argument contains the common configuration for sockpipe operations.
//
// The tlsConfig argument is the TLS configuration to use.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewTLSFunc(cfg *Config, tlsConfig *tls.Config, logger SLogger) *TLSFunc {
	runtimex.Assert(tlsConfig != nil)
	return &TLSFunc{
		Config:        tlsConfig,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		NewClient: func(conn net.Conn, config *tls.Config) TLSConn {
			return tls.Client(conn, config)
		},
		TimeNow: cfg.TimeNow,
	}
}

// TLSFunc secures a stream [net.Conn] before it becomes a transport.
//
// Compose it between [ConnectFunc] and [TransportFunc] so that the
// [*ConnTransport] delivers and sends cleartext:
//
//	Compose3(connect, secure, wrap)
//
// Returns either the handshaked connection or an error, never both. On
// failure, the input connection is closed.
type TLSFunc struct {
	// Config contains the [*tls.Config] configuration to use.
	//
	// Set by [NewTLSFunc] to the user-provided [*tls.Config] pointer.
	Config *tls.Config

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewTLSFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewTLSFunc] to the user-provided logger.
	Logger SLogger

	// NewClient wraps the connection into a client [TLSConn].
	//
	// Set by [NewTLSFunc] to a function calling [tls.Client].
	NewClient func(conn net.Conn, config *tls.Config) TLSConn

	// TimeNow is the function to get the current time.
	//
	// Set by [NewTLSFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[net.Conn, net.Conn] = &TLSFunc{}

// Call implements [Func].
func (op *TLSFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	config := op.Config.Clone()
	config.Time = op.TimeNow
	tconn := op.NewClient(conn, config)

	t0 := op.TimeNow()
	op.Logger.Info(
		"tlsHandshakeStart",
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
		slog.Any("tlsOfferedProtocols", config.NextProtos),
		slog.String("tlsServerName", config.ServerName),
	)

	err := tconn.HandshakeContext(ctx)
	state := tconn.ConnectionState()

	op.Logger.Info(
		"tlsHandshakeDone",
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
		slog.String("tlsCipherSuite", tls.CipherSuiteName(state.CipherSuite)),
		slog.String("tlsNegotiatedProtocol", state.NegotiatedProtocol),
		slog.String("tlsServerName", config.ServerName),
		slog.String("tlsVersion", tls.VersionName(state.Version)),
	)

	if err != nil {
		tconn.Close()
		return nil, err
	}
	return tconn, nil
}
