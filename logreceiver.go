// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewLogReceiver returns a new [*LogReceiver].
//
// The cfg argument contains the common configuration for sockpipe operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewLogReceiver(cfg *Config, logger SLogger) *LogReceiver {
	return &LogReceiver{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// LogReceiver is a [Receiver] logging every transport event.
//
// Connect, error, and close events are logged at Info level and
// receive events at Debug level. When the transport exposes its
// [net.Conn] through a Conn method, events include its addresses.
//
// LogReceiver never stops propagation.
type LogReceiver struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewLogReceiver] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewLogReceiver] to the user-provided logger.
	Logger SLogger

	// PriorityValue is the priority returned by Priority.
	PriorityValue int

	// TimeNow is the function to get the current time.
	//
	// Set by [NewLogReceiver] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Receiver = &LogReceiver{}

// Priority implements [Receiver].
func (r *LogReceiver) Priority() int {
	return r.PriorityValue
}

// OnSocketConnect implements [Receiver].
func (r *LogReceiver) OnSocketConnect(tx Transport) Propagation {
	conn := transportConn(tx)
	r.Logger.Info(
		"socketConnect",
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", r.TimeNow()),
	)
	return Continue
}

// OnSocketRecv implements [Receiver].
func (r *LogReceiver) OnSocketRecv(tx Transport, data []byte, peer netip.AddrPort) Propagation {
	conn := transportConn(tx)
	r.Logger.Debug(
		"socketRecv",
		slog.Int("ioBytesCount", len(data)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("peerAddr", peer.String()),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", r.TimeNow()),
	)
	return Continue
}

// OnSocketError implements [Receiver].
func (r *LogReceiver) OnSocketError(tx Transport, err error) Propagation {
	conn := transportConn(tx)
	r.Logger.Info(
		"socketError",
		slog.Any("err", err),
		slog.String("errClass", r.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", r.TimeNow()),
	)
	return Continue
}

// OnSocketClose implements [Receiver].
func (r *LogReceiver) OnSocketClose(tx Transport) Propagation {
	conn := transportConn(tx)
	r.Logger.Info(
		"socketClose",
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", r.TimeNow()),
	)
	return Continue
}

// transportConn returns the connection of tx or nil.
func transportConn(tx Transport) net.Conn {
	if c, ok := tx.(interface{ Conn() net.Conn }); ok {
		return c.Conn()
	}
	return nil
}
