// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"context"
	"log/slog"
	"net"
	"net/netip"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var records []slog.Record
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			records = append(records, record)
			return nil
		},
	}
	return slog.New(handler), &records
}

// recordMessages returns the message of each record.
func recordMessages(records []slog.Record) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.Message)
	}
	return out
}

// recordAttr returns the value of the named attribute of record.
func recordAttr(record slog.Record, name string) (value slog.Value, found bool) {
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == name {
			value, found = attr.Value, true
			return false
		}
		return true
	})
	return
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network].
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
	}
}

// sentData is a payload captured by a [stubTransport].
type sentData struct {
	data  []byte
	peer  netip.AddrPort
	flags int
}

// stubTransport is a [Transport] that accepts all bytes and records them.
//
// Use tx.Adapter.OnSocketX(tx, ...) to synthesize transport events.
type stubTransport struct {
	*Adapter
	sent []sentData
}

var _ Transport = &stubTransport{}

func newStubTransport() *stubTransport {
	tx := &stubTransport{Adapter: &Adapter{}}
	tx.Adapter.SetSelf(tx)
	return tx
}

// Send implements [Sender] and does not copy data, so tests can check identity.
func (tx *stubTransport) Send(data []byte, flags int) (int, error) {
	tx.sent = append(tx.sent, sentData{data: data, flags: flags})
	return len(data), nil
}

// SendTo implements [Sender] and does not copy data, so tests can check identity.
func (tx *stubTransport) SendTo(data []byte, peer netip.AddrPort, flags int) (int, error) {
	tx.sent = append(tx.sent, sentData{data: data, peer: peer, flags: flags})
	return len(data), nil
}

// failingSender is a [Sender] that always fails with err.
type failingSender struct {
	err error
}

func (s *failingSender) Send(data []byte, flags int) (int, error) {
	return 0, s.err
}

func (s *failingSender) SendTo(data []byte, peer netip.AddrPort, flags int) (int, error) {
	return 0, s.err
}

// newTracingReceiver returns a [*FuncReceiver] that appends name to
// calls for every event and then returns result.
func newTracingReceiver(calls *[]string, name string, result Propagation) *FuncReceiver {
	trace := func(event string) Propagation {
		*calls = append(*calls, name+":"+event)
		return result
	}
	return &FuncReceiver{
		ConnectFunc: func(tx Transport) Propagation {
			return trace("connect")
		},
		RecvFunc: func(tx Transport, data []byte, peer netip.AddrPort) Propagation {
			return trace("recv")
		},
		ErrorFunc: func(tx Transport, err error) Propagation {
			return trace("error")
		},
		CloseFunc: func(tx Transport) Propagation {
			return trace("close")
		},
	}
}
