// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net/netip"
)

// ErrFrameTooLarge indicates that a message does not fit a two-byte length prefix.
var ErrFrameTooLarge = errors.New("sockpipe: message too large for a frame")

// NewStreamFramer returns a new [*StreamFramer] forwarding to sender.
func NewStreamFramer(sender Sender) *StreamFramer {
	f := &StreamFramer{Adapter: NewAdapter(sender)}
	f.Adapter.SetSelf(f)
	return f
}

// StreamFramer is a layered [Node] delimiting messages over a stream
// transport with a two-byte big-endian length prefix, which is the
// framing used by DNS over TCP and DNS over TLS.
//
// Outbound messages are prefixed before reaching the sender. Inbound bytes
// are buffered until a whole message is available and each message is then
// broadcast as a separate receive event. Receivers downstream of a framer
// thus see the stream as a sequence of datagrams.
//
// Register the framer as a receiver of the node it sends through.
type StreamFramer struct {
	*Adapter
	pending []byte
}

var _ Node = &StreamFramer{}

// Send implements [Sender] by sending data as a single frame.
//
// Returns the number of message bytes sent, excluding the prefix.
func (f *StreamFramer) Send(data []byte, flags int) (int, error) {
	frame, err := newFrame(data)
	if err != nil {
		return 0, err
	}
	count, err := f.Adapter.Send(frame, flags)
	return max(count-2, 0), err
}

// SendTo implements [Sender] by sending data to peer as a single frame.
func (f *StreamFramer) SendTo(data []byte, peer netip.AddrPort, flags int) (int, error) {
	frame, err := newFrame(data)
	if err != nil {
		return 0, err
	}
	count, err := f.Adapter.SendTo(frame, peer, flags)
	return max(count-2, 0), err
}

func newFrame(data []byte) ([]byte, error) {
	if len(data) > math.MaxUint16 {
		return nil, ErrFrameTooLarge
	}
	frame := make([]byte, 2, 2+len(data))
	binary.BigEndian.PutUint16(frame, uint16(len(data)))
	return append(frame, data...), nil
}

// OnSocketRecv implements [Receiver] by broadcasting each complete message.
func (f *StreamFramer) OnSocketRecv(tx Transport, data []byte, peer netip.AddrPort) Propagation {
	f.pending = append(f.pending, data...)
	consumed := 0
	for len(f.pending)-consumed >= 2 {
		size := int(binary.BigEndian.Uint16(f.pending[consumed:]))
		if len(f.pending)-consumed-2 < size {
			break
		}
		msg := f.pending[consumed+2 : consumed+2+size]
		consumed += 2 + size
		f.Adapter.OnSocketRecv(tx, msg, peer)
	}
	if consumed > 0 {
		// Drop the delivered messages.
		f.pending = append([]byte(nil), f.pending[consumed:]...)
	}
	return Continue
}

// OnSocketClose implements [Receiver].
//
// A partial message still buffered is reported as an [io.ErrUnexpectedEOF]
// error event before the close event.
func (f *StreamFramer) OnSocketClose(tx Transport) Propagation {
	if len(f.pending) > 0 {
		f.pending = nil
		f.Adapter.OnSocketError(tx, io.ErrUnexpectedEOF)
	}
	return f.Adapter.OnSocketClose(tx)
}
