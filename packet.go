// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"bytes"
	"fmt"
	"net/netip"
)

// Packet is a unit of outbound data that knows how to serialize itself.
type Packet interface {
	// Size returns the serialized size in bytes.
	Size() int

	// Write appends the serialized packet to buf.
	Write(buf *bytes.Buffer) error
}

// ContiguousPacket is a [Packet] already backed by contiguous bytes.
//
// Sending a ContiguousPacket never copies its bytes.
type ContiguousPacket interface {
	Packet

	// Bytes returns the backing bytes. The caller must not modify them.
	Bytes() []byte
}

// RawPacket is a [ContiguousPacket] wrapping a byte slice.
type RawPacket struct {
	data []byte
}

var _ ContiguousPacket = &RawPacket{}

// NewRawPacket returns a [*RawPacket] backed by data without copying it.
func NewRawPacket(data []byte) *RawPacket {
	return &RawPacket{data: data}
}

// Bytes implements [ContiguousPacket].
func (p *RawPacket) Bytes() []byte {
	return p.data
}

// Size implements [Packet].
func (p *RawPacket) Size() int {
	return len(p.data)
}

// Write implements [Packet].
func (p *RawPacket) Write(buf *bytes.Buffer) error {
	_, err := buf.Write(p.data)
	return err
}

// sendBufferHint is the capacity reserved when serializing a packet for a peer.
const sendBufferHint = 2048

// SendPacket sends pkt through s.
//
// A [ContiguousPacket] is sent using its backing bytes directly. Any other
// packet is serialized into one temporary buffer, which is then sent.
func SendPacket(s Sender, pkt Packet, flags int) (int, error) {
	if raw, ok := pkt.(ContiguousPacket); ok {
		return s.Send(raw.Bytes(), flags)
	}
	var buf bytes.Buffer
	if err := pkt.Write(&buf); err != nil {
		return 0, err
	}
	return s.Send(buf.Bytes(), flags)
}

// SendPacketTo is like [SendPacket] but sends to the given peer.
//
// The temporary buffer used for non-contiguous packets reserves 2048 bytes.
func SendPacketTo(s Sender, pkt Packet, peer netip.AddrPort, flags int) (int, error) {
	if raw, ok := pkt.(ContiguousPacket); ok {
		return s.SendTo(raw.Bytes(), peer, flags)
	}
	var buf bytes.Buffer
	buf.Grow(sendBufferHint)
	if err := pkt.Write(&buf); err != nil {
		return 0, err
	}
	return s.SendTo(buf.Bytes(), peer, flags)
}

// WritePacket sends pkt through s with no flags.
//
// Unlike [SendPacket], any failure is reported as an error
// wrapping [ErrInvalidSocketOperation].
func WritePacket(s Sender, pkt Packet) error {
	if _, err := SendPacket(s, pkt, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSocketOperation, err)
	}
	return nil
}
