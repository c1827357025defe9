// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"bytes"
	"net/netip"

	"github.com/bassosimone/runtimex"
	"github.com/miekg/dns"
)

// DNSPacket is a [Packet] serializing a DNS message.
//
// The message is packed when the packet is sent, so sending a DNSPacket
// always goes through one temporary buffer.
type DNSPacket struct {
	// Msg is the message to send.
	Msg *dns.Msg
}

var _ Packet = &DNSPacket{}

// NewDNSQueryPacket returns a [*DNSPacket] containing a recursive query
// for name and qtype with a random ID.
func NewDNSQueryPacket(name string, qtype uint16) *DNSPacket {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	return &DNSPacket{Msg: msg}
}

// Size implements [Packet].
func (p *DNSPacket) Size() int {
	return p.Msg.Len()
}

// Write implements [Packet].
func (p *DNSPacket) Write(buf *bytes.Buffer) error {
	raw, err := p.Msg.Pack()
	if err != nil {
		return err
	}
	_, err = buf.Write(raw)
	return err
}

// NewDNSReceiver returns a [*DNSReceiver] waiting for the response to query.
//
// The onResponse callback is invoked once per matching response.
func NewDNSReceiver(query *dns.Msg, onResponse func(resp *dns.Msg)) *DNSReceiver {
	runtimex.Assert(query != nil && onResponse != nil)
	return &DNSReceiver{
		OnResponse: onResponse,
		Query:      query,
	}
}

// DNSReceiver is a [Receiver] parsing received datagrams as DNS responses.
//
// When a datagram is the response to [DNSReceiver.Query], the receiver
// invokes OnResponse and stops the propagation of the receive event, since
// the datagram has been consumed. Other datagrams propagate unchanged.
//
// Use DNSReceiver over datagram transports, where each receive
// event carries exactly one message.
type DNSReceiver struct {
	FuncReceiver

	// OnResponse is invoked with each response to Query.
	OnResponse func(resp *dns.Msg)

	// Query is the query whose responses we are waiting for.
	Query *dns.Msg
}

var _ Receiver = &DNSReceiver{}

// OnSocketRecv implements [Receiver].
func (r *DNSReceiver) OnSocketRecv(tx Transport, data []byte, peer netip.AddrPort) Propagation {
	resp := new(dns.Msg)
	if err := resp.Unpack(data); err != nil {
		return Continue
	}
	if !r.matches(resp) {
		return Continue
	}
	r.OnResponse(resp)
	return StopPropagation
}

func (r *DNSReceiver) matches(resp *dns.Msg) bool {
	if !resp.Response || resp.Id != r.Query.Id {
		return false
	}
	if len(resp.Question) != len(r.Query.Question) {
		return false
	}
	for idx, q := range r.Query.Question {
		other := resp.Question[idx]
		if dns.CanonicalName(other.Name) != dns.CanonicalName(q.Name) ||
			other.Qtype != q.Qtype || other.Qclass != q.Qclass {
			return false
		}
	}
	return true
}
