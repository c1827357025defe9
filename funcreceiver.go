// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import "net/netip"

// FuncReceiver is a [Receiver] built from optional functions.
//
// A nil function handles the corresponding event by returning [Continue].
// Use a pointer to a FuncReceiver so that it has a stable identity.
type FuncReceiver struct {
	// ConnectFunc handles connect events.
	ConnectFunc func(tx Transport) Propagation

	// RecvFunc handles receive events.
	RecvFunc func(tx Transport, data []byte, peer netip.AddrPort) Propagation

	// ErrorFunc handles error events.
	ErrorFunc func(tx Transport, err error) Propagation

	// CloseFunc handles close events.
	CloseFunc func(tx Transport) Propagation

	// PriorityValue is returned by Priority and must be in [0, 100].
	PriorityValue int
}

var _ Receiver = &FuncReceiver{}

// Priority implements [Receiver].
func (r *FuncReceiver) Priority() int {
	return r.PriorityValue
}

// OnSocketConnect implements [Receiver].
func (r *FuncReceiver) OnSocketConnect(tx Transport) Propagation {
	if r.ConnectFunc == nil {
		return Continue
	}
	return r.ConnectFunc(tx)
}

// OnSocketRecv implements [Receiver].
func (r *FuncReceiver) OnSocketRecv(tx Transport, data []byte, peer netip.AddrPort) Propagation {
	if r.RecvFunc == nil {
		return Continue
	}
	return r.RecvFunc(tx, data, peer)
}

// OnSocketError implements [Receiver].
func (r *FuncReceiver) OnSocketError(tx Transport, err error) Propagation {
	if r.ErrorFunc == nil {
		return Continue
	}
	return r.ErrorFunc(tx, err)
}

// OnSocketClose implements [Receiver].
func (r *FuncReceiver) OnSocketClose(tx Transport) Propagation {
	if r.CloseFunc == nil {
		return Continue
	}
	return r.CloseFunc(tx)
}
