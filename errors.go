// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import "errors"

// ErrNoSender indicates that an outbound operation reached a node without a sender.
var ErrNoSender = errors.New("sockpipe: no sender configured")

// ErrInvalidSocketOperation is wrapped by [WritePacket] when sending fails.
var ErrInvalidSocketOperation = errors.New("sockpipe: invalid socket operation")

// ErrNotAddressable indicates that a transport cannot send to the given peer.
var ErrNotAddressable = errors.New("sockpipe: transport cannot send to this peer")
