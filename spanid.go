// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 identifying a span.
//
// Each [*Bridge] and [*ConnTransport] gets a span ID at construction and
// attaches it to all of its log events, so that the events of one pipeline
// can be correlated.
//
// This function panics if the system random number generator fails.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
