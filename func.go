// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import "context"

// Func is a blocking operation that turns an input into a result.
//
// Func instances set up the physical side of a pipeline: for example, a
// [*ConnectFunc] dials a [net.Conn] and a [*TransportFunc] wraps it into a
// [*ConnTransport]. Chain them using [Compose2] and [Compose3].
//
// When a Func receives a closeable resource and fails, it closes the
// resource before returning, so that composed funcs do not leak.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter wraps a function as a [Func] implementation.
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}
