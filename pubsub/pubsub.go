// SPDX-License-Identifier: GPL-3.0-or-later

// Package pubsub implements priority-ordered publish/subscribe channels.
//
// A [Channel] delivers each emitted event to its attached handlers in
// priority order (higher priority first, equal priorities in attach order).
//
// Channels are not safe for concurrent use. They are designed to be used
// from a single event-processing goroutine and are safe for reentrant use
// from that goroutine: a handler may attach or detach handlers while an
// emission is in progress.
package pubsub

import "github.com/bassosimone/runtimex"

// Propagation tells an emitter whether to keep delivering an event.
type Propagation int

const (
	// Continue lets the emitter deliver the event to the next handler.
	Continue Propagation = iota

	// Stop halts the current emission. Handlers not yet invoked are skipped.
	Stop
)

// String returns a string representation of the [Propagation].
func (p Propagation) String() string {
	switch p {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// slot is a handler attached to a [Channel].
type slot[E any] struct {
	owner    any
	fn       func(E) Propagation
	priority int
	alive    bool
}

// Channel is a priority-ordered publish/subscribe channel for events of type E.
//
// The zero value is ready to use.
type Channel[E any] struct {
	slots []*slot[E]
}

// Attach attaches fn to the channel on behalf of owner with the given priority.
//
// The owner identifies the attachment for [Channel.Detach] and [Channel.Has]
// and must be comparable. Handlers attached while an emission is in progress
// are not invoked by that emission.
func (c *Channel[E]) Attach(owner any, fn func(E) Propagation, priority int) {
	runtimex.Assert(fn != nil)
	s := &slot[E]{owner: owner, fn: fn, priority: priority, alive: true}

	// Copy on write so that in-flight emissions keep their snapshot.
	index := len(c.slots)
	for i, other := range c.slots {
		if other.priority < priority {
			index = i
			break
		}
	}
	slots := make([]*slot[E], 0, len(c.slots)+1)
	slots = append(slots, c.slots[:index]...)
	slots = append(slots, s)
	slots = append(slots, c.slots[index:]...)
	c.slots = slots
}

// Detach detaches every handler attached on behalf of owner.
//
// Returns whether at least one handler was detached. Detached handlers are
// not invoked again, including by an emission already in progress.
func (c *Channel[E]) Detach(owner any) bool {
	found := false
	slots := make([]*slot[E], 0, len(c.slots))
	for _, s := range c.slots {
		if s.owner == owner {
			s.alive = false
			found = true
			continue
		}
		slots = append(slots, s)
	}
	if found {
		c.slots = slots
	}
	return found
}

// Has returns whether owner has at least one handler attached.
func (c *Channel[E]) Has(owner any) bool {
	for _, s := range c.slots {
		if s.owner == owner {
			return true
		}
	}
	return false
}

// Owners returns the owner of each attached handler in emission order.
func (c *Channel[E]) Owners() []any {
	out := make([]any, 0, len(c.slots))
	for _, s := range c.slots {
		out = append(out, s.owner)
	}
	return out
}

// Len returns the number of attached handlers.
func (c *Channel[E]) Len() int {
	return len(c.slots)
}

// Emit delivers ev to the attached handlers in priority order.
//
// Returns [Stop] if a handler halted the emission and [Continue] otherwise.
func (c *Channel[E]) Emit(ev E) Propagation {
	for _, s := range c.slots {
		if !s.alive {
			continue
		}
		if s.fn(ev) == Stop {
			return Stop
		}
	}
	return Continue
}
