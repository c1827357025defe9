// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

// linkState is the state of a [receiverLink].
type linkState int

const (
	// linkAlive means the receiver participates in broadcasts.
	linkAlive linkState = iota

	// linkRemoved means the receiver was removed and awaits the next sweep.
	linkRemoved

	// linkClosed means the receiver was found closed during a broadcast
	// and awaits the next sweep.
	linkClosed
)

// receiverLink is an element of a [Registry].
//
// The registry owns the link, never the target.
type receiverLink struct {
	target Receiver
	state  linkState
}

// alive returns whether the link participates in broadcasts.
func (l *receiverLink) alive() bool {
	return l.state == linkAlive
}

// closer is implemented by receivers that can report having been closed.
type closer interface {
	Closed() bool
}

// Registry is an ordered collection of [Receiver] links.
//
// Removal is deferred: [Registry.Remove] marks a link as dead and the link
// is purged by the next [Registry.Cleanup] following an [Registry.Add]. This
// makes mutating the registry from within a [Registry.Broadcast] safe.
//
// Receivers are compared by identity, so they must be comparable (typically
// pointers). The zero value is ready to use.
type Registry struct {
	links []*receiverLink
	dirty bool
}

// Add appends target to the registry.
//
// Returns false, doing nothing, when target is already present, including
// a removed target whose link was not swept yet.
func (r *Registry) Add(target Receiver) bool {
	if r.find(target) != nil {
		return false
	}
	r.links = append(r.links, &receiverLink{target: target, state: linkAlive})
	r.dirty = true
	return true
}

// Remove marks the first link pointing to target as removed.
//
// The link is not deallocated and the registry is not marked dirty, so the
// link is only purged by a sweep following a later [Registry.Add].
func (r *Registry) Remove(target Receiver) bool {
	link := r.find(target)
	if link == nil {
		return false
	}
	link.state = linkRemoved
	return true
}

// Has returns whether target is present, alive or not.
func (r *Registry) Has(target Receiver) bool {
	return r.find(target) != nil
}

func (r *Registry) find(target Receiver) *receiverLink {
	for _, link := range r.links {
		if link.target == target {
			return link
		}
	}
	return nil
}

// Receivers returns the targets of all links, alive or not, in registry order.
func (r *Registry) Receivers() []Receiver {
	out := make([]Receiver, 0, len(r.links))
	for _, link := range r.links {
		out = append(out, link.target)
	}
	return out
}

// Len returns the number of stored links, alive or not.
func (r *Registry) Len() int {
	return len(r.links)
}

// Cleanup purges dead links if the registry is dirty.
//
// The purged registry is a fresh slice so that in-flight broadcasts keep
// iterating over their own snapshot.
func (r *Registry) Cleanup() {
	if !r.dirty {
		return
	}
	links := make([]*receiverLink, 0, len(r.links))
	for _, link := range r.links {
		if link.alive() {
			links = append(links, link)
		}
	}
	r.links = links
	r.dirty = false
}

// Broadcast invokes fn on each alive link, most recently added first.
//
// Only the links present when Broadcast starts are visited. Links removed
// during the broadcast are skipped as soon as they are removed. Targets
// implementing Closed() and reporting true are demoted instead of invoked.
//
// If fn returns [StopPropagation], Broadcast returns immediately without
// visiting the remaining links and without sweeping. Otherwise, it runs
// [Registry.Cleanup] and returns [Continue].
func (r *Registry) Broadcast(fn func(Receiver) Propagation) Propagation {
	links := r.links
	for idx := len(links) - 1; idx >= 0; idx-- {
		link := links[idx]
		if !link.alive() {
			continue
		}
		if c, ok := link.target.(closer); ok && c.Closed() {
			link.state = linkClosed
			r.dirty = true
			continue
		}
		if fn(link.target) == StopPropagation {
			return StopPropagation
		}
	}
	r.Cleanup()
	return Continue
}
