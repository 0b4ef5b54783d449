// Package bridge defines the plug-in contract foreign-protocol bridges
// implement, spec.md §6 "Bridge plug-in contract".
package bridge

import "github.com/ensemble-io/o2core/pkg/o2/wire"

// Disposition is how a bridge's Send callback disposes of the message
// it was handed.
type Disposition int

const (
	// CompleteDelivery frees the message immediately: the bridge is
	// done with it (spec.md §6 "complete_delivery (free)").
	CompleteDelivery Disposition = iota
	// PostponeDelivery takes ownership for a deferred send (spec.md
	// §6 "postpone_delivery (take ownership for deferred send)").
	PostponeDelivery
)

// Bridge is implemented by a foreign-protocol plug-in. Poll is invoked
// once per O2 poll cycle to service the bridge's own I/O; Send is
// given the current outbound message and returns how it disposed of
// it.
type Bridge interface {
	// Name identifies the bridge in the directory, e.g. as the
	// process name behind a directory.OfferBridge offer.
	Name() string

	// Poll services the bridge's own transport; invoked once per core
	// poll cycle, never re-entrantly (spec.md §5).
	Poll()

	// Send forwards msg through the bridge's foreign protocol.
	Send(msg *wire.Message) Disposition
}

// Registry tracks the bridges attached to an ensemble and drives their
// Poll calls from the core's own poll loop.
type Registry struct {
	bridges map[string]Bridge
}

// NewRegistry creates an empty bridge registry.
func NewRegistry() *Registry {
	return &Registry{bridges: make(map[string]Bridge)}
}

// Register adds b, keyed by its own Name().
func (r *Registry) Register(b Bridge) {
	r.bridges[b.Name()] = b
}

// Remove drops a bridge by name.
func (r *Registry) Remove(name string) {
	delete(r.bridges, name)
}

// Lookup returns the bridge registered under name, or nil.
func (r *Registry) Lookup(name string) Bridge {
	return r.bridges[name]
}

// PollAll services every registered bridge's I/O, in registration
// order is not guaranteed (map iteration), matching the core's
// tolerance for unordered dispatch across independent bridges.
func (r *Registry) PollAll() {
	for _, b := range r.bridges {
		b.Poll()
	}
}
