package directory

// Node is the sum type for one entry in a service's address sub-tree,
// spec.md §9 Design Notes: "empty, hash, handler, services, bridge,
// remote_proxy". The original represents these as a tagged union;
// here each variant is its own type implementing Node, and a type
// switch in dispatch.go stands in for the tag check. Remote and
// bridge routing don't need their own node variant here: both are
// resolved through a service's Offerer.Kind (service.go) rather than
// through the address sub-tree, so only the three variants below are
// ever instantiated.
type Node interface {
	isNode()
}

// hashNode is an interior node: a map from the next path segment to
// its child node.
type hashNode struct {
	children map[string]Node
}

func newHashNode() *hashNode {
	return &hashNode{children: make(map[string]Node)}
}

func (*hashNode) isNode() {}

// handlerNode is a leaf: a registered callback for one full address.
type handlerNode struct {
	handler *Handler
}

func (*handlerNode) isNode() {}

// servicesNode represents the root of a locally-owned service's
// sub-tree — distinguished from hashNode so Dispatch can tell "this is
// the service root" (where a handler matching the bare service name
// applies to every message) from an ordinary interior node.
type servicesNode struct {
	root    *hashNode
	handler *Handler // handler registered at the bare "/svc" address, if any
}

func (*servicesNode) isNode() {}
