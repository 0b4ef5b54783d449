package o2

// DiscoveryKind enumerates how a peer-found event was produced,
// spec.md §6 "discovery_kind ∈ {info, hub, reply, callback, connect,
// bridge_lite}".
type DiscoveryKind int

const (
	DiscoveryInfo DiscoveryKind = iota
	DiscoveryHub
	DiscoveryReply
	DiscoveryCallback
	DiscoveryConnect
	DiscoveryBridgeLite
)

// Version packs (major, minor, patch) the way discovery announcements
// encode it, spec.md §6 "version_number = (major·256 + minor)·256 +
// patch".
type Version struct {
	Major, Minor, Patch uint8
}

// Number renders the packed integer form used on the wire.
func (v Version) Number() int32 {
	return (int32(v.Major)*256+int32(v.Minor))*256 + int32(v.Patch)
}

// DiscoveryEvent is what an external discovery collaborator delivers
// for each peer it finds (spec.md §6 "Discovery event contract
// (consumed)"). o2core never dials out to discover peers itself: the
// application feeds these in from whatever broadcast/mDNS/hub
// mechanism it chooses.
type DiscoveryEvent struct {
	Ensemble   string
	Version    Version
	PublicIP   uint32
	InternalIP uint32
	TCPPort    uint16
	UDPPort    uint16
	Kind       DiscoveryKind

	// Process is the discovered peer's stable process name, derived
	// from PublicIP/InternalIP/TCPPort by whatever discovery
	// collaborator produced this event.
	Process string

	// Services lists the service names the peer announced offering,
	// carried alongside the discovery announcement itself (spec.md §6
	// "/_o2/dy" is the bare discovery ping; service offers arrive via
	// the same collaborator bundling its own "/_o2/sv" view).
	Services []string
}

// PeerFound is implemented by whatever consumes discovery events; an
// Ensemble implements it so any broadcast/mDNS/hub source can feed it
// directly.
type PeerFound interface {
	PeerFound(ev DiscoveryEvent)
}

// versionCompatible reports whether a remote peer's version is
// compatible per spec.md §6: "A connection is only completed when
// major versions match and ensembles match."
func versionCompatible(local, remote Version) bool {
	return local.Major == remote.Major
}
