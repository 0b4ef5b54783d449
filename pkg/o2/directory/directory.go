// Package directory implements the service directory & dispatch
// component: a two-level hash from service name to service-entry,
// each entry optionally rooted in a sub-tree of handler records, plus
// tap propagation and property advertisement.
package directory

import (
	"errors"

	"github.com/ensemble-io/o2core/pkg/o2log"
	"github.com/ensemble-io/o2core/pkg/o2/wire"
)

// DefaultTapTTLLimit is the maximum number of tap hops a message may
// take before it is no longer re-tapped. Configurable per ensemble via
// Configuration.TapTTLLimit; 3 matches the original's hard-coded loop
// guard.
const DefaultTapTTLLimit = 3

var (
	ErrNoService     = errors.New("directory: no such service")
	ErrTypeMismatch  = errors.New("directory: argument types do not match handler")
	ErrAlreadyExists = errors.New("directory: service already offered by this process")
)

// Sender abstracts whatever delivers a serialized message to a remote
// peer process; the o2 Ensemble (over its transport) and the o2test
// Router implement it. Kept narrow so the directory never depends on
// transport directly.
type Sender interface {
	SendTo(process string, msg *wire.Message, reliable bool) error
}

// BridgeSender abstracts handing a message to a registered bridge
// plug-in by name, spec.md §4.C step 5 "invoke its deliver with the
// message" / §6 "Bridge plug-in contract". Kept separate from Sender
// since a bridge name is never a live socket's peer process name.
type BridgeSender interface {
	SendToBridge(name string, msg *wire.Message) error
}

// WarnFunc receives a non-fatal dispatch warning (no_service,
// type_mismatch, ...), e.g. wired to o2log.Logger.Warnf.
type WarnFunc func(kind string, address string, detail string)

// Directory is the single-owner top-level service table. It is not
// safe for concurrent use: every mutation is expected to happen from
// the poll thread, per the ambient single-threaded contract.
type Directory struct {
	self     string // this process's own name, for conflict resolution and locality checks
	services map[string]*Service
	tapTTL   uint32

	sender       Sender
	bridgeSender BridgeSender
	warn         WarnFunc
	log          o2log.Logger

	statusCh   chan StatusChange
	pending    []*wire.Message // cross-dispatch deferred queue, drained by the scheduler/caller
	inDispatch int             // >0 while Dispatch is on the stack, guards recursive delivery
}

// StatusChange is emitted on every service ownership transition,
// mirroring /_o2/si.
type StatusChange struct {
	Service     string
	Status      ServiceStatus
	Process     string
	Properties  string
}

// ServiceStatus enumerates the values a service can report, spec.md
// §4.E "status propagation" plus §4.C conflict resolution.
type ServiceStatus int

const (
	StatusLocal ServiceStatus = iota
	StatusRemote
	StatusRemoteNoTime
	StatusBridge
	StatusBridgeNoTime
	StatusUnknown
)

func (s ServiceStatus) String() string {
	switch s {
	case StatusLocal:
		return "local"
	case StatusRemote:
		return "remote"
	case StatusRemoteNoTime:
		return "remote_notime"
	case StatusBridge:
		return "bridge"
	case StatusBridgeNoTime:
		return "bridge_notime"
	default:
		return "unknown"
	}
}

// New creates an empty directory owned by the process named self.
func New(self string, sender Sender, warn WarnFunc, log o2log.Logger) *Directory {
	return &Directory{
		self:     self,
		services: make(map[string]*Service),
		tapTTL:   DefaultTapTTLLimit,
		sender:   sender,
		warn:     warn,
		log:      log,
		statusCh: make(chan StatusChange, 64),
	}
}

// SetBridgeSender attaches the collaborator responsible for handing a
// message to a registered bridge; without it forwardBridge (also used
// for tap copies to a bridge-provided tapper) drops to a no_sender
// warning the same way forwardRemote does with a nil Sender.
func (d *Directory) SetBridgeSender(s BridgeSender) {
	d.bridgeSender = s
}

// SetTapTTLLimit overrides the default loop guard, per
// Configuration.TapTTLLimit.
func (d *Directory) SetTapTTLLimit(n uint32) {
	if n > 0 {
		d.tapTTL = n
	}
}

// StatusChanges returns the channel status-change notifications are
// posted to; callers drain it to emit /_o2/si.
func (d *Directory) StatusChanges() <-chan StatusChange {
	return d.statusCh
}

func (d *Directory) notify(sc StatusChange) {
	select {
	case d.statusCh <- sc:
	default:
		d.log.Warnf("status change channel full, dropping %+v", sc)
	}
}

// Lookup returns the named service entry, or nil if unknown.
func (d *Directory) Lookup(name string) *Service {
	return d.services[name]
}

// PendingCount reports how many messages are queued for post-dispatch
// delivery (spec.md §4.D "pending messages").
func (d *Directory) PendingCount() int {
	return len(d.pending)
}

// TakePending drains and returns the pending queue in FIFO order.
func (d *Directory) TakePending() []*wire.Message {
	p := d.pending
	d.pending = nil
	return p
}

// deferOrDispatch appends msg to the pending queue while a Dispatch is
// on the stack (tracked by inDispatch) and dispatches it directly
// otherwise. Nothing in this module calls it: handler sends made
// through Ensemble.Send are deferred by the scheduler's own pending
// queue instead, and only during a scheduler-driven dispatch.
func (d *Directory) deferOrDispatch(msg *wire.Message) {
	if d.inDispatch > 0 {
		d.pending = append(d.pending, msg)
		return
	}
	d.Dispatch(msg)
}
