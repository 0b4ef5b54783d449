package o2

import (
	"github.com/ensemble-io/o2core/pkg/o2/bridge"
	"github.com/ensemble-io/o2core/pkg/o2/clocksync"
	"github.com/ensemble-io/o2core/pkg/o2/directory"
	"github.com/ensemble-io/o2core/pkg/o2/sched"
	"github.com/ensemble-io/o2core/pkg/o2/transport"
	"github.com/ensemble-io/o2core/pkg/o2/wire"
	"github.com/ensemble-io/o2core/pkg/o2log"
)

// Ensemble is one process's view of the ensemble: the directory,
// scheduler, clock, transport, and bridge registry wired together
// behind the single Poll entrypoint spec.md §5 requires. It is not
// safe for concurrent use; every exported method other than PeerFound
// feeding must be called from the same goroutine that calls Poll.
type Ensemble struct {
	self   Process
	config Configuration
	log    o2log.Logger

	directory    *directory.Directory
	scheduler    *sched.Scheduler
	clock        *clocksync.Clock
	transport    *transport.Transport
	bridges      *bridge.Registry
	remote       directory.Sender
	peers        map[string]*transport.Socket // process name -> bound socket, populated by network.go
	clockSession *clocksync.Session           // non-reference side only, started by checkClockReference

	localTime func() float64
}

// New creates an Ensemble bound to self's process identity. localTime
// supplies the monotonic local clock the scheduler and clocksync
// packages advance against; production callers pass something backed
// by time.Now, tests pass a synthetic clock.
func New(self Process, config Configuration, localTime func() float64) *Ensemble {
	if config.Logger == nil {
		config.Logger = o2log.New(self.String())
	}
	e := &Ensemble{
		self:      self,
		config:    config,
		log:       config.Logger,
		transport: transport.New(config.Logger),
		bridges:   bridge.NewRegistry(),
		localTime: localTime,
	}
	e.directory = directory.New(self.String(), senderFunc(e.sendTo), e.warn, config.Logger)
	e.directory.SetBridgeSender(bridgeSenderFunc(e.sendToBridge))
	e.directory.SetTapTTLLimit(config.TapTTLLimit)
	e.clock = clocksync.New(config.Logger, config.JumpCallback)
	e.scheduler = sched.New(e.dispatchEntry)
	e.clock.ShiftPending = func(delta float64) { e.scheduler.Global.ShiftPending(delta) }
	e.setupInternalService()
	return e
}

type senderFunc func(process string, msg *wire.Message, reliable bool) error

func (f senderFunc) SendTo(process string, msg *wire.Message, reliable bool) error {
	return f(process, msg, reliable)
}

type bridgeSenderFunc func(name string, msg *wire.Message) error

func (f bridgeSenderFunc) SendToBridge(name string, msg *wire.Message) error {
	return f(name, msg)
}

func (e *Ensemble) warn(kind, address, detail string) {
	if e.config.DropWarning != nil {
		e.config.DropWarning(DropReason(kind), address)
	}
}

// Poll is the single entrypoint spec.md §5 mandates: it advances the
// scheduler against current local time, drains ready transport frames
// (dispatching each as it arrives), and services every registered
// bridge. Nothing else in this package ever runs outside this call.
func (e *Ensemble) Poll() {
	now := e.localTime()
	e.checkClockReference(now)
	e.scheduler.Poll(now)
	e.transport.Poll()
	e.bridges.PollAll()
}

func (e *Ensemble) dispatchEntry(ent sched.Entry) {
	msg, ok := ent.Payload.(*wire.Message)
	if !ok {
		return
	}
	e.directory.Dispatch(msg)
}

// sendTo resolves process to a live socket and enqueues msg on it.
// e.peers only ever binds a process's TCP connection (network.go);
// a UDP fast path for reliable=false sends is left to whatever
// transport glue the caller wires in as a Sender via SetRemoteSender,
// the same way a bridge or a test router replaces this method
// entirely.
func (e *Ensemble) sendTo(process string, msg *wire.Message, reliable bool) error {
	if e.remote != nil {
		return e.remote.SendTo(process, msg, reliable)
	}
	s, ok := e.peers[process]
	if !ok {
		return ErrSendFail
	}
	frame, err := wire.Encode(msg)
	if err != nil {
		return ErrInvalidMessage
	}
	e.transport.Enqueue(s, frame)
	return nil
}

// SetRemoteSender attaches the collaborator responsible for getting a
// serialized message to another process — a live transport-backed
// sender in production, or a direct in-process router in tests.
func (e *Ensemble) SetRemoteSender(sender directory.Sender) {
	e.remote = sender
}

// sendToBridge hands msg to the bridge registered under name,
// disposing of it per spec.md §6: CompleteDelivery and
// PostponeDelivery both mean the bridge took the message, the only
// difference being whether it frees it immediately or keeps it for a
// deferred send of its own; either way delivery from the core's
// perspective is done.
func (e *Ensemble) sendToBridge(name string, msg *wire.Message) error {
	b := e.bridges.Lookup(name)
	if b == nil {
		return ErrSendFail
	}
	switch b.Send(msg) {
	case bridge.CompleteDelivery, bridge.PostponeDelivery:
		return nil
	}
	return nil
}

// OfferBridge registers b (if not already registered) and offers
// service as provided through it, spec.md §6 "Bridge plug-in
// contract": a bridge becomes an active provider the same way a local
// or remote offer does, just routed through b.Send instead of a
// socket.
func (e *Ensemble) OfferBridge(service string, b bridge.Bridge, properties string) error {
	if !ValidServiceName(service) {
		return ErrBadName
	}
	e.bridges.Register(b)
	e.directory.OfferRemote(service, b.Name(), directory.OfferBridge, properties)
	return nil
}

// DeliverFromRouter dispatches msg exactly as if it had just arrived
// over the transport layer; used by in-process test routers that
// stand in for a real socket.
func (e *Ensemble) DeliverFromRouter(msg *wire.Message) {
	e.directory.Dispatch(msg)
}

// CreateService offers name as a locally-handled service, spec.md
// §4.C.
func (e *Ensemble) CreateService(name string) error {
	if !ValidServiceName(name) {
		return ErrBadName
	}
	_, err := e.directory.CreateService(name)
	if err == directory.ErrAlreadyExists {
		return ErrServiceExists
	}
	return err
}

// AddHandler registers callback at fullPath under a locally-owned
// service (spec.md §4.C leaf handler record).
func (e *Ensemble) AddHandler(fullPath, typeSpec string, coerce, parse bool, callback directory.HandlerFunc, userData interface{}) error {
	h := &directory.Handler{
		TypeSpec: typeSpec,
		Coerce:   coerce,
		Parse:    parse,
		Callback: callback,
		UserData: userData,
	}
	if err := e.directory.AddHandler(fullPath, h); err != nil {
		return ErrNoService
	}
	return nil
}

// Send dispatches msg immediately, or schedules it if msg.Timestamp is
// non-zero (spec.md §4.D "Global-time scheduling requires clock
// sync"). Messages produced while a scheduler-driven dispatch is in
// progress are deferred to the scheduler's pending queue; outside of
// one they are dispatched at once, even from inside a handler.
func (e *Ensemble) Send(msg *wire.Message) error {
	if msg.Timestamp == 0 {
		if e.scheduler.InDispatch() {
			e.scheduler.Defer(sched.Entry{Payload: msg})
			return nil
		}
		e.directory.Dispatch(msg)
		return nil
	}
	if err := e.scheduler.InsertGlobal(sched.Entry{Timestamp: msg.Timestamp, Payload: msg}); err != nil {
		return ErrNoClock
	}
	return nil
}

// Schedule inserts msg for delivery at its timestamp against the local
// (not synchronized) clock; always permitted (spec.md §4.D
// "InsertLocal").
func (e *Ensemble) Schedule(msg *wire.Message) {
	e.scheduler.Local.Insert(sched.Entry{Timestamp: msg.Timestamp, Payload: msg})
}

// Flush removes every message pending on the global scheduler, spec.md
// §4.D "Flush", returning the count removed.
func (e *Ensemble) Flush() int {
	return e.scheduler.FlushGlobal()
}

// Tap registers tapper to receive copies of every message delivered
// to tappee (spec.md §3 "Tap").
func (e *Ensemble) Tap(tappee, tapper string, mode directory.TapMode) error {
	if err := e.directory.AddTap(tappee, tapper, mode); err != nil {
		return ErrNoService
	}
	return nil
}

// Untap removes a previously installed tap.
func (e *Ensemble) Untap(tappee, tapper string) {
	e.directory.RemoveTap(tappee, tapper)
}

// SetProperty stores attr=value against a locally-owned service
// (spec.md §4.C "Properties"). It updates only this process's cached
// copy; no /_o2/sv announcement is sent.
func (e *Ensemble) SetProperty(service, attr, value string) error {
	_, err := e.directory.SetProperty(service, attr, value)
	return err
}

// GetProperty reads attr from service's active provider's cached
// property set.
func (e *Ensemble) GetProperty(service, attr string) (string, bool) {
	return e.directory.GetProperty(service, attr)
}

// ClockSet makes this process the clock reference, spec.md §4.E
// "Election": "a process becomes the reference when the application
// calls clock_set."
func (e *Ensemble) ClockSet() error {
	e.clock.BecomeReference()
	e.scheduler.SetSynchronized(true)
	_, err := e.directory.CreateService(clocksync.ReferenceServiceName)
	if err != nil && err != directory.ErrAlreadyExists {
		return err
	}
	e.directory.AddHandler(clocksync.GetAddress, &directory.Handler{TypeSpec: "is", Coerce: true, Parse: true, Callback: e.handleClockGet})
	return nil
}

// handleClockGet answers a /_cs/get request on the reference side:
// echoes the serial back to the requester's full reply address along
// with this process's current global time.
func (e *Ensemble) handleClockGet(msg *wire.Message, args []wire.Arg, userData interface{}) {
	if len(args) != 2 {
		return
	}
	serial := args[0].I
	process, address := clocksync.SplitReplyAddress(args[1].Str)
	if address == "" {
		return
	}
	refTime := e.clock.Global(e.localTime())
	if err := clocksync.ReferenceReply(senderFunc(e.sendTo), process, address, serial, refTime); err != nil {
		e.log.Warnf("clock reply to %s failed: %v", process, err)
	}
}

// ClockJump applies a direct offset correction, spec.md §4.E
// "clock_jump(local, global, adjust)".
func (e *Ensemble) ClockJump(local, global float64, adjust bool) {
	e.clock.Jump(local, global, adjust)
	e.scheduler.SetSynchronized(e.clock.Synchronized())
}

// ClockSynchronized reports whether this process currently has a
// valid offset.
func (e *Ensemble) ClockSynchronized() bool {
	return e.clock.Synchronized()
}

// StatusChanges exposes the directory's status-change notification
// stream (spec.md §6 "/_o2/si").
func (e *Ensemble) StatusChanges() <-chan directory.StatusChange {
	return e.directory.StatusChanges()
}

// RegisterBridge attaches a bridge plug-in, polled once per Poll call
// (spec.md §6 "Bridge plug-in contract"), without offering any
// service through it. Use OfferBridge instead when the bridge should
// also become an active provider for a service name.
func (e *Ensemble) RegisterBridge(b bridge.Bridge) {
	e.bridges.Register(b)
}

// PeerFound implements the PeerFound interface: consumed discovery
// events update the directory's view of remote offers once
// version/ensemble compatibility is confirmed (spec.md §6 "A
// connection is only completed when major versions match and
// ensembles match").
func (e *Ensemble) PeerFound(ev DiscoveryEvent) {
	if ev.Ensemble != e.config.Ensemble {
		return
	}
	if !versionCompatible(ProtocolVersion, ev.Version) {
		return
	}
	for _, svc := range ev.Services {
		e.directory.OfferRemote(svc, ev.Process, directory.OfferRemote, "")
	}
}
