package o2

import (
	"github.com/ensemble-io/o2core/pkg/o2/clocksync"
	"github.com/ensemble-io/o2core/pkg/o2/directory"
	"github.com/ensemble-io/o2core/pkg/o2/wire"
)

// setupInternalService creates the always-locally-owned "_o2" service
// (spec.md §6 "the alias _o2 refers to the local process") and
// registers the internal wire-message handlers every process answers
// regardless of whether it is the clock reference.
func (e *Ensemble) setupInternalService() {
	e.directory.CreateService(LocalAlias)
	e.directory.AddHandler("/_o2/sv", &directory.Handler{Parse: true, Callback: e.handleServiceAnnounce})
	e.directory.AddHandler("/_o2/si", &directory.Handler{Parse: true, Callback: e.handleStatusInfo})
	e.directory.AddHandler(clocksync.PingScheduleAddress, &directory.Handler{Callback: e.handlePingSchedule})
	e.directory.AddHandler(clocksync.ReplyAddress, &directory.Handler{TypeSpec: "id", Coerce: true, Parse: true, Callback: e.handlePingReply})
	e.directory.AddHandler(clocksync.RoundTripAddress, &directory.Handler{TypeSpec: "s", Parse: true, Callback: e.handleRoundTripQuery})
	e.directory.AddHandler(clocksync.SyncAddress, &directory.Handler{Callback: e.handleSyncAnnounce})
}

// checkClockReference starts (or restarts, if the active offerer
// changed) a clock-sync session once a peer is seen offering "_cs",
// spec.md §4.E "Election": "Other processes, upon seeing _cs offered
// by a peer, begin the sync loop with that peer." Never runs on the
// reference itself, which has no one to sync against.
func (e *Ensemble) checkClockReference(now float64) {
	if e.clock.IsReference() {
		return
	}
	svc := e.directory.Lookup(clocksync.ReferenceServiceName)
	if svc == nil {
		return
	}
	active := svc.Active()
	if active == nil || active.Process == e.self.String() {
		return
	}
	if e.clockSession != nil && e.clockSession.Reference() == active.Process {
		return
	}
	e.clockSession = clocksync.NewSession(e.clock, e.scheduler, senderFunc(e.sendTo), e.self.String(), active.Process)
	e.clockSession.SchedulePing(now)
}

// handlePingSchedule fires the /_o2/cs/ps self-message a Session
// reinserts on its own local wheel: send the next ping, then schedule
// the one after it.
func (e *Ensemble) handlePingSchedule(msg *wire.Message, args []wire.Arg, userData interface{}) {
	if e.clockSession == nil {
		return
	}
	now := e.localTime()
	e.clockSession.SendPing(now)
	e.clockSession.SchedulePing(now)
}

// handlePingReply answers the non-reference side of a round trip:
// the reference's "id"-shaped reply (serial, ref_time) lands here, at
// the full address SendPing asked for.
func (e *Ensemble) handlePingReply(msg *wire.Message, args []wire.Arg, userData interface{}) {
	if e.clockSession == nil || len(args) != 2 {
		return
	}
	e.clockSession.HandleReply(args[0].I, args[1].D, e.localTime())
	e.scheduler.SetSynchronized(e.clock.Synchronized())
}

// handleRoundTripQuery answers /_o2/cs/rt with this process's current
// mean/min rtt against its reference, spec.md §6 "reply 'sff' with
// (process_name, mean_rtt, min_rtt)".
func (e *Ensemble) handleRoundTripQuery(msg *wire.Message, args []wire.Arg, userData interface{}) {
	if len(args) != 1 {
		return
	}
	process, address := clocksync.SplitReplyAddress(args[0].Str)
	if address == "" {
		return
	}
	var mean, min float64
	if e.clockSession != nil {
		mean, min = e.clockSession.RoundTripStats()
	}
	reply := wire.NewBuilder().
		AddString(e.self.String()).
		AddFloat32(float32(mean)).
		AddFloat32(float32(min)).
		Finish(0, address, true)
	if err := e.sendTo(process, reply, true); err != nil {
		e.log.Warnf("round-trip reply to %s failed: %v", process, err)
	}
}

// handleServiceAnnounce applies a peer's /_o2/sv service table update
// to the local directory, spec.md §6 "reports service creation or
// deletion": (process_name, then repeated (service, add, is_service,
// properties_or_tappee, send_mode) groups).
func (e *Ensemble) handleServiceAnnounce(msg *wire.Message, args []wire.Arg, userData interface{}) {
	if len(args) < 1 || args[0].Type != wire.TypeString {
		return
	}
	process := args[0].Str
	rest := args[1:]
	for len(rest) >= 5 {
		name := rest[0].Str
		add := rest[1].Type == wire.TypeTrue
		isService := rest[2].Type == wire.TypeTrue
		detail := rest[3].Str
		rest = rest[5:]

		if !add {
			e.directory.RemoveOffer(name, process)
			continue
		}
		if isService {
			e.directory.OfferRemote(name, process, directory.OfferRemote, detail)
		}
	}
}

// handleStatusInfo receives a peer's /_o2/si echo of its own view of
// service status. It is informational only: this process derives its
// own authoritative status from /_o2/sv and PeerFound, so a peer's
// copy is logged, never applied.
func (e *Ensemble) handleStatusInfo(msg *wire.Message, args []wire.Arg, userData interface{}) {
	e.log.Debugf("received /_o2/si (%d args) from peer, informational only", len(args))
}

// handleSyncAnnounce receives a peer's /_o2/cs/cs broadcast that it
// has obtained clock sync; purely informational.
func (e *Ensemble) handleSyncAnnounce(msg *wire.Message, args []wire.Arg, userData interface{}) {
	e.log.Debugf("peer reported clock sync obtained")
}
