package clocksync

import (
	"github.com/ensemble-io/o2core/pkg/o2/sched"
	"github.com/ensemble-io/o2core/pkg/o2/wire"
)

// pingInterval is the spacing between round-trip probes, spec.md
// §4.E "Round-trip sampling": "schedules... a ping message _cs/get
// every ~100 ms".
const pingInterval = 0.1

// GetAddress is the reference-side request address, spec.md §6
// "/_cs/get 'is' serial-no reply-to".
const GetAddress = "/_cs/get"

// ReplyAddress is appended to a process name to build the full
// reply-to address a ping's "is" request carries, spec.md §6: "The
// reply-to parameter is the full address for the reply."
const ReplyAddress = "/_o2/cs/get/reply"

// PingScheduleAddress is the self-addressed, timestamped message a
// session reinserts on the local wheel to fire its own next ping,
// spec.md §6 "/_o2/cs/ps ... invokes the sending of the /_cs/get
// message" — the timing-wheel's way of self-triggering a periodic
// action via the same Entry/dispatch path an ordinary message takes.
const PingScheduleAddress = "/_o2/cs/ps"

// RoundTripAddress answers spec.md §6 "/_o2/cs/rt 's' — round-trip
// query; reply 'sff' with (process_name, mean_rtt, min_rtt)".
const RoundTripAddress = "/_o2/cs/rt"

// SyncAddress is the informational spec.md §6 "/_o2/cs/cs '' —
// announces when clock sync is obtained" broadcast.
const SyncAddress = "/_o2/cs/cs"

// Sender is the minimal directory/transport surface Session needs to
// address the reference process and reply to round-trip queries.
type Sender interface {
	SendTo(process string, msg *wire.Message, reliable bool) error
}

// Session drives the non-reference side of the protocol against one
// discovered reference process: scheduling periodic pings, recording
// replies as samples, and answering /_o2/cs/rt queries.
type Session struct {
	clock     *Clock
	scheduler *sched.Scheduler
	sender    Sender
	self      string
	reference string

	serial      int32
	pendingSend map[int32]float64 // serial -> local send time, for matching replies
}

// NewSession starts tracking referenceProcess as the clock reference
// for self.
func NewSession(clock *Clock, scheduler *sched.Scheduler, sender Sender, self, referenceProcess string) *Session {
	return &Session{
		clock:       clock,
		scheduler:   scheduler,
		sender:      sender,
		self:        self,
		reference:   referenceProcess,
		pendingSend: make(map[int32]float64),
	}
}

// Reference returns the process name this session is synchronizing
// against.
func (s *Session) Reference() string {
	return s.reference
}

// SchedulePing enqueues the next /_o2/cs/ps self-message on the local
// wheel, to fire at localNow+pingInterval; called once at session
// start and again after each ping fires (spec.md §4.E "/_o2/cs/ps" —
// "schedule next ping").
func (s *Session) SchedulePing(localNow float64) {
	msg := wire.NewBuilder().Finish(localNow+pingInterval, PingScheduleAddress, false)
	s.scheduler.Local.Insert(sched.Entry{
		Timestamp: localNow + pingInterval,
		Payload:   msg,
	})
}

// SendPing transmits a /_cs/get "is" request carrying the next serial
// number and this process's full reply address.
func (s *Session) SendPing(localNow float64) {
	s.serial++
	s.pendingSend[s.serial] = localNow

	msg := wire.NewBuilder().
		AddInt32(s.serial).
		AddString(s.self + ReplyAddress).
		Finish(0, GetAddress, true)

	if err := s.sender.SendTo(s.reference, msg, true); err != nil {
		return
	}
}

// HandleReply processes a reference's "id" reply (serial, ref_time),
// recording an RTT sample and feeding it to the clock model.
func (s *Session) HandleReply(serial int32, refTime float64, localRecv float64) {
	sent, ok := s.pendingSend[serial]
	if !ok {
		return
	}
	delete(s.pendingSend, serial)

	s.clock.RecordSample(Sample{
		LocalSend: sent,
		LocalRecv: localRecv,
		RefTime:   refTime,
	})
}

// RoundTripStats reports the mean and minimum rtt across the current
// sample window, for the /_o2/cs/rt query (spec.md §6).
func (s *Session) RoundTripStats() (mean, min float64) {
	n := s.clock.sampleN
	if s.clock.sampleFull {
		n = sampleWindow
	}
	if n == 0 {
		return 0, 0
	}
	var sum float64
	min = s.clock.samples[0].rtt()
	for i := 0; i < n; i++ {
		rtt := s.clock.samples[i].rtt()
		sum += rtt
		if rtt < min {
			min = rtt
		}
	}
	return sum / float64(n), min
}

// ReferenceReply answers a /_cs/get request on the reference side:
// echoes the serial and this process's current global time to
// toAddress, the full reply-to address the request carried, on the
// connection toward toProcess.
func ReferenceReply(sender Sender, toProcess, toAddress string, serial int32, refTime float64) error {
	msg := wire.NewBuilder().
		AddInt32(serial).
		AddFloat64(refTime).
		Finish(0, toAddress, true)
	return sender.SendTo(toProcess, msg, true)
}

// SplitReplyAddress separates a full reply-to address (process name
// followed immediately by its address path, e.g.
// "@c0a80101:c0a80101:1f4a/_o2/cs/get/reply") into its process and
// address components. Process names never contain '/', so the first
// one found marks the boundary.
func SplitReplyAddress(full string) (process, address string) {
	for i := 0; i < len(full); i++ {
		if full[i] == '/' {
			return full[:i], full[i:]
		}
	}
	return full, ""
}
