// Package clocksync implements the clock-sync protocol from spec.md
// §4.E: reference election via the reserved "_cs" service, round-trip
// sampling with a 5-sample ring buffer, offset smoothing versus jump
// handling, and status propagation.
package clocksync

import "github.com/ensemble-io/o2core/pkg/o2log"

// ReferenceServiceName is the reserved service a process offers once
// it becomes the clock reference (spec.md §4.E "Election").
const ReferenceServiceName = "_cs"

// sampleWindow is the ring buffer size, spec.md §4.E "Round-trip
// sampling": "Maintain a ring buffer of the last 5 samples."
const sampleWindow = 5

// jumpThreshold is the offset delta above which a correction is a
// jump rather than a smooth adjustment, spec.md §4.E "Offset
// application": "If |new_offset − current_offset| > 1 s".
const jumpThreshold = 1.0

// smoothRate is the fractional rate applied while smoothly closing a
// sub-threshold offset gap, spec.md §4.E "set rate to ±10%".
const smoothRate = 0.10

// JumpCallback is invoked when an offset correction exceeds
// jumpThreshold. Returning true claims the jump was handled (typically
// by calling Clock.Jump); returning false means ignore it.
type JumpCallback func(localNow, oldGlobal, newGlobal float64) bool

// Sample is one round-trip measurement.
type Sample struct {
	LocalSend float64
	LocalRecv float64
	RefTime   float64
}

func (s Sample) rtt() float64 {
	return s.LocalRecv - s.LocalSend
}

func (s Sample) offsetEstimate() float64 {
	return s.RefTime - (s.LocalSend + s.rtt()/2)
}

// Clock maps local time to global (ensemble-synchronized) time via the
// linear model global(t) = local(t) + offset + (rate − 1)·(t − t0).
// rate is a speed multiplier: 1.0 means global time advances at the
// local rate, 1.0 ± smoothRate applies a ±10% correction.
type Clock struct {
	log o2log.Logger

	isReference  bool
	synchronized bool

	offset float64
	rate   float64
	t0     float64

	samples    [sampleWindow]Sample
	sampleN    int
	sampleFull bool

	onJump JumpCallback

	// ShiftPending lets the scheduler subtract a jump's offset delta
	// from every pending global-wheel entry so scheduled events keep
	// their intended real-world time, spec.md §4.E "clock_jump...
	// adjust=true".
	ShiftPending func(delta float64)
}

// New creates an unsynchronized clock. onJump may be nil, in which
// case every jump is ignored (spec.md's "otherwise ignore the jump"
// default).
func New(log o2log.Logger, onJump JumpCallback) *Clock {
	return &Clock{log: log, onJump: onJump, rate: 1.0}
}

// BecomeReference marks this process as the clock reference, entered
// when the application calls clock_set (spec.md §4.E "Election").
func (c *Clock) BecomeReference() {
	c.isReference = true
	c.synchronized = true
	c.offset = 0
	c.rate = 1.0
}

// IsReference reports whether this process is the elected reference.
func (c *Clock) IsReference() bool {
	return c.isReference
}

// Synchronized reports whether this process has a valid offset,
// spec.md §4.E "Status propagation".
func (c *Clock) Synchronized() bool {
	return c.synchronized
}

// Global converts local time t to global time under the current
// linear model.
func (c *Clock) Global(t float64) float64 {
	return t + c.offset + (c.rate-1)*(t-c.t0)
}

// RecordSample adds a new round-trip sample and, if it is the best
// (minimum rtt) of the current window, applies it as the authoritative
// offset (spec.md §4.E "use the sample with minimum rtt as
// authoritative").
func (c *Clock) RecordSample(s Sample) {
	c.samples[c.sampleN%sampleWindow] = s
	c.sampleN++
	if c.sampleN >= sampleWindow {
		c.sampleFull = true
	}

	best := c.bestSample()
	c.applyOffset(s.LocalSend, best.offsetEstimate())
}

func (c *Clock) bestSample() Sample {
	n := c.sampleN
	if c.sampleFull {
		n = sampleWindow
	}
	best := c.samples[0]
	for i := 1; i < n; i++ {
		if c.samples[i].rtt() < best.rtt() {
			best = c.samples[i]
		}
	}
	return best
}

// applyOffset implements spec.md §4.E "Offset application": a small
// delta is smoothed by temporarily adjusting rate; a large delta is
// routed through the jump callback.
func (c *Clock) applyOffset(localNow, newOffset float64) {
	delta := newOffset - c.offset
	if delta < 0 {
		delta = -delta
	}

	if delta <= jumpThreshold {
		if newOffset > c.offset {
			c.rate = 1.0 + smoothRate
		} else {
			c.rate = 1.0 - smoothRate
		}
		c.t0 = localNow
		c.offset = newOffset
		c.synchronized = true
		return
	}

	oldGlobal := c.Global(localNow)
	newGlobal := localNow + newOffset
	if c.onJump == nil || !c.onJump(localNow, oldGlobal, newGlobal) {
		c.log.Debugf("clock jump of %.3fs ignored (no handler claimed it)", delta)
		return
	}
	// The callback claimed it handled the jump, typically by calling
	// Jump itself; nothing further to do here.
}

// Jump sets the offset directly, breaking monotonicity, spec.md §4.E
// "clock_jump(local, global, adjust)". If adjust, ShiftPending (when
// set) is invoked with the offset delta so pending scheduled events
// keep their intended real-world time.
func (c *Clock) Jump(local, global float64, adjust bool) {
	oldOffset := c.offset
	c.offset = global - local
	c.rate = 1.0
	c.t0 = local
	c.synchronized = true

	if adjust && c.ShiftPending != nil {
		c.ShiftPending(c.offset - oldOffset)
	}
}

// Status is the visible peer status spec.md §4.E "Status propagation"
// derives from synchronization and kind.
type Status int

const (
	StatusRemoteNoTime Status = iota
	StatusRemote
	StatusBridgeNoTime
	StatusBridge
)

// StatusFor reports the visible status for a peer/bridge offerer given
// its synchronization state.
func StatusFor(synchronized, bridge bool) Status {
	switch {
	case bridge && synchronized:
		return StatusBridge
	case bridge:
		return StatusBridgeNoTime
	case synchronized:
		return StatusRemote
	default:
		return StatusRemoteNoTime
	}
}
