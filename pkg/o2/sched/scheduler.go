package sched

import "errors"

// ErrNoClock is returned by InsertGlobal when the
// process has no clock synchronization yet, spec.md §4.D
// "Global-time scheduling requires clock sync... fail with no_clock".
var ErrNoClock = errors.New("sched: no clock synchronization")

// DispatchFunc delivers one due entry exactly as if it had newly
// arrived, spec.md §4.D "Dispatch from scheduler".
type DispatchFunc func(Entry)

// Scheduler owns the two wheels spec.md §4.D describes (global and
// local time) plus the re-entrancy guard that turns any message a
// handler produces while a dispatch is in flight into a queued
// "pending" entry instead of a recursive call.
type Scheduler struct {
	Global *Wheel
	Local  *Wheel

	synchronized bool
	dispatching  bool
	pending      []Entry
	dispatch     DispatchFunc
}

// New creates a scheduler with both wheels at DefaultSlotCount.
// dispatch is invoked once per due entry during Poll.
func New(dispatch DispatchFunc) *Scheduler {
	return &Scheduler{
		Global:   NewWheel(),
		Local:    NewWheel(),
		dispatch: dispatch,
	}
}

// SetSynchronized flips whether global-time scheduling is permitted;
// the o2 Ensemble calls this from ClockSet, ClockJump and each
// clock-sync reply, passing whether the clock has a valid offset.
func (s *Scheduler) SetSynchronized(v bool) {
	s.synchronized = v
}

// Synchronized reports the current clock-sync gate state.
func (s *Scheduler) Synchronized() bool {
	return s.synchronized
}

// InsertGlobal schedules e on the global (synchronized) wheel. It
// fails with ErrNoClock if the process has no offset yet.
func (s *Scheduler) InsertGlobal(e Entry) error {
	if !s.synchronized {
		return ErrNoClock
	}
	s.insertOrQueue(s.Global, e)
	return nil
}

// InsertLocal schedules e on the local-time wheel; always permitted.
func (s *Scheduler) InsertLocal(e Entry) {
	s.insertOrQueue(s.Local, e)
}

// insertOrQueue inserts directly, since inserting is not itself a
// delivery — only entries popped by Advance and handed to dispatch
// fall under the recursive-delivery guard.
func (s *Scheduler) insertOrQueue(w *Wheel, e Entry) {
	w.Insert(e)
}

// Defer appends msg to the pending queue instead of dispatching it
// immediately; callers (handlers invoked from Poll) use this so a send
// triggered transitively from a scheduled dispatch is never delivered
// recursively (spec.md §4.D "Dispatch from scheduler").
func (s *Scheduler) Defer(e Entry) {
	s.pending = append(s.pending, e)
}

// InDispatch reports whether a Poll-driven dispatch is currently on
// the stack; callers use this to decide whether a newly produced
// message must go through Defer.
func (s *Scheduler) InDispatch() bool {
	return s.dispatching
}

// Poll advances both wheels to now and dispatches every due entry,
// then drains the pending queue in FIFO order once the immediate
// dispatch wave completes (spec.md §4.D "Advance", "Dispatch from
// scheduler").
func (s *Scheduler) Poll(now float64) {
	due := s.Local.Advance(now)
	if s.synchronized {
		due = append(due, s.Global.Advance(now)...)
	}

	s.dispatching = true
	defer func() { s.dispatching = false }()

	for _, e := range due {
		s.dispatch(e)
	}

	// Messages produced by the handlers above (and by handlers
	// invoked from this very drain) are deferred via Defer rather
	// than dispatched recursively; dispatching stays true for the
	// whole drain so that holds for every wave, not just the first.
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		for _, e := range batch {
			s.dispatch(e)
		}
	}
}

// FlushGlobal removes every pending global-wheel entry, spec.md §4.D
// "Flush", used when the local→global mapping jumps discontinuously
// (spec.md §4.E).
func (s *Scheduler) FlushGlobal() int {
	return s.Global.Flush()
}
