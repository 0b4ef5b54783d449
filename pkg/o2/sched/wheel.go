// Package sched implements the timing-wheel scheduler from spec.md
// §4.D: two fixed-size slot tables, one keyed on global (synchronized)
// time and one on local time, each advanced by repeated Poll calls.
package sched

import "container/list"

// DefaultSlotCount is the wheel's slot table size, N in spec.md §4.D.
// Exposed as a constant rather than hard-coded, the same treatment
// spec.md §9's open question gives the tap ttl limit.
const DefaultSlotCount = 128

// Entry is one scheduled message, identified only by its timestamp and
// an opaque payload the caller supplies (normally a *wire.Message, but
// sched never needs to know that).
type Entry struct {
	Timestamp float64
	Payload   interface{}
}

// Wheel is a single timing wheel: N slots, each an ascending-order
// list of entries whose timestamp falls in that slot (spec.md §4.D
// "Insert"/"Advance").
type Wheel struct {
	slots    []*list.List
	lastTime float64
	count    int
}

// NewWheel creates a wheel with DefaultSlotCount slots.
func NewWheel() *Wheel {
	return NewWheelN(DefaultSlotCount)
}

// NewWheelN creates a wheel with a caller-chosen slot count, mainly
// for tests that want to exercise wraparound without waiting 128
// "seconds" of synthetic time.
func NewWheelN(n int) *Wheel {
	w := &Wheel{slots: make([]*list.List, n)}
	for i := range w.slots {
		w.slots[i] = list.New()
	}
	return w
}

func (w *Wheel) slotFor(t float64) int {
	return int(t) % len(w.slots)
}

// Insert adds e to the slot for its timestamp, keeping the slot's list
// in ascending timestamp order (spec.md §4.D "Insert").
func (w *Wheel) Insert(e Entry) {
	slot := w.slots[w.slotFor(e.Timestamp)]
	for el := slot.Front(); el != nil; el = el.Next() {
		if el.Value.(Entry).Timestamp > e.Timestamp {
			slot.InsertBefore(e, el)
			w.count++
			return
		}
	}
	slot.PushBack(e)
	w.count++
}

// Count returns the number of entries still pending in the wheel.
func (w *Wheel) Count() int {
	return w.count
}

// Advance pops every entry whose timestamp is ≤ now, walking slots
// from the cursor's last position up to ⌊now⌋ mod N (spec.md §4.D
// "Advance"). If more than a full revolution (len(slots) "seconds")
// has elapsed since the last Advance, every slot is swept regardless
// of position, since the cursor-to-now walk would otherwise skip
// stale entries that were never reached.
func (w *Wheel) Advance(now float64) []Entry {
	var due []Entry

	full := now-w.lastTime >= float64(len(w.slots))
	if full {
		for _, slot := range w.slots {
			due = append(due, popDue(slot, now, w)...)
		}
	} else {
		start := w.slotFor(w.lastTime)
		end := w.slotFor(now)
		for i := start; ; i = (i + 1) % len(w.slots) {
			due = append(due, popDue(w.slots[i], now, w)...)
			if i == end {
				break
			}
		}
	}

	w.lastTime = now
	return due
}

func popDue(slot *list.List, now float64, w *Wheel) []Entry {
	var due []Entry
	for el := slot.Front(); el != nil; {
		e := el.Value.(Entry)
		if e.Timestamp > now {
			break
		}
		next := el.Next()
		slot.Remove(el)
		w.count--
		due = append(due, e)
		el = next
	}
	return due
}

// Flush removes every pending entry and reports how many were
// removed, spec.md §4.D "Flush": "sched_flush removes all messages
// from the global scheduler... Returns the count removed."
func (w *Wheel) Flush() int {
	n := w.count
	for _, slot := range w.slots {
		slot.Init()
	}
	w.count = 0
	return n
}

// ShiftPending subtracts delta from every pending entry's timestamp,
// used when clocksync applies a jump with adjust=true (spec.md §4.E
// "clock_jump... subtract the offset delta from every pending
// global-scheduler timestamp").
func (w *Wheel) ShiftPending(delta float64) {
	var all []Entry
	for _, slot := range w.slots {
		for el := slot.Front(); el != nil; el = el.Next() {
			e := el.Value.(Entry)
			e.Timestamp -= delta
			all = append(all, e)
		}
		slot.Init()
	}
	w.count = 0
	for _, e := range all {
		w.Insert(e)
	}
}
