package sched

import "testing"

func TestWheelInsertAdvanceOrder(t *testing.T) {
	w := NewWheel()
	w.Insert(Entry{Timestamp: 1.5, Payload: "b"})
	w.Insert(Entry{Timestamp: 1.2, Payload: "a"})
	w.Insert(Entry{Timestamp: 3.0, Payload: "c"})

	due := w.Advance(2.0)
	if len(due) != 2 || due[0].Payload != "a" || due[1].Payload != "b" {
		t.Fatalf("unexpected due order: %+v", due)
	}
	if w.Count() != 1 {
		t.Fatalf("expected 1 remaining, got %d", w.Count())
	}
}

func TestWheelWraparoundSweep(t *testing.T) {
	w := NewWheelN(4)
	w.Insert(Entry{Timestamp: 0.5})
	w.Insert(Entry{Timestamp: 1.5})
	due := w.Advance(20.0) // far beyond a full revolution of 4 slots
	if len(due) != 2 {
		t.Fatalf("expected full sweep to find both entries, got %d", len(due))
	}
}

func TestWheelFlush(t *testing.T) {
	w := NewWheel()
	w.Insert(Entry{Timestamp: 10})
	w.Insert(Entry{Timestamp: 20})
	if n := w.Flush(); n != 2 {
		t.Fatalf("expected flush count 2, got %d", n)
	}
	if w.Count() != 0 {
		t.Fatalf("expected empty wheel after flush")
	}
}

func TestSchedulerNoClockGate(t *testing.T) {
	s := New(func(Entry) {})
	if err := s.InsertGlobal(Entry{Timestamp: 5}); err != ErrNoClock {
		t.Fatalf("expected ErrNoClock, got %v", err)
	}
	s.SetSynchronized(true)
	if err := s.InsertGlobal(Entry{Timestamp: 5}); err != nil {
		t.Fatalf("unexpected error once synchronized: %v", err)
	}
}

func TestSchedulerPendingQueueDrainsAfterDispatch(t *testing.T) {
	var order []string
	var s *Scheduler
	s = New(func(e Entry) {
		order = append(order, e.Payload.(string))
		if e.Payload == "first" {
			// Simulate a handler sending a new message: must not
			// recurse, only queue.
			s.Defer(Entry{Payload: "deferred"})
		}
	})
	s.Local.Insert(Entry{Timestamp: 1, Payload: "first"})
	s.Poll(1)
	if len(order) != 2 || order[0] != "first" || order[1] != "deferred" {
		t.Fatalf("unexpected dispatch order: %v", order)
	}
}
