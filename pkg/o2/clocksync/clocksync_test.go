package clocksync

import (
	"testing"

	"github.com/ensemble-io/o2core/pkg/o2log"
)

func TestBecomeReferenceIsSynchronized(t *testing.T) {
	c := New(o2log.NewSilent(), nil)
	if c.Synchronized() {
		t.Fatalf("fresh clock should not be synchronized")
	}
	c.BecomeReference()
	if !c.IsReference() || !c.Synchronized() {
		t.Fatalf("expected reference + synchronized after BecomeReference")
	}
}

func TestSmoothOffsetAdjustment(t *testing.T) {
	c := New(o2log.NewSilent(), nil)
	c.RecordSample(Sample{LocalSend: 0, LocalRecv: 0.01, RefTime: 0.5})
	if !c.Synchronized() {
		t.Fatalf("expected synchronized after first sample")
	}
	if c.offset == 0 {
		t.Fatalf("expected nonzero offset after sample")
	}
}

func TestJumpCallbackClaims(t *testing.T) {
	var sawJump bool
	c := New(o2log.NewSilent(), func(localNow, oldGlobal, newGlobal float64) bool {
		sawJump = true
		c2 := newGlobal
		_ = c2
		return true
	})
	// First sample establishes a baseline offset of zero (rtt 0.02).
	c.RecordSample(Sample{LocalSend: 0, LocalRecv: 0.02, RefTime: 0.01})
	// Second sample has a lower rtt, so it becomes authoritative, and
	// implies an offset far beyond jumpThreshold.
	c.RecordSample(Sample{LocalSend: 10, LocalRecv: 10, RefTime: 100})
	if !sawJump {
		t.Fatalf("expected jump callback to fire for large offset delta")
	}
}

func TestJumpSetsOffsetDirectly(t *testing.T) {
	c := New(o2log.NewSilent(), nil)
	c.Jump(5.0, 105.0, false)
	if !c.Synchronized() {
		t.Fatalf("expected synchronized after Jump")
	}
	if got := c.Global(5.0); got != 105.0 {
		t.Fatalf("expected global(5)=105, got %v", got)
	}
}

func TestJumpAdjustShiftsPending(t *testing.T) {
	c := New(o2log.NewSilent(), nil)
	var shifted float64
	c.ShiftPending = func(delta float64) { shifted = delta }
	c.Jump(0, 50, true)
	if shifted != 50 {
		t.Fatalf("expected shift of 50, got %v", shifted)
	}
}

func TestBestSampleSelectsMinRTT(t *testing.T) {
	c := New(o2log.NewSilent(), nil)
	c.RecordSample(Sample{LocalSend: 0, LocalRecv: 1, RefTime: 0.5})  // rtt 1
	c.RecordSample(Sample{LocalSend: 2, LocalRecv: 2.1, RefTime: 2.0}) // rtt 0.1, should win
	best := c.bestSample()
	if best.rtt() >= 1.0 {
		t.Fatalf("expected min-rtt sample to be authoritative, got rtt=%v", best.rtt())
	}
}
