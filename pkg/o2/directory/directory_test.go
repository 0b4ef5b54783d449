package directory

import (
	"testing"

	"github.com/ensemble-io/o2core/pkg/o2log"
	"github.com/ensemble-io/o2core/pkg/o2/wire"
)

func newTestDirectory(self string) *Directory {
	warn := func(kind, address, detail string) {}
	return New(self, nil, warn, o2log.NewSilent())
}

func TestDispatchLiteralFastPath(t *testing.T) {
	d := newTestDirectory("@p1")
	if _, err := d.CreateService("benchmark"); err != nil {
		t.Fatalf("create: %v", err)
	}
	var got string
	h := &Handler{Callback: func(msg *wire.Message, args []wire.Arg, userData interface{}) {
		got = msg.Address
	}}
	if err := d.AddHandler("/benchmark/0", h); err != nil {
		t.Fatalf("add handler: %v", err)
	}

	msg := wire.NewBuilder().AddInt32(1).Finish(0, "/benchmark/0", false)
	d.Dispatch(msg)
	if got != "/benchmark/0" {
		t.Fatalf("handler not invoked, got %q", got)
	}
}

func TestDispatchPatternMatch(t *testing.T) {
	d := newTestDirectory("@p1")
	d.CreateService("benchmark")

	var calls int
	h := &Handler{Callback: func(msg *wire.Message, args []wire.Arg, userData interface{}) {
		calls++
	}}
	d.AddHandler("/benchmark/0", h)

	msg := wire.NewBuilder().Finish(0, "/benchmark/?", false)
	d.Dispatch(msg)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDispatchNoService(t *testing.T) {
	d := newTestDirectory("@p1")
	var warned string
	d.warn = func(kind, address, detail string) { warned = kind }
	msg := wire.NewBuilder().Finish(0, "/missing/0", false)
	d.Dispatch(msg)
	if warned != "no_service" {
		t.Fatalf("expected no_service warning, got %q", warned)
	}
}

func TestServiceConflictResolution(t *testing.T) {
	d := newTestDirectory("@aaaa")
	d.CreateService("svc")
	d.OfferRemote("svc", "@zzzz", OfferRemote, "")

	svc := d.Lookup("svc")
	if svc.Active().Process != "@zzzz" {
		t.Fatalf("expected @zzzz to win lexicographic conflict, got %s", svc.Active().Process)
	}
}

func TestTapPropagation(t *testing.T) {
	d := newTestDirectory("@p1")
	d.CreateService("source")
	d.CreateService("sink")

	var tapped string
	h := &Handler{Callback: func(msg *wire.Message, args []wire.Arg, userData interface{}) {
		tapped = msg.Address
	}}
	d.AddHandler("/sink/0", h)
	if err := d.AddTap("source", "sink", TapKeep); err != nil {
		t.Fatalf("add tap: %v", err)
	}
	d.AddHandler("/source/0", &Handler{Callback: func(*wire.Message, []wire.Arg, interface{}) {}})

	msg := wire.NewBuilder().Finish(0, "/source/0", false)
	d.Dispatch(msg)
	if tapped != "/sink/0" {
		t.Fatalf("expected tap delivery to /sink/0, got %q", tapped)
	}
}

func TestPropertyRoundTrip(t *testing.T) {
	d := newTestDirectory("@p1")
	d.CreateService("svc")
	if _, err := d.SetProperty("svc", "color", "blue"); err != nil {
		t.Fatalf("set property: %v", err)
	}
	v, ok := d.GetProperty("svc", "color")
	if !ok || v != "blue" {
		t.Fatalf("expected blue, got %q %v", v, ok)
	}
}

func TestPropertyInvalidAttribute(t *testing.T) {
	d := newTestDirectory("@p1")
	d.CreateService("svc")
	if _, err := d.SetProperty("svc", "not a valid name!", "x"); err == nil {
		t.Fatalf("expected invalid attribute error")
	}
}
