package o2

import (
	"testing"

	"github.com/ensemble-io/o2core/pkg/o2/directory"
	"github.com/ensemble-io/o2core/pkg/o2/wire"
)

func testProcess(port uint16) Process {
	return Process{PublicIP: 0, InternalIP: 0x7f000001, TCPPort: port}
}

func TestBasicEcho(t *testing.T) {
	var now float64
	e := New(testProcess(1000), DefaultConfiguration("test"), func() float64 { return now })

	if err := e.CreateService("server"); err != nil {
		t.Fatalf("create service: %v", err)
	}
	var got int32
	err := e.AddHandler("/server/benchmark/0", ",i", false, true, func(msg *wire.Message, args []wire.Arg, userData interface{}) {
		got = args[0].I
	}, nil)
	if err != nil {
		t.Fatalf("add handler: %v", err)
	}

	msg := wire.NewBuilder().AddInt32(1).Finish(0, "/server/benchmark/0", false)
	if err := e.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected argv[0].i == 1, got %d", got)
	}
}

func TestSendWithTimestampRequiresClock(t *testing.T) {
	var now float64
	e := New(testProcess(1001), DefaultConfiguration("test"), func() float64 { return now })
	msg := wire.NewBuilder().Finish(5.0, "/svc/m", false)
	if err := e.Send(msg); err != ErrNoClock {
		t.Fatalf("expected ErrNoClock, got %v", err)
	}

	if err := e.ClockSet(); err != nil {
		t.Fatalf("clock set: %v", err)
	}
	if err := e.Send(msg); err != nil {
		t.Fatalf("expected send to succeed once synchronized: %v", err)
	}
}

func TestTimedDeliveryViaPoll(t *testing.T) {
	var now float64
	e := New(testProcess(1002), DefaultConfiguration("test"), func() float64 { return now })
	e.CreateService("svc")

	delivered := false
	e.AddHandler("/svc/m", "", false, false, func(*wire.Message, []wire.Arg, interface{}) {
		delivered = true
	}, nil)

	if err := e.ClockSet(); err != nil {
		t.Fatalf("clock set: %v", err)
	}
	msg := wire.NewBuilder().Finish(0.5, "/svc/m", false)
	if err := e.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	now = 0.5
	e.Poll()
	if !delivered {
		t.Fatalf("expected timed message to be delivered once now reaches its timestamp")
	}
}

func TestTapFlow(t *testing.T) {
	var now float64
	e := New(testProcess(1003), DefaultConfiguration("test"), func() float64 { return now })
	e.CreateService("pub")
	e.CreateService("sub")

	var tapped int32
	e.AddHandler("/sub/x", ",i", false, true, func(msg *wire.Message, args []wire.Arg, userData interface{}) {
		tapped = args[0].I
	}, nil)
	e.AddHandler("/pub/x", ",i", false, true, func(*wire.Message, []wire.Arg, interface{}) {}, nil)

	if err := e.Tap("pub", "sub", directory.TapKeep); err != nil {
		t.Fatalf("tap: %v", err)
	}
	msg := wire.NewBuilder().AddInt32(42).Finish(0, "/pub/x", false)
	if err := e.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if tapped != 42 {
		t.Fatalf("expected tap copy delivered with i=42, got %d", tapped)
	}
}

func TestPropertyRoundTrip(t *testing.T) {
	var now float64
	e := New(testProcess(1004), DefaultConfiguration("test"), func() float64 { return now })
	e.CreateService("svc")
	if err := e.SetProperty("svc", "color", "blue"); err != nil {
		t.Fatalf("set property: %v", err)
	}
	v, ok := e.GetProperty("svc", "color")
	if !ok || v != "blue" {
		t.Fatalf("expected blue, got %q %v", v, ok)
	}
}
