package o2

import (
	"testing"
	"time"

	"github.com/ensemble-io/o2core/pkg/o2/directory"
	"github.com/ensemble-io/o2core/pkg/o2/wire"
)

// TestRealTCPEcho is the literal "Basic echo" scenario from spec.md
// §8, but driven over a real TCP connection instead of the in-process
// router internal/o2test.Router uses, exercising network.go's
// handshake-then-dispatch wiring end to end.
func TestRealTCPEcho(t *testing.T) {
	var serverNow, clientNow float64
	server := New(testProcess(2000), DefaultConfiguration("test"), func() float64 { return serverNow })
	client := New(testProcess(2001), DefaultConfiguration("test"), func() float64 { return clientNow })

	if err := server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := server.transport.Sockets()[0].Addr().String()

	if err := server.CreateService("server"); err != nil {
		t.Fatalf("create service: %v", err)
	}
	got := make(chan int32, 1)
	err := server.AddHandler("/server/benchmark/0", ",i", false, true, func(msg *wire.Message, args []wire.Arg, userData interface{}) {
		got <- args[0].I
	}, nil)
	if err != nil {
		t.Fatalf("add handler: %v", err)
	}

	if err := client.Connect(testProcess(2000), addr); err != nil {
		t.Fatalf("connect: %v", err)
	}
	// The client routes "/server/..." only once its directory has a
	// remote offer for "server"; discovery would normally supply it, so
	// the test records that offer directly.
	client.directory.OfferRemote("server", testProcess(2000).String(), directory.OfferRemote, "")

	msg := wire.NewBuilder().AddInt32(1).Finish(0, "/server/benchmark/0", false)
	if err := client.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		server.Poll()
		client.Poll()
		select {
		case v := <-got:
			if v != 1 {
				t.Fatalf("expected argv[0].i == 1, got %d", v)
			}
			return
		case <-deadline:
			t.Fatalf("handler never fired")
		case <-time.After(time.Millisecond):
		}
	}
}
