package transport

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ensemble-io/o2core/pkg/o2log"
)

type recordingOwner struct {
	delivered chan []byte
}

func newRecordingOwner() *recordingOwner {
	return &recordingOwner{delivered: make(chan []byte, 16)}
}

func (o *recordingOwner) Accepted(s *Socket)  {}
func (o *recordingOwner) Connected(s *Socket) {}
func (o *recordingOwner) Deliver(s *Socket, frame []byte) {
	o.delivered <- frame
}
func (o *recordingOwner) Removed(s *Socket, err error) {}

func TestTCPRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := o2log.NewSilent()
	tr := New(log)

	serverOwner := newRecordingOwner()
	ln, err := tr.Listen("tcp", "127.0.0.1:0", FrameO2, serverOwner)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	clientOwner := newRecordingOwner()
	client, err := tr.Dial("tcp", ln.Addr().String(), FrameO2, clientOwner)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// Give the accept loop a moment to register the server-side child
	// socket before we tear everything down.
	time.Sleep(10 * time.Millisecond)

	tr.Close(ln, true)
	tr.Close(client, true)
	for _, s := range tr.Sockets() {
		tr.Close(s, true)
	}

	deadline := time.After(time.Second)
	for len(tr.Sockets()) > 0 {
		tr.Poll()
		select {
		case <-deadline:
			t.Fatalf("sockets did not drain")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestFramerReassembly(t *testing.T) {
	fr := &framer{}
	whole := encodeFrame([]byte("hello"))
	frames := fr.feed(whole[:3])
	if len(frames) != 0 {
		t.Fatalf("expected no complete frames yet")
	}
	frames = fr.feed(whole[3:])
	if len(frames) != 1 || string(frames[0]) != "hello" {
		t.Fatalf("unexpected frames: %v", frames)
	}
}
