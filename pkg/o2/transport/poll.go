package transport

import (
	"errors"
	"sync"

	"github.com/ensemble-io/o2core/pkg/o2log"
)

// Sentinel errors surfaced to owners, spec.md §4.A "Errors".
var (
	ErrHangup        = errors.New("transport: hangup")
	ErrSendFail      = errors.New("transport: send failed")
	ErrConnectFail   = errors.New("transport: connect failed")
	ErrInvalidSocket = errors.New("transport: invalid socket")
)

type frameEvent struct {
	sock  *Socket
	frame []byte
	err   error // non-nil means the socket died; frame is nil
}

// Transport owns the socket table and the single channel every
// reader goroutine funnels complete frames (or terminal errors)
// through. Poll is the only place that channel is drained, and it
// never blocks: this is the single-threaded event-loop boundary
// spec.md §5 requires.
type Transport struct {
	log o2log.Logger

	mu      sync.Mutex
	sockets map[int]*Socket
	nextID  int

	ready   chan frameEvent
	pending []*Socket // marked for removal, swept at end of Poll
}

// New creates an empty transport; sockets are added via Listen, Dial,
// or ListenUDP.
func New(log o2log.Logger) *Transport {
	return &Transport{
		log:     log,
		sockets: make(map[int]*Socket),
		ready:   make(chan frameEvent, 256),
	}
}

func (t *Transport) register(role Role, read FrameMode, owner Owner) *Socket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	s := newSocket(t.nextID, role, read, owner, t.log)
	t.sockets[s.Handle] = s
	return s
}

// Poll performs one readiness pass: it drains every frame that has
// already arrived (spec.md §4.A "perform a readiness check over all
// sockets with zero timeout"), invoking Owner.Deliver once per
// complete frame, then sweeps sockets marked for removal. It never
// blocks waiting for new data.
func (t *Transport) Poll() {
	for {
		select {
		case ev := <-t.ready:
			t.handleEvent(ev)
		default:
			t.sweep()
			return
		}
	}
}

func (t *Transport) handleEvent(ev frameEvent) {
	if ev.err != nil {
		t.log.Warnf("socket %d error: %v", ev.sock.Handle, ev.err)
		t.MarkRemove(ev.sock)
		if ev.sock.Owner != nil {
			ev.sock.Owner.Removed(ev.sock, ev.err)
		}
		return
	}
	if ev.sock.Owner != nil {
		ev.sock.Owner.Deliver(ev.sock, ev.frame)
	}
}

// MarkRemove defers a socket's teardown to the end of the current
// Poll call, so indices/iteration elsewhere in the same call are never
// invalidated (spec.md §4.A "deletion is deferred to end-of-poll").
func (t *Transport) MarkRemove(s *Socket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.closed {
		return
	}
	t.pending = append(t.pending, s)
}

func (t *Transport) sweep() {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, s := range pending {
		t.closeSocket(s)
	}
}

func (t *Transport) closeSocket(s *Socket) {
	t.mu.Lock()
	if s.closed {
		t.mu.Unlock()
		return
	}
	s.closed = true
	delete(t.sockets, s.Handle)
	t.mu.Unlock()

	close(s.closeNow)
	if s.ln != nil {
		s.ln.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	if s.udp != nil && s.Role == RoleUDP {
		s.udp.Close()
	}
}

// Enqueue appends a frame to s's outbound queue and wakes its writer
// goroutine; it never blocks the caller (spec.md §4.A "enqueue").
func (t *Transport) Enqueue(s *Socket, frame []byte) {
	if s.Role == RoleUDP {
		// UDP never queues; send immediately, best-effort.
		s.udp.WriteTo(frame, s.peer)
		return
	}
	s.outMu.Lock()
	s.outQueue = append(s.outQueue, frame)
	s.outMu.Unlock()
	s.signalWrite()
}

// Close tears down a socket. now=true closes immediately; otherwise
// the writer goroutine finishes draining the outbound queue first
// (spec.md §4.A "close(now)").
func (t *Transport) Close(s *Socket, now bool) {
	s.outMu.Lock()
	s.closing = true
	empty := len(s.outQueue) == 0
	s.outMu.Unlock()

	if now || empty {
		t.MarkRemove(s)
		return
	}
	s.signalWrite() // let the writer notice closing+drained and call MarkRemove itself
}

// Sockets returns a snapshot of the live socket table, for tests and
// diagnostics.
func (t *Transport) Sockets() []*Socket {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Socket, 0, len(t.sockets))
	for _, s := range t.sockets {
		out = append(out, s)
	}
	return out
}
