package transport

import (
	"net"
)

// Listen opens a TCP listener and starts its accept loop, which
// registers an incoming connection as a new RoleTCPServer-owned
// socket and invokes Owner.Accepted before spawning its reader/writer
// goroutines (spec.md §4.A "listen").
func (t *Transport) Listen(network, addr string, read FrameMode, owner Owner) (*Socket, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}

	s := t.register(RoleTCPServer, read, owner)
	s.server = true
	s.ln = ln

	go t.acceptLoop(ln, s, read, owner)
	return s, nil
}

func (t *Transport) acceptLoop(ln net.Listener, parent *Socket, read FrameMode, owner Owner) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-parent.closeNow:
				return
			default:
			}
			t.ready <- frameEvent{sock: parent, err: err}
			return
		}

		child := t.register(RoleTCPClient, read, owner)
		child.conn = conn
		child.peer = conn.RemoteAddr()

		if owner != nil {
			owner.Accepted(child)
		}
		t.spawnConnGoroutines(child)
	}
}

// Dial opens an outbound TCP connection (spec.md §4.A "connect").
func (t *Transport) Dial(network, addr string, read FrameMode, owner Owner) (*Socket, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}

	s := t.register(RoleTCPClient, read, owner)
	s.conn = conn
	s.peer = conn.RemoteAddr()

	if owner != nil {
		owner.Connected(s)
	}
	t.spawnConnGoroutines(s)
	return s, nil
}

func (t *Transport) spawnConnGoroutines(s *Socket) {
	go t.readLoop(s)
	go t.writeLoop(s)
}

// readLoop is the only goroutine that ever blocks on s.conn.Read. It
// reassembles frames and pushes each completed one onto the shared
// ready channel for Poll to drain — mirrors the teacher's
// transport-side poll goroutine feeding Peer.poll() over a channel.
func (t *Transport) readLoop(s *Socket) {
	fr := &framer{}
	chunk := make([]byte, 64*1024)
	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			if s.Read == FrameRaw {
				raw := make([]byte, n)
				copy(raw, chunk[:n])
				t.ready <- frameEvent{sock: s, frame: raw}
			} else {
				for _, frame := range fr.feed(chunk[:n]) {
					t.ready <- frameEvent{sock: s, frame: frame}
				}
			}
		}
		if err != nil {
			t.ready <- frameEvent{sock: s, err: err}
			return
		}
	}
}

// writeLoop is the only goroutine that ever blocks on s.conn.Write. It
// wakes on signalWrite, drains the outbound queue, and exits once the
// socket is closing and the queue is empty (spec.md §4.A "close(now)
// = false drains the queue first").
func (t *Transport) writeLoop(s *Socket) {
	for {
		select {
		case <-s.closeNow:
			return
		case <-s.wake:
		}

		for {
			s.outMu.Lock()
			if len(s.outQueue) == 0 {
				closing := s.closing
				s.outMu.Unlock()
				if closing {
					t.MarkRemove(s)
				}
				break
			}
			frame := s.outQueue[0]
			s.outQueue = s.outQueue[1:]
			s.outMu.Unlock()

			if _, err := s.conn.Write(encodeFrame(frame)); err != nil {
				t.ready <- frameEvent{sock: s, err: err}
				return
			}
		}
	}
}
