package transport

import "net"

// ListenUDP opens a UDP socket bound to addr. UDP sockets never queue:
// reads hand Owner.Deliver one packet per datagram, and writes go out
// synchronously from Transport.Enqueue (spec.md §4.A "UDP sends are
// all-or-nothing; UDP sockets never queue").
func (t *Transport) ListenUDP(addr string, owner Owner) (*Socket, error) {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}

	s := t.register(RoleUDP, FrameRaw, owner)
	s.udp = pc

	go t.udpReadLoop(s)
	return s, nil
}

// DialUDP opens a UDP socket with a fixed peer, used for unicast
// sends to a known service address (spec.md §4.A "udp connect").
func (t *Transport) DialUDP(raddr string, owner Owner) (*Socket, error) {
	addr, err := net.ResolveUDPAddr("udp", raddr)
	if err != nil {
		return nil, err
	}
	pc, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, err
	}

	s := t.register(RoleUDP, FrameRaw, owner)
	s.udp = pc
	s.peer = addr

	go t.udpReadLoop(s)
	return s, nil
}

func (t *Transport) udpReadLoop(s *Socket) {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := s.udp.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.closeNow:
				return
			default:
			}
			t.ready <- frameEvent{sock: s, err: err}
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		t.ready <- frameEvent{sock: s, frame: frame}
	}
}
