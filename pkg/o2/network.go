package o2

import (
	"github.com/ensemble-io/o2core/pkg/o2/transport"
	"github.com/ensemble-io/o2core/pkg/o2/wire"
)

// handshakeAddress is the first frame exchanged over a freshly
// accepted TCP connection: the dialing process announces its own
// name so the accepting side can bind the socket to a process
// identity before any ordinary message arrives (spec.md §3
// "Connection (TCP): created by connect or accept; reaches active
// after an initial handshake message").
const handshakeAddress = "/_o2/id"

// connOwner adapts one socket's transport.Owner callbacks to an
// Ensemble: decoding inbound frames into directory dispatch, binding
// a freshly accepted connection to a process name via the handshake
// message, and retracting that process's offers when the connection
// dies (spec.md §7 "removes service entries whose provider was that
// connection and emits /_o2/si with status unknown").
type connOwner struct {
	e       *Ensemble
	process string // known immediately for a dialed connection; learned from the handshake for an accepted one
}

func (c *connOwner) Accepted(s *transport.Socket)  {}
func (c *connOwner) Connected(s *transport.Socket) {}

func (c *connOwner) Deliver(s *transport.Socket, frame []byte) {
	msg, err := wire.Decode(frame)
	if err != nil {
		c.e.log.Warnf("malformed frame: %v", err)
		return
	}
	if msg.Address == handshakeAddress {
		c.handleHandshake(s, msg)
		return
	}
	c.e.directory.Dispatch(msg)
}

func (c *connOwner) handleHandshake(s *transport.Socket, msg *wire.Message) {
	if len(msg.Args) != 1 || msg.Args[0].Type != wire.TypeString {
		c.e.log.Warnf("malformed handshake frame")
		return
	}
	c.process = msg.Args[0].Str
	c.e.bindSocket(c.process, s)
}

func (c *connOwner) Removed(s *transport.Socket, err error) {
	if c.process == "" {
		return
	}
	c.e.unbindSocket(c.process)
}

// Listen opens a TCP listener accepting connections from other
// ensemble processes; each accepted socket is bound to a process
// identity once its handshake frame arrives.
func (e *Ensemble) Listen(addr string) error {
	_, err := e.transport.Listen("tcp", addr, transport.FrameO2, &connOwner{e: e})
	return err
}

// ListenUDP opens the best-effort UDP counterpart to Listen, used for
// unreliable sends (spec.md §4.A "UDP sends are all-or-nothing").
func (e *Ensemble) ListenUDP(addr string) error {
	_, err := e.transport.ListenUDP(addr, &connOwner{e: e})
	return err
}

// Connect dials peer's TCP server. The target process identity is
// already known (it is what we dialed), so the socket is bound
// immediately; the handshake frame sent afterward lets the far side
// bind its accepted half the same way.
func (e *Ensemble) Connect(peer Process, addr string) error {
	owner := &connOwner{e: e, process: peer.String()}
	s, err := e.transport.Dial("tcp", addr, transport.FrameO2, owner)
	if err != nil {
		return ErrTCPConnectFail
	}
	e.bindSocket(peer.String(), s)
	e.sendHandshake(s)
	return nil
}

func (e *Ensemble) sendHandshake(s *transport.Socket) {
	msg := wire.NewBuilder().AddString(e.self.String()).Finish(0, handshakeAddress, true)
	frame, err := wire.Encode(msg)
	if err != nil {
		e.log.Warnf("failed to encode handshake: %v", err)
		return
	}
	e.transport.Enqueue(s, frame)
}

// bindSocket records that process's messages travel over s, so
// sendTo (and therefore remote/bridge forwarding, spec.md §4.C step
// 4) can resolve a process name to a live socket.
func (e *Ensemble) bindSocket(process string, s *transport.Socket) {
	if e.peers == nil {
		e.peers = make(map[string]*transport.Socket)
	}
	e.peers[process] = s
}

// unbindSocket is called once a bound connection is torn down,
// retracting every service process offered through it (spec.md §3
// "the system then republishes service removal to local subscribers
// via a status message").
func (e *Ensemble) unbindSocket(process string) {
	delete(e.peers, process)
	e.directory.RemoveProcess(process)
}
