// Package transport implements the byte-oriented socket layer from
// spec.md §4.A: TCP/UDP sockets, non-blocking sends through a
// per-connection outbound queue, and length-prefixed frame
// reassembly. It knows nothing about message semantics — callers
// supply and receive opaque frames; byte order inside a frame is the
// producer's responsibility (spec.md §4.A "Contracts").
//
// The teacher (core/transport.go) drives a single background poll
// goroutine that reads from its underlying reliable-multicast
// transport and republishes onto a channel a Peer's own poll loop
// drains. This package keeps that shape: a reader and a writer
// goroutine per socket perform the only blocking I/O, and Transport.Poll is the
// single place application/dispatch code ever runs, draining what is
// ready without blocking — so the single-threaded, non-reentrant
// contract in spec.md §5 holds at the call-site even though the
// underlying reads happen off that thread.
package transport

import (
	"net"
	"sync"

	"github.com/ensemble-io/o2core/pkg/o2log"
)

// Role distinguishes why a socket exists, mirroring spec.md §4.A's
// "tag (role)" field.
type Role int

const (
	RoleTCPServer Role = iota
	RoleTCPClient
	RoleUDP
	RoleBridge
)

// FrameMode selects how inbound bytes are split into messages.
// O2Framed uses the 4-byte network-order length prefix spec.md §3
// describes; Raw hands the owner whatever bytes arrived, used by
// bridges that speak a foreign wire format (spec.md §6).
type FrameMode int

const (
	FrameO2 FrameMode = iota
	FrameRaw
)

// Owner receives callbacks for a socket's lifecycle events: accepted,
// connected, deliver and removed. There is no writeable callback; the
// writer goroutine drains the outbound queue without notifying the
// owner.
type Owner interface {
	Accepted(s *Socket)
	Connected(s *Socket)
	Deliver(s *Socket, frame []byte)
	Removed(s *Socket, err error)
}

// Socket is one entry in the transport's socket table (spec.md §4.A
// "an array of socket records indexed by integer").
type Socket struct {
	Handle int
	Role   Role
	Read   FrameMode
	Owner  Owner

	conn   net.Conn
	udp    net.PacketConn
	ln     net.Listener
	peer   net.Addr // fixed remote for a UDP "connection" record
	log    o2log.Logger
	server bool // true for RoleTCPServer: accept loop feeds other sockets

	outMu    sync.Mutex
	outQueue [][]byte
	wake     chan struct{}
	closing  bool
	closed   bool
	closeNow chan struct{}
	done     chan struct{}
}

func newSocket(handle int, role Role, read FrameMode, owner Owner, log o2log.Logger) *Socket {
	return &Socket{
		Handle:   handle,
		Role:     role,
		Read:     read,
		Owner:    owner,
		log:      log,
		wake:     make(chan struct{}, 1),
		closeNow: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Socket) signalWrite() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// QueueDepth reports the number of frames currently waiting to be
// written, for tests and backpressure decisions.
func (s *Socket) QueueDepth() int {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return len(s.outQueue)
}

// Addr returns the socket's local bound address: the listener address
// for a RoleTCPServer socket, or the connection's local address
// otherwise.
func (s *Socket) Addr() net.Addr {
	if s.ln != nil {
		return s.ln.Addr()
	}
	if s.conn != nil {
		return s.conn.LocalAddr()
	}
	if s.udp != nil {
		return s.udp.LocalAddr()
	}
	return nil
}
