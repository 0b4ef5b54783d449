// Package wire implements the O2 binary message layout: aligned,
// NUL-padded addresses and type-tag strings, a fixed primitive and
// vector/array argument set, and bundle flattening. Byte order on the
// wire is always network (big-endian); this package never relies on
// struct-cast or union tricks to get there, only explicit
// encoding/binary calls, the same discipline facebook/time's NTP
// packet codec uses.
package wire

import "fmt"

// Type tags, one ASCII byte each, exactly as spec.md §3/§4.B defines
// them.
const (
	TypeInt32     = 'i'
	TypeInt64     = 'h'
	TypeFloat32   = 'f'
	TypeFloat64   = 'd'
	TypeTimetag   = 't'
	TypeChar      = 'c'
	TypeBool      = 'B'
	TypeString    = 's'
	TypeSymbol    = 'S'
	TypeBlob      = 'b'
	TypeMidi      = 'm'
	TypeTrue      = 'T'
	TypeFalse     = 'F'
	TypeInfinitum = 'I'
	TypeNil       = 'N'
	TypeVector    = 'v' // followed by one element type char
	TypeArrayOpen = '['
	TypeArrayEnd  = ']'
)

// BundleAddress is the reserved address marking a message as a bundle
// of sub-messages sharing a timestamp (spec.md §3 "Bundle").
const BundleAddress = "#bundle"

// Flags packed into the low 8 bits of the flags+ttl word; ttl lives in
// the upper 24 bits (spec.md §3 "Message").
const (
	FlagReliable uint32 = 1 << iota
	FlagTapCopy
)

const maxTTL = 1<<24 - 1

// Arg is a single decoded or staged argument. Only the fields
// relevant to Type are meaningful; this mirrors the teacher's flat
// DataHolder struct (pkg/mcast/types/data.go) rather than a Go
// interface-per-type hierarchy, because the wire format itself is a
// flat, self-describing tagged union.
type Arg struct {
	Type  byte
	I     int32
	H     int64
	F     float32
	D     float64
	Str   string
	Blob  []byte
	Midi  [4]byte
	Elems []Arg // populated for TypeVector (flat elements) and array members
	Elt   byte  // element type for TypeVector
}

// Message is a fully decoded or staged O2 message. The on-wire length
// prefix is never stored here: it is a framing detail owned by the
// transport layer (spec.md §3 "length + 4 ≤ buffer... excluded from
// payload").
type Message struct {
	Flags     uint32
	TTL       uint32
	Timestamp float64 // 0 means deliver immediately
	Address   string
	Types     string // starts with ',' followed by one char per Args entry (vectors/arrays use 'v'/'['/']')
	Args      []Arg
}

// IsBundle reports whether this message's payload is a sequence of
// nested sub-messages rather than ordinary arguments.
func (m *Message) IsBundle() bool {
	return m.Address == BundleAddress
}

// Reliable reports whether FlagReliable is set.
func (m *Message) Reliable() bool {
	return m.Flags&FlagReliable != 0
}

// IncrementTTL returns an error once ttl would reach the tap loop
// guard; callers pass the configured limit (spec.md §9 open question:
// the hard-coded "3" is now a constant, see directory.DefaultTapTTLLimit).
func (m *Message) IncrementTTL(limit uint32) error {
	if m.TTL >= limit {
		return fmt.Errorf("wire: ttl limit %d reached for %q", limit, m.Address)
	}
	m.TTL++
	return nil
}

// Clone returns a deep-enough copy for tap fan-out: Args slices are
// copied so that rewriting the address of the copy for a tapper never
// aliases the original message's backing arrays.
func (m *Message) Clone() *Message {
	cp := *m
	cp.Args = make([]Arg, len(m.Args))
	copy(cp.Args, m.Args)
	return &cp
}
