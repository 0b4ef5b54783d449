package wire

import (
	"encoding/binary"
	"math"
)

// Builder accumulates a message's arguments the way spec.md §4.B
// describes: Start, a sequence of Add* calls that each stage one
// argument (and so one type-tag character), finally Finish which
// returns the owned Message; Encode later writes the aligned,
// big-endian wire form. It is not safe for concurrent use; callers that need
// one staging buffer per goroutine should keep their own Builder,
// mirroring the original's per-thread staging buffer.
type Builder struct {
	args  []Arg
	stack []*Arg // open vector/array targets, for nested Add calls
}

// NewBuilder starts a fresh staging buffer.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) append(a Arg) {
	if len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		top.Elems = append(top.Elems, a)
		return
	}
	b.args = append(b.args, a)
}

func (b *Builder) AddInt32(v int32) *Builder     { b.append(Arg{Type: TypeInt32, I: v}); return b }
func (b *Builder) AddInt64(v int64) *Builder     { b.append(Arg{Type: TypeInt64, H: v}); return b }
func (b *Builder) AddFloat32(v float32) *Builder { b.append(Arg{Type: TypeFloat32, F: v}); return b }
func (b *Builder) AddFloat64(v float64) *Builder { b.append(Arg{Type: TypeFloat64, D: v}); return b }
func (b *Builder) AddTimetag(v int64) *Builder   { b.append(Arg{Type: TypeTimetag, H: v}); return b }
func (b *Builder) AddChar(v byte) *Builder       { b.append(Arg{Type: TypeChar, I: int32(v)}); return b }
func (b *Builder) AddBool(v bool) *Builder {
	var i int32
	if v {
		i = 1
	}
	b.append(Arg{Type: TypeBool, I: i})
	return b
}
func (b *Builder) AddString(v string) *Builder { b.append(Arg{Type: TypeString, Str: v}); return b }
func (b *Builder) AddSymbol(v string) *Builder { b.append(Arg{Type: TypeSymbol, Str: v}); return b }
func (b *Builder) AddBlob(v []byte) *Builder   { b.append(Arg{Type: TypeBlob, Blob: v}); return b }
func (b *Builder) AddMidi(v [4]byte) *Builder  { b.append(Arg{Type: TypeMidi, Midi: v}); return b }
func (b *Builder) AddTrue() *Builder           { b.append(Arg{Type: TypeTrue}); return b }
func (b *Builder) AddFalse() *Builder          { b.append(Arg{Type: TypeFalse}); return b }
func (b *Builder) AddNil() *Builder            { b.append(Arg{Type: TypeNil}); return b }
func (b *Builder) AddInfinitum() *Builder      { b.append(Arg{Type: TypeInfinitum}); return b }

// AddVector stages a homogeneous vector whose element type must be one
// of i h f d c (spec.md §3 invariant "vector element type ∈ ihfdc").
// Nested Add* calls until the matching End populate its elements.
func (b *Builder) AddVector(elt byte) *Builder {
	b.append(Arg{Type: TypeVector, Elt: elt})
	b.stack = append(b.stack, b.lastAppended())
	return b
}

// StartArray opens a heterogeneous, bracket-delimited array. Nested
// Add*/StartArray/AddVector calls until the matching End populate it.
func (b *Builder) StartArray() *Builder {
	b.append(Arg{Type: TypeArrayOpen})
	b.stack = append(b.stack, b.lastAppended())
	return b
}

// lastAppended returns a pointer to the element just written by
// append, wherever it landed (top-level args or the open container's
// Elems). Safe because only one container is ever "open for writes" at
// a given nesting depth at a time.
func (b *Builder) lastAppended() *Arg {
	if len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		return &top.Elems[len(top.Elems)-1]
	}
	return &b.args[len(b.args)-1]
}

// End closes the most recently opened vector or array.
func (b *Builder) End() *Builder {
	if len(b.stack) > 0 {
		b.stack = b.stack[:len(b.stack)-1]
	}
	return b
}

// Finish records the flags, timestamp, address and type-tag string
// (built from the staged arguments) on the returned Message; padding
// and byte layout happen in Encode. reliable
// controls FlagReliable; ttl always starts at 0 (spec.md §3 "ttl is
// incremented each hop").
func (b *Builder) Finish(timestamp float64, address string, reliable bool) *Message {
	var flags uint32
	if reliable {
		flags |= FlagReliable
	}
	return &Message{
		Flags:     flags,
		TTL:       0,
		Timestamp: timestamp,
		Address:   address,
		Types:     "," + typeString(b.args),
		Args:      b.args,
	}
}

// typeString renders the type-tag characters for a sequence of
// arguments, descending into vectors ("v"+elt, once) and arrays
// ("[" ... "]", recursively) exactly as spec.md §3/§4.B describe.
func typeString(args []Arg) string {
	out := make([]byte, 0, len(args))
	for _, a := range args {
		switch a.Type {
		case TypeVector:
			out = append(out, TypeVector, a.Elt)
		case TypeArrayOpen:
			out = append(out, TypeArrayOpen)
			out = append(out, typeString(a.Elems)...)
			out = append(out, TypeArrayEnd)
		default:
			out = append(out, a.Type)
		}
	}
	return string(out)
}

// Encode serializes msg to its wire form, network byte order
// throughout, the length prefix itself excluded (the transport layer
// adds that immediately before writing to a socket).
func Encode(msg *Message) ([]byte, error) {
	buf := make([]byte, 0, 64+len(msg.Address)+len(msg.Args)*8)

	flagsTTL := (msg.Flags & 0xFF) | (msg.TTL&maxTTL)<<8
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], flagsTTL)
	buf = append(buf, word[:]...)

	var tsBits [8]byte
	binary.BigEndian.PutUint64(tsBits[:], math.Float64bits(msg.Timestamp))
	buf = append(buf, tsBits[:]...)

	buf = writePaddedString(buf, msg.Address)
	buf = writePaddedString(buf, msg.Types)

	var err error
	buf, err = encodeArgs(buf, msg.Args)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func encodeArgs(buf []byte, args []Arg) ([]byte, error) {
	var err error
	for _, a := range args {
		buf, err = encodeArg(buf, a)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeArg(buf []byte, a Arg) ([]byte, error) {
	switch a.Type {
	case TypeInt32, TypeChar, TypeBool:
		var w [4]byte
		binary.BigEndian.PutUint32(w[:], uint32(a.I))
		buf = append(buf, w[:]...)
	case TypeInt64, TypeTimetag:
		var w [8]byte
		binary.BigEndian.PutUint64(w[:], uint64(a.H))
		buf = append(buf, w[:]...)
	case TypeFloat32:
		var w [4]byte
		binary.BigEndian.PutUint32(w[:], math.Float32bits(a.F))
		buf = append(buf, w[:]...)
	case TypeFloat64:
		var w [8]byte
		binary.BigEndian.PutUint64(w[:], math.Float64bits(a.D))
		buf = append(buf, w[:]...)
	case TypeString, TypeSymbol:
		buf = writePaddedString(buf, a.Str)
	case TypeBlob:
		var w [4]byte
		binary.BigEndian.PutUint32(w[:], uint32(len(a.Blob)))
		buf = append(buf, w[:]...)
		buf = append(buf, a.Blob...)
		for i := len(a.Blob); i%4 != 0; i++ {
			buf = append(buf, 0)
		}
	case TypeMidi:
		buf = append(buf, a.Midi[:]...)
	case TypeTrue, TypeFalse, TypeInfinitum, TypeNil:
		// no payload
	case TypeVector:
		var w [4]byte
		binary.BigEndian.PutUint32(w[:], uint32(len(a.Elems)))
		buf = append(buf, w[:]...)
		for _, e := range a.Elems {
			var err error
			buf, err = encodeArg(buf, e)
			if err != nil {
				return nil, err
			}
		}
	case TypeArrayOpen:
		var err error
		buf, err = encodeArgs(buf, a.Elems)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &truncatedError{what: "unknown arg type"}
	}
	return buf, nil
}
