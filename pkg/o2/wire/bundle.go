package wire

import "encoding/binary"

// BundleBuilder accumulates sub-messages sharing a bundle timestamp,
// spec.md §3 "Bundle": "a message whose payload is a concatenation of
// length-prefixed sub-messages."
type BundleBuilder struct {
	timestamp float64
	subs      [][]byte
}

// NewBundle starts a bundle carrying the given outer timestamp.
func NewBundle(timestamp float64) *BundleBuilder {
	return &BundleBuilder{timestamp: timestamp}
}

// Add encodes sub and appends it to the bundle.
func (bb *BundleBuilder) Add(sub *Message) error {
	encoded, err := Encode(sub)
	if err != nil {
		return err
	}
	bb.subs = append(bb.subs, encoded)
	return nil
}

// Finish produces the outer bundle Message, whose Address is the
// reserved BundleAddress marker and whose argument list is replaced by
// a raw payload the caller encodes via Encode as usual; Unbundle
// reverses this.
func (bb *BundleBuilder) Finish(reliable bool) *Message {
	var flags uint32
	if reliable {
		flags |= FlagReliable
	}
	return &Message{
		Flags:     flags,
		Timestamp: bb.timestamp,
		Address:   BundleAddress,
		Types:     ",b",
		Args:      []Arg{{Type: TypeBlob, Blob: bb.flatten()}},
	}
}

func (bb *BundleBuilder) flatten() []byte {
	var out []byte
	for _, s := range bb.subs {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(s)))
		out = append(out, length[:]...)
		out = append(out, s...)
	}
	return out
}

// Unbundle decodes a bundle message's sub-messages, inheriting the
// enclosing timestamp for any sub-message whose own timestamp is 0
// (spec.md §4.B "Bundles... inner sub-messages with timestamp 0
// inherit the enclosing bundle's timestamp for scheduling").
func Unbundle(bundle *Message) ([]*Message, error) {
	if !bundle.IsBundle() {
		return nil, errTruncated("not a bundle")
	}
	if len(bundle.Args) != 1 || bundle.Args[0].Type != TypeBlob {
		return nil, errTruncated("bundle payload")
	}
	payload := bundle.Args[0].Blob

	var out []*Message
	offset := 0
	for offset < len(payload) {
		if offset+4 > len(payload) {
			return nil, errTruncated("bundle sub-message length")
		}
		n := int(binary.BigEndian.Uint32(payload[offset : offset+4]))
		offset += 4
		if offset+n > len(payload) {
			return nil, errTruncated("bundle sub-message body")
		}
		sub, err := Decode(payload[offset : offset+n])
		if err != nil {
			return nil, err
		}
		offset += n

		if sub.IsBundle() {
			nested, err := Unbundle(sub)
			if err != nil {
				return nil, err
			}
			for _, nm := range nested {
				if nm.Timestamp == 0 {
					nm.Timestamp = bundle.Timestamp
				}
			}
			out = append(out, nested...)
			continue
		}
		if sub.Timestamp == 0 {
			sub.Timestamp = bundle.Timestamp
		}
		out = append(out, sub)
	}
	return out, nil
}
