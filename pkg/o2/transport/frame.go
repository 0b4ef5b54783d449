package transport

import "encoding/binary"

// lengthPrefixSize is the width of the network-order frame length
// prefix spec.md §3 "Wire format" mandates ahead of every O2-framed
// message or bundle.
const lengthPrefixSize = 4

// framer incrementally reassembles length-prefixed frames out of a
// byte stream, one TCP connection's worth at a time. UDP packets
// never go through this: a datagram is always exactly one frame
// (spec.md §4.A "UDP: unframed, one packet is one frame").
type framer struct {
	buf []byte
}

// feed appends newly read bytes and extracts as many complete frames
// as are now available, most-recent-last.
func (f *framer) feed(chunk []byte) [][]byte {
	f.buf = append(f.buf, chunk...)

	var frames [][]byte
	for {
		if len(f.buf) < lengthPrefixSize {
			return frames
		}
		n := binary.BigEndian.Uint32(f.buf[:lengthPrefixSize])
		total := lengthPrefixSize + int(n)
		if len(f.buf) < total {
			return frames
		}
		frame := make([]byte, n)
		copy(frame, f.buf[lengthPrefixSize:total])
		frames = append(frames, frame)
		f.buf = f.buf[total:]
	}
}

// encodeFrame prefixes payload with its big-endian length, ready to
// write to a TCP socket.
func encodeFrame(payload []byte) []byte {
	out := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(out[:lengthPrefixSize], uint32(len(payload)))
	copy(out[lengthPrefixSize:], payload)
	return out
}
