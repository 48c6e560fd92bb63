// Package frame implements the OT protocol's outermost length-prefixed
// framing: a 2-byte little-endian length, an optional 4-byte Adler-32
// checksum, and the frame body.
//
// The read loop mirrors the teacher's fixed-prefix read idiom
// (infrastructure/routing/client_routing/routing/tcp_chacha20/worker.go
// reads a 4-byte big-endian length prefix with io.ReadFull into a
// reusable buffer); here the prefix is 2 bytes little-endian per the
// OT wire format, and a clean `len==0` close is distinguished from a
// mid-frame disconnect.
package frame

import (
	"encoding/binary"
	"errors"
	"hash/adler32"
	"io"
)

// MaxLen is the largest frame body the wire format can express.
const MaxLen = 65535

// ErrTruncated indicates the peer closed the connection mid-frame.
var ErrTruncated = errors.New("frame: truncated read")

// Read reads one length-prefixed frame from r. A zero length returns
// (nil, nil) signalling a clean close; a length greater than MaxLen is
// likewise treated as a clean close since no valid frame can have it.
func Read(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, ErrTruncated
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	if n == 0 {
		return nil, nil
	}
	if int(n) > MaxLen {
		return nil, nil
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, ErrTruncated
	}
	return body, nil
}

// Write prepends the 2-byte little-endian length and writes the frame.
func Write(w io.Writer, body []byte) error {
	if len(body) > MaxLen {
		return errors.New("frame: body exceeds max length")
	}
	out := make([]byte, 2+len(body))
	binary.LittleEndian.PutUint16(out, uint16(len(body)))
	copy(out[2:], body)
	_, err := w.Write(out)
	return err
}

// HasChecksum reports whether the first 4 bytes of body are an
// Adler-32 checksum of the remainder, by recomputing and comparing.
func HasChecksum(body []byte) bool {
	if len(body) < 4 {
		return false
	}
	want := binary.LittleEndian.Uint32(body[:4])
	got := adler32.Checksum(body[4:])
	return want == got
}

// StripChecksum removes a valid leading checksum, returning the rest
// unchanged if none is present.
func StripChecksum(body []byte) []byte {
	if HasChecksum(body) {
		return body[4:]
	}
	return body
}

// AddChecksum prepends an Adler-32 checksum of body.
func AddChecksum(body []byte) []byte {
	sum := adler32.Checksum(body)
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, sum)
	copy(out[4:], body)
	return out
}
