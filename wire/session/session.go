// Package session holds the per-connection cryptographic state for one
// proxied game-protocol leg: the XTEA key negotiated during login, and
// the decrypt_frame/encrypt_payload pair that the relay uses on every
// frame once that key is known.
//
// Grounded on the teacher's infrastructure/tunnel/session/session.go:
// an accessor-only struct built once a cryptographic key is available,
// exposing encrypt/decrypt as pure functions of that key rather than
// mutating shared state per call.
package session

import (
	"encoding/binary"
	"errors"

	"otmitm/crypto/xtea"
	"otmitm/wire/frame"
)

// ErrNotKeyed is returned by Decrypt/Encrypt when no XTEA key has been
// set on the session yet. Calling either before the login handshake
// completes is a programmer error.
var ErrNotKeyed = errors.New("session: not keyed")

// Session is the cryptographic state of one client<->server leg.
type Session struct {
	keyed bool
	key   xtea.Key
}

// New returns an unkeyed session.
func New() *Session {
	return &Session{}
}

// SetKey installs the XTEA key captured from the login handshake.
func (s *Session) SetKey(k xtea.Key) {
	s.key = k
	s.keyed = true
}

// Keyed reports whether SetKey has been called.
func (s *Session) Keyed() bool {
	return s.keyed
}

// Decrypt strips an optional leading Adler-32 checksum, XTEA-decrypts
// the remainder, and reads the u16 inner length prefix, returning the
// inner payload bytes. It returns (nil, nil) for any structural
// inconsistency (ciphertext not a multiple of the XTEA block size, or
// an inner length larger than the decrypted body) that should be
// treated as "not a valid frame" rather than a hard error.
func (s *Session) Decrypt(raw []byte) ([]byte, error) {
	if !s.keyed {
		return nil, ErrNotKeyed
	}
	body := frame.StripChecksum(raw)
	plain, err := xtea.Decrypt(body, s.key)
	if err != nil {
		return nil, nil
	}
	if len(plain) < 2 {
		return nil, nil
	}
	innerLen := binary.LittleEndian.Uint16(plain[:2])
	if int(innerLen) > len(plain)-2 {
		return nil, nil
	}
	return plain[2 : 2+innerLen], nil
}

// Encrypt prepends a u16 length to payload, XTEA-encrypts the result
// (zero-padded to an 8-byte boundary), and prepends an Adler-32
// checksum of the ciphertext, returning the complete frame body.
func (s *Session) Encrypt(payload []byte) ([]byte, error) {
	if !s.keyed {
		return nil, ErrNotKeyed
	}
	plain := make([]byte, 2+len(payload))
	binary.LittleEndian.PutUint16(plain, uint16(len(payload)))
	copy(plain[2:], payload)
	cipher := xtea.Encrypt(plain, s.key)
	return frame.AddChecksum(cipher), nil
}
