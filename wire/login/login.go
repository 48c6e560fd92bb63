// Package login implements the C5 login interceptor: locating the
// client's RSA-encrypted key block inside the first login frame, and
// rewriting the server's character-list reply to redirect the client
// back to this proxy's loopback address.
//
// There is no teacher analogue for a from-scratch RSA-blob scrape
// (the teacher's handshake is a real ECDH key exchange over a
// dedicated message type); this package follows spec section 4.5
// directly, built on crypto/rsautil and wire/opcode.
package login

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"otmitm/crypto/rsautil"
	"otmitm/crypto/xtea"
)

// Sentinel is the expected first byte of a correctly RSA-decrypted
// login key block.
const sentinel = 0x00

// ErrNoRSABlock indicates no offset in the frame yielded a valid
// decrypted sentinel byte under any tried key.
var ErrNoRSABlock = fmt.Errorf("login: no valid RSA block found in frame")

// ExtractKey scans frame from the tail backward in rsautil.KeySizeBytes
// windows, trial-decrypting each with every candidate key until one
// produces a block starting with the 0x00 sentinel. It returns the
// XTEA key captured from bytes 1..17 of that block.
func ExtractKey(frame []byte, candidates ...rsautil.Key) (xtea.Key, error) {
	if len(candidates) == 0 {
		candidates = []rsautil.Key{rsautil.DefaultKey()}
	}
	blockLen := rsautil.KeySizeBytes
	for start := len(frame) - blockLen; start >= 0; start-- {
		block := frame[start : start+blockLen]
		for _, key := range candidates {
			plain, err := rsautil.Decrypt(key, block)
			if err != nil {
				continue
			}
			if plain[0] != sentinel {
				continue
			}
			var k xtea.Key
			for i := 0; i < 4; i++ {
				k[i] = binary.LittleEndian.Uint32(plain[1+i*4:])
			}
			return k, nil
		}
	}
	return xtea.Key{}, ErrNoRSABlock
}

// RewriteServerIP replaces every occurrence of oldIP (both the 4-byte
// packed form and its ASCII-decimal dotted form) in payload with the
// loopback address, zero-padding the ASCII form to preserve length.
// It reports whether any replacement was made.
func RewriteServerIP(payload []byte, oldIP net.IP) ([]byte, bool) {
	ip4 := oldIP.To4()
	if ip4 == nil {
		return payload, false
	}
	loopback := net.IPv4(127, 0, 0, 1).To4()
	out := append([]byte(nil), payload...)
	found := false

	for i := 0; i+4 <= len(out); i++ {
		if bytes.Equal(out[i:i+4], ip4) {
			copy(out[i:i+4], loopback)
			found = true
		}
	}

	oldASCII := []byte(ip4.String())
	newASCII := append([]byte(loopback.String()), make([]byte, 0)...)
	if len(newASCII) < len(oldASCII) {
		newASCII = append(newASCII, make([]byte, len(oldASCII)-len(newASCII))...)
	} else if len(newASCII) > len(oldASCII) {
		newASCII = newASCII[:len(oldASCII)]
	}
	for i := 0; i+len(oldASCII) <= len(out); i++ {
		if bytes.Equal(out[i:i+len(oldASCII)], oldASCII) {
			copy(out[i:i+len(oldASCII)], newASCII)
			found = true
		}
	}

	return out, found
}
