// Package rsautil implements textbook (unpadded) RSA modular
// exponentiation over a hard-coded 1024-bit key, matching the OT
// client's embedded login key. crypto/rsa only exposes PKCS1v15/OAEP
// padded modes, neither of which the wire protocol uses, so this
// package works directly in math/big.
package rsautil

import (
	"errors"
	"math/big"
)

// KeySizeBytes is the fixed RSA block size used by the OT login
// handshake: every encrypt/decrypt call produces or consumes exactly
// this many bytes.
const KeySizeBytes = 128

// PublicExponent is the OT client's fixed RSA public exponent.
const PublicExponent = 65537

// defaultModulusHex and defaultPrivateExponentHex are the well-known
// OTClient RSA key used by many OT servers, grounded on
// fusion32-forgottenserver's tools/rsapub.go (same modulus-from-hex-
// string construction idiom) and pinned to the exact decimal constants
// in original_source/crypto.py's DEFAULT_RSA_N/DEFAULT_RSA_D; the
// private exponent is a compile-time constant like the real
// client/server pair, since this proxy must decrypt what the game
// client encrypted for the real server's public key.
const (
	defaultModulusHex = "9B646903B45B07AC956568D87353BD7165139DD7940703B03E6DD079399661B4" +
		"A837AA60561D7CCB9452FA0080594909882AB5BCA58A1A1B35F8B1059B72B121" +
		"2611C6152AD3DBB3CFBEE7ADC142A75D3D75971509C321C5C24A5BD51FD460F0" +
		"1B4E15BEB0DE1930528A5D3F15C1E3CBF5C401D6777E10ACAAB33DBE8D5B7FF5"
	defaultPrivateExponentHex = "428BD3B5346DAF71A761106F71A43102F8C857D6549C54660BB6378B52B02613" +
		"99DE8CE648BAC410E2EA4E0A1CED1FAC2756331220CA6DB7AD7B5D440B782886" +
		"5856E7AA6D8F45837FEEE9B4A3A0AA21322A1E2AB75B1825E786CF81A28A8A09" +
		"A1E28519DB64FF9BAF311E850C2BFA1FB7B08A056CC337F7DF443761AEFE8D81"
)

// Key is a raw RSA key pair (or public-only key) for unpadded
// textbook RSA operations.
type Key struct {
	N *big.Int
	E *big.Int
	D *big.Int // nil for a public-only key
}

var defaultKey = mustDefaultKey()

func mustDefaultKey() Key {
	n, ok := new(big.Int).SetString(defaultModulusHex, 16)
	if !ok {
		panic("rsautil: invalid default modulus")
	}
	d, ok := new(big.Int).SetString(defaultPrivateExponentHex, 16)
	if !ok {
		panic("rsautil: invalid default private exponent")
	}
	return Key{N: n, E: big.NewInt(PublicExponent), D: d}
}

// DefaultKey returns the compiled-in default OTClient RSA key. It is
// available at compile time, per the wire protocol's requirement.
func DefaultKey() Key {
	return defaultKey
}

// Decrypt computes c^d mod n, emitting exactly KeySizeBytes bytes.
func Decrypt(k Key, ciphertext []byte) ([]byte, error) {
	if k.D == nil {
		return nil, errors.New("rsautil: key has no private exponent")
	}
	if len(ciphertext) != KeySizeBytes {
		return nil, errors.New("rsautil: ciphertext must be 128 bytes")
	}
	c := new(big.Int).SetBytes(ciphertext)
	m := new(big.Int).Exp(c, k.D, k.N)
	out := make([]byte, KeySizeBytes)
	m.FillBytes(out)
	return out, nil
}

// Encrypt computes m^e mod n, emitting exactly KeySizeBytes bytes.
func Encrypt(k Key, plaintext []byte) ([]byte, error) {
	if len(plaintext) != KeySizeBytes {
		return nil, errors.New("rsautil: plaintext must be 128 bytes")
	}
	m := new(big.Int).SetBytes(plaintext)
	c := new(big.Int).Exp(m, k.E, k.N)
	out := make([]byte, KeySizeBytes)
	c.FillBytes(out)
	return out, nil
}
