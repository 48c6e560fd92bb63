package rsautil

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildLoginBlock constructs a 128-byte RSA plaintext block as the
// client would: 0x00 sentinel, 16 bytes of XTEA key, zero padding.
func buildLoginBlock(k [4]uint32) []byte {
	b := make([]byte, KeySizeBytes)
	b[0] = 0x00
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(b[1+i*4:], k[i])
	}
	return b
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	key := DefaultKey()
	plaintext := buildLoginBlock([4]uint32{0xBABEFECA, 0xEFBEADDE, 0x67452301, 0x00000000})

	ct, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if len(ct) != KeySizeBytes {
		t.Fatalf("len(ct) = %d, want %d", len(ct), KeySizeBytes)
	}

	pt, err := Decrypt(key, ct)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("roundtrip mismatch: got %x, want %x", pt, plaintext)
	}
	if pt[0] != 0x00 {
		t.Errorf("pt[0] = %#x, want 0x00 sentinel", pt[0])
	}
}

func TestDecryptRejectsWrongLength(t *testing.T) {
	key := DefaultKey()
	_, err := Decrypt(key, make([]byte, 100))
	if err == nil {
		t.Fatal("Decrypt() error = nil, want error for short ciphertext")
	}
}

func TestDecryptRejectsMissingPrivateExponent(t *testing.T) {
	key := DefaultKey()
	pubOnly := Key{N: key.N, E: key.E}
	_, err := Decrypt(pubOnly, make([]byte, KeySizeBytes))
	if err == nil {
		t.Fatal("Decrypt() error = nil, want error for missing private exponent")
	}
}
