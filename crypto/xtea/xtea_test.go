package xtea

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	k := Key{0xBABEFECA, 0xEFBEADDE, 0x67452301, 0x00000000}

	cases := [][]byte{
		bytes.Repeat([]byte{0}, 8),
		[]byte("12345678"),
		bytes.Repeat([]byte{0xFF}, 64),
		[]byte("OpenTibiaXTEA!!!"),
	}

	for _, pt := range cases {
		ct := Encrypt(pt, k)
		if len(ct)%8 != 0 {
			t.Fatalf("ciphertext length %d not a multiple of 8", len(ct))
		}
		got, err := Decrypt(ct, k)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(got[:len(pt)], pt) {
			t.Errorf("roundtrip mismatch: got %x, want %x", got[:len(pt)], pt)
		}
	}
}

func TestDecryptInvalidLength(t *testing.T) {
	k := Key{1, 2, 3, 4}
	_, err := Decrypt(make([]byte, 7), k)
	if err != ErrInvalidLength {
		t.Errorf("Decrypt() error = %v, want ErrInvalidLength", err)
	}
}

func TestEncryptPadsToBlockBoundary(t *testing.T) {
	k := Key{1, 2, 3, 4}
	ct := Encrypt([]byte("abc"), k)
	if len(ct) != 8 {
		t.Errorf("len(ct) = %d, want 8", len(ct))
	}
}

func TestKeyFromBytes(t *testing.T) {
	raw := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x23, 0x45, 0x67, 0x00, 0x00, 0x00, 0x00}
	k, err := KeyFromBytes(raw)
	if err != nil {
		t.Fatalf("KeyFromBytes() error = %v", err)
	}
	want := Key{0xBEBAFECA, 0xEFBEADDE, 0x67452301, 0x00000000}
	if k != want {
		t.Errorf("KeyFromBytes() = %#x, want %#x", k, want)
	}
}
