package session

import (
	"bytes"
	"testing"

	"otmitm/crypto/xtea"
)

func testKey() xtea.Key {
	return xtea.Key{0xBABEFECA, 0xEFBEADDE, 0x67452301, 0x00000000}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	s := New()
	s.SetKey(testKey())

	payload := []byte("PLAYER_MOVE north")
	frameBody, err := s.Encrypt(payload)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	got, err := s.Decrypt(frameBody)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("roundtrip mismatch: got %q, want %q", got, payload)
	}
}

func TestNotKeyedErrors(t *testing.T) {
	s := New()
	if _, err := s.Decrypt([]byte{0x01, 0x02}); err != ErrNotKeyed {
		t.Errorf("Decrypt() error = %v, want ErrNotKeyed", err)
	}
	if _, err := s.Encrypt([]byte{0x01}); err != ErrNotKeyed {
		t.Errorf("Encrypt() error = %v, want ErrNotKeyed", err)
	}
}

func TestDecryptGarbageReturnsNilNil(t *testing.T) {
	s := New()
	s.SetKey(testKey())
	got, err := s.Decrypt([]byte{0x01, 0x02, 0x03})
	if err != nil || got != nil {
		t.Errorf("Decrypt(garbage) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestKeyedReflectsSetKey(t *testing.T) {
	s := New()
	if s.Keyed() {
		t.Error("Keyed() = true before SetKey")
	}
	s.SetKey(testKey())
	if !s.Keyed() {
		t.Error("Keyed() = false after SetKey")
	}
}
