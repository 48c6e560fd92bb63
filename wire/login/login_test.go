package login

import (
	"encoding/binary"
	"net"
	"testing"

	"otmitm/crypto/rsautil"
)

func buildLoginFrame(k [4]uint32, prefixLen int) []byte {
	block := make([]byte, rsautil.KeySizeBytes)
	block[0] = 0x00
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(block[1+i*4:], k[i])
	}
	ct, err := rsautil.Encrypt(rsautil.DefaultKey(), block)
	if err != nil {
		panic(err)
	}
	frame := make([]byte, prefixLen+len(ct))
	copy(frame[prefixLen:], ct)
	return frame
}

func TestExtractKeyFindsTrailingBlock(t *testing.T) {
	want := [4]uint32{0xBABEFECA, 0xEFBEADDE, 0x67452301, 0x00000000}
	frame := buildLoginFrame(want, 12)

	got, err := ExtractKey(frame)
	if err != nil {
		t.Fatalf("ExtractKey() error = %v", err)
	}
	if got != want {
		t.Errorf("ExtractKey() = %#v, want %#v", got, want)
	}
}

func TestExtractKeyNoValidBlock(t *testing.T) {
	garbage := make([]byte, 200)
	for i := range garbage {
		garbage[i] = byte(i)
	}
	_, err := ExtractKey(garbage)
	if err != ErrNoRSABlock {
		t.Errorf("ExtractKey() error = %v, want ErrNoRSABlock", err)
	}
}

func TestRewriteServerIPPackedForm(t *testing.T) {
	oldIP := net.IPv4(10, 0, 0, 5)
	payload := append([]byte{0xAA, 0xBB}, oldIP.To4()...)
	payload = append(payload, 0xCC)

	out, found := RewriteServerIP(payload, oldIP)
	if !found {
		t.Fatal("RewriteServerIP() found = false, want true")
	}
	want := net.IPv4(127, 0, 0, 1).To4()
	if string(out[2:6]) != string(want) {
		t.Errorf("packed bytes = %x, want %x", out[2:6], want)
	}
	if len(out) != len(payload) {
		t.Errorf("len(out) = %d, want %d (length preserved)", len(out), len(payload))
	}
}

func TestRewriteServerIPASCIIForm(t *testing.T) {
	oldIP := net.IPv4(192, 168, 1, 100)
	ascii := []byte(oldIP.String())
	payload := append([]byte("host="), ascii...)

	out, found := RewriteServerIP(payload, oldIP)
	if !found {
		t.Fatal("RewriteServerIP() found = false, want true")
	}
	if len(out) != len(payload) {
		t.Errorf("len(out) = %d, want %d (length preserved)", len(out), len(payload))
	}
}

func TestRewriteServerIPNoMatch(t *testing.T) {
	oldIP := net.IPv4(10, 0, 0, 5)
	payload := []byte("nothing to see here")
	out, found := RewriteServerIP(payload, oldIP)
	if found {
		t.Error("RewriteServerIP() found = true, want false")
	}
	if string(out) != string(payload) {
		t.Error("RewriteServerIP() modified payload with no match")
	}
}
