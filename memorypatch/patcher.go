package memorypatch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"otmitm/application/logging"
)

const (
	loopbackIP = "127.0.0.1"
	chunkSize  = 1 << 20
	// overlap must be at least len(longest needle)-1 so a needle
	// straddling a chunk boundary is never missed.
	overlap = 64
)

// Patcher scans a target process's address space for ASCII
// occurrences of a server IP string and overwrites each occurrence
// with 127.0.0.1, null-padded to the original needle length. It is
// explicitly best-effort: every exported method returns an error
// instead of panicking, and callers (the supervisor) are expected to
// log-and-continue on failure per spec.
type Patcher struct {
	commander Commander
	log       logging.Logger
}

// NewPatcher constructs a Patcher over commander, which is
// NewLinuxCommander() in production and a fake in tests.
func NewPatcher(commander Commander, log logging.Logger) *Patcher {
	return &Patcher{commander: commander, log: log}
}

// FindProcessByName returns the PID of the first /proc entry whose
// comm matches name exactly, or an error if none is found.
func FindProcessByName(name string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, fmt.Errorf("read /proc: %w", err)
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(comm)) == name {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("no process named %q found", name)
}

// PatchServerIP scans pid's writable regions for needle (an ASCII IP
// string, e.g. "192.168.1.10") and overwrites every occurrence with
// 127.0.0.1, null-padded with trailing zero bytes to preserve needle's
// original length, returning the number of occurrences patched.
func (p *Patcher) PatchServerIP(pid int, needle string) (int, error) {
	if len(needle) < len(loopbackIP) {
		return 0, fmt.Errorf("needle %q shorter than replacement %q, cannot null-pad", needle, loopbackIP)
	}
	replacement := make([]byte, len(needle))
	copy(replacement, loopbackIP)
	// remaining bytes are already zero-valued (null padding).

	regions, err := p.commander.Regions(pid)
	if err != nil {
		return 0, fmt.Errorf("list regions for pid %d: %w", pid, err)
	}

	patched := 0
	for _, r := range regions {
		n, err := p.patchRegion(pid, r, []byte(needle), replacement)
		if err != nil {
			p.log.Printf("memorypatch: region %#x-%#x: %v", r.Start, r.End, err)
			continue
		}
		patched += n
	}
	return patched, nil
}

// patchRegion scans r in overlapping chunks so a needle straddling a
// chunk boundary is never missed. Each iteration only acts on matches
// before its forward edge (off+advance); matches in the trailing
// overlap are deferred to the next iteration, which re-reads them
// with full context, so a straddling needle is counted exactly once.
func (p *Patcher) patchRegion(pid int, r Region, needle, replacement []byte) (int, error) {
	size := r.End - r.Start
	patched := 0
	buf := make([]byte, chunkSize)

	for off := uintptr(0); off < size; {
		want := chunkSize
		if remain := size - off; remain < uintptr(want) {
			want = int(remain)
		}
		n, err := p.commander.ReadAt(pid, r.Start+off, buf[:want])
		if err != nil || n == 0 {
			return patched, err
		}
		chunk := buf[:n]

		advance := n
		final := uintptr(n) >= size-off
		if !final {
			advance -= overlap
			if advance < 1 {
				advance = 1
			}
		}

		idx := 0
		for {
			rel := bytes.Index(chunk[idx:], needle)
			if rel < 0 {
				break
			}
			matchOff := idx + rel
			if !final && matchOff >= advance {
				break
			}
			at := r.Start + off + uintptr(matchOff)
			if _, err := p.commander.WriteAt(pid, at, replacement); err != nil {
				return patched, fmt.Errorf("write at %#x: %w", at, err)
			}
			patched++
			idx = matchOff + len(needle)
		}

		off += uintptr(advance)
	}
	return patched, nil
}
