//go:build linux

package memorypatch

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// LinuxCommander is the production Commander, backed by
// process_vm_readv/process_vm_writev and /proc/<pid>/maps, the same
// style of thin syscall wrapper as the teacher's
// ioctl.LinuxIoctlCommander.
type LinuxCommander struct{}

// NewLinuxCommander returns the production Commander.
func NewLinuxCommander() Commander {
	return LinuxCommander{}
}

func (LinuxCommander) ReadAt(pid int, addr uintptr, buf []byte) (int, error) {
	local := []unix.Iovec{{Base: &buf[0], Len: uint64(len(buf))}}
	remote := []unix.RemoteIovec{{Base: addr, Len: len(buf)}}
	n, err := unix.ProcessVMReadv(pid, local, remote, 0)
	if err != nil {
		return n, fmt.Errorf("process_vm_readv pid=%d addr=%#x: %w", pid, addr, err)
	}
	return n, nil
}

func (LinuxCommander) WriteAt(pid int, addr uintptr, buf []byte) (int, error) {
	local := []unix.Iovec{{Base: &buf[0], Len: uint64(len(buf))}}
	remote := []unix.RemoteIovec{{Base: addr, Len: len(buf)}}
	n, err := unix.ProcessVMWritev(pid, local, remote, 0)
	if err != nil {
		return n, fmt.Errorf("process_vm_writev pid=%d addr=%#x: %w", pid, addr, err)
	}
	return n, nil
}

// Regions parses /proc/<pid>/maps for rw-- mapped ranges; read-only or
// non-data mappings (code, shared libs mapped execute-only) are
// skipped since the server IP string can only live in writable data.
func (LinuxCommander) Regions(pid int) ([]Region, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, fmt.Errorf("open maps for pid %d: %w", pid, err)
	}
	defer f.Close()

	var regions []Region
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		perms := fields[1]
		if !strings.HasPrefix(perms, "rw") {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(bounds[0], 16, 64)
		end, err2 := strconv.ParseUint(bounds[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		regions = append(regions, Region{Start: uintptr(start), End: uintptr(end)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan maps for pid %d: %w", pid, err)
	}
	return regions, nil
}
