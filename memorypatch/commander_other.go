//go:build !linux

package memorypatch

import "errors"

// errUnsupported is returned on every call on non-Linux platforms;
// memory patching is a Linux-only capability per spec.
var errUnsupported = errors.New("memorypatch: unsupported platform")

// LinuxCommander is a stub on non-Linux builds so the package still
// compiles; NewLinuxCommander's Commander always fails.
type LinuxCommander struct{}

// NewLinuxCommander returns a Commander whose methods always fail.
func NewLinuxCommander() Commander {
	return LinuxCommander{}
}

func (LinuxCommander) ReadAt(pid int, addr uintptr, buf []byte) (int, error) {
	return 0, errUnsupported
}

func (LinuxCommander) WriteAt(pid int, addr uintptr, buf []byte) (int, error) {
	return 0, errUnsupported
}

func (LinuxCommander) Regions(pid int) ([]Region, error) {
	return nil, errUnsupported
}
