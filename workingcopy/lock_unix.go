//go:build !windows

package workingcopy

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile holds an OS-level exclusive lock on an open file, matching the
// spec's "OS-level exclusive lock on a state file" requirement for
// snapshot/checkout/sparse-update operations.
type lockFile struct {
	f *os.File
}

func acquireLock(path string) (*lockFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return &lockFile{f: f}, nil
}

func (l *lockFile) Release() error {
	defer l.f.Close()
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
