//go:build !windows

package opstore

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile holds an OS-level exclusive lock on the heads file, the same
// flock-based shape as workingcopy's lockFile (workingcopy/lock_unix.go).
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
