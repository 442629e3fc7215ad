//go:build !windows

package workingcopy

import "golang.org/x/sys/unix"

// platformStat fetches the inode and nanosecond mtime straight from the
// kernel's stat structure, mirroring the teacher's per-OS syscall split
// (pkg/zeta/shutdown_other.go vs shutdown_windows.go).
func platformStat(path string) (ino uint64, mtimeNanos int64, ok bool) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, 0, false
	}
	return st.Ino, st.Mtim.Nano(), true
}
