//go:build windows

package workingcopy

// platformStat has no portable inode or nanosecond-mtime source on Windows
// through os.FileInfo alone; Snapshot falls back to comparing size and
// os.FileInfo's mtime on this platform.
func platformStat(path string) (ino uint64, mtimeNanos int64, ok bool) {
	return 0, 0, false
}
