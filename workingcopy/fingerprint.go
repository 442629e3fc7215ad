package workingcopy

import "os"

// Fingerprint is the recorded "is this file unchanged" signature: size and
// modification time always, inode when the platform exposes one. Two
// fingerprints compare equal exactly when Snapshot can skip re-reading the
// file's content.
type Fingerprint struct {
	Size    int64
	ModTime int64 // nanoseconds, to keep the struct comparable with ==
	Inode   uint64
}

func (f Fingerprint) Equal(other Fingerprint) bool {
	return f == other
}

// statFingerprint builds a Fingerprint for the file at path, given its
// already-fetched os.FileInfo. The inode (and, where available, a
// higher-resolution mtime) come from platformStat, split per OS the same way
// the teacher splits OS-specific syscalls across named files
// (e.g. pkg/zeta/shutdown_other.go / shutdown_windows.go).
func statFingerprint(path string, info os.FileInfo) Fingerprint {
	fp := Fingerprint{Size: info.Size(), ModTime: info.ModTime().UnixNano()}
	if ino, mtimeNanos, ok := platformStat(path); ok {
		fp.Inode = ino
		fp.ModTime = mtimeNanos
	}
	return fp
}
