package opstore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antgroup/zit/hash"
)

// HeadStore is the operation-log head: the set of operation ids with no
// known successor yet. Normal operation keeps exactly one; a concurrent
// writer race can briefly leave more than one until a merge operation
// collapses them back to one, matching §6's "op_heads/heads ← current
// operation head(s)" (plural) layout comment.
//
// Advancement is guarded by an exclusive file lock (golang.org/x/sys/unix
// flock on unix, exclusive-open semantics on windows — lock_unix.go/
// lock_windows.go, the same split as workingcopy's own state-file lock)
// plus an explicit expected-value check before the write, the compare half
// of compare-and-swap. The check-then-write-then-rename shape is grounded
// on the teacher's reference update (modules/zeta/refs/filesystem.go's
// checkReference/ReferenceUpdate): read under lock, compare against the
// caller's expected value, write to a temp file, atomically rename.
type HeadStore struct {
	path string
}

// OpenHeads returns a HeadStore backed by the single heads file under dir
// (a repository's op_heads/ directory).
func OpenHeads(dir string) (*HeadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ErrOpStore("open heads", err)
	}
	return &HeadStore{path: filepath.Join(dir, "heads")}, nil
}

func (h *HeadStore) readLocked() ([]hash.OperationID, error) {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrOpStore("read heads", err)
	}
	var out []hash.OperationID
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, err := hash.NewEx(line)
		if err != nil {
			return nil, ErrOpStore("read heads", err)
		}
		out = append(out, hash.OperationID(id))
	}
	return out, nil
}

// ReadHeads returns the current set of operation-log heads.
func (h *HeadStore) ReadHeads() ([]hash.OperationID, error) {
	lock, err := acquireLock(h.path)
	if err != nil {
		return nil, ErrOpStore("read heads", err)
	}
	defer lock.Release()
	return h.readLocked()
}

func sameHeadSet(a, b []hash.OperationID) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]hash.OperationID(nil), a...)
	bs := append([]hash.OperationID(nil), b...)
	sort.Slice(as, func(i, j int) bool { return hash.ID(as[i]).String() < hash.ID(as[j]).String() })
	sort.Slice(bs, func(i, j int) bool { return hash.ID(bs[i]).String() < hash.ID(bs[j]).String() })
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// CompareAndSetHeads replaces the head set with [next], succeeding only if
// the on-disk set currently equals expected exactly (order-independent).
// On mismatch it returns ErrConcurrentOperation carrying the actual current
// set, so the caller can build a merge operation over it and retry.
func (h *HeadStore) CompareAndSetHeads(expected []hash.OperationID, next hash.OperationID) error {
	lock, err := acquireLock(h.path)
	if err != nil {
		return ErrOpStore("set heads", err)
	}
	defer lock.Release()

	current, err := h.readLocked()
	if err != nil {
		return err
	}
	if !sameHeadSet(current, expected) {
		return ErrConcurrentOperation(expected, current)
	}

	var sb strings.Builder
	sb.WriteString(hash.ID(next).String())
	sb.WriteString("\n")
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		return ErrOpStore("set heads", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return ErrOpStore("set heads", err)
	}
	return nil
}
