package workingcopy

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/objectstore"
)

// stateFileName is the name of the lock-guarded state file inside the
// repo's control directory.
const stateFileName = "working_copy_state.json"

// WorkingCopy ties a filesystem directory to the object store backing it,
// tracking per-path fingerprints between Snapshot and Checkout calls. All
// state mutation goes through an OS-level lock on the state file, matching
// the "working-copy lock... held for the duration of the tree-mutating
// work" rule.
type WorkingCopy struct {
	store     *objectstore.Store
	fs        FS
	statePath string
	mu        sync.Mutex
}

// Open binds a WorkingCopy to fs (the materialized directory) and statePath
// (the control-directory file recording fingerprints), reading store for
// object lookups.
func Open(store *objectstore.Store, fs FS, statePath string) *WorkingCopy {
	return &WorkingCopy{store: store, fs: fs, statePath: statePath}
}

// OpenAt is a convenience constructor binding a plain OS directory.
func OpenAt(store *objectstore.Store, dir, controlDir string) *WorkingCopy {
	return Open(store, NewOSFS(dir), filepath.Join(controlDir, stateFileName))
}

// State returns a copy of the currently recorded state, taking the lock
// just long enough to read it.
func (wc *WorkingCopy) State() (*State, error) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	lock, err := acquireLock(wc.statePath)
	if err != nil {
		return nil, err
	}
	defer lock.Release()
	return loadState(wc.statePath)
}

// ConcurrentCheckoutError reports that the working copy's recorded
// operation id no longer matches what the caller expected: some other
// process mutated the working copy first.
type ConcurrentCheckoutError struct {
	Expected hash.OperationID
	Actual   hash.OperationID
}

func (e *ConcurrentCheckoutError) Error() string {
	return fmt.Sprintf("working copy: concurrent checkout: expected operation %s, found %s", e.Expected, e.Actual)
}

// IsConcurrentCheckout reports whether err is a ConcurrentCheckoutError.
func IsConcurrentCheckout(err error) bool {
	_, ok := err.(*ConcurrentCheckoutError)
	return ok
}

// ResetRecord points the working copy's recorded state at tree without
// touching the filesystem, fetching each path's value straight from the
// object store and recording a zero Fingerprint for it so the next Snapshot
// re-reads it from disk to confirm it actually matches. Used to adopt a
// tree written by some other means (e.g. a fresh checkout of an empty
// working copy, or a test fixture) as the working copy's baseline.
func (wc *WorkingCopy) ResetRecord(tree hash.TreeID, op hash.OperationID) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	lock, err := acquireLock(wc.statePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	values, err := flattenTree(wc.store, tree)
	if err != nil {
		return err
	}
	state := newState()
	state.Tree = tree
	state.OperationID = op
	for p, v := range values {
		state.Files[p] = RecordedFile{Value: v}
	}
	return saveState(wc.statePath, state)
}
