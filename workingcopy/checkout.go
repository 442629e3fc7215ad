package workingcopy

import (
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/antgroup/zit/conflict"
	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
	"github.com/antgroup/zit/mergedtree"
	"github.com/antgroup/zit/objectstore"
)

// CheckoutOptions configures a Checkout call.
type CheckoutOptions struct {
	// Concurrency bounds how many files are written to disk at once.
	Concurrency int
}

func (o CheckoutOptions) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return 8
}

// Checkout diffs newTree against the working copy's recorded tree (or
// oldTree, if supplied) and applies the difference to disk. expected is the
// operation id the caller last observed; if the state file's recorded
// operation id no longer matches it, Checkout fails with
// ConcurrentCheckoutError without touching the filesystem. On success the
// state is updated to newTree and next.
func (wc *WorkingCopy) Checkout(newTree hash.TreeID, oldTree *hash.TreeID, expected, next hash.OperationID, opts CheckoutOptions) (CheckoutStats, error) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	lock, err := acquireLock(wc.statePath)
	if err != nil {
		return CheckoutStats{}, err
	}
	defer lock.Release()

	state, err := loadState(wc.statePath)
	if err != nil {
		return CheckoutStats{}, err
	}
	if !expected.IsZero() && state.OperationID != expected {
		return CheckoutStats{}, &ConcurrentCheckoutError{Expected: expected, Actual: state.OperationID}
	}

	from := state.Tree
	if oldTree != nil {
		from = *oldTree
	}
	fromMT := mergedtree.FromTree(wc.store, from)
	toMT := mergedtree.FromTree(wc.store, newTree)
	diffs, err := fromMT.Diff(toMT)
	if err != nil {
		return CheckoutStats{}, err
	}
	sparse := NewSparsePatterns(state.Sparse...)

	newFiles := make(map[string]RecordedFile, len(state.Files))
	for p, rec := range state.Files {
		newFiles[p] = rec
	}

	var stats CheckoutStats
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(opts.concurrency())

	for _, d := range diffs {
		d := d
		if !sparse.Includes(d.Path) {
			mu.Lock()
			stats.Skipped = append(stats.Skipped, d.Path)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			return wc.applyDiffEntry(d, &newFiles, &stats, &mu)
		})
	}
	if err := g.Wait(); err != nil {
		return CheckoutStats{}, err
	}

	state.Tree = newTree
	state.Files = newFiles
	state.OperationID = next
	if err := saveState(wc.statePath, state); err != nil {
		return CheckoutStats{}, err
	}
	return stats, nil
}

func (wc *WorkingCopy) applyDiffEntry(d mergedtree.DiffEntry, newFiles *map[string]RecordedFile, stats *CheckoutStats, mu *sync.Mutex) error {
	toVal, toPresent := resolvedValue(d.To)
	_, fromPresent := resolvedValue(d.From)

	if !toPresent {
		if fromPresent {
			if err := wc.fs.Remove(d.Path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		mu.Lock()
		delete(*newFiles, d.Path)
		stats.Removed = append(stats.Removed, d.Path)
		mu.Unlock()
		return nil
	}

	if toVal.Mode == objectstore.ModeTree {
		// A directory-level entry; its children are handled by their own
		// diff entries, and an empty directory is not materialized, the
		// same convention the object model already follows (a Tree has no
		// entry for an empty subdirectory).
		return nil
	}

	fp, err := wc.materialize(d.Path, toVal)
	if err != nil {
		return err
	}
	mu.Lock()
	(*newFiles)[d.Path] = RecordedFile{Value: toVal, Fingerprint: fp}
	if fromPresent {
		stats.Updated = append(stats.Updated, d.Path)
	} else {
		stats.Added = append(stats.Added, d.Path)
	}
	mu.Unlock()
	return nil
}

func resolvedValue(m merge.Merge[merge.Option[mergedtree.TreeValue]]) (objectstore.ConflictTerm, bool) {
	opt, ok := m.AsResolved()
	if !ok {
		return objectstore.ConflictTerm{}, false
	}
	return opt.Get()
}

func (wc *WorkingCopy) materialize(p string, v objectstore.ConflictTerm) (Fingerprint, error) {
	switch v.Mode {
	case objectstore.ModeFile, objectstore.ModeExecutable:
		f, err := wc.store.GetFile(hash.FileID(v.ID))
		if err != nil {
			return Fingerprint{}, err
		}
		perm := os.FileMode(0o644)
		if v.Mode == objectstore.ModeExecutable {
			perm = 0o755
		}
		if err := wc.fs.WriteFile(p, f.Content, perm); err != nil {
			return Fingerprint{}, err
		}
	case objectstore.ModeSymlink:
		sym, err := wc.store.GetSymlink(hash.SymlinkID(v.ID))
		if err != nil {
			return Fingerprint{}, err
		}
		if err := wc.fs.Symlink(sym.Target, p); err != nil {
			return Fingerprint{}, err
		}
	case objectstore.ModeConflict:
		return wc.materializeConflict(p, hash.ConflictID(v.ID))
	}
	info, err := wc.fs.Lstat(p)
	if err != nil {
		return Fingerprint{}, err
	}
	return statFingerprint(wc.fs.Abs(p), info), nil
}

// materializeConflict renders an unresolved file-content conflict as a
// marker-annotated file on disk, the working-copy-visible form of §4.4's
// "if that fails, the conflict is preserved".
func (wc *WorkingCopy) materializeConflict(p string, id hash.ConflictID) (Fingerprint, error) {
	c, err := wc.store.GetConflict(id)
	if err != nil {
		return Fingerprint{}, err
	}
	contents, err := merge.TryMap(c.Terms, func(opt merge.Option[objectstore.ConflictTerm]) (merge.Option[[]byte], error) {
		v, present := opt.Get()
		if !present || (v.Mode != objectstore.ModeFile && v.Mode != objectstore.ModeExecutable) {
			return merge.None[[]byte](), nil
		}
		f, err := wc.store.GetFile(hash.FileID(v.ID))
		if err != nil {
			return merge.Option[[]byte]{}, err
		}
		return merge.Some(f.Content), nil
	})
	if err != nil {
		return Fingerprint{}, err
	}
	rendered := conflict.Materialize(contents, conflict.StyleDiff)
	if err := wc.fs.WriteFile(p, rendered, 0o644); err != nil {
		return Fingerprint{}, err
	}
	info, err := wc.fs.Lstat(p)
	if err != nil {
		return Fingerprint{}, err
	}
	return statFingerprint(wc.fs.Abs(p), info), nil
}
