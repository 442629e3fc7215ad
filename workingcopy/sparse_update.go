package workingcopy

import (
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/antgroup/zit/mergedtree"
	"github.com/antgroup/zit/objectstore"
)

// SetSparsePatterns changes which paths the working copy materializes.
// The recorded tree is unchanged; only what's present on disk moves. Paths
// newly included are written from the recorded tree value (via the object
// store, not by re-reading the previous fingerprint), paths newly excluded
// are removed from disk but keep their recorded tree value, so a later
// Snapshot still preserves them unread and a later re-inclusion restores
// them without re-fetching anything.
func (wc *WorkingCopy) SetSparsePatterns(patterns []string, opts CheckoutOptions) (CheckoutStats, error) {
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
	oldSparse := NewSparsePatterns(state.Sparse...)
	newSparse := NewSparsePatterns(patterns...)

	mt := mergedtree.FromTree(wc.store, state.Tree)
	entries, err := mt.EntriesMatching(mergedtree.EverythingMatcher{})
	if err != nil {
		return CheckoutStats{}, err
	}

	newFiles := make(map[string]RecordedFile, len(state.Files))
	for p, rec := range state.Files {
		newFiles[p] = rec
	}

	var stats CheckoutStats
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(opts.concurrency())

	for _, e := range entries {
		e := e
		val, present := resolvedValue(e.Value)
		if !present || val.Mode == objectstore.ModeTree {
			continue
		}
		wasIn := oldSparse.Includes(e.Path)
		nowIn := newSparse.Includes(e.Path)
		switch {
		case nowIn && !wasIn:
			g.Go(func() error {
				fp, err := wc.materialize(e.Path, val)
				if err != nil {
					return err
				}
				mu.Lock()
				newFiles[e.Path] = RecordedFile{Value: val, Fingerprint: fp}
				stats.Added = append(stats.Added, e.Path)
				mu.Unlock()
				return nil
			})
		case !nowIn && wasIn:
			g.Go(func() error {
				if err := wc.fs.Remove(e.Path); err != nil && !os.IsNotExist(err) {
					return err
				}
				mu.Lock()
				stats.Removed = append(stats.Removed, e.Path)
				mu.Unlock()
				return nil
			})
		default:
			mu.Lock()
			stats.Skipped = append(stats.Skipped, e.Path)
			mu.Unlock()
		}
	}
	if err := g.Wait(); err != nil {
		return CheckoutStats{}, err
	}

	state.Sparse = newSparse.Prefixes()
	state.Files = newFiles
	if err := saveState(wc.statePath, state); err != nil {
		return CheckoutStats{}, err
	}
	return stats, nil
}
