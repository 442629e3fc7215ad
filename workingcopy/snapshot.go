package workingcopy

import (
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/objectstore"
)

// controlDirName is skipped during every walk: it holds the working copy's
// own bookkeeping, never tracked content.
const controlDirName = ".zit"

// SnapshotOptions configures a Snapshot call.
type SnapshotOptions struct {
	// MaxNewFileSize rejects a never-before-recorded file larger than this
	// many bytes; already-tracked files are not size-checked. Zero means
	// unlimited.
	MaxNewFileSize int64
	// AutoTrack decides whether a path that has never been recorded before
	// should be picked up; nil means every new path is tracked.
	AutoTrack func(path string) bool
	// Concurrency bounds how many changed files are read and hashed into
	// the object store at once; zero means a small built-in default.
	Concurrency int
}

// SnapshotStats reports what Snapshot found relative to the previously
// recorded state.
type SnapshotStats struct {
	Added          []string
	Modified       []string
	Removed        []string
	TooLarge       []string
	NotAutoTracked []string
}

func (o SnapshotOptions) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return 8
}

type candidate struct {
	path      string
	info      os.FileInfo
	isSymlink bool
	hadPrev   bool
}

type candidateResult struct {
	value       objectstore.ConflictTerm
	fingerprint Fingerprint
	tracked     bool
	tooLarge    bool
	notTracked  bool
}

// Snapshot walks the working copy's filesystem, compares each file's
// fingerprint against the last recorded one, reads and writes changed
// content into the object store, and returns the resulting tree. Paths
// outside the sparse set are preserved at their previous tree value
// unread.
func (wc *WorkingCopy) Snapshot(opts SnapshotOptions) (hash.TreeID, SnapshotStats, error) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	lock, err := acquireLock(wc.statePath)
	if err != nil {
		return hash.TreeID{}, SnapshotStats{}, err
	}
	defer lock.Release()

	state, err := loadState(wc.statePath)
	if err != nil {
		return hash.TreeID{}, SnapshotStats{}, err
	}
	sparse := NewSparsePatterns(state.Sparse...)

	var stats SnapshotStats
	visited := make(map[string]bool)
	newValues := make(map[string]objectstore.ConflictTerm)
	newFiles := make(map[string]RecordedFile)
	var changed []candidate

	walkErr := wc.fs.Walk(".", func(p string, d fs.DirEntry, _ error) error {
		if p == "." {
			return nil
		}
		if isControlPath(p) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !sparse.ShouldDescend(p) {
				return fs.SkipDir
			}
			return nil
		}
		if !sparse.Includes(p) {
			return nil
		}
		info, err := wc.fs.Lstat(p)
		if err != nil {
			return err
		}
		visited[p] = true
		prev, hadPrev := state.Files[p]
		isSymlink := info.Mode()&os.ModeSymlink != 0
		fp := statFingerprint(wc.fs.Abs(p), info)
		if hadPrev && fp.Equal(prev.Fingerprint) {
			newValues[p] = prev.Value
			newFiles[p] = prev
			return nil
		}
		changed = append(changed, candidate{path: p, info: info, isSymlink: isSymlink, hadPrev: hadPrev})
		return nil
	})
	if walkErr != nil {
		return hash.TreeID{}, SnapshotStats{}, walkErr
	}

	results := make([]candidateResult, len(changed))
	g := new(errgroup.Group)
	g.SetLimit(opts.concurrency())
	for i, c := range changed {
		i, c := i, c
		g.Go(func() error {
			res, err := wc.readAndWrite(c, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return hash.TreeID{}, SnapshotStats{}, err
	}

	for i, c := range changed {
		res := results[i]
		switch {
		case res.tooLarge:
			stats.TooLarge = append(stats.TooLarge, c.path)
		case res.notTracked:
			stats.NotAutoTracked = append(stats.NotAutoTracked, c.path)
		case res.tracked:
			newValues[c.path] = res.value
			newFiles[c.path] = RecordedFile{Value: res.value, Fingerprint: res.fingerprint}
			if c.hadPrev {
				stats.Modified = append(stats.Modified, c.path)
			} else {
				stats.Added = append(stats.Added, c.path)
			}
		}
	}

	for p, rec := range state.Files {
		if !sparse.Includes(p) {
			newValues[p] = rec.Value
			newFiles[p] = rec
			continue
		}
		if visited[p] {
			continue
		}
		stats.Removed = append(stats.Removed, p)
	}

	treeID, err := buildTree(wc.store, newValues)
	if err != nil {
		return hash.TreeID{}, SnapshotStats{}, err
	}

	state.Tree = treeID
	state.Files = newFiles
	if err := saveState(wc.statePath, state); err != nil {
		return hash.TreeID{}, SnapshotStats{}, err
	}
	return treeID, stats, nil
}

// readAndWrite reads and hashes a changed file. The size and auto-track
// gates only apply to paths that were never recorded before: once a path is
// tracked, it keeps being tracked even if it later grows past the limit or
// stops matching an auto-track pattern, rather than silently disappearing
// from the tree.
func (wc *WorkingCopy) readAndWrite(c candidate, opts SnapshotOptions) (candidateResult, error) {
	if !c.hadPrev {
		if opts.AutoTrack != nil && !opts.AutoTrack(c.path) {
			return candidateResult{notTracked: true}, nil
		}
		if opts.MaxNewFileSize > 0 && c.info.Size() > opts.MaxNewFileSize {
			return candidateResult{tooLarge: true}, nil
		}
	}
	fp := statFingerprint(wc.fs.Abs(c.path), c.info)
	if c.isSymlink {
		target, err := wc.fs.Readlink(c.path)
		if err != nil {
			return candidateResult{}, err
		}
		id, err := wc.store.WriteSymlink(&objectstore.Symlink{Target: target})
		if err != nil {
			return candidateResult{}, err
		}
		return candidateResult{
			tracked:     true,
			fingerprint: fp,
			value:       objectstore.ConflictTerm{Mode: objectstore.ModeSymlink, ID: hash.ID(id)},
		}, nil
	}
	content, err := wc.fs.ReadFile(c.path)
	if err != nil {
		return candidateResult{}, err
	}
	id, err := wc.store.WriteFile(&objectstore.File{Content: content})
	if err != nil {
		return candidateResult{}, err
	}
	mode := objectstore.ModeFile
	if c.info.Mode()&0o111 != 0 {
		mode = objectstore.ModeExecutable
	}
	return candidateResult{
		tracked:     true,
		fingerprint: fp,
		value:       objectstore.ConflictTerm{Mode: mode, ID: hash.ID(id)},
	}, nil
}

func isControlPath(p string) bool {
	p = strings.Trim(p, "/")
	return p == controlDirName || strings.HasPrefix(p, controlDirName+"/")
}
