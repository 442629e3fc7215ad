// Package repo assembles the on-disk stores that make up one repository
// (object store, operation store, operation-log head, commit index, and
// config) and owns the one responsibility no lower package can: folding
// multiple concurrent operation-log heads back into a single view, the job
// spec.md's component table assigns to the repo loader.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/antgroup/zit/config"
	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/index"
	"github.com/antgroup/zit/objectstore"
	"github.com/antgroup/zit/opstore"
	"github.com/antgroup/zit/signing"
	"github.com/antgroup/zit/transaction"
)

// Repo bundles the stores a repository root directory contains, laid out
// as .zit/repo/{store,op_store,op_heads,index,config.toml} alongside
// .zit/working_copy/.
type Repo struct {
	Dir     string
	Config  *config.Config
	Objects *objectstore.Store
	Ops     *opstore.Store
	Heads   *opstore.HeadStore
	Index   *index.Index
}

// RepoDir returns the .zit/repo path beneath a workspace root, the layout
// spec.md's "Repository layout on disk" section names.
func RepoDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".zit", "repo")
}

// Open loads the repository rooted at repoDir (a .zit/repo directory,
// typically produced by RepoDir). It returns ErrInvalidRepoPath if repoDir
// doesn't look like one.
func Open(repoDir string) (*Repo, error) {
	info, err := os.Stat(repoDir)
	if err != nil || !info.IsDir() {
		return nil, &ErrInvalidRepoPath{Dir: repoDir}
	}

	cfg, err := config.Load(repoDir)
	if err != nil {
		return nil, err
	}
	objects, err := objectstore.Open(filepath.Join(repoDir, "store"), objectstore.WithCache())
	if err != nil {
		return nil, err
	}
	ops, err := opstore.Open(filepath.Join(repoDir, "op_store"))
	if err != nil {
		return nil, err
	}
	heads, err := opstore.OpenHeads(filepath.Join(repoDir, "op_heads"))
	if err != nil {
		return nil, err
	}
	idx := index.Open(objects)

	return &Repo{
		Dir:     repoDir,
		Config:  cfg,
		Objects: objects,
		Ops:     ops,
		Heads:   heads,
		Index:   idx,
	}, nil
}

// Init creates a fresh repository directory tree at repoDir and returns it
// opened, failing if repoDir already exists.
func Init(repoDir string) (*Repo, error) {
	if _, err := os.Stat(repoDir); err == nil {
		return nil, fmt.Errorf("repo: %s already exists", repoDir)
	}
	for _, sub := range []string{"store", "op_store", "op_heads", "index"} {
		if err := os.MkdirAll(filepath.Join(repoDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("repo: init %s: %w", sub, err)
		}
	}
	if err := config.Save(repoDir, config.Default()); err != nil {
		return nil, err
	}
	return Open(repoDir)
}

// CurrentView resolves the operation-log heads into a single view, merging
// them (and persisting the merge as a new operation) if more than one head
// exists. It returns the resolved view and the head operation id(s) it was
// derived from.
func (r *Repo) CurrentView() (*opstore.View, []hash.OperationID, error) {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		heads, err := r.Heads.ReadHeads()
		if err != nil {
			return nil, nil, err
		}
		if len(heads) == 0 {
			return opstore.NewView(), nil, nil
		}
		if len(heads) == 1 {
			op, err := r.Ops.ReadOperation(heads[0])
			if err != nil {
				return nil, nil, err
			}
			view, err := r.Ops.ReadView(op.ViewID)
			if err != nil {
				return nil, nil, err
			}
			return view, heads, nil
		}

		mergedView, mergeOpID, err := r.mergeHeads(heads)
		if err != nil {
			return nil, nil, err
		}
		if err := r.Heads.CompareAndSetHeads(heads, mergeOpID); err != nil {
			lastErr = err
			continue
		}
		return mergedView, []hash.OperationID{mergeOpID}, nil
	}
	return nil, nil, fmt.Errorf("repo: could not collapse concurrent operation heads: %w", lastErr)
}

// mergeHeads folds heads pairwise into a single synthesized view and writes
// a merge operation recording it. Exactly two heads merge with their true
// common ancestor as the three-way base; more than two fold left to right,
// each step using the running merge's immediately preceding head as the
// ancestor anchor, a documented simplification since concurrent writers
// normally produce at most two heads before a collapse.
func (r *Repo) mergeHeads(heads []hash.OperationID) (*opstore.View, hash.OperationID, error) {
	sorted := append([]hash.OperationID(nil), heads...)
	sort.Slice(sorted, func(i, j int) bool { return hash.ID(sorted[i]).String() < hash.ID(sorted[j]).String() })

	op0, err := r.Ops.ReadOperation(sorted[0])
	if err != nil {
		return nil, hash.OperationID{}, err
	}
	mergedView, err := r.Ops.ReadView(op0.ViewID)
	if err != nil {
		return nil, hash.OperationID{}, err
	}
	anchor := sorted[0]

	for _, next := range sorted[1:] {
		baseView := opstore.NewView()
		if ancestorOpID, found, err := commonAncestorOperation(r.Ops, anchor, next); err != nil {
			return nil, hash.OperationID{}, err
		} else if found {
			ancestorOp, err := r.Ops.ReadOperation(ancestorOpID)
			if err != nil {
				return nil, hash.OperationID{}, err
			}
			baseView, err = r.Ops.ReadView(ancestorOp.ViewID)
			if err != nil {
				return nil, hash.OperationID{}, err
			}
		}
		nextOp, err := r.Ops.ReadOperation(next)
		if err != nil {
			return nil, hash.OperationID{}, err
		}
		nextView, err := r.Ops.ReadView(nextOp.ViewID)
		if err != nil {
			return nil, hash.OperationID{}, err
		}
		mergedView, err = opstore.MergeViews(r.Index, mergedView, nextView, baseView)
		if err != nil {
			return nil, hash.OperationID{}, err
		}
		anchor = next
	}

	viewID, err := r.Ops.WriteView(mergedView)
	if err != nil {
		return nil, hash.OperationID{}, err
	}
	op := &opstore.Operation{
		Parents: sorted,
		ViewID:  viewID,
		Metadata: opstore.Metadata{
			Description: "merge operation",
			Time:        time.Now().UTC(),
			Tag:         uuid.NewString(),
		},
		HasCommitPredecessors: true,
		CommitPredecessors:    map[hash.CommitID][]hash.CommitID{},
	}
	mergeOpID, err := r.Ops.WriteOperation(op)
	if err != nil {
		return nil, hash.OperationID{}, err
	}
	return mergedView, mergeOpID, nil
}

// commonAncestorOperation finds the closest operation reachable from both a
// and b by walking Operation.Parents, the operation-log analogue of
// index.Index.IsAncestor (there is no equivalent dense index over
// operations, so this walks the log directly).
func commonAncestorOperation(ops *opstore.Store, a, b hash.OperationID) (hash.OperationID, bool, error) {
	ancestorsOfA, err := ancestorOperationSet(ops, a)
	if err != nil {
		return hash.OperationID{}, false, err
	}

	seen := make(map[hash.OperationID]bool)
	queue := []hash.OperationID{b}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		if ancestorsOfA[id] {
			return id, true, nil
		}
		op, err := ops.ReadOperation(id)
		if err != nil {
			return hash.OperationID{}, false, err
		}
		queue = append(queue, op.Parents...)
	}
	return hash.OperationID{}, false, nil
}

func ancestorOperationSet(ops *opstore.Store, start hash.OperationID) (map[hash.OperationID]bool, error) {
	seen := make(map[hash.OperationID]bool)
	queue := []hash.OperationID{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		op, err := ops.ReadOperation(id)
		if err != nil {
			return nil, err
		}
		queue = append(queue, op.Parents...)
	}
	return seen, nil
}

// NewTransaction resolves the current view (merging concurrent heads if
// necessary) and opens a transaction on top of it.
func (r *Repo) NewTransaction(identity objectstore.Signature, signer signing.Backend) (*transaction.Transaction, error) {
	view, _, err := r.CurrentView()
	if err != nil {
		return nil, err
	}
	mode, err := r.Config.Signing.ParseMode()
	if err != nil {
		return nil, err
	}
	return transaction.New(r.Objects, r.Ops, r.Heads, r.Index, view, identity, signer, mode)
}
