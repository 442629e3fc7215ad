package transaction

import (
	"sort"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
	"github.com/antgroup/zit/mergedtree"
	"github.com/antgroup/zit/objectstore"
	"github.com/antgroup/zit/refs"
)

// RewriteRefsOptions governs how TransformDescendants updates refs and
// simplifies rewritten parent lists.
type RewriteRefsOptions struct {
	// DeleteAbandonedBookmarks deletes local bookmarks that point exactly
	// at an abandoned commit, instead of moving them to its new parents.
	DeleteAbandonedBookmarks bool
	// SimplifyAncestorMerge drops new-parent entries that are themselves
	// ancestors of another new-parent entry (via index.Heads), linearizing
	// what would otherwise be a lossy merge. Opt-in only: never applied
	// implicitly, per the chosen resolution of the ancestor-merge question.
	SimplifyAncestorMerge bool
}

// CommitRewriter carries one commit through transform_descendants: its
// original content and the new parent list it should adopt, and the
// handful of actions F may take on it.
type CommitRewriter struct {
	tx          *Transaction
	OldCommitID hash.CommitID
	OldCommit   *objectstore.Commit
	NewParents  []hash.CommitID
}

// ReplaceParent substitutes old within NewParents with replacements
// (possibly more than one, possibly none), deduplicating the result.
func (r *CommitRewriter) ReplaceParent(old hash.CommitID, replacements []hash.CommitID) {
	out := make([]hash.CommitID, 0, len(r.NewParents)+len(replacements))
	for _, p := range r.NewParents {
		if p == old {
			out = append(out, replacements...)
			continue
		}
		out = append(out, p)
	}
	r.NewParents = dedupCommitIDs(out)
}

// Abandon drops the commit entirely: it is recorded as abandoned, and its
// children will be reparented directly onto its (already-resolved) new
// parents. No predecessor entry is recorded for the abandoned commit
// itself.
func (r *CommitRewriter) Abandon() error {
	if r.tx.abandoned[r.OldCommitID] {
		return ErrImmutableCommit(r.OldCommitID)
	}
	r.tx.abandoned[r.OldCommitID] = true
	r.tx.abandonedNewParents[r.OldCommitID] = r.NewParents
	r.tx.rewritten[r.OldCommitID] = append(r.tx.rewritten[r.OldCommitID], r.NewParents...)
	return nil
}

// Reparent preserves the commit's tree unchanged and adopts NewParents.
func (r *CommitRewriter) Reparent() *CommitBuilder {
	cb := &CommitBuilder{tx: r.tx, hasSource: true, source: r.OldCommitID}
	cb.commit = *r.OldCommit
	cb.commit.SigData = nil
	cb.commit.Parents = r.NewParents
	cb.commit.Committer = r.tx.committer
	return cb
}

// Rebase three-way merges the commit's tree onto NewParents: base is the
// original parents' merged tree, left is the new parents' merged tree,
// right is the commit's own original tree. The merge is always fully
// recomputed from scratch (never reusing a previously-resolved side), so a
// contribution that a prior resolution dropped can resurface as a
// conflict rather than being silently lost.
func (r *CommitRewriter) Rebase() (*CommitBuilder, error) {
	tx := r.tx
	oldParentTrees, err := tx.mergeParentTrees(r.OldCommit.Parents)
	if err != nil {
		return nil, err
	}
	newParentTrees, err := tx.mergeParentTrees(r.NewParents)
	if err != nil {
		return nil, err
	}
	base := mergedtree.New(tx.objects, oldParentTrees)
	left := mergedtree.New(tx.objects, newParentTrees)
	right := mergedtree.New(tx.objects, r.OldCommit.Tree)

	merged, err := left.Merge(right, base)
	if err != nil {
		return nil, err
	}
	resolvedID, err := merged.Resolve()
	if err != nil {
		return nil, err
	}

	cb := r.Reparent()
	cb.commit.Tree = merge.Resolved(resolvedID)
	return cb, nil
}

// TransformDescendants rewrites every commit reachable from roots (within
// the index's visible commit set), in an order where parents precede
// children, invoking f on each with its mapped new-parent list.
func (tx *Transaction) TransformDescendants(roots []hash.CommitID, newParentsMap map[hash.CommitID][]hash.CommitID, options RewriteRefsOptions, f func(*CommitRewriter) error) error {
	ids, err := tx.index.Descendants(roots)
	if err != nil {
		return err
	}
	return tx.transformSet(ids, newParentsMap, options, f)
}

// RebaseDescendants rebases every descendant of a commit already rewritten
// this transaction (via RewriteCommit or a CommitRewriter) onto its
// recorded replacement(s), using the implicit rewrite map rather than an
// explicit root list.
func (tx *Transaction) RebaseDescendants() error {
	if len(tx.rewritten) == 0 {
		return nil
	}
	roots := make([]hash.CommitID, 0, len(tx.rewritten))
	for id := range tx.rewritten {
		roots = append(roots, id)
	}
	ids, err := tx.index.Descendants(roots)
	if err != nil {
		return err
	}
	return tx.transformSet(ids, nil, RewriteRefsOptions{}, func(r *CommitRewriter) error {
		cb, err := r.Rebase()
		if err != nil {
			return err
		}
		_, err = cb.Write()
		return err
	})
}

func (tx *Transaction) transformSet(ids []hash.CommitID, newParentsMap map[hash.CommitID][]hash.CommitID, options RewriteRefsOptions, f func(*CommitRewriter) error) error {
	sort.Slice(ids, func(i, j int) bool {
		pi, _ := tx.index.GetPosition(ids[i])
		pj, _ := tx.index.GetPosition(ids[j])
		return pi < pj
	})

	for _, id := range ids {
		if tx.abandoned[id] {
			continue
		}
		if _, already := tx.rewritten[id]; already {
			continue
		}
		old, err := tx.objects.GetCommit(id)
		if err != nil {
			return err
		}
		newParents, err := tx.resolveNewParents(id, old.Parents, newParentsMap, options)
		if err != nil {
			return err
		}
		rewriter := &CommitRewriter{tx: tx, OldCommitID: id, OldCommit: old, NewParents: newParents}
		if err := f(rewriter); err != nil {
			return err
		}
	}
	return tx.applyRefRewrites(options)
}

func (tx *Transaction) resolveNewParents(id hash.CommitID, originalParents []hash.CommitID, newParentsMap map[hash.CommitID][]hash.CommitID, options RewriteRefsOptions) ([]hash.CommitID, error) {
	base := originalParents
	if mapped, ok := newParentsMap[id]; ok {
		base = mapped
	}
	var resolved []hash.CommitID
	for _, p := range base {
		resolved = append(resolved, tx.expandRewritten(p)...)
	}
	resolved = dedupCommitIDs(resolved)

	if options.SimplifyAncestorMerge && len(resolved) > 1 {
		if heads, err := tx.index.Heads(resolved); err == nil {
			resolved = heads
		}
	}
	return resolved, nil
}

// applyRefRewrites moves local bookmarks pointing at rewritten commits to
// their successors (or deletes them, for abandoned targets, if requested).
func (tx *Transaction) applyRefRewrites(options RewriteRefsOptions) error {
	for name, target := range tx.view.Refs.LocalBookmarks {
		resolved, ok := target.AsResolved()
		if !ok {
			continue
		}
		oldID, present := resolved.Get()
		if !present {
			continue
		}
		if options.DeleteAbandonedBookmarks && tx.abandoned[oldID] {
			tx.view.Refs.SetLocalBookmarkTarget(name, refs.Absent())
			continue
		}
		successors := tx.expandRewritten(oldID)
		if len(successors) == 1 && successors[0] == oldID {
			continue
		}
		tx.view.Refs.SetLocalBookmarkTarget(name, buildRefTarget(successors))
	}
	return tx.followWorkingCopies()
}

// followWorkingCopies moves each workspace's working-copy pointer onto its
// commit's successor; a working copy that pointed at an abandoned commit
// gets a fresh empty commit on that commit's resolved new parents.
func (tx *Transaction) followWorkingCopies() error {
	for name, id := range tx.view.WCCommitIDs {
		if tx.abandoned[id] {
			parents := tx.abandonedNewParents[id]
			treeID, err := tx.mergeParentTrees(parents)
			if err != nil {
				return err
			}
			resolvedID, err := mergedtree.New(tx.objects, treeID).Resolve()
			if err != nil {
				return err
			}
			newID, err := tx.NewCommit(parents, resolvedID).Write()
			if err != nil {
				return err
			}
			tx.view.WCCommitIDs[name] = newID
			continue
		}
		successors := tx.expandRewritten(id)
		if len(successors) == 0 || (len(successors) == 1 && successors[0] == id) {
			continue
		}
		sort.Slice(successors, func(i, j int) bool {
			return hash.ID(successors[i]).String() < hash.ID(successors[j]).String()
		})
		tx.view.WCCommitIDs[name] = successors[0]
	}
	return nil
}
