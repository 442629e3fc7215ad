package opstore

import (
	"sort"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/index"
	"github.com/antgroup/zit/merge"
	"github.com/antgroup/zit/refs"
)

// MergeViews three-way merges mine and theirs against base, their common
// ancestor view: local bookmarks are combined via the merge algebra's
// FromAddsRemoves+Simplify, the same shape mergedtree.Merge uses for tree
// paths; tags, remote-tracking state and working-copy pointers fall back to
// "prefer theirs, else keep mine" as a documented simplification. Shared by transaction.Transaction.Commit's
// CAS-retry path and the repo loader's concurrent-operation-head merge, so
// both produce identical merge-view semantics.
func MergeViews(idx *index.Index, mine, theirs, base *View) (*View, error) {
	out := NewView()

	names := make(map[string]bool)
	for n := range mine.Refs.LocalBookmarks {
		names[n] = true
	}
	for n := range theirs.Refs.LocalBookmarks {
		names[n] = true
	}
	for n := range base.Refs.LocalBookmarks {
		names[n] = true
	}
	for n := range names {
		a := bookmarkOrAbsent(mine, n)
		b := bookmarkOrAbsent(theirs, n)
		baseTarget := bookmarkOrAbsent(base, n)
		merged := merge.Flatten(merge.FromAddsRemoves([]refs.RefTarget{a, b}, []refs.RefTarget{baseTarget}))
		out.Refs.LocalBookmarks[n] = merge.Simplify(merged, refTargetTermEqual)
	}

	tagNames := make(map[string]bool)
	for n := range mine.Refs.Tags {
		tagNames[n] = true
	}
	for n := range theirs.Refs.Tags {
		tagNames[n] = true
	}
	for n := range tagNames {
		if t, ok := theirs.Refs.Tags[n]; ok {
			out.Refs.Tags[n] = t
		} else if t, ok := mine.Refs.Tags[n]; ok {
			out.Refs.Tags[n] = t
		}
	}

	for k, r := range theirs.Refs.RemoteBookmarks {
		out.Refs.RemoteBookmarks[k] = r
	}
	for k, r := range mine.Refs.RemoteBookmarks {
		if _, ok := out.Refs.RemoteBookmarks[k]; !ok {
			out.Refs.RemoteBookmarks[k] = r
		}
	}

	headSet := dedupCommitIDs(append(append([]hash.CommitID(nil), mine.HeadIDs...), theirs.HeadIDs...))
	heads, err := idx.Heads(headSet)
	if err != nil {
		heads = headSet
	}
	out.HeadIDs = heads

	for name, id := range theirs.WCCommitIDs {
		out.WCCommitIDs[name] = id
	}
	for name, id := range mine.WCCommitIDs {
		if _, ok := out.WCCommitIDs[name]; !ok {
			out.WCCommitIDs[name] = id
		}
	}

	return out, nil
}

func bookmarkOrAbsent(v *View, name string) refs.RefTarget {
	if t, ok := v.Refs.LocalBookmarks[name]; ok {
		return t
	}
	return refs.Absent()
}

func refTargetTermEqual(a, b merge.Option[hash.CommitID]) bool {
	av, aok := a.Get()
	bv, bok := b.Get()
	if aok != bok {
		return false
	}
	return !aok || av == bv
}

func dedupCommitIDs(ids []hash.CommitID) []hash.CommitID {
	seen := make(map[hash.CommitID]bool, len(ids))
	out := make([]hash.CommitID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return hash.ID(out[i]).String() < hash.ID(out[j]).String() })
	return out
}
