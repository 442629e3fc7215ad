package refs

import (
	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/index"
)

// AncestryIndex is the subset of *index.Index fast-forward checking needs,
// named so tests can supply a stub instead of building a real index.
type AncestryIndex interface {
	IsAncestor(a, b hash.CommitID) (bool, error)
}

var _ AncestryIndex = (*index.Index)(nil)

// IsFastForward reports whether newID is a descendant of every commit
// named by oldTarget's positive (added) ids. A conflicted bookmark may be
// advanced to any descendant of any one of its positive ids, which
// resolves the conflict as a side effect of the move.
func IsFastForward(idx AncestryIndex, oldTarget RefTarget, newID hash.CommitID) (bool, error) {
	addedIDs := addedCommitIDs(oldTarget)
	if len(addedIDs) == 0 {
		// No prior target (a brand new bookmark): every id fast-forwards.
		return true, nil
	}
	for _, id := range addedIDs {
		anc, err := idx.IsAncestor(id, newID)
		if err != nil {
			return false, err
		}
		if !anc {
			return false, nil
		}
	}
	return true, nil
}

// ResolvesConflict reports whether newID fast-forwards past at least one
// of oldTarget's positive ids, which is all that is needed to advance a
// conflicted bookmark and thereby resolve it.
func ResolvesConflict(idx AncestryIndex, oldTarget RefTarget, newID hash.CommitID) (bool, error) {
	addedIDs := addedCommitIDs(oldTarget)
	for _, id := range addedIDs {
		anc, err := idx.IsAncestor(id, newID)
		if err != nil {
			return false, err
		}
		if anc {
			return true, nil
		}
	}
	return len(addedIDs) == 0, nil
}

func addedCommitIDs(target RefTarget) []hash.CommitID {
	var out []hash.CommitID
	for _, add := range target.Adds() {
		if id, present := add.Get(); present {
			out = append(out, id)
		}
	}
	return out
}
