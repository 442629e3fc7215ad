package refs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
)

// stubAncestry reports ancestry from an explicit set of (a,b) pairs,
// letting fast-forward logic be tested without a real commit index.
type stubAncestry map[[2]hash.CommitID]bool

func (s stubAncestry) IsAncestor(a, b hash.CommitID) (bool, error) {
	if a == b {
		return true, nil
	}
	return s[[2]hash.CommitID{a, b}], nil
}

func TestIsFastForwardNewBookmarkAlwaysAdvances(t *testing.T) {
	idx := stubAncestry{}
	newID := hash.CommitIDFromBytes([]byte("new"))
	ok, err := IsFastForward(idx, Absent(), newID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsFastForwardRequiresDescendantOfOldTarget(t *testing.T) {
	oldID := hash.CommitIDFromBytes([]byte("old"))
	newID := hash.CommitIDFromBytes([]byte("new"))
	idx := stubAncestry{{oldID, newID}: true}

	ok, err := IsFastForward(idx, Present(oldID), newID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsFastForwardFailsWhenNotDescendant(t *testing.T) {
	oldID := hash.CommitIDFromBytes([]byte("old"))
	newID := hash.CommitIDFromBytes([]byte("unrelated"))
	idx := stubAncestry{}

	ok, err := IsFastForward(idx, Present(oldID), newID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsFastForwardRequiresAllConflictedSides(t *testing.T) {
	side1 := hash.CommitIDFromBytes([]byte("side1"))
	side2 := hash.CommitIDFromBytes([]byte("side2"))
	newID := hash.CommitIDFromBytes([]byte("new"))
	conflicted := merge.FromAddsRemoves(
		[]merge.Option[hash.CommitID]{merge.Some(side1), merge.Some(side2)},
		[]merge.Option[hash.CommitID]{merge.None[hash.CommitID]()},
	)

	idx := stubAncestry{{side1, newID}: true}
	ok, err := IsFastForward(idx, conflicted, newID)
	require.NoError(t, err)
	require.False(t, ok, "fast-forward requires descending from every side")
}

func TestResolvesConflictNeedsOnlyOneSide(t *testing.T) {
	side1 := hash.CommitIDFromBytes([]byte("side1"))
	side2 := hash.CommitIDFromBytes([]byte("side2"))
	newID := hash.CommitIDFromBytes([]byte("new"))
	conflicted := merge.FromAddsRemoves(
		[]merge.Option[hash.CommitID]{merge.Some(side1), merge.Some(side2)},
		[]merge.Option[hash.CommitID]{merge.None[hash.CommitID]()},
	)

	idx := stubAncestry{{side1, newID}: true}
	ok, err := ResolvesConflict(idx, conflicted, newID)
	require.NoError(t, err)
	require.True(t, ok)
}
