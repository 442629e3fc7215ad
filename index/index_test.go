package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
	"github.com/antgroup/zit/objectstore"
)

func newStore(t *testing.T) *objectstore.Store {
	t.Helper()
	store, err := objectstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func writeCommit(t *testing.T, store *objectstore.Store, treeID hash.TreeID, parents ...hash.CommitID) hash.CommitID {
	t.Helper()
	id, err := store.WriteCommit(&objectstore.Commit{
		ChangeID:  hash.RandomChangeID(),
		Tree:      merge.Resolved(treeID),
		Parents:   parents,
		Author:    objectstore.Signature{Name: "a", Email: "a@example.com", When: time.Unix(0, 0)},
		Committer: objectstore.Signature{Name: "a", Email: "a@example.com", When: time.Unix(0, 0)},
	}, nil)
	require.NoError(t, err)
	return id
}

// linearHistory builds root -> a -> b -> c and returns their commit ids in
// that order.
func linearHistory(t *testing.T, store *objectstore.Store) []hash.CommitID {
	t.Helper()
	treeID, err := store.WriteTree(&objectstore.Tree{})
	require.NoError(t, err)

	root := writeCommit(t, store, treeID)
	a := writeCommit(t, store, treeID, root)
	b := writeCommit(t, store, treeID, a)
	c := writeCommit(t, store, treeID, b)
	return []hash.CommitID{root, a, b, c}
}

func TestEnsureIndexedAssignsTopologicalPositions(t *testing.T) {
	store := newStore(t)
	commits := linearHistory(t, store)

	idx := Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))
	require.Equal(t, 4, idx.Len())

	for i, c := range commits {
		pos, ok := idx.GetPosition(c)
		require.True(t, ok)
		require.Equal(t, Position(i), pos)
		entry, ok := idx.EntryByPosition(pos)
		require.True(t, ok)
		require.Equal(t, uint32(i), entry.Generation)
	}
}

func TestEnsureIndexedIsIncremental(t *testing.T) {
	store := newStore(t)
	commits := linearHistory(t, store)

	idx := Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[1]}))
	require.Equal(t, 2, idx.Len())

	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))
	require.Equal(t, 4, idx.Len())
	require.Len(t, idx.segments, 2)
}

func TestIsAncestor(t *testing.T) {
	store := newStore(t)
	commits := linearHistory(t, store)
	idx := Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))

	anc, err := idx.IsAncestor(commits[0], commits[3])
	require.NoError(t, err)
	require.True(t, anc)

	anc, err = idx.IsAncestor(commits[3], commits[0])
	require.NoError(t, err)
	require.False(t, anc)

	anc, err = idx.IsAncestor(commits[1], commits[1])
	require.NoError(t, err)
	require.True(t, anc)
}

func TestHeadsFiltersAncestors(t *testing.T) {
	store := newStore(t)
	commits := linearHistory(t, store)
	idx := Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))

	heads, err := idx.Heads([]hash.CommitID{commits[0], commits[1], commits[3]})
	require.NoError(t, err)
	require.ElementsMatch(t, []hash.CommitID{commits[3]}, heads)
}

func TestCommonAncestorsOfDivergentBranches(t *testing.T) {
	store := newStore(t)
	treeID, err := store.WriteTree(&objectstore.Tree{})
	require.NoError(t, err)

	root := writeCommit(t, store, treeID)
	left := writeCommit(t, store, treeID, root)
	right := writeCommit(t, store, treeID, root)

	idx := Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{left, right}))

	common, err := idx.CommonAncestors([]hash.CommitID{left}, []hash.CommitID{right})
	require.NoError(t, err)
	require.ElementsMatch(t, []hash.CommitID{root}, common)
}

func TestWalkRevsExcludesUnwantedAncestors(t *testing.T) {
	store := newStore(t)
	commits := linearHistory(t, store)
	idx := Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))

	revs, err := idx.WalkRevs([]hash.CommitID{commits[3]}, []hash.CommitID{commits[1]})
	require.NoError(t, err)
	require.Equal(t, []hash.CommitID{commits[3], commits[2]}, revs)
}

func TestResolveCommitIdPrefixUniqueMatch(t *testing.T) {
	store := newStore(t)
	commits := linearHistory(t, store)
	idx := Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))

	full := commits[2].String()
	resolved, err := idx.ResolveCommitIdPrefix(full[:8])
	require.NoError(t, err)
	require.Equal(t, commits[2], resolved)
}

func TestResolveCommitIdPrefixAmbiguous(t *testing.T) {
	store := newStore(t)
	commits := linearHistory(t, store)
	idx := Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))

	_, err := idx.ResolveCommitIdPrefix("")
	require.Error(t, err)
}
