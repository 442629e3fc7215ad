package revset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/index"
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

func writeCommit(t *testing.T, store *objectstore.Store, treeID hash.TreeID, when time.Time, parents ...hash.CommitID) hash.CommitID {
	t.Helper()
	id, err := store.WriteCommit(&objectstore.Commit{
		ChangeID:  hash.RandomChangeID(),
		Tree:      merge.Resolved(treeID),
		Parents:   parents,
		Author:    objectstore.Signature{Name: "a", Email: "a@example.com", When: when},
		Committer: objectstore.Signature{Name: "a", Email: "a@example.com", When: when},
	}, nil)
	require.NoError(t, err)
	return id
}

type storeTimes struct {
	store *objectstore.Store
}

func (s storeTimes) CommitterTime(id hash.CommitID) (time.Time, error) {
	c, err := s.store.GetCommit(id)
	if err != nil {
		return time.Time{}, err
	}
	return c.Committer.When, nil
}

func byNameResolver(names map[string]hash.CommitID) SymbolResolver {
	return ResolverFunc(func(name string) (CommitSet, bool, error) {
		if id, ok := names[name]; ok {
			return CommitSet{IDs: []hash.CommitID{id}}, true, nil
		}
		return CommitSet{}, false, nil
	})
}

// linear builds root -> a -> b -> c, one second apart, and returns all
// four commit ids in that order.
func linear(t *testing.T, store *objectstore.Store) []hash.CommitID {
	t.Helper()
	treeID, err := store.WriteTree(&objectstore.Tree{})
	require.NoError(t, err)

	base := time.Unix(1700000000, 0)
	root := writeCommit(t, store, treeID, base)
	a := writeCommit(t, store, treeID, base.Add(time.Second), root)
	b := writeCommit(t, store, treeID, base.Add(2*time.Second), a)
	c := writeCommit(t, store, treeID, base.Add(3*time.Second), b)
	return []hash.CommitID{root, a, b, c}
}

func TestEvaluateSymbolResolvesToSingleCommit(t *testing.T) {
	store := newStore(t)
	commits := linear(t, store)
	idx := index.Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))

	resolver := byNameResolver(map[string]hash.CommitID{"main": commits[3]})
	iter, err := Evaluate(Symbol{Name: "main"}, resolver, idx, storeTimes{store})
	require.NoError(t, err)
	require.Equal(t, []hash.CommitID{commits[3]}, iter.All())
}

func TestEvaluateAncestorsUnbounded(t *testing.T) {
	store := newStore(t)
	commits := linear(t, store)
	idx := index.Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))

	expr := Ancestors{Of: CommitSet{IDs: []hash.CommitID{commits[3]}}, Depth: -1}
	iter, err := Evaluate(expr, Chain(nil), idx, storeTimes{store})
	require.NoError(t, err)
	require.ElementsMatch(t, commits, iter.All())
}

func TestEvaluateRangeExcludesFromSideAncestors(t *testing.T) {
	store := newStore(t)
	commits := linear(t, store)
	idx := index.Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))

	expr := Range{
		From: CommitSet{IDs: []hash.CommitID{commits[1]}},
		To:   CommitSet{IDs: []hash.CommitID{commits[3]}},
	}
	iter, err := Evaluate(expr, Chain(nil), idx, storeTimes{store})
	require.NoError(t, err)
	require.ElementsMatch(t, []hash.CommitID{commits[2], commits[3]}, iter.All())
}

func TestEvaluateDagRangeIntersectsAncestorsAndDescendants(t *testing.T) {
	store := newStore(t)
	commits := linear(t, store)
	idx := index.Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))

	expr := DagRange{
		From: CommitSet{IDs: []hash.CommitID{commits[1]}},
		To:   CommitSet{IDs: []hash.CommitID{commits[2]}},
	}
	iter, err := Evaluate(expr, Chain(nil), idx, storeTimes{store})
	require.NoError(t, err)
	require.ElementsMatch(t, []hash.CommitID{commits[1], commits[2]}, iter.All())
}

func TestEvaluateHeadsOfDivergentBranches(t *testing.T) {
	store := newStore(t)
	treeID, err := store.WriteTree(&objectstore.Tree{})
	require.NoError(t, err)
	base := time.Unix(1700000000, 0)
	root := writeCommit(t, store, treeID, base)
	left := writeCommit(t, store, treeID, base.Add(time.Second), root)
	right := writeCommit(t, store, treeID, base.Add(time.Second), root)

	idx := index.Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{left, right}))

	expr := Heads{Of: CommitSet{IDs: []hash.CommitID{root, left, right}}}
	iter, err := Evaluate(expr, Chain(nil), idx, storeTimes{store})
	require.NoError(t, err)
	require.ElementsMatch(t, []hash.CommitID{left, right}, iter.All())
}

func TestEvaluateLatestOrdersByCommitterTime(t *testing.T) {
	store := newStore(t)
	commits := linear(t, store)
	idx := index.Open(store)
	require.NoError(t, idx.EnsureIndexed([]hash.CommitID{commits[3]}))

	expr := Latest{Of: CommitSet{IDs: commits}, N: 2}
	iter, err := Evaluate(expr, Chain(nil), idx, storeTimes{store})
	require.NoError(t, err)
	require.Equal(t, []hash.CommitID{commits[3], commits[2]}, iter.All())
}

func TestOptimizeCollapsesUnionOfHeads(t *testing.T) {
	a := CommitSet{IDs: []hash.CommitID{hash.CommitIDFromBytes([]byte("a"))}}
	b := CommitSet{IDs: []hash.CommitID{hash.CommitIDFromBytes([]byte("b"))}}
	optimized := Optimize(Union{A: Heads{Of: a}, B: Heads{Of: b}})

	heads, ok := optimized.(Heads)
	require.True(t, ok)
	union, ok := heads.Of.(Union)
	require.True(t, ok)
	require.Equal(t, a, union.A)
	require.Equal(t, b, union.B)
}

func TestOptimizeDropsIntersectWithAll(t *testing.T) {
	a := CommitSet{IDs: []hash.CommitID{hash.CommitIDFromBytes([]byte("a"))}}
	require.Equal(t, Expr(a), Optimize(Intersect{A: a, B: All{}}))
	require.Equal(t, Expr(a), Optimize(Intersect{A: All{}, B: a}))
}

func TestOptimizeIntersectWithNoneIsNone(t *testing.T) {
	a := CommitSet{IDs: []hash.CommitID{hash.CommitIDFromBytes([]byte("a"))}}
	require.Equal(t, Expr(None{}), Optimize(Intersect{A: a, B: None{}}))
}

func TestLowerRewritesRangeToDifferenceOfAncestors(t *testing.T) {
	lowered := Lower(Range{From: Symbol{Name: "x"}, To: Symbol{Name: "y"}})
	diff, ok := lowered.(Difference)
	require.True(t, ok)
	require.IsType(t, Ancestors{}, diff.A)
	require.IsType(t, Ancestors{}, diff.B)
}

func TestResolveSymbolsFailsOnUnknownSymbol(t *testing.T) {
	_, err := ResolveSymbols(Symbol{Name: "nope"}, Chain(nil))
	require.Error(t, err)
}

func TestBisectReturnsMedian(t *testing.T) {
	ids := []hash.CommitID{
		hash.CommitIDFromBytes([]byte("a")),
		hash.CommitIDFromBytes([]byte("b")),
		hash.CommitIDFromBytes([]byte("c")),
	}
	mid, ok := Bisect(ids)
	require.True(t, ok)
	require.Equal(t, ids[1], mid)
}

func TestRevsetIterRestart(t *testing.T) {
	ids := []hash.CommitID{hash.CommitIDFromBytes([]byte("a")), hash.CommitIDFromBytes([]byte("b"))}
	it := NewRevsetIter(ids)
	first, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, ids[0], first)

	it.Restart()
	again, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, ids[0], again)
}
