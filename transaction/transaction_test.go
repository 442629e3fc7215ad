package transaction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/internal/objtest"
	"github.com/antgroup/zit/merge"
	"github.com/antgroup/zit/objectstore"
	"github.com/antgroup/zit/refs"
	"github.com/antgroup/zit/signing"
)

func openTx(t *testing.T, r *objtest.Repo) *Transaction {
	t.Helper()
	tx, err := New(r.Objects, r.Ops, r.Heads, r.Index, objtest.EmptyView(), objtest.Identity("alice"), nil, signing.ModeKeep)
	require.NoError(t, err)
	return tx
}

func TestNewCommitAndCommitAdvancesHead(t *testing.T) {
	r := objtest.NewRepo(t)
	tx := openTx(t, r)

	tree := r.WriteTree(t)
	id, err := tx.NewCommit(nil, tree).Write()
	require.NoError(t, err)

	tx.SetLocalBookmarkTarget("main", refs.Present(id))
	opID, err := tx.Commit("first commit")
	require.NoError(t, err)

	heads, err := r.Heads.ReadHeads()
	require.NoError(t, err)
	require.Equal(t, []hash.OperationID{opID}, heads)

	op, err := r.Ops.ReadOperation(opID)
	require.NoError(t, err)
	view, err := r.Ops.ReadView(op.ViewID)
	require.NoError(t, err)
	target, ok := view.Refs.LocalBookmarks["main"].AsResolved()
	require.True(t, ok)
	got, present := target.Get()
	require.True(t, present)
	require.Equal(t, id, got)
}

func TestCommitCASConflictMergesAutomatically(t *testing.T) {
	r := objtest.NewRepo(t)

	tx1 := openTx(t, r)
	tree1 := r.WriteTree(t, objectstore.TreeEntry{Name: "a", Mode: objectstore.ModeFile, ID: hash.ID(r.WriteFile(t, "a"))})
	id1, err := tx1.NewCommit(nil, tree1).Write()
	require.NoError(t, err)
	tx1.SetLocalBookmarkTarget("feature-a", refs.Present(id1))

	tx2 := openTx(t, r)
	tree2 := r.WriteTree(t, objectstore.TreeEntry{Name: "b", Mode: objectstore.ModeFile, ID: hash.ID(r.WriteFile(t, "b"))})
	id2, err := tx2.NewCommit(nil, tree2).Write()
	require.NoError(t, err)
	tx2.SetLocalBookmarkTarget("feature-b", refs.Present(id2))

	op1, err := tx1.Commit("add feature-a")
	require.NoError(t, err)

	op2, err := tx2.Commit("add feature-b")
	require.NoError(t, err)
	require.NotEqual(t, op1, op2, "the second commit should produce a merge operation, not silently overwrite")

	heads, err := r.Heads.ReadHeads()
	require.NoError(t, err)
	require.Equal(t, []hash.OperationID{op2}, heads)

	mergeOp, err := r.Ops.ReadOperation(op2)
	require.NoError(t, err)
	require.Contains(t, mergeOp.Parents, op1)

	view, err := r.Ops.ReadView(mergeOp.ViewID)
	require.NoError(t, err)
	_, aOK := view.Refs.LocalBookmarks["feature-a"]
	_, bOK := view.Refs.LocalBookmarks["feature-b"]
	require.True(t, aOK, "merge should retain the first transaction's bookmark")
	require.True(t, bOK, "merge should retain the second transaction's bookmark")
}

func TestTransformDescendantsAbandonReparentsChild(t *testing.T) {
	r := objtest.NewRepo(t)
	tx := openTx(t, r)

	rootTree := r.WriteTree(t)
	root := r.WriteCommit(t, rootTree)
	c1Tree := r.WriteTree(t, objectstore.TreeEntry{Name: "f1", Mode: objectstore.ModeFile, ID: hash.ID(r.WriteFile(t, "1"))})
	c1 := r.WriteCommit(t, c1Tree, root)
	c2Tree := r.WriteTree(t, objectstore.TreeEntry{Name: "f2", Mode: objectstore.ModeFile, ID: hash.ID(r.WriteFile(t, "2"))})
	c2 := r.WriteCommit(t, c2Tree, c1)
	require.NoError(t, r.Index.EnsureIndexed([]hash.CommitID{c2}))

	tx.SetLocalBookmarkTarget("work", refs.Present(c2))

	var newC2 hash.CommitID
	err := tx.TransformDescendants([]hash.CommitID{c1}, nil, RewriteRefsOptions{}, func(rw *CommitRewriter) error {
		if rw.OldCommitID == c1 {
			return rw.Abandon()
		}
		cb := rw.Reparent()
		id, err := cb.Write()
		if err != nil {
			return err
		}
		newC2 = id
		return nil
	})
	require.NoError(t, err)
	require.False(t, newC2.IsZero())
	require.NotEqual(t, c2, newC2)

	newCommit, err := r.Objects.GetCommit(newC2)
	require.NoError(t, err)
	require.Equal(t, []hash.CommitID{root}, newCommit.Parents)

	target, ok := tx.view.Refs.LocalBookmarks["work"].AsResolved()
	require.True(t, ok)
	got, present := target.Get()
	require.True(t, present)
	require.Equal(t, newC2, got)
}

func TestBisectorConvergesOnFirstBadCommit(t *testing.T) {
	r := objtest.NewRepo(t)
	tree := r.WriteTree(t)

	chain := make([]hash.CommitID, 7)
	var parent hash.CommitID
	for i := range chain {
		if i == 0 {
			chain[i] = r.WriteCommit(t, tree)
		} else {
			chain[i] = r.WriteCommit(t, tree, parent)
		}
		parent = chain[i]
	}
	require.NoError(t, r.Index.EnsureIndexed([]hash.CommitID{chain[len(chain)-1]}))

	const firstBad = 3
	isBad := func(id hash.CommitID) bool {
		for i, c := range chain {
			if c == id {
				return i >= firstBad
			}
		}
		return false
	}

	b, err := NewBisector(r.Index, chain)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		step, err := b.NextStep()
		require.NoError(t, err)
		if step.Done != nil {
			require.False(t, step.Done.Indeterminate)
			require.Equal(t, []hash.CommitID{chain[firstBad]}, step.Done.Found)
			return
		}
		require.NotNil(t, step.Evaluate)
		if isBad(*step.Evaluate) {
			require.NoError(t, b.MarkBad(*step.Evaluate))
		} else {
			require.NoError(t, b.MarkGood(*step.Evaluate))
		}
	}
	t.Fatal("bisection did not converge")
}

func TestWalkPredecessorsFallsBackToCommitPredecessors(t *testing.T) {
	r := objtest.NewRepo(t)
	tree := r.WriteTree(t)
	a := r.WriteCommit(t, tree)

	bID, err := r.Objects.WriteCommit(&objectstore.Commit{
		ChangeID:        hash.RandomChangeID(),
		Tree:            merge.Resolved(r.WriteTree(t)),
		Author:          objtest.Identity("tester"),
		Committer:       objtest.Identity("tester"),
		HasPredecessors: true,
		Predecessors:    []hash.CommitID{a},
	}, nil)
	require.NoError(t, err)

	result, err := WalkPredecessors(r.Ops, r.Objects, nil, []hash.CommitID{bID})
	require.NoError(t, err)
	require.Equal(t, []hash.CommitID{bID, a}, result)
}
