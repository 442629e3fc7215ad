package transaction

import (
	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
	"github.com/antgroup/zit/objectstore"
	"github.com/antgroup/zit/signing"
)

// CommitBuilder accumulates a commit's fields before Write stores it,
// returned by Transaction.NewCommit/RewriteCommit and CommitRewriter's
// Reparent/Rebase.
type CommitBuilder struct {
	tx        *Transaction
	commit    objectstore.Commit
	hasSource bool
	source    hash.CommitID
}

// NewCommit starts a brand-new commit with no predecessor.
func (tx *Transaction) NewCommit(parents []hash.CommitID, tree hash.TreeID) *CommitBuilder {
	return &CommitBuilder{
		tx: tx,
		commit: objectstore.Commit{
			ChangeID:  hash.RandomChangeID(),
			Tree:      merge.Resolved(tree),
			Parents:   parents,
			Author:    tx.author,
			Committer: tx.committer,
		},
	}
}

// RewriteCommit starts a builder seeded from source's fields (tree,
// description, change id), for a caller that wants to adjust fields
// directly rather than go through a CommitRewriter.
func (tx *Transaction) RewriteCommit(source hash.CommitID) (*CommitBuilder, error) {
	if tx.abandoned[source] {
		return nil, ErrImmutableCommit(source)
	}
	old, err := tx.objects.GetCommit(source)
	if err != nil {
		return nil, err
	}
	cb := &CommitBuilder{tx: tx, hasSource: true, source: source}
	cb.commit = *old
	cb.commit.SigData = nil
	cb.commit.HasPredecessors = false
	cb.commit.Predecessors = nil
	cb.commit.Committer = tx.committer
	return cb, nil
}

func (cb *CommitBuilder) SetDescription(desc string) *CommitBuilder {
	cb.commit.Description = desc
	return cb
}

func (cb *CommitBuilder) SetAuthor(sig objectstore.Signature) *CommitBuilder {
	cb.commit.Author = sig
	return cb
}

func (cb *CommitBuilder) SetCommitter(sig objectstore.Signature) *CommitBuilder {
	cb.commit.Committer = sig
	return cb
}

func (cb *CommitBuilder) SetParents(parents []hash.CommitID) *CommitBuilder {
	cb.commit.Parents = parents
	return cb
}

func (cb *CommitBuilder) AddExtraHeader(key, value string) *CommitBuilder {
	cb.commit.ExtraHeaders = append(cb.commit.ExtraHeaders, objectstore.ExtraHeader{Key: key, Value: value})
	return cb
}

// Write stores the accumulated commit, signing it per the transaction's
// configured mode, inserts it into both the object store and the
// in-memory index, and records predecessor bookkeeping if this builder
// was seeded from a source commit.
func (cb *CommitBuilder) Write() (hash.CommitID, error) {
	tx := cb.tx
	if cb.hasSource {
		cb.commit.HasPredecessors = true
		cb.commit.Predecessors = []hash.CommitID{cb.source}
	}

	var signer signing.Backend
	if tx.signer != nil {
		predecessorSigned := false
		if cb.hasSource {
			if old, err := tx.objects.GetCommit(cb.source); err == nil {
				predecessorSigned = signing.IsSigned(old.SigData)
			}
		}
		if signing.ShouldSign(tx.signMode, predecessorSigned) {
			signer = tx.signer
		}
	}

	id, err := tx.objects.WriteCommit(&cb.commit, signer)
	if err != nil {
		return hash.CommitID{}, err
	}
	if err := tx.index.EnsureIndexed([]hash.CommitID{id}); err != nil {
		return hash.CommitID{}, err
	}

	if cb.hasSource {
		tx.rewritten[cb.source] = append(tx.rewritten[cb.source], id)
		tx.commitPredecessors[id] = append(tx.commitPredecessors[id], cb.source)
	}
	return id, nil
}
