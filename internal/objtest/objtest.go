// Package objtest holds test fixtures shared by packages whose setup goes
// beyond a single inline helper: an object store, operation store, op-head
// file and commit index all live under one temp directory, the combination
// transaction (and, later, repo) tests need on every test. Smaller
// packages keep their own inline newStore/writeCommit helpers, matching
// how each _test.go file in this codebase sets up its own fixtures rather
// than reaching for a shared mocking framework.
package objtest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/index"
	"github.com/antgroup/zit/merge"
	"github.com/antgroup/zit/objectstore"
	"github.com/antgroup/zit/opstore"
)

// Repo bundles the stores a transaction needs: an object store, an
// operation store, its head file, and a commit index over the object
// store.
type Repo struct {
	Objects *objectstore.Store
	Ops     *opstore.Store
	Heads   *opstore.HeadStore
	Index   *index.Index
}

// NewRepo opens a fresh set of stores rooted under a fresh temp directory.
func NewRepo(t *testing.T) *Repo {
	t.Helper()
	root := t.TempDir()

	objects, err := objectstore.Open(filepath.Join(root, "store"))
	require.NoError(t, err)
	t.Cleanup(func() { objects.Close() })

	ops, err := opstore.Open(filepath.Join(root, "op_store"))
	require.NoError(t, err)

	heads, err := opstore.OpenHeads(filepath.Join(root, "op_heads"))
	require.NoError(t, err)

	return &Repo{
		Objects: objects,
		Ops:     ops,
		Heads:   heads,
		Index:   index.Open(objects),
	}
}

// Identity returns a deterministic author/committer signature for tests.
func Identity(name string) objectstore.Signature {
	return objectstore.Signature{
		Name:  name,
		Email: name + "@example.com",
		When:  time.Unix(1700000000, 0).UTC(),
	}
}

// WriteFile stores a file blob and returns its id.
func (r *Repo) WriteFile(t *testing.T, content string) hash.FileID {
	t.Helper()
	id, err := r.Objects.WriteFile(&objectstore.File{Content: []byte(content)})
	require.NoError(t, err)
	return id
}

// WriteTree stores a tree with the given entries.
func (r *Repo) WriteTree(t *testing.T, entries ...objectstore.TreeEntry) hash.TreeID {
	t.Helper()
	id, err := r.Objects.WriteTree(&objectstore.Tree{Entries: entries})
	require.NoError(t, err)
	return id
}

// WriteCommit stores a commit with a fresh change id and the given tree
// and parents.
func (r *Repo) WriteCommit(t *testing.T, tree hash.TreeID, parents ...hash.CommitID) hash.CommitID {
	t.Helper()
	id, err := r.Objects.WriteCommit(&objectstore.Commit{
		ChangeID:  hash.RandomChangeID(),
		Tree:      merge.Resolved(tree),
		Parents:   parents,
		Author:    Identity("tester"),
		Committer: Identity("tester"),
	}, nil)
	require.NoError(t, err)
	return id
}

// EmptyView returns a fresh, empty view for use as a transaction's
// starting point in tests that don't need existing bookmarks.
func EmptyView() *opstore.View {
	return opstore.NewView()
}
