package objectstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
)

func TestStoreFileWriteGetRoundtrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	f := &File{Content: []byte("file content")}
	id, err := store.WriteFile(f)
	require.NoError(t, err)

	got, err := store.GetFile(id)
	require.NoError(t, err)
	require.Equal(t, f.Content, got.Content)
}

func TestStoreGetWrongKindIsInvalidObject(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	id, err := store.WriteFile(&File{Content: []byte("x")})
	require.NoError(t, err)

	_, err = store.GetTree(hash.TreeID(id))
	require.Error(t, err)
	require.True(t, IsInvalidObject(err))
}

func TestStoreGetMissingIsNotFound(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.GetFile(hash.FileID(hash.FromBytes([]byte("missing"))))
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestStoreWithCacheServesRepeatedGets(t *testing.T) {
	store, err := Open(t.TempDir(), WithCache())
	require.NoError(t, err)
	defer store.Close()

	id, err := store.WriteFile(&File{Content: []byte("cached content")})
	require.NoError(t, err)

	got1, err := store.GetFile(id)
	require.NoError(t, err)
	got2, err := store.GetFile(id)
	require.NoError(t, err)
	require.Equal(t, got1.Content, got2.Content)
}

func TestStoreTreeWriteGetRoundtrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	fileID, err := store.WriteFile(&File{Content: []byte("a")})
	require.NoError(t, err)

	treeID, err := store.WriteTree(&Tree{Entries: []TreeEntry{
		{Name: "a.txt", Mode: ModeFile, ID: hash.ID(fileID)},
	}})
	require.NoError(t, err)

	got, err := store.GetTree(treeID)
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	require.Equal(t, "a.txt", got.Entries[0].Name)
}

type stubSigner struct {
	sig []byte
	err error
}

func (s *stubSigner) Sign(data []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sig, nil
}

func TestStoreWriteCommitWithoutSignerLeavesSigDataEmpty(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	c := &Commit{
		ChangeID:    hash.RandomChangeID(),
		Tree:        merge.Resolved(hash.TreeID(hash.FromBytes([]byte("t")))),
		Author:      Signature{Name: "A", Email: "a@x.com", When: time.Unix(1, 0).UTC()},
		Committer:   Signature{Name: "A", Email: "a@x.com", When: time.Unix(1, 0).UTC()},
		Description: "msg\n",
	}
	id, err := store.WriteCommit(c, nil)
	require.NoError(t, err)

	got, err := store.GetCommit(id)
	require.NoError(t, err)
	require.Empty(t, got.SigData)
}

func TestStoreWriteCommitSignerAffectsID(t *testing.T) {
	storeA, err := Open(t.TempDir())
	require.NoError(t, err)
	defer storeA.Close()
	storeB, err := Open(t.TempDir())
	require.NoError(t, err)
	defer storeB.Close()

	newCommit := func() *Commit {
		return &Commit{
			ChangeID:    hash.RandomChangeID(),
			Tree:        merge.Resolved(hash.TreeID(hash.FromBytes([]byte("t")))),
			Author:      Signature{Name: "A", Email: "a@x.com", When: time.Unix(1, 0).UTC()},
			Committer:   Signature{Name: "A", Email: "a@x.com", When: time.Unix(1, 0).UTC()},
			Description: "msg\n",
		}
	}

	cA := newCommit()
	unsignedID, err := storeA.WriteCommit(cA, nil)
	require.NoError(t, err)

	cB := newCommit()
	cB.ChangeID = cA.ChangeID
	signedID, err := storeB.WriteCommit(cB, &stubSigner{sig: []byte("deadbeef-signature")})
	require.NoError(t, err)

	require.NotEqual(t, unsignedID, signedID)

	got, err := storeB.GetCommit(signedID)
	require.NoError(t, err)
	require.Equal(t, []byte("deadbeef-signature"), got.SigData)
}

func TestStoreHasReflectsPresence(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	id, err := store.WriteFile(&File{Content: []byte("present")})
	require.NoError(t, err)

	require.True(t, store.Has(hash.ID(id)))
	require.False(t, store.Has(hash.FromBytes([]byte("absent"))))
}

func TestStoreResolvePrefix(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	id, err := store.WriteFile(&File{Content: []byte("resolve me")})
	require.NoError(t, err)

	resolved, err := store.ResolvePrefix(hash.ID(id).String()[:8])
	require.NoError(t, err)
	require.Equal(t, hash.ID(id), resolved)
}
