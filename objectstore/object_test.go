package objectstore

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
)

func TestFileEncodeDecodeRoundtrip(t *testing.T) {
	f := &File{Content: []byte("hello world\n")}
	data, err := EncodeBytes(f)
	require.NoError(t, err)
	v, magic, err := decodeBody(data)
	require.NoError(t, err)
	require.Equal(t, FileMagic, magic)
	require.Equal(t, f.Content, v.(*File).Content)
}

func TestTreeEncodeDecodeRoundtripAndSorting(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Name: "z", Mode: ModeFile, ID: hash.FromBytes([]byte("z"))},
		{Name: "a", Mode: ModeTree, ID: hash.FromBytes([]byte("a"))},
	}}
	data, err := EncodeBytes(tree)
	require.NoError(t, err)
	v, magic, err := decodeBody(data)
	require.NoError(t, err)
	require.Equal(t, TreeMagic, magic)
	got := v.(*Tree)
	require.Len(t, got.Entries, 2)
	require.Equal(t, "a", got.Entries[0].Name)
	require.Equal(t, "z", got.Entries[1].Name)
}

func TestCommitEncodeDecodeRoundtrip(t *testing.T) {
	when := time.Unix(1700000000, 0).UTC()
	c := &Commit{
		ChangeID: hash.RandomChangeID(),
		Tree:     merge.Resolved(hash.TreeID(hash.FromBytes([]byte("tree")))),
		Parents:  []hash.CommitID{hash.CommitID(hash.FromBytes([]byte("parent")))},
		Author:   Signature{Name: "A", Email: "a@example.com", When: when},
		Committer: Signature{
			Name: "A", Email: "a@example.com", When: when,
		},
		Description: "a commit message\nwith a second line\n",
	}
	data, err := EncodeBytes(c)
	require.NoError(t, err)
	v, magic, err := decodeBody(data)
	require.NoError(t, err)
	require.Equal(t, CommitMagic, magic)
	got := v.(*Commit)
	require.Equal(t, c.ChangeID, got.ChangeID)
	require.True(t, merge.Equal(c.Tree, got.Tree, func(a, b hash.TreeID) bool { return a == b }))
	require.Equal(t, c.Parents, got.Parents)
	require.Equal(t, c.Author.Name, got.Author.Name)
	require.Equal(t, c.Author.Email, got.Author.Email)
	require.True(t, c.Author.When.Equal(got.Author.When))
	require.Equal(t, c.Description, got.Description)
	require.False(t, got.HasPredecessors)
}

func TestCommitConflictedTreeRoundtrip(t *testing.T) {
	t1 := hash.TreeID(hash.FromBytes([]byte("t1")))
	t2 := hash.TreeID(hash.FromBytes([]byte("t2")))
	t3 := hash.TreeID(hash.FromBytes([]byte("t3")))
	c := &Commit{
		ChangeID:    hash.RandomChangeID(),
		Tree:        merge.New([]hash.TreeID{t1, t2, t3}),
		Author:      Signature{Name: "A", Email: "a@x.com", When: time.Unix(1, 0).UTC()},
		Committer:   Signature{Name: "A", Email: "a@x.com", When: time.Unix(1, 0).UTC()},
		Description: "conflicted\n",
	}
	data, err := EncodeBytes(c)
	require.NoError(t, err)
	v, _, err := decodeBody(data)
	require.NoError(t, err)
	got := v.(*Commit)
	require.False(t, got.Tree.IsResolved())
	require.Equal(t, []hash.TreeID{t1, t2, t3}, got.Tree.Terms())
}

func TestCommitPredecessorsPresentButEmptyRoundtrips(t *testing.T) {
	c := &Commit{
		ChangeID:        hash.RandomChangeID(),
		Tree:            merge.Resolved(hash.TreeID(hash.FromBytes([]byte("t")))),
		Author:          Signature{Name: "A", Email: "a@x.com", When: time.Unix(1, 0).UTC()},
		Committer:       Signature{Name: "A", Email: "a@x.com", When: time.Unix(1, 0).UTC()},
		Description:     "msg\n",
		HasPredecessors: true,
		Predecessors:    nil,
	}
	data, err := EncodeBytes(c)
	require.NoError(t, err)
	v, _, err := decodeBody(data)
	require.NoError(t, err)
	got := v.(*Commit)
	require.True(t, got.HasPredecessors)
	require.Empty(t, got.Predecessors)
}

func TestConflictObjectRoundtrip(t *testing.T) {
	term1 := merge.Some(ConflictTerm{Mode: ModeFile, ID: hash.FromBytes([]byte("1"))})
	term2 := merge.None[ConflictTerm]()
	term3 := merge.Some(ConflictTerm{Mode: ModeSymlink, ID: hash.FromBytes([]byte("3"))})
	c := &Conflict{Terms: merge.New([]merge.Option[ConflictTerm]{term1, term2, term3})}
	data, err := EncodeBytes(c)
	require.NoError(t, err)
	v, magic, err := decodeBody(data)
	require.NoError(t, err)
	require.Equal(t, ConflictMagic, magic)
	got := v.(*Conflict)
	require.Equal(t, 2, got.Terms.NumSides())
	first, ok := got.Terms.GetAdd(0)
	require.True(t, ok)
	fv, present := first.Get()
	require.True(t, present)
	require.Equal(t, ModeFile, fv.Mode)
	second, ok := got.Terms.GetAdd(1)
	require.True(t, ok)
	_, present = second.Get()
	require.False(t, present)
}

func TestDecodeBodyRejectsShortInput(t *testing.T) {
	_, _, err := decodeBody([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeBodyRejectsUnknownMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{'X', 'X', 'X', 'X', 0, 1})
	_, _, err := decodeBody(buf.Bytes())
	require.Error(t, err)
}
