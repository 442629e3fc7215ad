package workingcopy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/objectstore"
)

func newWC(t *testing.T) (*WorkingCopy, *objectstore.Store, string) {
	t.Helper()
	store, err := objectstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	ctrl := filepath.Join(dir, controlDirName)
	wc := OpenAt(store, dir, ctrl)
	return wc, store, dir
}

func writeDiskFile(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestSnapshotTracksNewFiles(t *testing.T) {
	wc, _, dir := newWC(t)
	writeDiskFile(t, dir, "a.txt", "hello")
	writeDiskFile(t, dir, "sub/b.txt", "world")

	tree, stats, err := wc.Snapshot(SnapshotOptions{})
	require.NoError(t, err)
	require.False(t, tree.IsZero())
	require.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, stats.Added)
	require.Empty(t, stats.Modified)
	require.Empty(t, stats.Removed)
}

func TestSnapshotSkipsUnchangedFiles(t *testing.T) {
	wc, _, dir := newWC(t)
	writeDiskFile(t, dir, "a.txt", "hello")
	_, _, err := wc.Snapshot(SnapshotOptions{})
	require.NoError(t, err)

	_, stats, err := wc.Snapshot(SnapshotOptions{})
	require.NoError(t, err)
	require.Empty(t, stats.Added)
	require.Empty(t, stats.Modified)
}

func TestSnapshotDetectsModificationAndRemoval(t *testing.T) {
	wc, _, dir := newWC(t)
	writeDiskFile(t, dir, "a.txt", "hello")
	writeDiskFile(t, dir, "b.txt", "bye")
	_, _, err := wc.Snapshot(SnapshotOptions{})
	require.NoError(t, err)

	// Modify a.txt; the mtime must move forward enough to change the
	// fingerprint, so bump it explicitly rather than relying on wall-clock
	// resolution.
	full := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(full, []byte("hello again, much longer"), 0o644))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(full, future, future))
	require.NoError(t, os.Remove(filepath.Join(dir, "b.txt")))

	_, stats, err := wc.Snapshot(SnapshotOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, stats.Modified)
	require.Equal(t, []string{"b.txt"}, stats.Removed)
}

func TestSnapshotReportsTooLargeAndNotAutoTracked(t *testing.T) {
	wc, _, dir := newWC(t)
	writeDiskFile(t, dir, "big.bin", "0123456789")
	writeDiskFile(t, dir, "scratch.tmp", "ignored")

	_, stats, err := wc.Snapshot(SnapshotOptions{
		MaxNewFileSize: 4,
		AutoTrack: func(path string) bool {
			return path != "scratch.tmp"
		},
	})
	require.NoError(t, err)
	require.Contains(t, stats.TooLarge, "big.bin")
	require.Contains(t, stats.NotAutoTracked, "scratch.tmp")
	require.Empty(t, stats.Added)
}

func TestCheckoutMaterializesNewTreeAndRemovesDroppedFiles(t *testing.T) {
	wc, store, dir := newWC(t)
	writeDiskFile(t, dir, "a.txt", "v1")
	oldTree, _, err := wc.Snapshot(SnapshotOptions{})
	require.NoError(t, err)

	fileID, err := store.WriteFile(&objectstore.File{Content: []byte("v2")})
	require.NoError(t, err)
	newTree, err := store.WriteTree(&objectstore.Tree{Entries: []objectstore.TreeEntry{
		{Name: "a.txt", Mode: objectstore.ModeFile, ID: hash.ID(fileID)},
		{Name: "new.txt", Mode: objectstore.ModeFile, ID: hash.ID(fileID)},
	}})
	require.NoError(t, err)

	stats, err := wc.Checkout(newTree, &oldTree, hash.OperationID{}, hash.OperationIDFromBytes([]byte("op1")), CheckoutOptions{})
	require.NoError(t, err)
	require.Contains(t, stats.Added, "new.txt")
	require.Contains(t, stats.Updated, "a.txt")

	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))
}

func TestCheckoutRejectsConcurrentModification(t *testing.T) {
	wc, store, _ := newWC(t)
	emptyTree, err := store.WriteTree(&objectstore.Tree{})
	require.NoError(t, err)

	require.NoError(t, wc.ResetRecord(emptyTree, hash.OperationIDFromBytes([]byte("op0"))))

	_, err = wc.Checkout(emptyTree, nil, hash.OperationIDFromBytes([]byte("wrong-op")), hash.OperationIDFromBytes([]byte("op2")), CheckoutOptions{})
	require.Error(t, err)
	require.True(t, IsConcurrentCheckout(err))
}

func TestSetSparsePatternsAddsAndRemovesFromDisk(t *testing.T) {
	wc, _, dir := newWC(t)
	writeDiskFile(t, dir, "keep/a.txt", "a")
	writeDiskFile(t, dir, "drop/b.txt", "b")
	_, _, err := wc.Snapshot(SnapshotOptions{})
	require.NoError(t, err)

	stats, err := wc.SetSparsePatterns([]string{"keep"}, CheckoutOptions{})
	require.NoError(t, err)
	require.Contains(t, stats.Removed, "drop/b.txt")
	_, statErr := os.Stat(filepath.Join(dir, "drop/b.txt"))
	require.True(t, os.IsNotExist(statErr))

	stats, err = wc.SetSparsePatterns(nil, CheckoutOptions{})
	require.NoError(t, err)
	require.Contains(t, stats.Added, "drop/b.txt")
	got, err := os.ReadFile(filepath.Join(dir, "drop/b.txt"))
	require.NoError(t, err)
	require.Equal(t, "b", string(got))
}
