package objectstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/hash"
)

func TestFSRawStoragePutGetHasRoundtrip(t *testing.T) {
	raw, err := newFSRawStorage(t.TempDir())
	require.NoError(t, err)
	defer raw.close()

	data := []byte("some object payload, not yet compressed")
	id, err := raw.put(data)
	require.NoError(t, err)

	require.True(t, raw.has(id))

	got, err := raw.get(id)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestFSRawStoragePathIsFanout(t *testing.T) {
	root := t.TempDir()
	raw, err := newFSRawStorage(root)
	require.NoError(t, err)
	defer raw.close()

	data := []byte("payload")
	id, err := raw.put(data)
	require.NoError(t, err)

	hex := id.String()
	want := filepath.Join(root, hex[:2], hex[2:4], hex)
	_, err = os.Stat(want)
	require.NoError(t, err)
}

func TestFSRawStorageGetMissingReturnsNotFound(t *testing.T) {
	raw, err := newFSRawStorage(t.TempDir())
	require.NoError(t, err)
	defer raw.close()

	_, err = raw.get(hash.FromBytes([]byte("never written")))
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestFSRawStoragePutIsIdempotent(t *testing.T) {
	raw, err := newFSRawStorage(t.TempDir())
	require.NoError(t, err)
	defer raw.close()

	data := []byte("duplicate me")
	id1, err := raw.put(data)
	require.NoError(t, err)
	id2, err := raw.put(data)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestFSRawStorageResolvePrefix(t *testing.T) {
	raw, err := newFSRawStorage(t.TempDir())
	require.NoError(t, err)
	defer raw.close()

	id, err := raw.put([]byte("unique content for prefix test"))
	require.NoError(t, err)

	resolved, err := raw.resolvePrefix(id.String()[:8])
	require.NoError(t, err)
	require.Equal(t, id, resolved)
}

func TestFSRawStorageResolvePrefixNotFound(t *testing.T) {
	raw, err := newFSRawStorage(t.TempDir())
	require.NoError(t, err)
	defer raw.close()

	_, err = raw.resolvePrefix("deadbeef")
	require.Error(t, err)
}

func TestMultiRawStorageReadsThroughLayers(t *testing.T) {
	localDir := t.TempDir()
	remoteDir := t.TempDir()
	local, err := newFSRawStorage(localDir)
	require.NoError(t, err)
	defer local.close()
	remote, err := newFSRawStorage(remoteDir)
	require.NoError(t, err)
	defer remote.close()

	remoteOnly := []byte("lives only in the remote layer")
	remoteID, err := remote.put(remoteOnly)
	require.NoError(t, err)

	chained := chainRawStorage(local, remote)
	require.True(t, chained.has(remoteID))

	got, err := chained.get(remoteID)
	require.NoError(t, err)
	require.Equal(t, remoteOnly, got)

	require.False(t, local.has(remoteID))
}

func TestMultiRawStoragePutRoutesToFirstLayer(t *testing.T) {
	local, err := newFSRawStorage(t.TempDir())
	require.NoError(t, err)
	defer local.close()
	remote, err := newFSRawStorage(t.TempDir())
	require.NoError(t, err)
	defer remote.close()

	chained := chainRawStorage(local, remote)
	data := []byte("goes to local only")
	id, err := chained.put(data)
	require.NoError(t, err)

	require.True(t, local.has(id))
	require.False(t, remote.has(id))
}
