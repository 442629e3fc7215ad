package refs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
)

func TestSetLocalBookmarkTargetAddsAndDeletes(t *testing.T) {
	v := New()
	id := hash.CommitIDFromBytes([]byte("c1"))
	v.SetLocalBookmarkTarget("main", Present(id))
	require.Contains(t, v.LocalBookmarks, "main")

	v.SetLocalBookmarkTarget("main", Absent())
	require.NotContains(t, v.LocalBookmarks, "main")
}

func TestTrackRemoteBookmarkFastForwardsAbsentLocal(t *testing.T) {
	v := New()
	id := hash.CommitIDFromBytes([]byte("c1"))
	key := RemoteBookmarkKey{Remote: "origin", Name: "main"}
	v.RemoteBookmarks[key] = RemoteRef{Target: Present(id), State: RemoteRefNew}

	v.TrackRemoteBookmark("origin", "main")

	ref := v.RemoteBookmarks[key]
	require.Equal(t, RemoteRefTracking, ref.State)
	local, ok := v.LocalBookmarks["main"]
	require.True(t, ok)
	resolved, _ := local.AsResolved()
	got, present := resolved.Get()
	require.True(t, present)
	require.Equal(t, id, got)
}

func TestTrackRemoteBookmarkDoesNotOverrideExistingLocal(t *testing.T) {
	v := New()
	remoteID := hash.CommitIDFromBytes([]byte("remote"))
	localID := hash.CommitIDFromBytes([]byte("local"))
	v.RemoteBookmarks[RemoteBookmarkKey{Remote: "origin", Name: "main"}] = RemoteRef{Target: Present(remoteID), State: RemoteRefNew}
	v.SetLocalBookmarkTarget("main", Present(localID))

	v.TrackRemoteBookmark("origin", "main")

	local := v.LocalBookmarks["main"]
	resolved, _ := local.AsResolved()
	got, _ := resolved.Get()
	require.Equal(t, localID, got)
}

func TestIsPendingDeletion(t *testing.T) {
	v := New()
	remoteID := hash.CommitIDFromBytes([]byte("remote"))
	key := RemoteBookmarkKey{Remote: "origin", Name: "feature"}
	v.RemoteBookmarks[key] = RemoteRef{Target: Present(remoteID), State: RemoteRefTracking}

	require.True(t, v.IsPendingDeletion("origin", "feature"))

	v.SetLocalBookmarkTarget("feature", Present(remoteID))
	require.False(t, v.IsPendingDeletion("origin", "feature"))
}

func TestDiffDetectsBookmarkMove(t *testing.T) {
	a := New()
	b := New()
	id1 := hash.CommitIDFromBytes([]byte("one"))
	id2 := hash.CommitIDFromBytes([]byte("two"))
	a.SetLocalBookmarkTarget("main", Present(id1))
	b.SetLocalBookmarkTarget("main", Present(id2))

	deltas := a.Diff(b)
	require.Len(t, deltas, 1)
	require.Equal(t, "main", deltas[0].Name)
}

func TestDiffIgnoresUnchangedBookmarks(t *testing.T) {
	a := New()
	b := New()
	id1 := hash.CommitIDFromBytes([]byte("one"))
	a.SetLocalBookmarkTarget("main", Present(id1))
	b.SetLocalBookmarkTarget("main", Present(id1))

	require.Empty(t, a.Diff(b))
}

func TestDiffDetectsAddedAndRemovedBookmarks(t *testing.T) {
	a := New()
	b := New()
	id1 := hash.CommitIDFromBytes([]byte("one"))
	b.SetLocalBookmarkTarget("new-branch", Present(id1))

	deltas := a.Diff(b)
	require.Len(t, deltas, 1)
	require.Equal(t, "new-branch", deltas[0].Name)
	_, fromPresent := deltas[0].From.AsResolved()
	require.True(t, fromPresent)
}

func TestConflictedBookmarkTargetHasTwoSides(t *testing.T) {
	id1 := hash.CommitIDFromBytes([]byte("one"))
	id2 := hash.CommitIDFromBytes([]byte("two"))
	conflicted := merge.FromAddsRemoves(
		[]merge.Option[hash.CommitID]{merge.Some(id1), merge.Some(id2)},
		[]merge.Option[hash.CommitID]{merge.None[hash.CommitID]()},
	)
	require.False(t, conflicted.IsResolved())
	require.Equal(t, 2, conflicted.NumSides())
}

func TestCloneIsIndependent(t *testing.T) {
	v := New()
	id := hash.CommitIDFromBytes([]byte("c1"))
	v.SetLocalBookmarkTarget("main", Present(id))

	clone := v.Clone()
	clone.SetLocalBookmarkTarget("main", Absent())

	require.Contains(t, v.LocalBookmarks, "main")
	require.NotContains(t, clone.LocalBookmarks, "main")
}
