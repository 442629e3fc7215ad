// Package refs implements the view: the set of local bookmarks, remote
// bookmarks, and tags an operation snapshots, grounded on the teacher's
// reference database (modules/zeta/refs, modules/plumbing/reference.go)
// but generalized so a bookmark's target is a conflict-carrying
// merge.Merge rather than a single hash, matching the way a conflicted
// commit's tree is carried rather than rejected outright.
package refs

import (
	"sort"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
)

// RefTarget is the value a bookmark or tag points at: present, absent, or
// conflicted between multiple candidate commits.
type RefTarget = merge.Merge[merge.Option[hash.CommitID]]

// Absent builds a RefTarget that names no commit, the value a deleted
// bookmark has.
func Absent() RefTarget {
	return merge.Resolved(merge.None[hash.CommitID]())
}

// Present builds a RefTarget naming a single commit.
func Present(id hash.CommitID) RefTarget {
	return merge.Resolved(merge.Some(id))
}

// RemoteRefState classifies how a remote bookmark relates to push/pull.
type RemoteRefState int

const (
	// RemoteRefNew is a remote ref the view has never tracked.
	RemoteRefNew RemoteRefState = iota
	// RemoteRefTracking is a remote ref whose movements affect the local
	// bookmark of the same name on push and pull.
	RemoteRefTracking
	// RemoteRefUntracked is a remote ref the view knows about but does not
	// follow.
	RemoteRefUntracked
)

func (s RemoteRefState) String() string {
	switch s {
	case RemoteRefNew:
		return "new"
	case RemoteRefTracking:
		return "tracking"
	case RemoteRefUntracked:
		return "untracked"
	default:
		return "unknown"
	}
}

// RemoteRef is one (remote, name) bookmark as last seen from that remote.
type RemoteRef struct {
	Target RefTarget
	State  RemoteRefState
}

// RemoteBookmarkKey names a remote bookmark.
type RemoteBookmarkKey struct {
	Remote string
	Name   string
}

// View is the three namespaces a repository operation snapshots: local
// bookmarks, remote bookmarks (with their tracking state), and tags
// (currently populated only from remotes, per the teacher's remote-tag
// handling in modules/zeta/refs).
type View struct {
	LocalBookmarks  map[string]RefTarget
	RemoteBookmarks map[RemoteBookmarkKey]RemoteRef
	Tags            map[string]RefTarget
}

// New returns an empty view.
func New() *View {
	return &View{
		LocalBookmarks:  make(map[string]RefTarget),
		RemoteBookmarks: make(map[RemoteBookmarkKey]RemoteRef),
		Tags:            make(map[string]RefTarget),
	}
}

// Clone deep-copies a view so mutating the copy never affects the
// original, the same guarantee an operation's recorded view needs.
func (v *View) Clone() *View {
	out := New()
	for k, t := range v.LocalBookmarks {
		out.LocalBookmarks[k] = t
	}
	for k, r := range v.RemoteBookmarks {
		out.RemoteBookmarks[k] = r
	}
	for k, t := range v.Tags {
		out.Tags[k] = t
	}
	return out
}

// SetLocalBookmarkTarget sets or replaces the target of a local bookmark.
// A target equal to Absent() deletes it.
func (v *View) SetLocalBookmarkTarget(name string, target RefTarget) {
	if resolved, ok := target.AsResolved(); ok {
		if _, present := resolved.Get(); !present {
			delete(v.LocalBookmarks, name)
			return
		}
	}
	v.LocalBookmarks[name] = target
}

// TrackRemoteBookmark marks the (remote, name) ref as tracking. If no
// local bookmark of the same name exists yet, the local bookmark
// fast-forwards to the remote's current target — tracking a bookmark for
// the first time should not silently orphan it locally.
func (v *View) TrackRemoteBookmark(remote, name string) {
	key := RemoteBookmarkKey{Remote: remote, Name: name}
	ref, ok := v.RemoteBookmarks[key]
	if !ok {
		ref = RemoteRef{Target: Absent(), State: RemoteRefNew}
	}
	ref.State = RemoteRefTracking
	v.RemoteBookmarks[key] = ref

	if _, exists := v.LocalBookmarks[name]; !exists {
		v.LocalBookmarks[name] = ref.Target
	}
}

// UntrackRemoteBookmark marks the remote ref as no longer tracked; it
// stops affecting push/pull planning for the local bookmark of the same
// name, but the remote ref entry itself (and the local bookmark) is left
// untouched.
func (v *View) UntrackRemoteBookmark(remote, name string) {
	key := RemoteBookmarkKey{Remote: remote, Name: name}
	if ref, ok := v.RemoteBookmarks[key]; ok {
		ref.State = RemoteRefUntracked
		v.RemoteBookmarks[key] = ref
	}
}

// IsPendingDeletion reports whether a tracked remote bookmark's local
// counterpart has been deleted locally while the remote ref still exists
// — the state push planning needs to know whether to delete it upstream.
func (v *View) IsPendingDeletion(remote, name string) bool {
	key := RemoteBookmarkKey{Remote: remote, Name: name}
	ref, ok := v.RemoteBookmarks[key]
	if !ok || ref.State != RemoteRefTracking {
		return false
	}
	if resolved, ok := ref.Target.AsResolved(); ok {
		if _, present := resolved.Get(); !present {
			return false
		}
	}
	_, localExists := v.LocalBookmarks[name]
	return !localExists
}

// BookmarkDelta is one named ref's change between two views.
type BookmarkDelta struct {
	Name string
	From RefTarget
	To   RefTarget
}

// Diff returns every local bookmark whose target differs between v and
// other, the per-name deltas operation-diff and push planning consume.
func (v *View) Diff(other *View) []BookmarkDelta {
	names := make(map[string]struct{})
	for name := range v.LocalBookmarks {
		names[name] = struct{}{}
	}
	for name := range other.LocalBookmarks {
		names[name] = struct{}{}
	}

	var out []BookmarkDelta
	for name := range names {
		from, fromOk := v.LocalBookmarks[name]
		if !fromOk {
			from = Absent()
		}
		to, toOk := other.LocalBookmarks[name]
		if !toOk {
			to = Absent()
		}
		if !refTargetEqual(from, to) {
			out = append(out, BookmarkDelta{Name: name, From: from, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func refTargetEqual(a, b RefTarget) bool {
	if len(a.Terms()) != len(b.Terms()) {
		return false
	}
	return merge.Equal(a, b, func(x, y merge.Option[hash.CommitID]) bool {
		xv, xok := x.Get()
		yv, yok := y.Get()
		if xok != yok {
			return false
		}
		return !xok || xv == yv
	})
}
