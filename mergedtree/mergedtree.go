// Package mergedtree implements the lazy, conflict-aware view over the
// object store's tree graph: a MergedTree is conceptually a Merge of trees,
// but nothing below the root is read until a specific path is asked for.
//
// The directory-structure traversal (EntriesMatching, Diff) walks every side
// in lockstep by name, the same shape as a merkletrie double-iterator, but
// generalized from two noders to the N terms of a merge.Merge.
package mergedtree

import (
	"path"
	"sort"
	"strings"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
	"github.com/antgroup/zit/objectstore"
)

// TreeValue is the value found at a path: either absent, or present with a
// mode and the id of the object it names (a File, Symlink, Tree, or, for an
// already-materialized conflict, a Conflict). It reuses objectstore's
// ConflictTerm shape directly, since a Conflict object's terms are exactly
// this.
type TreeValue = objectstore.ConflictTerm

// MergedTree is a lazily-merged directory tree: trees holds one TreeID per
// term of a merge.Merge, mirroring how a Commit carries a
// merge.Merge[hash.TreeID] root instead of a single TreeId.
type MergedTree struct {
	store *objectstore.Store
	trees merge.Merge[hash.TreeID]
}

// New wraps a store and a (possibly conflicted) root tree merge.
func New(store *objectstore.Store, trees merge.Merge[hash.TreeID]) *MergedTree {
	return &MergedTree{store: store, trees: trees}
}

// FromTree builds a resolved (single-sided) MergedTree rooted at a single
// tree, the common case of "the tree of a commit with a resolved tree".
func FromTree(store *objectstore.Store, id hash.TreeID) *MergedTree {
	return New(store, merge.Resolved(id))
}

// IsResolved reports whether the tree-level merge has already collapsed to a
// single side (no directory structure conflict at the root).
func (t *MergedTree) IsResolved() bool {
	return t.trees.IsResolved()
}

// Trees exposes the underlying root merge.
func (t *MergedTree) Trees() merge.Merge[hash.TreeID] {
	return t.trees
}

func rootTerms(trees merge.Merge[hash.TreeID]) merge.Merge[merge.Option[TreeValue]] {
	return merge.Map(trees, func(id hash.TreeID) merge.Option[TreeValue] {
		return merge.Some(TreeValue{Mode: objectstore.ModeTree, ID: hash.ID(id)})
	})
}

// childEntry looks up name inside term (if term is present and a tree),
// returning the child's merge term (possibly absent).
func (t *MergedTree) childEntry(term merge.Option[TreeValue], name string) (merge.Option[TreeValue], error) {
	v, present := term.Get()
	if !present || v.Mode != objectstore.ModeTree {
		return merge.None[TreeValue](), nil
	}
	tree, err := t.store.GetTree(hash.TreeID(v.ID))
	if err != nil {
		return merge.Option[TreeValue]{}, err
	}
	for _, e := range tree.Entries {
		if e.Name == name {
			return merge.Some(TreeValue{Mode: e.Mode, ID: e.ID}), nil
		}
	}
	return merge.None[TreeValue](), nil
}

// descend walks one path component down from the current per-term values.
func (t *MergedTree) descend(terms merge.Merge[merge.Option[TreeValue]], name string) (merge.Merge[merge.Option[TreeValue]], error) {
	out := make([]merge.Option[TreeValue], len(terms.Terms()))
	for i, term := range terms.Terms() {
		child, err := t.childEntry(term, name)
		if err != nil {
			return merge.Merge[merge.Option[TreeValue]]{}, err
		}
		out[i] = child
	}
	return merge.New(out), nil
}

func treeValueEqual(a, b merge.Option[TreeValue]) bool {
	av, aok := a.Get()
	bv, bok := b.Get()
	if aok != bok {
		return false
	}
	if !aok {
		return true
	}
	return av.Mode == bv.Mode && av.ID == bv.ID
}

// PathValue resolves the value at path across every term of the tree merge,
// collapsing to a single resolved TreeValue when the per-term values cancel
// out trivially (the generalized "A+(A-B)=A" rule), and leaving an unresolved
// Merge otherwise.
func (t *MergedTree) PathValue(p string) (merge.Merge[merge.Option[TreeValue]], error) {
	terms := rootTerms(t.trees)
	for _, name := range splitPath(p) {
		if name == "" {
			continue
		}
		next, err := t.descend(terms, name)
		if err != nil {
			return merge.Merge[merge.Option[TreeValue]]{}, err
		}
		terms = next
	}
	if resolved, ok := merge.ResolveTrivial(terms, treeValueEqual); ok {
		return merge.Resolved(resolved), nil
	}
	return terms, nil
}

func splitPath(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

// Matcher decides which paths EntriesMatching and Diff visit, able to prune
// whole subtrees without descending into them — the "fileset" concept
// referenced alongside entries_matching.
type Matcher interface {
	// Matches reports whether path itself should be yielded.
	Matches(p string) bool
	// ShouldDescend reports whether dir (and its descendants) can possibly
	// contain a matching path and is therefore worth walking into.
	ShouldDescend(dir string) bool
}

// EverythingMatcher matches every path.
type EverythingMatcher struct{}

func (EverythingMatcher) Matches(string) bool       { return true }
func (EverythingMatcher) ShouldDescend(string) bool { return true }

// PrefixMatcher matches a single path and every path beneath it.
type PrefixMatcher struct {
	Prefix string
}

func (m PrefixMatcher) Matches(p string) bool {
	p = strings.Trim(p, "/")
	prefix := strings.Trim(m.Prefix, "/")
	if prefix == "" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func (m PrefixMatcher) ShouldDescend(dir string) bool {
	dir = strings.Trim(dir, "/")
	prefix := strings.Trim(m.Prefix, "/")
	if prefix == "" || dir == "" {
		return true
	}
	return strings.HasPrefix(prefix, dir+"/") || dir == prefix || strings.HasPrefix(dir, prefix+"/")
}

// Entry is one yielded (path, value) pair from EntriesMatching.
type Entry struct {
	Path  string
	Value merge.Merge[merge.Option[TreeValue]]
}

// EntriesMatching yields, in path order, every path where any term of the
// tree merge has a value and the matcher selects it. It walks all terms'
// subtrees in lockstep by name, the N-way generalization of a merkletrie
// double-iterator.
func (t *MergedTree) EntriesMatching(matcher Matcher) ([]Entry, error) {
	var out []Entry
	err := t.walk("", rootTerms(t.trees), matcher, &out)
	return out, err
}

func (t *MergedTree) walk(dir string, terms merge.Merge[merge.Option[TreeValue]], matcher Matcher, out *[]Entry) error {
	names := make(map[string]struct{})
	for _, term := range terms.Terms() {
		v, present := term.Get()
		if !present || v.Mode != objectstore.ModeTree {
			continue
		}
		tree, err := t.store.GetTree(hash.TreeID(v.ID))
		if err != nil {
			return err
		}
		for _, e := range tree.Entries {
			names[e.Name] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		childPath := name
		if dir != "" {
			childPath = dir + "/" + name
		}
		if !matcher.ShouldDescend(childPath) && !matcher.Matches(childPath) {
			continue
		}
		childTerms, err := t.descend(terms, name)
		if err != nil {
			return err
		}
		resolved, isResolved := childTerms.AsResolved()
		if matcher.Matches(childPath) {
			if isResolved {
				if _, present := resolved.Get(); present {
					*out = append(*out, Entry{Path: childPath, Value: merge.Resolved(resolved)})
				}
			} else if anyPresent(childTerms) {
				*out = append(*out, Entry{Path: childPath, Value: childTerms})
			}
		}
		if isDirLike(childTerms) && matcher.ShouldDescend(childPath) {
			if err := t.walk(childPath, childTerms, matcher, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func anyPresent(m merge.Merge[merge.Option[TreeValue]]) bool {
	for _, term := range m.Terms() {
		if _, ok := term.Get(); ok {
			return true
		}
	}
	return false
}

// isDirLike reports whether descending into this path's children could
// surface anything: true if any term is present and a tree.
func isDirLike(m merge.Merge[merge.Option[TreeValue]]) bool {
	for _, term := range m.Terms() {
		if v, ok := term.Get(); ok && v.Mode == objectstore.ModeTree {
			return true
		}
	}
	return false
}
