package mergedtree

import (
	"sort"

	"github.com/antgroup/zit/merge"
)

// DiffEntry is one path where two MergedTrees disagree.
type DiffEntry struct {
	Path string
	From merge.Merge[merge.Option[TreeValue]]
	To   merge.Merge[merge.Option[TreeValue]]
}

// Diff yields, in path order, every path where t and other disagree. Paths
// present in only one side appear with the other side resolved to absent.
func (t *MergedTree) Diff(other *MergedTree) ([]DiffEntry, error) {
	fromEntries, err := t.EntriesMatching(EverythingMatcher{})
	if err != nil {
		return nil, err
	}
	toEntries, err := other.EntriesMatching(EverythingMatcher{})
	if err != nil {
		return nil, err
	}

	from := make(map[string]merge.Merge[merge.Option[TreeValue]], len(fromEntries))
	for _, e := range fromEntries {
		from[e.Path] = e.Value
	}
	to := make(map[string]merge.Merge[merge.Option[TreeValue]], len(toEntries))
	for _, e := range toEntries {
		to[e.Path] = e.Value
	}

	paths := make(map[string]struct{}, len(from)+len(to))
	for p := range from {
		paths[p] = struct{}{}
	}
	for p := range to {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	absent := merge.Resolved(merge.None[TreeValue]())
	var out []DiffEntry
	for _, p := range sorted {
		fv, ok := from[p]
		if !ok {
			fv = absent
		}
		tv, ok := to[p]
		if !ok {
			tv = absent
		}
		if valuesEqual(fv, tv) {
			continue
		}
		out = append(out, DiffEntry{Path: p, From: fv, To: tv})
	}
	return out, nil
}

func valuesEqual(a, b merge.Merge[merge.Option[TreeValue]]) bool {
	if len(a.Terms()) != len(b.Terms()) {
		return false
	}
	return merge.Equal(a, b, treeValueEqual)
}
