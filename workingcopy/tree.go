package workingcopy

import (
	"sort"
	"strings"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/mergedtree"
	"github.com/antgroup/zit/objectstore"
)

// flattenTree reads every (path, value) pair out of a resolved tree, the
// shape ResetRecord needs to seed the recorded per-path values.
func flattenTree(store *objectstore.Store, id hash.TreeID) (map[string]objectstore.ConflictTerm, error) {
	out := make(map[string]objectstore.ConflictTerm)
	if id.IsZero() {
		return out, nil
	}
	mt := mergedtree.FromTree(store, id)
	entries, err := mt.EntriesMatching(mergedtree.EverythingMatcher{})
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		resolved, ok := e.Value.AsResolved()
		if !ok {
			continue
		}
		if v, present := resolved.Get(); present {
			out[e.Path] = v
		}
	}
	return out, nil
}

// buildTree writes a nested Tree object graph for a flat path->value map and
// returns the id of the root tree. Empty directories have no entry and so
// never appear, matching how a Tree is just a list of named children.
func buildTree(store *objectstore.Store, values map[string]objectstore.ConflictTerm) (hash.TreeID, error) {
	return buildSubtree(store, "", groupByTopLevel(values))
}

// node is one directory's worth of values, either a leaf (File/Symlink/
// Conflict) or the values of a subdirectory keyed by their remaining path.
type node struct {
	leaf     *objectstore.ConflictTerm
	children map[string]objectstore.ConflictTerm
}

func groupByTopLevel(values map[string]objectstore.ConflictTerm) map[string]node {
	roots := make(map[string]node)
	for path, value := range values {
		parts := strings.SplitN(path, "/", 2)
		name := parts[0]
		n := roots[name]
		if len(parts) == 1 {
			v := value
			n.leaf = &v
		} else {
			if n.children == nil {
				n.children = make(map[string]objectstore.ConflictTerm)
			}
			n.children[parts[1]] = value
		}
		roots[name] = n
	}
	return roots
}

func buildSubtree(store *objectstore.Store, dir string, nodes map[string]node) (hash.TreeID, error) {
	tree := &objectstore.Tree{}
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		n := nodes[name]
		if n.leaf != nil {
			tree.Entries = append(tree.Entries, objectstore.TreeEntry{Name: name, Mode: n.leaf.Mode, ID: n.leaf.ID})
			continue
		}
		childID, err := buildSubtree(store, dir+"/"+name, groupByTopLevel(n.children))
		if err != nil {
			return hash.TreeID{}, err
		}
		tree.Entries = append(tree.Entries, objectstore.TreeEntry{Name: name, Mode: objectstore.ModeTree, ID: hash.ID(childID)})
	}
	return store.WriteTree(tree)
}
