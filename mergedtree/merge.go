package mergedtree

import (
	"fmt"

	"github.com/antgroup/zit/conflict"
	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
	"github.com/antgroup/zit/objectstore"
)

func treeIDEqual(a, b hash.TreeID) bool { return a == b }

// Merge produces a new MergedTree representing the three-way merge of t
// (treated as one side), other (the other side) and base (their common
// ancestor). No physical tree is written: the result is the algebraic
// flattening of the three root merges, via the same Flatten/Simplify
// identities merge.Merge itself provides. Resolve materializes the result
// into real Tree/Conflict objects on demand.
func (t *MergedTree) Merge(other, base *MergedTree) (*MergedTree, error) {
	if t.store != other.store || t.store != base.store {
		return nil, fmt.Errorf("mergedtree: merge operands must share a store")
	}
	outer := merge.FromAddsRemoves(
		[]merge.Merge[hash.TreeID]{t.trees, other.trees},
		[]merge.Merge[hash.TreeID]{base.trees},
	)
	flat := merge.Simplify(merge.Flatten(outer), treeIDEqual)
	return New(t.store, flat), nil
}

// Resolve walks the whole tree and writes out a fully materialized tree
// graph: paths whose per-term values resolve trivially, or whose file
// content merges cleanly by a line-level three-way merge, become ordinary
// Tree entries; everything else is stored as a Conflict object, matching
// §4.4's "if that fails, the conflict is preserved".
func (t *MergedTree) Resolve() (hash.TreeID, error) {
	return t.resolveDir(rootTerms(t.trees))
}

type treeEntry struct {
	name string
	mode objectstore.FileMode
	id   hash.ID
}

func (t *MergedTree) resolveDir(terms merge.Merge[merge.Option[TreeValue]]) (hash.TreeID, error) {
	names := make(map[string]struct{})
	for _, term := range terms.Terms() {
		v, present := term.Get()
		if !present || v.Mode != objectstore.ModeTree {
			continue
		}
		tree, err := t.store.GetTree(hash.TreeID(v.ID))
		if err != nil {
			return hash.TreeID{}, err
		}
		for _, e := range tree.Entries {
			names[e.Name] = struct{}{}
		}
	}

	var entries []treeEntry
	for name := range names {
		childTerms, err := t.descend(terms, name)
		if err != nil {
			return hash.TreeID{}, err
		}
		resolved, ok := merge.ResolveTrivial(childTerms, treeValueEqual)
		if !ok && len(childTerms.Terms()) == 3 {
			// Both sides made the same change to this path.
			a0, _ := childTerms.GetAdd(0)
			a1, _ := childTerms.GetAdd(1)
			if treeValueEqual(a0, a1) {
				resolved, ok = a0, true
			}
		}
		if ok {
			if v, present := resolved.Get(); present {
				entries = append(entries, treeEntry{name: name, mode: v.Mode, id: v.ID})
			}
			continue
		}
		entry, err := t.resolveConflictedPath(name, childTerms)
		if err != nil {
			return hash.TreeID{}, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	return t.writeTree(entries)
}

// resolveConflictedPath handles one path whose terms did not trivially
// resolve: directories recurse (a pure directory-structure conflict, where
// every present term is a tree, still merges by merging the children);
// exactly-two-sided file content is attempted via a line-level 3-way merge;
// everything else is stored as a Conflict object.
func (t *MergedTree) resolveConflictedPath(name string, terms merge.Merge[merge.Option[TreeValue]]) (*treeEntry, error) {
	if allTreesOrAbsent(terms) && anyPresent(terms) {
		subID, err := t.resolveDir(terms)
		if err != nil {
			return nil, err
		}
		return &treeEntry{name: name, mode: objectstore.ModeTree, id: hash.ID(subID)}, nil
	}

	if merged, ok := t.tryMergeFileContent(terms); ok {
		fileID, err := t.store.WriteFile(&objectstore.File{Content: merged})
		if err != nil {
			return nil, err
		}
		return &treeEntry{name: name, mode: objectstore.ModeFile, id: hash.ID(fileID)}, nil
	}

	conflictID, err := t.store.WriteConflict(&objectstore.Conflict{Terms: terms})
	if err != nil {
		return nil, err
	}
	return &treeEntry{name: name, mode: objectstore.ModeConflict, id: hash.ID(conflictID)}, nil
}

func allTreesOrAbsent(terms merge.Merge[merge.Option[TreeValue]]) bool {
	for _, term := range terms.Terms() {
		if v, present := term.Get(); present && v.Mode != objectstore.ModeTree {
			return false
		}
	}
	return true
}

// tryMergeFileContent attempts the classic base/side-a/side-b line-level
// merge for the case terms is exactly a 3-term (one base, two sides) merge
// and every present term is a regular file.
func (t *MergedTree) tryMergeFileContent(terms merge.Merge[merge.Option[TreeValue]]) ([]byte, bool) {
	if len(terms.Terms()) != 3 {
		return nil, false
	}
	aOpt, _ := terms.GetAdd(0)
	baseOpt, _ := terms.GetRemove(0)
	bOpt, _ := terms.GetAdd(1)

	a, aOk := aOpt.Get()
	base, baseOk := baseOpt.Get()
	b, bOk := bOpt.Get()
	if !aOk || !baseOk || !bOk {
		return nil, false
	}
	if a.Mode != objectstore.ModeFile || base.Mode != objectstore.ModeFile || b.Mode != objectstore.ModeFile {
		return nil, false
	}

	aFile, err := t.store.GetFile(hash.FileID(a.ID))
	if err != nil {
		return nil, false
	}
	baseFile, err := t.store.GetFile(hash.FileID(base.ID))
	if err != nil {
		return nil, false
	}
	bFile, err := t.store.GetFile(hash.FileID(b.ID))
	if err != nil {
		return nil, false
	}
	return conflict.MergeContent(baseFile.Content, aFile.Content, bFile.Content)
}

func (t *MergedTree) writeTree(entries []treeEntry) (hash.TreeID, error) {
	te := make([]objectstore.TreeEntry, 0, len(entries))
	for _, e := range entries {
		te = append(te, objectstore.TreeEntry{Name: e.name, Mode: e.mode, ID: e.id})
	}
	return t.store.WriteTree(&objectstore.Tree{Entries: te})
}
