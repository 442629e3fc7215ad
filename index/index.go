// Package index maintains the dense, topologically ordered commit index:
// for every indexed commit, a Position, its CommitId and ChangeId, a
// generation number, and its parents' positions. The index is layered, a
// read-only base segment plus a stack of in-memory segments added since,
// and lookups probe newest-to-oldest exactly as the object store's backend
// layers a remote read-only store beneath a local mutable one.
package index

import (
	"fmt"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/objectstore"
)

// Position is a dense integer assigned in topological order: every parent's
// Position is smaller than any of its children's.
type Position uint32

// Entry is one indexed commit's row.
type Entry struct {
	Position   Position
	CommitID   hash.CommitID
	ChangeID   hash.ChangeID
	Generation uint32
	Parents    []Position
}

// Segment is one contiguous range of the global position space.
type Segment interface {
	Start() Position
	Len() int
	EntryAt(pos Position) (Entry, bool)
	PositionOf(id hash.CommitID) (Position, bool)
	ChangePositions(id hash.ChangeID) []Position
}

// Index is the layered commit index: an optional disk-backed base segment
// plus zero or more in-memory segments stacked on top, newest last.
type Index struct {
	store    *objectstore.Store
	segments []Segment
	group    singleflight.Group
}

// Open builds an Index over store with no segments indexed yet; call
// EnsureIndexed to populate it from a set of head commits.
func Open(store *objectstore.Store) *Index {
	return &Index{store: store}
}

// OpenWithBase builds an Index whose oldest segment is a previously built
// on-disk base segment.
func OpenWithBase(store *objectstore.Store, base Segment) *Index {
	idx := &Index{store: store}
	if base != nil {
		idx.segments = append(idx.segments, base)
	}
	return idx
}

func (idx *Index) nextPosition() Position {
	if len(idx.segments) == 0 {
		return 0
	}
	last := idx.segments[len(idx.segments)-1]
	return last.Start() + Position(last.Len())
}

// Len is the total number of indexed commits across every segment.
func (idx *Index) Len() int {
	return int(idx.nextPosition())
}

// GetPosition returns the position of id, probing segments newest-to-oldest.
func (idx *Index) GetPosition(id hash.CommitID) (Position, bool) {
	for i := len(idx.segments) - 1; i >= 0; i-- {
		if pos, ok := idx.segments[i].PositionOf(id); ok {
			return pos, true
		}
	}
	return 0, false
}

// EntryByPosition returns the full row for pos.
func (idx *Index) EntryByPosition(pos Position) (Entry, bool) {
	for i := len(idx.segments) - 1; i >= 0; i-- {
		seg := idx.segments[i]
		if pos >= seg.Start() && pos < seg.Start()+Position(seg.Len()) {
			return seg.EntryAt(pos)
		}
	}
	return Entry{}, false
}

func (idx *Index) entryByCommitID(id hash.CommitID) (Entry, bool) {
	pos, ok := idx.GetPosition(id)
	if !ok {
		return Entry{}, false
	}
	return idx.EntryByPosition(pos)
}

// IsAncestor reports whether a is an ancestor of (or equal to) b, found by a
// generation-bounded backward BFS from b.
func (idx *Index) IsAncestor(a, b hash.CommitID) (bool, error) {
	aEntry, ok := idx.entryByCommitID(a)
	if !ok {
		return false, fmt.Errorf("index: unindexed commit %s", a)
	}
	bEntry, ok := idx.entryByCommitID(b)
	if !ok {
		return false, fmt.Errorf("index: unindexed commit %s", b)
	}
	if aEntry.Position == bEntry.Position {
		return true, nil
	}
	if aEntry.Generation > bEntry.Generation {
		return false, nil
	}

	visited := map[Position]bool{bEntry.Position: true}
	frontier := []Position{bEntry.Position}
	for len(frontier) > 0 {
		var next []Position
		for _, pos := range frontier {
			if pos == aEntry.Position {
				return true, nil
			}
			entry, ok := idx.EntryByPosition(pos)
			if !ok {
				continue
			}
			if entry.Generation <= aEntry.Generation && pos != aEntry.Position {
				continue
			}
			for _, p := range entry.Parents {
				if !visited[p] {
					visited[p] = true
					next = append(next, p)
				}
			}
		}
		frontier = next
	}
	return false, nil
}

// ResolveCommitIdPrefix resolves a hex prefix to the unique matching commit
// id. Ambiguous or unmatched prefixes return an error.
func (idx *Index) ResolveCommitIdPrefix(prefix string) (hash.CommitID, error) {
	var match hash.CommitID
	found := 0
	for pos := Position(0); pos < Position(idx.Len()); pos++ {
		entry, ok := idx.EntryByPosition(pos)
		if !ok {
			continue
		}
		if hasHexPrefix(entry.CommitID.String(), prefix) {
			match = entry.CommitID
			found++
			if found > 1 {
				return hash.CommitID{}, fmt.Errorf("index: ambiguous commit id prefix %q", prefix)
			}
		}
	}
	if found == 0 {
		return hash.CommitID{}, fmt.Errorf("index: no commit matches prefix %q", prefix)
	}
	return match, nil
}

// ResolveChangeIdPrefix returns every commit id whose change id matches
// prefix; a change id can name more than one commit across rewrites.
func (idx *Index) ResolveChangeIdPrefix(prefix string) ([]hash.CommitID, error) {
	var out []hash.CommitID
	for pos := Position(0); pos < Position(idx.Len()); pos++ {
		entry, ok := idx.EntryByPosition(pos)
		if !ok {
			continue
		}
		if hasHexPrefix(entry.ChangeID.String(), prefix) {
			out = append(out, entry.CommitID)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("index: no commit matches change id prefix %q", prefix)
	}
	return out, nil
}

func hasHexPrefix(full, prefix string) bool {
	if len(prefix) > len(full) {
		return false
	}
	return full[:len(prefix)] == prefix
}

// Heads returns the elements of input that have no descendant also in
// input.
func (idx *Index) Heads(input []hash.CommitID) ([]hash.CommitID, error) {
	var out []hash.CommitID
	for _, c := range input {
		isHead := true
		for _, other := range input {
			if other == c {
				continue
			}
			anc, err := idx.IsAncestor(c, other)
			if err != nil {
				return nil, err
			}
			if anc {
				isHead = false
				break
			}
		}
		if isHead {
			out = append(out, c)
		}
	}
	return out, nil
}

// AllCommitIDs returns every indexed commit id, in position-descending
// order.
func (idx *Index) AllCommitIDs() []hash.CommitID {
	out := make([]hash.CommitID, 0, idx.Len())
	for pos := Position(idx.Len()) - 1; pos >= 0 && pos < Position(idx.Len()); pos-- {
		if entry, ok := idx.EntryByPosition(pos); ok {
			out = append(out, entry.CommitID)
		}
	}
	return out
}

// Roots returns the elements of input that have no ancestor also in
// input, the dual of Heads.
func (idx *Index) Roots(input []hash.CommitID) ([]hash.CommitID, error) {
	var out []hash.CommitID
	for _, c := range input {
		isRoot := true
		for _, other := range input {
			if other == c {
				continue
			}
			anc, err := idx.IsAncestor(other, c)
			if err != nil {
				return nil, err
			}
			if anc {
				isRoot = false
				break
			}
		}
		if isRoot {
			out = append(out, c)
		}
	}
	return out, nil
}

// CommonAncestors returns the heads of the set of commits that are
// ancestors of every id in both aSet and bSet.
func (idx *Index) CommonAncestors(aSet, bSet []hash.CommitID) ([]hash.CommitID, error) {
	aAnc, err := idx.ancestorPositions(aSet)
	if err != nil {
		return nil, err
	}
	bAnc, err := idx.ancestorPositions(bSet)
	if err != nil {
		return nil, err
	}
	var common []hash.CommitID
	for pos := range aAnc {
		if bAnc[pos] {
			entry, ok := idx.EntryByPosition(pos)
			if !ok {
				continue
			}
			common = append(common, entry.CommitID)
		}
	}
	return idx.Heads(common)
}

func (idx *Index) ancestorPositions(ids []hash.CommitID) (map[Position]bool, error) {
	visited := map[Position]bool{}
	var frontier []Position
	for _, id := range ids {
		entry, ok := idx.entryByCommitID(id)
		if !ok {
			return nil, fmt.Errorf("index: unindexed commit %s", id)
		}
		if !visited[entry.Position] {
			visited[entry.Position] = true
			frontier = append(frontier, entry.Position)
		}
	}
	for len(frontier) > 0 {
		var next []Position
		for _, pos := range frontier {
			entry, ok := idx.EntryByPosition(pos)
			if !ok {
				continue
			}
			for _, p := range entry.Parents {
				if !visited[p] {
					visited[p] = true
					next = append(next, p)
				}
			}
		}
		frontier = next
	}
	return visited, nil
}

// WalkRevs returns the commits reachable from wanted but not from unwanted,
// in stable position-descending (newest first) order.
func (idx *Index) WalkRevs(wanted, unwanted []hash.CommitID) ([]hash.CommitID, error) {
	wantedAnc, err := idx.ancestorPositions(wanted)
	if err != nil {
		return nil, err
	}
	unwantedAnc, err := idx.ancestorPositions(unwanted)
	if err != nil {
		return nil, err
	}
	var positions []Position
	for pos := range wantedAnc {
		if !unwantedAnc[pos] {
			positions = append(positions, pos)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] > positions[j] })

	out := make([]hash.CommitID, 0, len(positions))
	for _, pos := range positions {
		entry, ok := idx.EntryByPosition(pos)
		if !ok {
			continue
		}
		out = append(out, entry.CommitID)
	}
	return out, nil
}

// EnsureIndexed incrementally extends the index so that every commit
// reachable from heads is indexed, building a new in-memory segment for
// whatever is missing. Concurrent calls requesting the same head set are
// coalesced via singleflight so a racing pair of callers only walks the
// graph once.
func (idx *Index) EnsureIndexed(heads []hash.CommitID) error {
	key := headsKey(heads)
	_, err, _ := idx.group.Do(key, func() (any, error) {
		return nil, idx.buildSegment(heads)
	})
	return err
}

func headsKey(heads []hash.CommitID) string {
	sorted := append([]hash.CommitID(nil), heads...)
	sort.Slice(sorted, func(i, j int) bool {
		return string(sorted[i][:]) < string(sorted[j][:])
	})
	buf := make([]byte, 0, len(sorted)*hash.Size)
	for _, id := range sorted {
		buf = append(buf, id[:]...)
	}
	return string(buf)
}

// Ancestors returns every commit reachable from ids by following parent
// edges (including ids themselves), in position-descending order.
func (idx *Index) Ancestors(ids []hash.CommitID) ([]hash.CommitID, error) {
	positions, err := idx.ancestorPositions(ids)
	if err != nil {
		return nil, err
	}
	return idx.commitIDsOf(positions), nil
}

// Descendants returns every commit that has some id in ids as an ancestor
// (including ids themselves), in position-descending order. Unlike
// Ancestors this walks forward over the whole index, since a segment only
// records parent edges; fine at the scale this index is built for.
func (idx *Index) Descendants(ids []hash.CommitID) ([]hash.CommitID, error) {
	var result []hash.CommitID
	for pos := Position(0); pos < Position(idx.Len()); pos++ {
		entry, ok := idx.EntryByPosition(pos)
		if !ok {
			continue
		}
		for _, id := range ids {
			if id == entry.CommitID {
				result = append(result, entry.CommitID)
				break
			}
			anc, err := idx.IsAncestor(id, entry.CommitID)
			if err != nil {
				return nil, err
			}
			if anc {
				result = append(result, entry.CommitID)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		pi, _ := idx.GetPosition(result[i])
		pj, _ := idx.GetPosition(result[j])
		return pi > pj
	})
	return result, nil
}

func (idx *Index) commitIDsOf(positions map[Position]bool) []hash.CommitID {
	ordered := make([]Position, 0, len(positions))
	for pos := range positions {
		ordered = append(ordered, pos)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] > ordered[j] })
	out := make([]hash.CommitID, 0, len(ordered))
	for _, pos := range ordered {
		if entry, ok := idx.EntryByPosition(pos); ok {
			out = append(out, entry.CommitID)
		}
	}
	return out
}

// AllEntries returns every indexed entry across all segments, in position
// order; the input EncodeBaseSegment needs to flatten the layered index
// back into a single persisted segment.
func (idx *Index) AllEntries() []Entry {
	out := make([]Entry, 0, idx.Len())
	for pos := Position(0); pos < Position(idx.Len()); pos++ {
		if entry, ok := idx.EntryByPosition(pos); ok {
			out = append(out, entry)
		}
	}
	return out
}

func (idx *Index) buildSegment(heads []hash.CommitID) error {
	missing := map[hash.CommitID]*objectstore.Commit{}
	order := []hash.CommitID{}

	var visit func(id hash.CommitID) error
	visited := map[hash.CommitID]bool{}
	visit = func(id hash.CommitID) error {
		if visited[id] {
			return nil
		}
		visited[id] = true
		if _, ok := idx.GetPosition(id); ok {
			return nil
		}
		commit, err := idx.store.GetCommit(id)
		if err != nil {
			return err
		}
		for _, p := range commit.Parents {
			if err := visit(p); err != nil {
				return err
			}
		}
		missing[id] = commit
		order = append(order, id)
		return nil
	}
	for _, h := range heads {
		if err := visit(h); err != nil {
			return err
		}
	}
	if len(order) == 0 {
		return nil
	}

	seg := newMemSegment(idx.nextPosition())
	for _, id := range order {
		commit := missing[id]
		generation := uint32(0)
		parents := make([]Position, 0, len(commit.Parents))
		for _, p := range commit.Parents {
			ppos, ok := idx.GetPosition(p)
			if !ok {
				ppos, ok = seg.PositionOf(p)
				if !ok {
					return fmt.Errorf("index: parent %s indexed out of order", p)
				}
			}
			parents = append(parents, ppos)
			pentry, ok := idx.EntryByPosition(ppos)
			if !ok {
				pentry, ok = seg.EntryAt(ppos)
			}
			if ok && pentry.Generation+1 > generation {
				generation = pentry.Generation + 1
			}
		}
		seg.append(Entry{
			CommitID:   id,
			ChangeID:   commit.ChangeID,
			Generation: generation,
			Parents:    parents,
		})
	}
	idx.segments = append(idx.segments, seg)
	return nil
}
