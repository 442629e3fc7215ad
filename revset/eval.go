package revset

import (
	"sort"
	"time"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/index"
)

// CommitIndex is the subset of *index.Index evaluation needs, named so
// tests can substitute a stub.
type CommitIndex interface {
	AllCommitIDs() []hash.CommitID
	Ancestors(ids []hash.CommitID) ([]hash.CommitID, error)
	Descendants(ids []hash.CommitID) ([]hash.CommitID, error)
	Heads(ids []hash.CommitID) ([]hash.CommitID, error)
	Roots(ids []hash.CommitID) ([]hash.CommitID, error)
	GetPosition(id hash.CommitID) (index.Position, bool)
	EntryByPosition(pos index.Position) (index.Entry, bool)
}

var _ CommitIndex = (*index.Index)(nil)

// CommitterTimes supplies the committer timestamp Latest sorts by.
type CommitterTimes interface {
	CommitterTime(id hash.CommitID) (time.Time, error)
}

// Evaluate runs the full resolve/lower/optimize/evaluate pipeline over
// expr and returns the resulting commit ids as a RevsetIter, in
// position-descending order.
func Evaluate(expr Expr, resolver SymbolResolver, idx CommitIndex, times CommitterTimes) (*RevsetIter, error) {
	resolved, err := ResolveSymbols(expr, resolver)
	if err != nil {
		return nil, err
	}
	lowered := Lower(resolved)
	optimized := Optimize(lowered)

	ids, err := evalSet(optimized, idx, times)
	if err != nil {
		return nil, err
	}
	sortByPositionDescending(ids, idx)
	return NewRevsetIter(ids), nil
}

func evalSet(expr Expr, idx CommitIndex, times CommitterTimes) ([]hash.CommitID, error) {
	switch e := expr.(type) {
	case CommitSet:
		return append([]hash.CommitID(nil), e.IDs...), nil
	case All:
		return idx.AllCommitIDs(), nil
	case None:
		return nil, nil
	case Ancestors:
		of, err := evalSet(e.Of, idx, times)
		if err != nil {
			return nil, err
		}
		if e.Depth < 0 {
			return idx.Ancestors(of)
		}
		return boundedAncestors(idx, of, e.Depth)
	case Descendants:
		of, err := evalSet(e.Of, idx, times)
		if err != nil {
			return nil, err
		}
		if e.Depth < 0 {
			return idx.Descendants(of)
		}
		return boundedDescendants(idx, of, e.Depth)
	case Union:
		a, err := evalSet(e.A, idx, times)
		if err != nil {
			return nil, err
		}
		b, err := evalSet(e.B, idx, times)
		if err != nil {
			return nil, err
		}
		return setUnion(a, b), nil
	case Intersect:
		a, err := evalSet(e.A, idx, times)
		if err != nil {
			return nil, err
		}
		b, err := evalSet(e.B, idx, times)
		if err != nil {
			return nil, err
		}
		return setIntersect(a, b), nil
	case Difference:
		a, err := evalSet(e.A, idx, times)
		if err != nil {
			return nil, err
		}
		b, err := evalSet(e.B, idx, times)
		if err != nil {
			return nil, err
		}
		return setDifference(a, b), nil
	case Heads:
		of, err := evalSet(e.Of, idx, times)
		if err != nil {
			return nil, err
		}
		return idx.Heads(of)
	case Roots:
		of, err := evalSet(e.Of, idx, times)
		if err != nil {
			return nil, err
		}
		return idx.Roots(of)
	case Latest:
		of, err := evalSet(e.Of, idx, times)
		if err != nil {
			return nil, err
		}
		return latest(of, e.N, times)
	default:
		return nil, errUnknownNode(expr)
	}
}

func boundedAncestors(idx CommitIndex, ids []hash.CommitID, depth int) ([]hash.CommitID, error) {
	frontier := append([]hash.CommitID(nil), ids...)
	visited := toSet(ids)
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []hash.CommitID
		for _, id := range frontier {
			pos, ok := idx.GetPosition(id)
			if !ok {
				continue
			}
			entry, ok := idx.EntryByPosition(pos)
			if !ok {
				continue
			}
			for _, ppos := range entry.Parents {
				pentry, ok := idx.EntryByPosition(ppos)
				if !ok {
					continue
				}
				if !visited[pentry.CommitID] {
					visited[pentry.CommitID] = true
					next = append(next, pentry.CommitID)
				}
			}
		}
		frontier = next
	}
	return fromSet(visited), nil
}

func boundedDescendants(idx CommitIndex, ids []hash.CommitID, depth int) ([]hash.CommitID, error) {
	full, err := idx.Descendants(ids)
	if err != nil {
		return nil, err
	}
	// Descendants has no native depth bound; approximate by keeping every
	// id within `depth` generations of the nearest seed, computed via
	// repeated ancestor-distance checks against the seed set.
	if depth < 0 {
		return full, nil
	}
	out := make([]hash.CommitID, 0, len(full))
	seeds := toSet(ids)
	for _, id := range full {
		if seeds[id] {
			out = append(out, id)
			continue
		}
		within, err := withinDepth(idx, ids, id, depth)
		if err != nil {
			return nil, err
		}
		if within {
			out = append(out, id)
		}
	}
	return out, nil
}

func withinDepth(idx CommitIndex, seeds []hash.CommitID, target hash.CommitID, depth int) (bool, error) {
	anc, err := boundedAncestors(idx, []hash.CommitID{target}, depth)
	if err != nil {
		return false, err
	}
	seedSet := toSet(seeds)
	for _, id := range anc {
		if seedSet[id] {
			return true, nil
		}
	}
	return false, nil
}

func toSet(ids []hash.CommitID) map[hash.CommitID]bool {
	out := make(map[hash.CommitID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func fromSet(set map[hash.CommitID]bool) []hash.CommitID {
	out := make([]hash.CommitID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func setUnion(a, b []hash.CommitID) []hash.CommitID {
	set := toSet(a)
	for _, id := range b {
		set[id] = true
	}
	return fromSet(set)
}

func setIntersect(a, b []hash.CommitID) []hash.CommitID {
	bs := toSet(b)
	var out []hash.CommitID
	for _, id := range a {
		if bs[id] {
			out = append(out, id)
		}
	}
	return out
}

func setDifference(a, b []hash.CommitID) []hash.CommitID {
	bs := toSet(b)
	var out []hash.CommitID
	for _, id := range a {
		if !bs[id] {
			out = append(out, id)
		}
	}
	return out
}

func latest(ids []hash.CommitID, n int, times CommitterTimes) ([]hash.CommitID, error) {
	type stamped struct {
		id hash.CommitID
		at time.Time
	}
	all := make([]stamped, 0, len(ids))
	for _, id := range ids {
		when, err := times.CommitterTime(id)
		if err != nil {
			return nil, err
		}
		all = append(all, stamped{id: id, at: when})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.After(all[j].at) })
	if n < len(all) {
		all = all[:n]
	}
	out := make([]hash.CommitID, len(all))
	for i, s := range all {
		out[i] = s.id
	}
	return out, nil
}

func sortByPositionDescending(ids []hash.CommitID, idx CommitIndex) {
	sort.Slice(ids, func(i, j int) bool {
		pi, _ := idx.GetPosition(ids[i])
		pj, _ := idx.GetPosition(ids[j])
		return pi > pj
	})
}

func errUnknownNode(expr Expr) error {
	return &unknownNodeError{expr: expr}
}

type unknownNodeError struct{ expr Expr }

func (e *unknownNodeError) Error() string {
	return exprString(e.expr) + ": unknown revset node"
}
