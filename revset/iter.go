package revset

import "github.com/antgroup/zit/hash"

// RevsetIter yields a position-descending commit id stream. It is
// restartable: evaluation already materializes the full ordered id list
// (the index this package targets is small enough that eager evaluation
// is simpler than a true lazy generator), so Restart just rewinds the
// cursor rather than re-evaluating anything.
type RevsetIter struct {
	ids []hash.CommitID
	pos int
}

// NewRevsetIter wraps an already-ordered id slice.
func NewRevsetIter(ids []hash.CommitID) *RevsetIter {
	return &RevsetIter{ids: ids}
}

// Next returns the next commit id, or ok=false once exhausted.
func (it *RevsetIter) Next() (hash.CommitID, bool) {
	if it.pos >= len(it.ids) {
		return hash.CommitID{}, false
	}
	id := it.ids[it.pos]
	it.pos++
	return id, true
}

// Restart rewinds the iterator to its first element.
func (it *RevsetIter) Restart() {
	it.pos = 0
}

// Len reports how many ids remain in the underlying set, regardless of
// cursor position.
func (it *RevsetIter) Len() int {
	return len(it.ids)
}

// All drains every remaining id without advancing past the end,
// restarting first so a prior partial iteration doesn't truncate it.
func (it *RevsetIter) All() []hash.CommitID {
	it.Restart()
	out := make([]hash.CommitID, len(it.ids))
	copy(out, it.ids)
	it.pos = len(it.ids)
	return out
}

// Bisect returns the median element of ids by position (the element at
// index len/2 of the already position-descending slice).
func Bisect(ids []hash.CommitID) (hash.CommitID, bool) {
	if len(ids) == 0 {
		return hash.CommitID{}, false
	}
	return ids[len(ids)/2], true
}
