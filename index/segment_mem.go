package index

import (
	"github.com/emirpasic/gods/v2/trees/redblacktree"

	"github.com/antgroup/zit/hash"
)

// memSegment is the mutable, append-only segment covering the commits
// added since the index was last persisted. Lookups by commit id and
// change id go through a red-black tree keyed by hex string, the same
// ordered-map role the on-disk base segment fills with a sorted array and
// fanout table.
type memSegment struct {
	start      Position
	entries    []Entry
	byCommit   *redblacktree.Tree[string, Position]
	byChangeID *redblacktree.Tree[string, []Position]
}

func newMemSegment(start Position) *memSegment {
	return &memSegment{
		start:      start,
		byCommit:   redblacktree.NewWithStringComparator[Position](),
		byChangeID: redblacktree.NewWithStringComparator[[]Position](),
	}
}

func (s *memSegment) append(e Entry) {
	e.Position = s.start + Position(len(s.entries))
	s.entries = append(s.entries, e)
	s.byCommit.Put(e.CommitID.String(), e.Position)
	existing, _ := s.byChangeID.Get(e.ChangeID.String())
	s.byChangeID.Put(e.ChangeID.String(), append(existing, e.Position))
}

func (s *memSegment) Start() Position { return s.start }
func (s *memSegment) Len() int        { return len(s.entries) }

func (s *memSegment) EntryAt(pos Position) (Entry, bool) {
	if pos < s.start || int(pos-s.start) >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[pos-s.start], true
}

func (s *memSegment) PositionOf(id hash.CommitID) (Position, bool) {
	return s.byCommit.Get(id.String())
}

func (s *memSegment) ChangePositions(id hash.ChangeID) []Position {
	positions, _ := s.byChangeID.Get(id.String())
	return positions
}
