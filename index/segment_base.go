package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/antgroup/zit/hash"
)

// On-disk base segment layout, grounded on the fanout table plus sorted
// position rows the pack index uses for offset lookup by id: a magic and
// version header, a 256-entry cumulative fanout table over the first byte
// of the commit id (so a lookup only has to binary-search the bucket its
// first byte selects), then the commit-id-sorted rows, the position-order
// rows, and the change-id-sorted rows.
var baseSegmentMagic = [8]byte{'Z', 'I', 'T', 'I', 'D', 'X', 0, 1}

const baseSegmentFanoutEntries = 256

type baseSegment struct {
	start Position

	// commitSorted[i] and commitPositions[i] are parallel, sorted by
	// commitSorted[i] ascending.
	commitSorted    []hash.CommitID
	commitPositions []Position
	fanout          [baseSegmentFanoutEntries]uint32

	rows []Entry // indexed by local position (pos - start)

	changeSorted    []hash.ChangeID
	changePositions []Position // parallel to changeSorted
}

// EncodeBaseSegment writes entries, which must cover the dense position
// range 0..n-1, as a single immutable base segment, the "persisted" half of
// the layered index.
func EncodeBaseSegment(w io.Writer, entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	for i, e := range sorted {
		if int(e.Position) != i {
			return fmt.Errorf("index: entries must cover a dense 0..n position range")
		}
	}

	commitSorted := append([]Entry(nil), sorted...)
	sort.Slice(commitSorted, func(i, j int) bool {
		return bytes.Compare(commitSorted[i].CommitID[:], commitSorted[j].CommitID[:]) < 0
	})
	changeSorted := append([]Entry(nil), sorted...)
	sort.Slice(changeSorted, func(i, j int) bool {
		return bytes.Compare(changeSorted[i].ChangeID[:], changeSorted[j].ChangeID[:]) < 0
	})

	var fanout [baseSegmentFanoutEntries]uint32
	for _, e := range commitSorted {
		for b := int(e.CommitID[0]); b < baseSegmentFanoutEntries; b++ {
			fanout[b]++
		}
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(baseSegmentMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.BigEndian, uint32(len(sorted))); err != nil {
		return err
	}
	for _, c := range fanout {
		if err := binary.Write(bw, binary.BigEndian, c); err != nil {
			return err
		}
	}
	for _, e := range commitSorted {
		if _, err := bw.Write(e.CommitID[:]); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.BigEndian, uint32(e.Position)); err != nil {
			return err
		}
	}
	for _, e := range sorted {
		if _, err := bw.Write(e.CommitID[:]); err != nil {
			return err
		}
		if _, err := bw.Write(e.ChangeID[:]); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.BigEndian, e.Generation); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.BigEndian, uint32(len(e.Parents))); err != nil {
			return err
		}
		for _, p := range e.Parents {
			if err := binary.Write(bw, binary.BigEndian, uint32(p)); err != nil {
				return err
			}
		}
	}
	for _, e := range changeSorted {
		if _, err := bw.Write(e.ChangeID[:]); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.BigEndian, uint32(e.Position)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeBaseSegment reads back a segment written by EncodeBaseSegment,
// eagerly, unlike the teacher's pack index which defers row parsing until
// a lookup needs it; the commit graph an index covers is small enough
// relative to a pack that the simplicity is worth the memory.
func DecodeBaseSegment(r io.Reader, start Position) (*baseSegment, error) {
	br := bufio.NewReader(r)
	var magic [8]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("index: reading base segment header: %w", err)
	}
	if magic != baseSegmentMagic {
		return nil, fmt.Errorf("index: not a base segment")
	}
	var count uint32
	if err := binary.Read(br, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	seg := &baseSegment{start: start}
	for i := range seg.fanout {
		if err := binary.Read(br, binary.BigEndian, &seg.fanout[i]); err != nil {
			return nil, err
		}
	}

	seg.commitSorted = make([]hash.CommitID, count)
	seg.commitPositions = make([]Position, count)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, seg.commitSorted[i][:]); err != nil {
			return nil, err
		}
		var pos uint32
		if err := binary.Read(br, binary.BigEndian, &pos); err != nil {
			return nil, err
		}
		seg.commitPositions[i] = start + Position(pos)
	}

	seg.rows = make([]Entry, count)
	for i := uint32(0); i < count; i++ {
		var e Entry
		if _, err := io.ReadFull(br, e.CommitID[:]); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(br, e.ChangeID[:]); err != nil {
			return nil, err
		}
		if err := binary.Read(br, binary.BigEndian, &e.Generation); err != nil {
			return nil, err
		}
		var numParents uint32
		if err := binary.Read(br, binary.BigEndian, &numParents); err != nil {
			return nil, err
		}
		e.Parents = make([]Position, numParents)
		for j := range e.Parents {
			var p uint32
			if err := binary.Read(br, binary.BigEndian, &p); err != nil {
				return nil, err
			}
			e.Parents[j] = Position(p)
		}
		e.Position = start + Position(i)
		seg.rows[i] = e
	}

	seg.changeSorted = make([]hash.ChangeID, count)
	seg.changePositions = make([]Position, count)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, seg.changeSorted[i][:]); err != nil {
			return nil, err
		}
		var pos uint32
		if err := binary.Read(br, binary.BigEndian, &pos); err != nil {
			return nil, err
		}
		seg.changePositions[i] = start + Position(pos)
	}
	return seg, nil
}

func (s *baseSegment) Start() Position { return s.start }
func (s *baseSegment) Len() int        { return len(s.rows) }

func (s *baseSegment) EntryAt(pos Position) (Entry, bool) {
	if pos < s.start || int(pos-s.start) >= len(s.rows) {
		return Entry{}, false
	}
	return s.rows[pos-s.start], true
}

// bounds returns the [lo, hi) slice of commitSorted that id's first byte
// could fall within, from the fanout table, exactly as the pack index
// narrows its binary search.
func (s *baseSegment) bounds(firstByte byte) (int, int) {
	hi := int(s.fanout[firstByte])
	lo := 0
	if firstByte > 0 {
		lo = int(s.fanout[firstByte-1])
	}
	return lo, hi
}

func (s *baseSegment) PositionOf(id hash.CommitID) (Position, bool) {
	lo, hi := s.bounds(id[0])
	idx := sort.Search(hi-lo, func(i int) bool {
		return bytes.Compare(s.commitSorted[lo+i][:], id[:]) >= 0
	})
	idx += lo
	if idx >= hi || s.commitSorted[idx] != id {
		return 0, false
	}
	return s.commitPositions[idx], true
}

func (s *baseSegment) ChangePositions(id hash.ChangeID) []Position {
	lo := sort.Search(len(s.changeSorted), func(i int) bool {
		return bytes.Compare(s.changeSorted[i][:], id[:]) >= 0
	})
	var out []Position
	for i := lo; i < len(s.changeSorted) && s.changeSorted[i] == id; i++ {
		out = append(out, s.changePositions[i])
	}
	return out
}
