package conflict

import (
	"slices"
	"sort"
)

// block3 is one output element of a 3-way merge: either a run of lines all
// three sides agree belongs in the result ("ok"), or a conflicting region
// carrying each side's version of the same span.
type block3 struct {
	ok       []string
	conflict *conflict3
}

// conflict3 carries the three sides of one unresolved hunk, grounded on the
// teacher's diferenco.Conflict[E] shape (modules/diferenco/merge.go).
type conflict3 struct {
	a, o, b []string
}

type hunk3 struct {
	oLhs, side, oLen, abLhs, abLen int
}

// merge3Indices is the index-level half of the algorithm, adapted from
// diferenco.diff3MergeIndices: diff o-vs-a and o-vs-b independently, then
// walk both hunk lists together to find spans where only one side changed
// (auto-resolved) versus spans where both changed (a true conflict).
func merge3Indices(o, a, b []string) [][]int {
	m1 := diffLines(o, a)
	m2 := diffLines(o, b)

	var hunks []hunk3
	for _, h := range m1 {
		hunks = append(hunks, hunk3{oLhs: h.P1, side: 0, oLen: h.Del, abLhs: h.P2, abLen: h.Ins})
	}
	for _, h := range m2 {
		hunks = append(hunks, hunk3{oLhs: h.P1, side: 2, oLen: h.Del, abLhs: h.P2, abLen: h.Ins})
	}
	sort.Slice(hunks, func(i, j int) bool { return hunks[i].oLhs < hunks[j].oLhs })

	var result [][]int
	commonOffset := 0
	copyCommon := func(target int) {
		if target > commonOffset {
			result = append(result, []int{1, commonOffset, target - commonOffset})
			commonOffset = target
		}
	}

	for idx := 0; idx < len(hunks); idx++ {
		first := idx
		h := hunks[idx]
		lhs := h.oLhs
		rhs := lhs + h.oLen
		for idx < len(hunks)-1 {
			next := hunks[idx+1]
			if next.oLhs > rhs {
				break
			}
			if end := next.oLhs + next.oLen; end > rhs {
				rhs = end
			}
			idx++
		}
		copyCommon(lhs)
		if first == idx {
			if h.abLen > 0 {
				result = append(result, []int{h.side, h.abLhs, h.abLen})
			}
		} else {
			// Merge the overlapping hunks into one conflict region spanning
			// both a's and b's coordinate space.
			aLhs, aRhs := len(a), -1
			bLhs, bRhs := len(b), -1
			for i := first; i <= idx; i++ {
				hh := hunks[i]
				oL, oR := hh.oLhs, hh.oLhs+hh.oLen
				abL, abR := hh.abLhs, hh.abLhs+hh.abLen
				if hh.side == 0 {
					al := abL - (oL - lhs)
					ar := abR + (rhs - oR)
					if al < aLhs {
						aLhs = al
					}
					if ar > aRhs {
						aRhs = ar
					}
				} else {
					bl := abL - (oL - lhs)
					br := abR + (rhs - oR)
					if bl < bLhs {
						bLhs = bl
					}
					if br > bRhs {
						bRhs = br
					}
				}
			}
			if aRhs < 0 {
				aLhs, aRhs = lhs, rhs
			}
			if bRhs < 0 {
				bLhs, bRhs = lhs, rhs
			}
			if aLhs < 0 {
				aLhs = 0
			}
			if bLhs < 0 {
				bLhs = 0
			}
			if aRhs > len(a) {
				aRhs = len(a)
			}
			if bRhs > len(b) {
				bRhs = len(b)
			}
			result = append(result, []int{-1, aLhs, aRhs - aLhs, lhs, rhs - lhs, bLhs, bRhs - bLhs})
		}
		commonOffset = rhs
	}
	copyCommon(len(o))
	return result
}

// merge3 runs merge3Indices and materializes each region into a block3,
// ported from diferenco.Diff3Merge.
func merge3(o, a, b []string) []*block3 {
	var out []*block3
	files := [][]string{a, o, b}
	var okLines []string
	flush := func() {
		if len(okLines) != 0 {
			cp := append([]string(nil), okLines...)
			out = append(out, &block3{ok: cp})
		}
		okLines = nil
	}
	for _, rec := range merge3Indices(o, a, b) {
		side := rec[0]
		if side == -1 {
			// Both sides made the same change: not a real conflict.
			if slices.Equal(a[rec[1]:rec[1]+rec[2]], b[rec[5]:rec[5]+rec[6]]) {
				okLines = append(okLines, a[rec[1]:rec[1]+rec[2]]...)
				continue
			}
			flush()
			out = append(out, &block3{conflict: &conflict3{
				a: append([]string(nil), a[rec[1]:rec[1]+rec[2]]...),
				o: append([]string(nil), o[rec[3]:rec[3]+rec[4]]...),
				b: append([]string(nil), b[rec[5]:rec[5]+rec[6]]...),
			}})
			continue
		}
		okLines = append(okLines, files[side][rec[1]:rec[1]+rec[2]]...)
	}
	flush()
	return out
}
