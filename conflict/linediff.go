package conflict

// Operation tags one element of a line-level diff.
type Operation int8

const (
	opDelete Operation = -1
	opEqual  Operation = 0
	opInsert Operation = 1
)

// Change is a single diff hunk: Del lines starting at P1 in the "before"
// sequence were replaced by Ins lines starting at P2 in the "after"
// sequence. Mirrors the teacher's diferenco.Change shape.
type Change struct {
	P1  int
	P2  int
	Del int
	Ins int
}

// diffLines computes the Change hunks turning a into b via a classic LCS
// dynamic program over line tokens. This plays the role the teacher fills
// with modules/diferenco's histogram/patience/onp algorithms; a DP LCS is
// used here instead of porting Myers bidirectional search, trading some
// performance on very large files for an implementation that is easy to
// verify against the roundtrip property conflict materialization depends
// on.
func diffLines(a, b []string) []Change {
	n, m := len(a), len(b)
	// lcs[i][j] = length of the LCS of a[i:] and b[j:].
	lcs := make([][]int32, n+1)
	for i := range lcs {
		lcs[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var changes []Change
	i, j := 0, 0
	for i < n && j < m {
		if a[i] == b[j] {
			i++
			j++
			continue
		}
		startI, startJ := i, j
		for i < n && j < m && a[i] != b[j] {
			if lcs[i+1][j] >= lcs[i][j+1] {
				i++
			} else {
				j++
			}
		}
		changes = append(changes, Change{P1: startI, P2: startJ, Del: i - startI, Ins: j - startJ})
	}
	if i < n {
		changes = append(changes, Change{P1: i, P2: j, Del: n - i, Ins: 0})
		i = n
	}
	if j < m {
		changes = append(changes, Change{P1: i, P2: j, Del: 0, Ins: m - j})
	}
	return mergeAdjacent(changes)
}

func mergeAdjacent(changes []Change) []Change {
	if len(changes) < 2 {
		return changes
	}
	out := changes[:1]
	for _, c := range changes[1:] {
		last := &out[len(out)-1]
		if last.P1+last.Del == c.P1 && last.P2+last.Ins == c.P2 {
			last.Del += c.Del
			last.Ins += c.Ins
			continue
		}
		out = append(out, c)
	}
	return out
}
