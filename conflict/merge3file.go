package conflict

// MergeContent runs a classic two-sided, one-base line-level 3-way merge over
// whole file contents, for the common case a tree merge hits when a path was
// edited on (at most) two sides relative to a shared base. It reports ok=false
// if any hunk conflicts, leaving resolution to the caller (typically: keep the
// original terms and store a Conflict object).
func MergeContent(base, a, b []byte) (merged []byte, ok bool) {
	blocks := merge3(splitLines(base), splitLines(a), splitLines(b))
	var lines []string
	for _, blk := range blocks {
		if blk.conflict != nil {
			return nil, false
		}
		lines = append(lines, blk.ok...)
	}
	return joinLines(lines), true
}
