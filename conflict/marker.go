// Package conflict renders and parses the textual conflict markers used to
// materialize an unresolved file-content Merge into a working-copy file, and
// to parse user edits back into one.
package conflict

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antgroup/zit/merge"
)

// Style selects how an unresolved Merge is rendered to text.
type Style int

const (
	// StyleDiff renders a two-sided conflict as a diff from the base to the
	// first side, followed by a full snapshot of the second side. This is
	// the default: it reads like a patch, which is usually what a person
	// resolving a merge wants to see.
	StyleDiff Style = iota
	// StyleSnapshot always renders every side in full, with no diffing.
	// Used automatically whenever a side is absent (an add/delete conflict)
	// or the conflict has more than two sides.
	StyleSnapshot
	// StyleGit renders the classic two-way <<<<<<</|||||||/=======/>>>>>>>
	// markers. Only valid for a two-sided conflict.
	StyleGit
)

const minMarkerLen = 7

var markerChars = []byte{'<', '%', '+', '|', '='}

// Materialize renders an unresolved Merge of file contents as a single byte
// slice carrying conflict markers, or returns the resolved content unchanged
// if the merge has already collapsed.
func Materialize(m merge.Merge[merge.Option[[]byte]], style Style) []byte {
	if v, ok := m.AsResolved(); ok {
		content, _ := v.Get()
		return content
	}

	adds := m.Adds()
	removes := m.Removes()
	if anyAbsent(adds) || anyAbsent(removes) {
		style = StyleSnapshot
	}
	if len(adds) != 2 {
		style = StyleSnapshot
	}

	markerLen := chooseMarkerLen(adds, removes)

	switch style {
	case StyleGit:
		return materializeGit(adds[0], removes[0], adds[1], markerLen)
	case StyleDiff:
		return materializeDiff(adds[0], removes[0], adds[1], markerLen)
	default:
		return materializeSnapshot(adds, removes, markerLen)
	}
}

func anyAbsent(opts []merge.Option[[]byte]) bool {
	for _, o := range opts {
		if !o.IsPresent() {
			return true
		}
	}
	return false
}

// chooseMarkerLen returns the shortest marker length >= minMarkerLen such
// that no present side's content contains a line that would be confused with
// a marker line of that length.
func chooseMarkerLen(adds, removes []merge.Option[[]byte]) int {
	length := minMarkerLen
	for {
		collides := false
		check := func(o merge.Option[[]byte]) {
			content, ok := o.Get()
			if !ok {
				return
			}
			for _, line := range splitLines(content) {
				for _, c := range markerChars {
					if strings.HasPrefix(line, strings.Repeat(string(c), length)) {
						collides = true
						return
					}
				}
			}
		}
		for _, a := range adds {
			check(a)
		}
		for _, r := range removes {
			check(r)
		}
		if !collides {
			return length
		}
		length++
	}
}

func splitLines(content []byte) []string {
	text := string(content)
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func materializeGit(a, o, b merge.Option[[]byte], markerLen int) []byte {
	aLines := splitLines(mustGet(a))
	oLines := splitLines(mustGet(o))
	bLines := splitLines(mustGet(b))
	blocks := merge3(oLines, aLines, bLines)

	mark := strings.Repeat("<", markerLen)
	sep := strings.Repeat("|", markerLen)
	eq := strings.Repeat("=", markerLen)
	end := strings.Repeat(">", markerLen)

	var out []string
	for _, blk := range blocks {
		if blk.conflict == nil {
			out = append(out, blk.ok...)
			continue
		}
		out = append(out, mark)
		out = append(out, blk.conflict.a...)
		out = append(out, sep)
		out = append(out, blk.conflict.o...)
		out = append(out, eq)
		out = append(out, blk.conflict.b...)
		out = append(out, end)
	}
	return joinLines(out)
}

func materializeDiff(a, o, b merge.Option[[]byte], markerLen int) []byte {
	aLines := splitLines(mustGet(a))
	oLines := splitLines(mustGet(o))
	bLines := splitLines(mustGet(b))
	blocks := merge3(oLines, aLines, bLines)

	var conflicts []int
	for i, blk := range blocks {
		if blk.conflict != nil {
			conflicts = append(conflicts, i)
		}
	}

	mark := strings.Repeat("<", markerLen)
	diffMark := strings.Repeat("%", markerLen)
	side := strings.Repeat("+", markerLen)
	end := strings.Repeat(">", markerLen)

	var out []string
	conflictNum := 0
	for _, blk := range blocks {
		if blk.conflict == nil {
			out = append(out, blk.ok...)
			continue
		}
		conflictNum++
		out = append(out, fmt.Sprintf("%s conflict %d of %d", mark, conflictNum, len(conflicts)))
		out = append(out, fmt.Sprintf("%s diff from side #1 to side #2", diffMark))
		pos := 0
		for _, c := range diffLines(blk.conflict.o, blk.conflict.a) {
			for _, l := range blk.conflict.o[pos:c.P1] {
				out = append(out, " "+l)
			}
			for _, l := range blk.conflict.o[c.P1 : c.P1+c.Del] {
				out = append(out, "-"+l)
			}
			for _, l := range blk.conflict.a[c.P2 : c.P2+c.Ins] {
				out = append(out, "+"+l)
			}
			pos = c.P1 + c.Del
		}
		for _, l := range blk.conflict.o[pos:] {
			out = append(out, " "+l)
		}
		out = append(out, fmt.Sprintf("%s side #2", side))
		out = append(out, blk.conflict.b...)
		out = append(out, fmt.Sprintf("%s conflict %d of %d ends", end, conflictNum, len(conflicts)))
	}
	return joinLines(out)
}

func materializeSnapshot(adds, removes []merge.Option[[]byte], markerLen int) []byte {
	mark := strings.Repeat("<", markerLen)
	side := strings.Repeat("+", markerLen)
	base := strings.Repeat("%", markerLen)
	end := strings.Repeat(">", markerLen)

	var out []string
	out = append(out, fmt.Sprintf("%s conflict 1 of 1", mark))
	for i, a := range adds {
		out = append(out, fmt.Sprintf("%s side #%d", side, i+1))
		out = append(out, renderOption(a)...)
	}
	for i, r := range removes {
		out = append(out, fmt.Sprintf("%s base #%d", base, i+1))
		out = append(out, renderOption(r)...)
	}
	out = append(out, fmt.Sprintf("%s conflict 1 of 1 ends", end))
	return joinLines(out)
}

func renderOption(o merge.Option[[]byte]) []string {
	content, ok := o.Get()
	if !ok {
		return []string{"%%% absent %%%"}
	}
	return splitLines(content)
}

func mustGet(o merge.Option[[]byte]) []byte {
	v, _ := o.Get()
	return v
}

// Parse recovers the Merge of file contents materialized by Materialize. It
// requires the surrounding non-conflict regions to match the original lines
// exactly; only the content between a conflict's start and end markers is
// taken from the parsed text.
func Parse(data []byte, shape merge.Merge[merge.Option[[]byte]]) (merge.Merge[merge.Option[[]byte]], error) {
	if shape.IsResolved() {
		return merge.Resolved(merge.Some(data)), nil
	}
	lines := splitLines(data)
	if len(lines) == 0 {
		return merge.Merge[merge.Option[[]byte]]{}, fmt.Errorf("conflict: empty input, expected markers")
	}
	markerLen := detectMarkerLen(lines)
	if markerLen == 0 {
		// A merge whose hunks all resolve materializes without markers; that
		// text, unchanged, stands for the original merge.
		if string(data) == string(Materialize(shape, StyleDiff)) {
			return shape, nil
		}
		return merge.Merge[merge.Option[[]byte]]{}, fmt.Errorf("conflict: no marker found")
	}

	mark := strings.Repeat("<", markerLen)
	sep := strings.Repeat("|", markerLen)
	eq := strings.Repeat("=", markerLen)
	side := strings.Repeat("+", markerLen)
	diffMark := strings.Repeat("%", markerLen)
	end := strings.Repeat(">", markerLen)

	adds := shape.Adds()
	removes := shape.Removes()

	if len(adds) == 2 && isGitStyle(lines, mark, sep) {
		a, o, b, err := parseGit(lines, mark, sep, eq, end)
		if err != nil {
			return merge.Merge[merge.Option[[]byte]]{}, err
		}
		return merge.FromAddsRemoves(
			[]merge.Option[[]byte]{merge.Some(a), merge.Some(b)},
			[]merge.Option[[]byte]{merge.Some(o)},
		), nil
	}

	if len(adds) == 2 && !anyAbsent(adds) && !anyAbsent(removes) && hasDiffMarker(lines, diffMark) {
		a, o, b, err := parseDiff(lines, mark, diffMark, side, end)
		if err != nil {
			return merge.Merge[merge.Option[[]byte]]{}, err
		}
		return merge.FromAddsRemoves(
			[]merge.Option[[]byte]{merge.Some(a), merge.Some(b)},
			[]merge.Option[[]byte]{merge.Some(o)},
		), nil
	}

	return parseSnapshot(lines, mark, side, diffMark, end, len(adds), len(removes))
}

// detectMarkerLen recovers the adaptive marker length chosen by
// chooseMarkerLen by finding the longest run of '<' at the start of any
// line. Genuine start/end markers always carry the full chosen length; any
// content line that happens to start with '<' was, by construction, kept
// strictly shorter than that length so it can't be confused for one.
func detectMarkerLen(lines []string) int {
	best := 0
	for _, l := range lines {
		n := 0
		for n < len(l) && l[n] == '<' {
			n++
		}
		if n > best {
			best = n
		}
	}
	if best < minMarkerLen {
		return 0
	}
	return best
}

func isGitStyle(lines []string, mark, sep string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, sep) {
			return true
		}
	}
	return false
}

func hasDiffMarker(lines []string, diffMark string) bool {
	want := diffMark + " diff from side #"
	for _, l := range lines {
		if strings.HasPrefix(l, want) {
			return true
		}
	}
	return false
}

// parseGit walks the full line list, which may interleave several
// <<<<<<</|||||||/=======/>>>>>>> blocks with unmarked context lines shared by
// all three sides (mirroring how materializeGit interleaves blk.ok runs
// between conflict blocks).
func parseGit(lines []string, mark, sep, eq, end string) (a, o, b []byte, err error) {
	var aAll, oAll, bAll []string
	idx := 0
	for idx < len(lines) {
		if !strings.HasPrefix(lines[idx], mark) {
			aAll = append(aAll, lines[idx])
			oAll = append(oAll, lines[idx])
			bAll = append(bAll, lines[idx])
			idx++
			continue
		}
		idx++
		start := idx
		for idx < len(lines) && !strings.HasPrefix(lines[idx], sep) {
			idx++
		}
		if idx == len(lines) {
			return nil, nil, nil, fmt.Errorf("conflict: missing separator marker")
		}
		aAll = append(aAll, lines[start:idx]...)
		idx++
		start = idx
		for idx < len(lines) && !strings.HasPrefix(lines[idx], eq) {
			idx++
		}
		if idx == len(lines) {
			return nil, nil, nil, fmt.Errorf("conflict: missing equals marker")
		}
		oAll = append(oAll, lines[start:idx]...)
		idx++
		start = idx
		for idx < len(lines) && !strings.HasPrefix(lines[idx], end) {
			idx++
		}
		if idx == len(lines) {
			return nil, nil, nil, fmt.Errorf("conflict: missing end marker")
		}
		bAll = append(bAll, lines[start:idx]...)
		idx++
	}
	return joinLines(aAll), joinLines(oAll), joinLines(bAll), nil
}

// parseDiff is parseGit's counterpart for the default diff-style markers.
func parseDiff(lines []string, mark, diffMark, side, end string) (a, o, b []byte, err error) {
	var aAll, oAll, bAll []string
	idx := 0
	for idx < len(lines) {
		if !strings.HasPrefix(lines[idx], mark) {
			aAll = append(aAll, lines[idx])
			oAll = append(oAll, lines[idx])
			bAll = append(bAll, lines[idx])
			idx++
			continue
		}
		idx++
		if idx >= len(lines) || !strings.HasPrefix(lines[idx], diffMark) {
			return nil, nil, nil, fmt.Errorf("conflict: expected diff header")
		}
		idx++
		for idx < len(lines) && !strings.HasPrefix(lines[idx], side) {
			line := lines[idx]
			if len(line) == 0 {
				idx++
				continue
			}
			switch line[0] {
			case ' ':
				oAll = append(oAll, line[1:])
				aAll = append(aAll, line[1:])
			case '-':
				oAll = append(oAll, line[1:])
			case '+':
				aAll = append(aAll, line[1:])
			}
			idx++
		}
		if idx == len(lines) {
			return nil, nil, nil, fmt.Errorf("conflict: missing side marker")
		}
		idx++
		start := idx
		for idx < len(lines) && !strings.HasPrefix(lines[idx], end) {
			idx++
		}
		if idx == len(lines) {
			return nil, nil, nil, fmt.Errorf("conflict: missing end marker")
		}
		bAll = append(bAll, lines[start:idx]...)
		idx++
	}
	return joinLines(aAll), joinLines(oAll), joinLines(bAll), nil
}

func parseSnapshot(lines []string, mark, side, base, end string, numAdds, numRemoves int) (merge.Merge[merge.Option[[]byte]], error) {
	idx := 0
	for idx < len(lines) && !strings.HasPrefix(lines[idx], mark) {
		idx++
	}
	if idx == len(lines) {
		return merge.Merge[merge.Option[[]byte]]{}, fmt.Errorf("conflict: missing start marker")
	}
	idx++

	adds := make([]merge.Option[[]byte], numAdds)
	removes := make([]merge.Option[[]byte], numRemoves)

	for idx < len(lines) && !strings.HasPrefix(lines[idx], end) {
		header := lines[idx]
		var which string
		var n int
		switch {
		case strings.HasPrefix(header, side):
			which = "side"
			n, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, side+" side #")))
		case strings.HasPrefix(header, base):
			which = "base"
			n, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, base+" base #")))
		default:
			return merge.Merge[merge.Option[[]byte]]{}, fmt.Errorf("conflict: unexpected line %q", header)
		}
		idx++
		start := idx
		for idx < len(lines) && !strings.HasPrefix(lines[idx], side) && !strings.HasPrefix(lines[idx], base) && !strings.HasPrefix(lines[idx], end) {
			idx++
		}
		body := lines[start:idx]
		var opt merge.Option[[]byte]
		if len(body) == 1 && body[0] == "%%% absent %%%" {
			opt = merge.None[[]byte]()
		} else {
			opt = merge.Some(joinLines(body))
		}
		if which == "side" && n >= 1 && n <= numAdds {
			adds[n-1] = opt
		} else if which == "base" && n >= 1 && n <= numRemoves {
			removes[n-1] = opt
		}
	}
	return merge.FromAddsRemoves(adds, removes), nil
}
