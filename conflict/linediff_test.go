package conflict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func applyChanges(a, b []string, changes []Change) []string {
	var out []string
	pa := 0
	for _, c := range changes {
		out = append(out, a[pa:c.P1]...)
		out = append(out, b[c.P2:c.P2+c.Ins]...)
		pa = c.P1 + c.Del
	}
	out = append(out, a[pa:]...)
	return out
}

func TestDiffLinesRoundTrips(t *testing.T) {
	cases := [][2][]string{
		{{"a", "b", "c"}, {"a", "b", "c"}},
		{{"a", "b", "c"}, {"a", "x", "c"}},
		{{"a", "b", "c"}, {"a", "b", "c", "d"}},
		{{"a", "b", "c"}, {"b", "c"}},
		{{}, {"x", "y"}},
		{{"x", "y"}, {}},
	}
	for _, c := range cases {
		changes := diffLines(c[0], c[1])
		got := applyChanges(c[0], c[1], changes)
		require.Equal(t, c[1], got)
	}
}

func TestDiffLinesNoChanges(t *testing.T) {
	changes := diffLines([]string{"same"}, []string{"same"})
	require.Empty(t, changes)
}
