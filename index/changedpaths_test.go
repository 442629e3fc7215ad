package index

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChangedPathsRecordAndGet(t *testing.T) {
	cp := NewChangedPaths(10)
	ok := cp.Record(0, []string{"a.txt", "b.txt"})
	require.True(t, ok)

	paths, known := cp.Get(0)
	require.True(t, known)
	require.ElementsMatch(t, []string{"a.txt", "b.txt"}, paths)
}

func TestChangedPathsUnknownPositionIsUnknown(t *testing.T) {
	cp := NewChangedPaths(10)
	_, known := cp.Get(5)
	require.False(t, known)
}

func TestChangedPathsExhaustsBudget(t *testing.T) {
	cp := NewChangedPaths(3)
	require.True(t, cp.Record(0, []string{"a.txt", "b.txt"}))
	ok := cp.Record(1, []string{"c.txt", "d.txt"})
	require.False(t, ok)
	require.True(t, cp.Exhausted())

	_, known := cp.Get(1)
	require.False(t, known)

	_, known = cp.Get(0)
	require.True(t, known)
}

func TestChangedPathsFurtherRecordsAfterExhaustionStayUnknown(t *testing.T) {
	cp := NewChangedPaths(1)
	require.False(t, cp.Record(0, []string{"a.txt", "b.txt"}))
	require.True(t, cp.Exhausted())
	require.False(t, cp.Record(1, []string{"c.txt"}))
}
