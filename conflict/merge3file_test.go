package conflict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeContentNonOverlappingEdits(t *testing.T) {
	base := []byte("one\ntwo\nthree\n")
	a := []byte("ONE\ntwo\nthree\n")
	b := []byte("one\ntwo\nTHREE\n")
	merged, ok := MergeContent(base, a, b)
	require.True(t, ok)
	require.Equal(t, "ONE\ntwo\nTHREE\n", string(merged))
}

func TestMergeContentOverlappingEditsFails(t *testing.T) {
	base := []byte("one\ntwo\nthree\n")
	a := []byte("one\nAAA\nthree\n")
	b := []byte("one\nBBB\nthree\n")
	_, ok := MergeContent(base, a, b)
	require.False(t, ok)
}

func TestMergeContentIdenticalSidesResolves(t *testing.T) {
	base := []byte("x\ny\n")
	a := []byte("x\ny\nz\n")
	b := []byte("x\ny\nz\n")
	merged, ok := MergeContent(base, a, b)
	require.True(t, ok)
	require.Equal(t, "x\ny\nz\n", string(merged))
}
