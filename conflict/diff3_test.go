package conflict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerge3NoConflict(t *testing.T) {
	o := []string{"a", "b", "c"}
	a := []string{"a", "B", "c"}
	b := []string{"a", "b", "c", "d"}
	blocks := merge3(o, a, b)
	for _, blk := range blocks {
		require.Nil(t, blk.conflict, "unexpected conflict block")
	}
}

func TestMerge3ConflictingEdits(t *testing.T) {
	o := []string{"one", "two", "three"}
	a := []string{"one", "TWO-A", "three"}
	b := []string{"one", "TWO-B", "three"}
	blocks := merge3(o, a, b)
	var conflicts int
	for _, blk := range blocks {
		if blk.conflict != nil {
			conflicts++
			require.Equal(t, []string{"TWO-A"}, blk.conflict.a)
			require.Equal(t, []string{"two"}, blk.conflict.o)
			require.Equal(t, []string{"TWO-B"}, blk.conflict.b)
		}
	}
	require.Equal(t, 1, conflicts)
}

func TestMerge3IdenticalSides(t *testing.T) {
	o := []string{"x", "y"}
	a := []string{"x", "y", "z"}
	b := []string{"x", "y", "z"}
	blocks := merge3(o, a, b)
	for _, blk := range blocks {
		require.Nil(t, blk.conflict)
	}
}
