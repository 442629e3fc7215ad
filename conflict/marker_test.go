package conflict

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/merge"
)

func twoSided(o, a, b string) merge.Merge[merge.Option[[]byte]] {
	return merge.FromAddsRemoves(
		[]merge.Option[[]byte]{merge.Some([]byte(a)), merge.Some([]byte(b))},
		[]merge.Option[[]byte]{merge.Some([]byte(o))},
	)
}

func TestMaterializeParseRoundtripDiffStyle(t *testing.T) {
	m := twoSided(
		"one\ntwo\nthree\nfour\n",
		"one\nTWO-A\nthree\nfour\n",
		"one\nTWO-B\nthree\nfour\n",
	)
	text := Materialize(m, StyleDiff)
	require.Contains(t, string(text), "conflict 1 of 1")
	got, err := Parse(text, m)
	require.NoError(t, err)
	require.True(t, merge.Equal(m, got, bytesEqual))
}

func TestMaterializeParseRoundtripGitStyle(t *testing.T) {
	m := twoSided(
		"one\ntwo\nthree\n",
		"one\nTWO-A\nthree\n",
		"one\nTWO-B\nthree\n",
	)
	text := Materialize(m, StyleGit)
	require.Contains(t, string(text), "|||||||")
	got, err := Parse(text, m)
	require.NoError(t, err)
	require.True(t, merge.Equal(m, got, bytesEqual))
}

func TestMaterializeParseRoundtripMultiHunk(t *testing.T) {
	m := twoSided(
		"a\nb\nc\nd\ne\nf\ng\n",
		"A\nb\nc\nd\ne\nf\nG\n",
		"a\nb\nc\nd\ne\nf\ng\n",
	)
	text := Materialize(m, StyleDiff)
	got, err := Parse(text, m)
	require.NoError(t, err)
	require.True(t, merge.Equal(m, got, bytesEqual))
}

func TestMaterializeAbsentSideForcesSnapshot(t *testing.T) {
	m := merge.FromAddsRemoves(
		[]merge.Option[[]byte]{merge.Some([]byte("content\n")), merge.None[[]byte]()},
		[]merge.Option[[]byte]{merge.Some([]byte("base\n"))},
	)
	text := Materialize(m, StyleDiff)
	require.Contains(t, string(text), "absent")
	got, err := Parse(text, m)
	require.NoError(t, err)
	require.True(t, merge.Equal(m, got, bytesEqual))
}

func TestMaterializeResolvedIsPassthrough(t *testing.T) {
	m := merge.Resolved(merge.Some([]byte("plain content\n")))
	text := Materialize(m, StyleDiff)
	require.Equal(t, "plain content\n", string(text))
}

func TestMarkerLengthAdaptsToCollidingContent(t *testing.T) {
	m := twoSided(
		"<<<<<<< not a marker\nx\n",
		"<<<<<<< not a marker\ny\n",
		"<<<<<<< not a marker\nz\n",
	)
	text := Materialize(m, StyleGit)
	require.NotContains(t, string(text), "\n<<<<<<< |||||||")
	got, err := Parse(text, m)
	require.NoError(t, err)
	require.True(t, merge.Equal(m, got, bytesEqual))
}

func bytesEqual(a, b merge.Option[[]byte]) bool {
	av, aok := a.Get()
	bv, bok := b.Get()
	if aok != bok {
		return false
	}
	if !aok {
		return true
	}
	return string(av) == string(bv)
}
