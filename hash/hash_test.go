package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromBytesDeterministic(t *testing.T) {
	a := FromBytes([]byte("hello"))
	b := FromBytes([]byte("hello"))
	require.Equal(t, a, b)

	c := FromBytes([]byte("hello!"))
	require.NotEqual(t, a, c)
}

func TestNewRoundTrip(t *testing.T) {
	id := FromBytes([]byte("round trip me"))
	s := id.String()
	require.True(t, Valid(s))

	decoded, err := NewEx(s)
	require.NoError(t, err)
	require.Equal(t, id, decoded)
}

func TestNewExRejectsMalformed(t *testing.T) {
	_, err := NewEx("not-hex")
	require.Error(t, err)

	_, err = NewEx("abcd")
	require.Error(t, err)
}

func TestPrefixDropsTrailingZeros(t *testing.T) {
	var id ID
	id[0] = 0xab
	id[1] = 0xcd
	require.Equal(t, "abcd000000000000", id.Prefix())
}

func TestSortOrdersIncreasing(t *testing.T) {
	ids := []ID{New("ff00000000000000000000000000000000000000000000000000000000000000"[:HexSize]), ZeroID}
	Sort(ids)
	require.Equal(t, ZeroID, ids[0])
}

func TestRandomChangeIDNotContentDerived(t *testing.T) {
	a := RandomChangeID()
	b := RandomChangeID()
	require.NotEqual(t, a, b, "two random change ids should not collide in practice")
}

func TestDistinctIDTypesAreNotInterchangeable(t *testing.T) {
	// Compile-time property: this test exists to document that FileID and
	// TreeID are different Go types, not just a readability check.
	var f FileID
	var tr TreeID
	require.Equal(t, ID(f), ID(tr))
}
