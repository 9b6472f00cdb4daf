package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeLayout(t *testing.T) {
	l := MakeLayout(3, 4, 2)
	require.Equal(t, 3, l.Rank())
	require.Equal(t, 24, l.Size())
	require.True(t, l.Order.IsCanonical())
	require.Equal(t, "(3x4x2)", l.String())

	require.Panics(t, func() { MakeLayout(3, 0) })
	require.Panics(t, func() { MakeLayout(-1) })
}

func TestLayoutWithOrder(t *testing.T) {
	l := MakeLayout(3, 4).WithOrder(DimensionOrder{1, 0})
	require.Equal(t, 12, l.Size(), "order must not change the flat size")
	require.False(t, l.Order.IsCanonical())
	require.Equal(t, "(3x4 order=[1,0])", l.String())

	require.Panics(t, func() { MakeLayout(3, 4).WithOrder(DimensionOrder{0}) })
	require.Panics(t, func() { MakeLayout(3, 4).WithOrder(DimensionOrder{1, 1}) })
}

func TestLayoutEqual(t *testing.T) {
	require.True(t, MakeLayout(2, 3).Equal(MakeLayout(2, 3)))
	require.False(t, MakeLayout(2, 3).Equal(MakeLayout(3, 2)))
	require.False(t, MakeLayout(2, 3).Equal(MakeLayout(2, 3).WithOrder(DimensionOrder{1, 0})))
}

func TestElementsSlice(t *testing.T) {
	e := FromRanges([]PortRange{
		{Node: 0, Port: "output", Start: 0, Count: 4},
		{Node: 1, Port: "output", Start: 2, Count: 3},
	})
	require.Equal(t, 7, e.Size())

	// Inside the first range.
	s := e.Slice(1, 2)
	require.Equal(t, []PortRange{{Node: 0, Port: "output", Start: 1, Count: 2}}, s.Ranges())

	// Straddling both ranges.
	s = e.Slice(3, 3)
	require.Equal(t, []PortRange{
		{Node: 0, Port: "output", Start: 3, Count: 1},
		{Node: 1, Port: "output", Start: 2, Count: 2},
	}, s.Ranges())

	// Out of bounds throws.
	err := catch(func() { e.Slice(5, 3) })
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestElementsConcat(t *testing.T) {
	a := FromRanges([]PortRange{{Node: 0, Port: "output", Start: 0, Count: 2}})
	b := FromRanges([]PortRange{{Node: 1, Port: "output", Start: 1, Count: 3}})
	c := Concat(a, b)
	require.Equal(t, 5, c.Size())
	require.Len(t, c.Ranges(), 2)
	require.True(t, Concat().IsEmpty())
}
