package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
)

// DimensionOrder is the logical ordering of a layout's axes, given as a
// permutation of the axis indices. Two ports are layout-compatible only if
// their orders match, and a node may declare that it only accepts specific
// orders (see Node.CanAcceptInputLayout).
type DimensionOrder []int

// CanonicalOrder returns the identity ordering 0, 1, ..., rank-1.
func CanonicalOrder(rank int) DimensionOrder {
	order := make(DimensionOrder, rank)
	for axis := range order {
		order[axis] = axis
	}
	return order
}

// Equal reports whether both orders are the same permutation.
func (o DimensionOrder) Equal(other DimensionOrder) bool {
	return slices.Equal(o, other)
}

// IsCanonical reports whether o is the identity permutation.
func (o DimensionOrder) IsCanonical() bool {
	for axis, value := range o {
		if value != axis {
			return false
		}
	}
	return true
}

// isPermutation reports whether o is a valid permutation of 0..len(o)-1.
func (o DimensionOrder) isPermutation() bool {
	seen := make([]bool, len(o))
	for _, axis := range o {
		if axis < 0 || axis >= len(o) || seen[axis] {
			return false
		}
		seen[axis] = true
	}
	return true
}

// String implements fmt.Stringer.
func (o DimensionOrder) String() string {
	parts := make([]string, len(o))
	for ii, axis := range o {
		parts[ii] = fmt.Sprintf("%d", axis)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// PortMemoryLayout is the logical shape of the values moving through a port:
// the dimension sizes plus the canonical ordering of the axes. The flat size
// of a port's buffer is the product of the dimensions; the order only
// changes how consumers interpret the axes, never the flat size.
type PortMemoryLayout struct {
	Dimensions []int
	Order      DimensionOrder
}

// MakeLayout returns a layout with the given dimensions in canonical order.
// It panics if any dimension is <= 0.
func MakeLayout(dimensions ...int) PortMemoryLayout {
	for _, dim := range dimensions {
		if dim <= 0 {
			exceptions.Panicf("model.MakeLayout(%v): dimensions must be > 0", dimensions)
		}
	}
	return PortMemoryLayout{
		Dimensions: slices.Clone(dimensions),
		Order:      CanonicalOrder(len(dimensions)),
	}
}

// WithOrder returns a copy of the layout with the given dimension order.
// It panics if order is not a permutation of the layout's axes.
func (l PortMemoryLayout) WithOrder(order DimensionOrder) PortMemoryLayout {
	if len(order) != l.Rank() || !order.isPermutation() {
		exceptions.Panicf("PortMemoryLayout.WithOrder(%s): not a permutation of %d axes", order, l.Rank())
	}
	return PortMemoryLayout{Dimensions: slices.Clone(l.Dimensions), Order: slices.Clone(order)}
}

// Rank returns the number of axes.
func (l PortMemoryLayout) Rank() int { return len(l.Dimensions) }

// Size returns the flat number of elements described by the layout.
func (l PortMemoryLayout) Size() int {
	size := 1
	for _, dim := range l.Dimensions {
		size *= dim
	}
	return size
}

// Equal reports whether dimensions and order both match.
func (l PortMemoryLayout) Equal(other PortMemoryLayout) bool {
	return slices.Equal(l.Dimensions, other.Dimensions) && l.Order.Equal(other.Order)
}

// String implements fmt.Stringer.
func (l PortMemoryLayout) String() string {
	parts := make([]string, len(l.Dimensions))
	for ii, dim := range l.Dimensions {
		parts[ii] = fmt.Sprintf("%d", dim)
	}
	if l.Order.IsCanonical() {
		return "(" + strings.Join(parts, "x") + ")"
	}
	return "(" + strings.Join(parts, "x") + " order=" + l.Order.String() + ")"
}
