package model

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Value enumerates the Go types storable on a port: the numeric value types
// plus int32, which is used for control signals like reset triggers.
type Value interface {
	float32 | float64 | int32
}

// DTypeFor returns the dtype tag for a storable Go type.
func DTypeFor[T Value]() dtypes.DType {
	return dtypes.FromGenericsType[T]()
}

// CompositeTypeName builds the type name of a value-type-parameterized node,
// e.g. "LSTMNode<float32>". It is the node's identity in archives.
func CompositeTypeName[T Value](base string) string {
	var zero T
	return fmt.Sprintf("%s<%T>", base, zero)
}

// OutputPort is a typed value produced by a node. It owns the buffer holding
// the node's interpreted result; downstream input ports reference slices of
// it through PortElements without copying.
type OutputPort struct {
	node   Node
	name   string
	dtype  dtypes.DType
	layout PortMemoryLayout

	// flat holds the interpreted value buffer ([]T matching dtype), created
	// lazily on first access.
	flat any
}

// Name of the port, unique among the owning node's outputs.
func (p *OutputPort) Name() string { return p.name }

// DType of the port's values.
func (p *OutputPort) DType() dtypes.DType { return p.dtype }

// Layout of the port.
func (p *OutputPort) Layout() PortMemoryLayout { return p.layout }

// Size is the flat number of elements the port carries.
func (p *OutputPort) Size() int { return p.layout.Size() }

// Node that owns this port.
func (p *OutputPort) Node() Node { return p.node }

// String implements fmt.Stringer.
func (p *OutputPort) String() string {
	return fmt.Sprintf("%s:%s%s", p.name, p.dtype, p.layout)
}

// Flat returns the port's value buffer, allocating it on first use.
// It panics if T does not match the port's dtype.
func Flat[T Value](p *OutputPort) []T {
	if want := DTypeFor[T](); want != p.dtype {
		exceptions.Panicf("port %q holds %s values, requested %s", p.name, p.dtype, want)
	}
	if p.flat == nil {
		p.flat = make([]T, p.Size())
	}
	return p.flat.([]T)
}

// InputPort is a typed consumption point on a node. It is bound to a
// PortElements describing which upstream output slices feed it; the binding
// is validated when the node is attached to a model.
type InputPort struct {
	node     Node
	model    *Model
	name     string
	dtype    dtypes.DType
	layout   PortMemoryLayout
	elements PortElements
}

// Name of the port, unique among the owning node's inputs.
func (p *InputPort) Name() string { return p.name }

// DType of the port's values.
func (p *InputPort) DType() dtypes.DType { return p.dtype }

// Layout declared for the port.
func (p *InputPort) Layout() PortMemoryLayout { return p.layout }

// Size is the declared flat number of elements the port consumes.
func (p *InputPort) Size() int { return p.layout.Size() }

// Node that owns this port.
func (p *InputPort) Node() Node { return p.node }

// Elements returns the binding describing where this port's values come from.
func (p *InputPort) Elements() PortElements { return p.elements }

// String implements fmt.Stringer.
func (p *InputPort) String() string {
	return fmt.Sprintf("%s:%s%s<-%s", p.name, p.dtype, p.layout, p.elements)
}

// Gather assembles the port's current value by copying the referenced
// upstream slices, in order, into dst (grown as needed). It returns the
// assembled slice of exactly p.Size() elements. Only valid after the owning
// node has been attached to a model.
func Gather[T Value](p *InputPort, dst []T) []T {
	if p.model == nil {
		exceptions.Panicf("input port %q gathered before its node was attached to a model", p.name)
	}
	dst = dst[:0]
	for _, r := range p.elements.ranges {
		src := Flat[T](p.model.outputPort(r.Node, r.Port))
		dst = append(dst, src[r.Start:r.Start+r.Count]...)
	}
	return dst
}
