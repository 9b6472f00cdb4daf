package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
)

// PortRange references a contiguous slice of one upstream output port.
// Ranges hold node ids rather than pointers, so they survive the node
// rewrites performed by the Transformer.
type PortRange struct {
	Node  NodeID
	Port  string
	Start int
	Count int
}

// String implements fmt.Stringer.
func (r PortRange) String() string {
	return fmt.Sprintf("#%d.%s[%d:%d]", r.Node, r.Port, r.Start, r.Start+r.Count)
}

// PortElements composes slices of one or more upstream output ports into a
// single logical input. It is the graph's edge representation: non-owning,
// it only describes provenance. Concatenation (fan-in) is expressed by
// listing multiple ranges; no data is copied until a node gathers its
// inputs.
type PortElements struct {
	ranges []PortRange
}

// FromOutput references the whole of an output port. The port's node must
// already be attached to a model, which makes cycles unrepresentable: a
// binding can only point at nodes that exist before its own node does.
func FromOutput(p *OutputPort) PortElements {
	return FromRange(p, 0, p.Size())
}

// FromRange references count elements of an output port starting at start.
func FromRange(p *OutputPort, start, count int) PortElements {
	if p == nil || p.node == nil {
		exceptions.Panicf("model.FromRange: nil output port")
	}
	id := p.node.ID()
	if id == InvalidNodeID {
		exceptions.Panicf("model.FromRange: node owning port %q is not attached to a model yet", p.name)
	}
	if start < 0 || count <= 0 || start+count > p.Size() {
		throwf(ErrShapeMismatch, "range [%d:%d] out of bounds for port %q of size %d",
			start, start+count, p.name, p.Size())
	}
	return PortElements{ranges: []PortRange{{Node: id, Port: p.name, Start: start, Count: count}}}
}

// Concat composes several bindings into one, in order.
func Concat(elems ...PortElements) PortElements {
	var out PortElements
	for _, e := range elems {
		out.ranges = append(out.ranges, e.ranges...)
	}
	return out
}

// FromRanges builds a binding directly from raw ranges, used when
// reconstructing a model from an archive. Validation happens at attach time.
func FromRanges(ranges []PortRange) PortElements {
	return PortElements{ranges: slices.Clone(ranges)}
}

// Ranges returns a copy of the underlying ranges.
func (e PortElements) Ranges() []PortRange {
	return slices.Clone(e.ranges)
}

// Size is the total number of elements referenced.
func (e PortElements) Size() int {
	total := 0
	for _, r := range e.ranges {
		total += r.Count
	}
	return total
}

// IsEmpty reports whether the binding references nothing.
func (e PortElements) IsEmpty() bool { return len(e.ranges) == 0 }

// Slice returns the binding for the sub-range [start, start+count) of the
// composed elements, splitting underlying ranges as needed.
func (e PortElements) Slice(start, count int) PortElements {
	if start < 0 || count < 0 || start+count > e.Size() {
		throwf(ErrShapeMismatch, "slice [%d:%d] out of bounds for elements of size %d",
			start, start+count, e.Size())
	}
	var out PortElements
	pos := 0
	for _, r := range e.ranges {
		if count == 0 {
			break
		}
		end := pos + r.Count
		if start >= end {
			pos = end
			continue
		}
		takeStart := max(start, pos)
		take := min(count, end-takeStart)
		out.ranges = append(out.ranges, PortRange{
			Node:  r.Node,
			Port:  r.Port,
			Start: r.Start + (takeStart - pos),
			Count: take,
		})
		start += take
		count -= take
		pos = end
	}
	return out
}

// String implements fmt.Stringer.
func (e PortElements) String() string {
	parts := make([]string, len(e.ranges))
	for ii, r := range e.ranges {
		parts[ii] = r.String()
	}
	return "{" + strings.Join(parts, "+") + "}"
}
