package model

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// NodeID is a node's stable identity within its Model: its index in the
// model's arena. Ids are assigned on attach and never change afterwards.
type NodeID int

// InvalidNodeID marks a node that has not been attached to a model.
const InvalidNodeID = NodeID(-1)

// Node is the unit of computation in the dataflow graph. Concrete node
// kinds embed NodeBase for the identity and port bookkeeping and implement
// the behavior methods.
//
// Capabilities are split across interfaces: every Node is interpretable
// (Compute); nodes that can emit code additionally satisfy the compiler
// package's Compilable interface; composites that lower into primitives
// satisfy Refiner.
type Node interface {
	// ID of this node within its model, or InvalidNodeID before attach.
	ID() NodeID

	// TypeName identifies the node kind, including the value-type suffix,
	// e.g. "ConstantNode<float32>". Used for archives and diagnostics.
	TypeName() string

	// Inputs returns the node's input ports in declaration order.
	Inputs() []*InputPort

	// Outputs returns the node's output ports in declaration order.
	Outputs() []*OutputPort

	// Compute reads the current values on all bound input ports and writes
	// results to the output ports. Safe to call repeatedly; for stateful
	// nodes each call observably advances internal state.
	Compute() error

	// HasState reports whether the node carries data persisting across
	// evaluations (and across compiled-function invocations).
	HasState() bool

	// Reset forces internal state back to its initial zero value. It is
	// independent of any reset-trigger input and a no-op for stateless
	// nodes.
	Reset()

	// CanAcceptInputLayout reports whether the node accepts inputs with the
	// given dimension order. The model rejects wirings this returns false
	// for, before any compilation is attempted.
	CanAcceptInputLayout(order DimensionOrder) bool

	// Copy constructs an equivalent node in the transformer's target model,
	// with the input bindings re-targeted through the transformer, and
	// records the output-port correspondence.
	Copy(t *Transformer)

	base() *NodeBase
}

// Refiner is implemented by composite nodes that lower into an equivalent
// subgraph of primitive nodes. Refine builds the replacement nodes in the
// transformer's target model and records how the composite's outputs map to
// the new outputs; downstream consumers are re-pointed automatically.
type Refiner interface {
	Refine(t *Transformer)
}

// NodeBase carries the identity and ports common to all node kinds. It
// provides the default capability answers: stateless, any input layout
// accepted. Embed it and call Init before declaring ports.
type NodeBase struct {
	self     Node
	id       NodeID
	model    *Model
	typeName string
	inputs   []*InputPort
	outputs  []*OutputPort
}

// Init binds the base to the embedding node. self must be the embedding
// node itself, so that ports can refer back to it.
func (b *NodeBase) Init(self Node, typeName string) {
	b.self = self
	b.id = InvalidNodeID
	b.typeName = typeName
}

// ID implements Node.
func (b *NodeBase) ID() NodeID { return b.id }

// TypeName implements Node.
func (b *NodeBase) TypeName() string { return b.typeName }

// Model the node is attached to, or nil.
func (b *NodeBase) Model() *Model { return b.model }

// Inputs implements Node.
func (b *NodeBase) Inputs() []*InputPort { return b.inputs }

// Outputs implements Node.
func (b *NodeBase) Outputs() []*OutputPort { return b.outputs }

// HasState implements Node: stateless by default.
func (b *NodeBase) HasState() bool { return false }

// Reset implements Node: no-op by default.
func (b *NodeBase) Reset() {}

// CanAcceptInputLayout implements Node: any order accepted by default.
func (b *NodeBase) CanAcceptInputLayout(order DimensionOrder) bool { return true }

func (b *NodeBase) base() *NodeBase { return b }

// AddInput declares a named input port bound to the given elements. The
// binding is validated when the node is attached to a model.
func (b *NodeBase) AddInput(name string, dtype dtypes.DType, layout PortMemoryLayout, elements PortElements) *InputPort {
	if b.self == nil {
		exceptions.Panicf("NodeBase.AddInput(%q): Init was not called", name)
	}
	if b.inputByName(name) != nil {
		exceptions.Panicf("node %s declares duplicate input port %q", b.typeName, name)
	}
	p := &InputPort{node: b.self, name: name, dtype: dtype, layout: layout, elements: elements}
	b.inputs = append(b.inputs, p)
	return p
}

// AddOutput declares a named output port.
func (b *NodeBase) AddOutput(name string, dtype dtypes.DType, layout PortMemoryLayout) *OutputPort {
	if b.self == nil {
		exceptions.Panicf("NodeBase.AddOutput(%q): Init was not called", name)
	}
	if b.OutputByName(name) != nil {
		exceptions.Panicf("node %s declares duplicate output port %q", b.typeName, name)
	}
	p := &OutputPort{node: b.self, name: name, dtype: dtype, layout: layout}
	b.outputs = append(b.outputs, p)
	return p
}

func (b *NodeBase) inputByName(name string) *InputPort {
	for _, p := range b.inputs {
		if p.name == name {
			return p
		}
	}
	return nil
}

// OutputByName returns the named output port, or nil.
func (b *NodeBase) OutputByName(name string) *OutputPort {
	for _, p := range b.outputs {
		if p.name == name {
			return p
		}
	}
	return nil
}
