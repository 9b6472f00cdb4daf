// Package compiler lowers a refined (all-primitive) model into a Program: a
// linear instruction sequence over fixed storage segments that reproduces
// Model.Compute without the graph. The compiler walks the model in
// topological order and asks each node to emit code into the shared output
// function, threading a mapping from output ports to emitted storage slots
// so downstream nodes reference upstream results directly.
package compiler

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/yosshor/ELL/model"
)

// Compilable is the capability a node must have to survive compilation:
// after the refinement fixpoint every node in the model must satisfy it and
// answer IsCompilable true.
type Compilable interface {
	model.Node

	// IsCompilable reports whether this node can emit code standalone.
	// Composite nodes that exist only to be refined away answer false.
	IsCompilable(c *Compiler) bool

	// Compile emits the node's instructions into the shared output
	// function. The emitted code must produce, for identical input values,
	// results equal to Compute within floating tolerance. Called only when
	// IsCompilable is true; panics (throw-and-catch) on emission errors.
	Compile(c *Compiler, fn *FunctionEmitter)
}

type portKey struct {
	node model.NodeID
	port string
}

type stateKey struct {
	node model.NodeID
	name string
}

// Compiler is the compilation context threaded through node Compile calls.
// It owns the storage allocation for every segment and the port-to-slot
// mapping.
type Compiler struct {
	model *model.Model
	fn    FunctionEmitter

	slots  map[portKey]Slot
	states map[stateKey]Slot
	consts []float64

	inputs     []PortSpec
	outputs    []PortSpec
	inputSize  int
	outputSize int
	localsSize int
	stateSize  int
}

// Model being compiled.
func (c *Compiler) Model() *model.Model { return c.model }

// Compile lowers the model into a Program. Every node must be compilable:
// encountering one that is not yields ErrNotCompilable, since the
// refinement pass should have eliminated it.
func Compile(m *model.Model) (*Program, error) {
	order, err := m.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	c := &Compiler{
		model:  m,
		slots:  make(map[portKey]Slot),
		states: make(map[stateKey]Slot),
	}
	for _, id := range order {
		n := m.Node(id)
		cn, ok := n.(Compilable)
		if !ok || !cn.IsCompilable(c) {
			return nil, errors.Wrapf(model.ErrNotCompilable,
				"node #%d (%s): the model must be refined to primitive nodes before compiling", id, n.TypeName())
		}
	}
	err = exceptions.TryCatch[error](func() {
		for _, id := range order {
			m.Node(id).(Compilable).Compile(c, &c.fn)
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "compiling model %q", m.Name())
	}
	p := &Program{
		name:         m.Name(),
		instructions: c.fn.instructions,
		consts:       c.consts,
		inputs:       c.inputs,
		outputs:      c.outputs,
		inputSize:    c.inputSize,
		outputSize:   c.outputSize,
		localsSize:   c.localsSize,
		state:        make([]float64, c.stateSize),
	}
	klog.V(1).Infof("compiled model %q: %d nodes, %d instructions, state=%d const=%d local=%d",
		m.Name(), m.NumNodes(), p.NumInstructions(), c.stateSize, len(c.consts), c.localsSize)
	return p, nil
}

// AllocLocal reserves per-run scratch storage.
func (c *Compiler) AllocLocal(size int) Slot {
	s := Slot{Segment: SegmentLocal, Offset: c.localsSize, Len: size}
	c.localsSize += size
	return s
}

// AllocState reserves persistent storage keyed to the node's identity and a
// state name, the compiled analogue of a stateful node's interpreted
// buffers. Repeated calls with the same key return the same slot. The
// storage is zero-initialized once per Program instance and reused across
// runs.
func (c *Compiler) AllocState(n model.Node, name string, size int) Slot {
	key := stateKey{node: n.ID(), name: name}
	if s, ok := c.states[key]; ok {
		return s
	}
	s := Slot{Segment: SegmentState, Offset: c.stateSize, Len: size}
	c.stateSize += size
	c.states[key] = s
	return s
}

// Constant bakes values into the program's constant segment.
func (c *Compiler) Constant(values []float64) Slot {
	s := Slot{Segment: SegmentConstant, Offset: len(c.consts), Len: len(values)}
	c.consts = append(c.consts, values...)
	return s
}

// DeclareInput registers a top-level input port of the compiled function,
// in declaration order, and returns its storage.
func (c *Compiler) DeclareInput(name string, size int) Slot {
	s := Slot{Segment: SegmentInput, Offset: c.inputSize, Len: size}
	c.inputSize += size
	c.inputs = append(c.inputs, PortSpec{Name: name, Size: size})
	return s
}

// DeclareOutput registers a top-level output port of the compiled function,
// in declaration order, and returns its storage.
func (c *Compiler) DeclareOutput(name string, size int) Slot {
	s := Slot{Segment: SegmentOutput, Offset: c.outputSize, Len: size}
	c.outputSize += size
	c.outputs = append(c.outputs, PortSpec{Name: name, Size: size})
	return s
}

// BindOutput records the storage holding an output port's emitted value, so
// downstream consumers can reference it.
func (c *Compiler) BindOutput(p *model.OutputPort, s Slot) {
	if s.Len != p.Size() {
		exceptions.Panicf("BindOutput: port %q has %d elements, slot %s has %d", p.Name(), p.Size(), s, s.Len)
	}
	c.slots[portKey{node: p.Node().ID(), port: p.Name()}] = s
}

// OutputSlot returns the storage bound to an output port, allocating and
// binding a local slot on first request.
func (c *Compiler) OutputSlot(p *model.OutputPort) Slot {
	key := portKey{node: p.Node().ID(), port: p.Name()}
	if s, ok := c.slots[key]; ok {
		return s
	}
	s := c.AllocLocal(p.Size())
	c.slots[key] = s
	return s
}

// Operand resolves an input port's binding to storage. A binding referencing
// a single contiguous slice maps straight onto the upstream slot with no
// copying; a composed (fan-in) binding gets a local slot with emitted copies
// assembling the pieces.
func (c *Compiler) Operand(p *model.InputPort, fn *FunctionEmitter) Slot {
	ranges := p.Elements().Ranges()
	if len(ranges) == 0 {
		exceptions.Panicf("Operand: input port %q has an empty binding", p.Name())
	}
	pieces := make([]Slot, len(ranges))
	for ii, r := range ranges {
		base, ok := c.slots[portKey{node: r.Node, port: r.Port}]
		if !ok {
			exceptions.Panicf("Operand: output port %q of node #%d was not compiled before its consumer %q",
				r.Port, r.Node, p.Node().TypeName())
		}
		pieces[ii] = base.Sub(r.Start, r.Count)
	}
	if len(pieces) == 1 {
		return pieces[0]
	}
	gathered := c.AllocLocal(p.Size())
	offset := 0
	for _, piece := range pieces {
		fn.Copy(gathered.Sub(offset, piece.Len), piece)
		offset += piece.Len
	}
	return gathered
}
