package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/yosshor/ELL/activations"
	"github.com/yosshor/ELL/internal/kernels"
)

//go:generate go tool enumer -type=Segment -trimprefix=Segment -transform=lower -output=gen_segment_enumer.go program.go
//go:generate go tool enumer -type=OpCode -trimprefix=Op -transform=snake -output=gen_opcode_enumer.go program.go

// Segment names one of the storage regions of a compiled program.
type Segment uint8

const (
	SegmentInvalid Segment = iota

	// SegmentInput is filled from the caller's input pointers on every run.
	SegmentInput

	// SegmentOutput is copied to the caller's output pointers after a run.
	SegmentOutput

	// SegmentConstant holds values baked in at compile time (weights,
	// biases).
	SegmentConstant

	// SegmentLocal holds per-run scratch storage; contents do not survive
	// across runs.
	SegmentLocal

	// SegmentState holds the persistent storage of stateful nodes. It is
	// zero at program creation and survives across runs; only Program.Reset
	// or emitted clear instructions touch it from outside.
	SegmentState
)

// Slot is an emitted storage location: a contiguous range of one segment.
// The compiler hands slots to node Compile implementations so downstream
// nodes reference upstream results without re-deriving them.
type Slot struct {
	Segment Segment
	Offset  int
	Len     int
}

// IsValid reports whether the slot refers to a real storage range.
func (s Slot) IsValid() bool { return s.Segment != SegmentInvalid && s.Len > 0 }

// Sub returns the slot for the sub-range [start, start+count) of s.
func (s Slot) Sub(start, count int) Slot {
	if start < 0 || count <= 0 || start+count > s.Len {
		exceptions.Panicf("Slot.Sub([%d:%d]) out of bounds for %s", start, start+count, s)
	}
	return Slot{Segment: s.Segment, Offset: s.Offset + start, Len: count}
}

// String implements fmt.Stringer, e.g. "local[4:12]".
func (s Slot) String() string {
	return fmt.Sprintf("%s[%d:%d]", s.Segment, s.Offset, s.Offset+s.Len)
}

// OpCode identifies a program instruction.
type OpCode uint8

const (
	OpInvalid OpCode = iota

	// OpCopy: dst[i] = a[i].
	OpCopy

	// OpZero: dst[i] = 0.
	OpZero

	// OpAdd: dst[i] = a[i] + b[i].
	OpAdd

	// OpMul: dst[i] = a[i] * b[i] (element-wise).
	OpMul

	// OpGemv: dst = A·x with A = a (row-major, len(dst) rows) and x = b.
	OpGemv

	// OpActivation: dst[i] = act(a[i]).
	OpActivation

	// OpFallingEdge: dst[0] = 1 if a[0] is set and b[0] is not, else 0.
	// a holds the previous trigger value, b the current one. Trigger truth
	// follows the int32 port semantics: the value truncates toward zero, so
	// only magnitudes >= 1 count as set.
	OpFallingEdge

	// OpClearOnFlag: zero dst if a[0] is set (same truth test as
	// OpFallingEdge).
	OpClearOnFlag
)

// triggerSet is the single truth test for trigger values in both execution
// paths: interpreted triggers are int32 ports, so the float64 program
// truncates the same way before testing for nonzero.
func triggerSet(v float64) bool { return int32(v) != 0 }

// Instruction is one step of a compiled program. Operand use depends on the
// opcode; unused operands are left invalid.
type Instruction struct {
	Op         OpCode
	Dst        Slot
	A          Slot
	B          Slot
	Activation activations.Kind
}

// String implements fmt.Stringer, one listing line per instruction.
func (inst Instruction) String() string {
	switch inst.Op {
	case OpZero:
		return fmt.Sprintf("%-13s %s", inst.Op, inst.Dst)
	case OpCopy, OpFallingEdge:
		return fmt.Sprintf("%-13s %s, %s", inst.Op, inst.Dst, inst.A)
	case OpClearOnFlag:
		return fmt.Sprintf("%-13s %s, flag=%s", inst.Op, inst.Dst, inst.A)
	case OpActivation:
		return fmt.Sprintf("%-13s %s, %s (%s)", inst.Op, inst.Dst, inst.A, inst.Activation)
	default:
		return fmt.Sprintf("%-13s %s, %s, %s", inst.Op, inst.Dst, inst.A, inst.B)
	}
}

// PortSpec describes one top-level input or output of a compiled program.
type PortSpec struct {
	Name string
	Size int
}

// Program is the compiled form of a model: a linear instruction sequence
// over fixed storage segments, the compiled analogue of the interpreted
// graph walk. The program evaluates in float64 regardless of the graph's
// port dtypes; values convert at the caller boundary.
//
// A Program instance owns its persistent state; it is single-owner and must
// not be run concurrently. Use Clone for independent state streams.
type Program struct {
	name         string
	instructions []Instruction
	consts       []float64
	inputs       []PortSpec
	outputs      []PortSpec
	inputSize    int
	outputSize   int
	localsSize   int

	state  []float64
	locals []float64
	inBuf  []float64
	outBuf []float64
}

// Name of the compiled model.
func (p *Program) Name() string { return p.name }

// Inputs returns the top-level input ports, in declaration order.
func (p *Program) Inputs() []PortSpec { return slices.Clone(p.inputs) }

// Outputs returns the top-level output ports, in declaration order.
func (p *Program) Outputs() []PortSpec { return slices.Clone(p.outputs) }

// NumInstructions returns the length of the instruction sequence.
func (p *Program) NumInstructions() int { return len(p.instructions) }

// StateSize is the number of persistent state elements.
func (p *Program) StateSize() int { return len(p.state) }

// ConstSize is the number of baked-in constant elements.
func (p *Program) ConstSize() int { return len(p.consts) }

// Reset zeroes the persistent state, returning every stateful node's
// storage to its initial value.
func (p *Program) Reset() {
	kernels.Zero(p.state)
}

// Clone returns a program sharing the immutable instruction sequence and
// constants but owning a fresh, zeroed state: an independent stream for
// concurrent callers.
func (p *Program) Clone() *Program {
	clone := &Program{
		name:         p.name,
		instructions: p.instructions,
		consts:       p.consts,
		inputs:       p.inputs,
		outputs:      p.outputs,
		inputSize:    p.inputSize,
		outputSize:   p.outputSize,
		localsSize:   p.localsSize,
		state:        make([]float64, len(p.state)),
	}
	return clone
}

// Run executes the program once: one slice per top-level input and output
// port, in declaration order. State persists across calls and is not
// re-initialized per call.
func (p *Program) Run(inputs, outputs [][]float64) error {
	if len(inputs) != len(p.inputs) {
		return errors.Errorf("program %q takes %d inputs, got %d", p.name, len(p.inputs), len(inputs))
	}
	if len(outputs) != len(p.outputs) {
		return errors.Errorf("program %q produces %d outputs, got %d buffers", p.name, len(p.outputs), len(outputs))
	}
	for ii, in := range inputs {
		if len(in) != p.inputs[ii].Size {
			return errors.Errorf("program %q input %q takes %d elements, got %d",
				p.name, p.inputs[ii].Name, p.inputs[ii].Size, len(in))
		}
	}
	for ii, out := range outputs {
		if len(out) != p.outputs[ii].Size {
			return errors.Errorf("program %q output %q produces %d elements, got buffer of %d",
				p.name, p.outputs[ii].Name, p.outputs[ii].Size, len(out))
		}
	}

	if p.inBuf == nil {
		p.inBuf = make([]float64, p.inputSize)
		p.outBuf = make([]float64, p.outputSize)
		p.locals = make([]float64, p.localsSize)
	}
	offset := 0
	for _, in := range inputs {
		copy(p.inBuf[offset:], in)
		offset += len(in)
	}

	for ii, inst := range p.instructions {
		if err := p.exec(inst); err != nil {
			return errors.WithMessagef(err, "instruction %d of program %q", ii, p.name)
		}
	}

	offset = 0
	for _, out := range outputs {
		copy(out, p.outBuf[offset:offset+len(out)])
		offset += len(out)
	}
	return nil
}

func (p *Program) exec(inst Instruction) error {
	dst := p.slice(inst.Dst)
	switch inst.Op {
	case OpCopy:
		copy(dst, p.slice(inst.A))
	case OpZero:
		kernels.Zero(dst)
	case OpAdd:
		kernels.Add(dst, p.slice(inst.A), p.slice(inst.B))
	case OpMul:
		kernels.Hadamard(dst, p.slice(inst.A), p.slice(inst.B))
	case OpGemv:
		kernels.Gemv(dst, p.slice(inst.A), p.slice(inst.B))
	case OpActivation:
		activations.Apply(inst.Activation, dst, p.slice(inst.A))
	case OpFallingEdge:
		if triggerSet(p.slice(inst.A)[0]) && !triggerSet(p.slice(inst.B)[0]) {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case OpClearOnFlag:
		if triggerSet(p.slice(inst.A)[0]) {
			kernels.Zero(dst)
		}
	default:
		return errors.Errorf("invalid opcode %d", inst.Op)
	}
	return nil
}

func (p *Program) slice(s Slot) []float64 {
	var buf []float64
	switch s.Segment {
	case SegmentInput:
		buf = p.inBuf
	case SegmentOutput:
		buf = p.outBuf
	case SegmentConstant:
		buf = p.consts
	case SegmentLocal:
		buf = p.locals
	case SegmentState:
		buf = p.state
	}
	return buf[s.Offset : s.Offset+s.Len]
}

// Listing returns a human-readable disassembly of the program: the segment
// sizes, the port declarations and the numbered instruction sequence.
func (p *Program) Listing() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "program %q\n", p.name)
	fmt.Fprintf(&sb, "  segments: input=%d output=%d constant=%d local=%d state=%d\n",
		p.inputSize, p.outputSize, len(p.consts), p.localsSize, len(p.state))
	for _, spec := range p.inputs {
		fmt.Fprintf(&sb, "  input  %-16s %d\n", spec.Name, spec.Size)
	}
	for _, spec := range p.outputs {
		fmt.Fprintf(&sb, "  output %-16s %d\n", spec.Name, spec.Size)
	}
	for ii, inst := range p.instructions {
		fmt.Fprintf(&sb, "%4d  %s\n", ii, inst)
	}
	return sb.String()
}
