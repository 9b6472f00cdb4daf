package compiler

import (
	"github.com/gomlx/exceptions"

	"github.com/yosshor/ELL/activations"
)

// FunctionEmitter appends instructions to the single output function of the
// program being compiled. Node Compile implementations emit through it; the
// emitter validates operand sizes so that malformed emissions fail at
// compile time, not at run time.
type FunctionEmitter struct {
	instructions []Instruction
}

func (f *FunctionEmitter) emit(inst Instruction) {
	f.instructions = append(f.instructions, inst)
}

func checkSameLen(op OpCode, slots ...Slot) {
	for _, s := range slots[1:] {
		if s.Len != slots[0].Len {
			exceptions.Panicf("%s: operand size mismatch: %s vs %s", op, slots[0], s)
		}
	}
}

// Copy emits dst[i] = a[i].
func (f *FunctionEmitter) Copy(dst, a Slot) {
	checkSameLen(OpCopy, dst, a)
	f.emit(Instruction{Op: OpCopy, Dst: dst, A: a})
}

// Zero emits dst[i] = 0.
func (f *FunctionEmitter) Zero(dst Slot) {
	f.emit(Instruction{Op: OpZero, Dst: dst})
}

// Add emits dst[i] = a[i] + b[i].
func (f *FunctionEmitter) Add(dst, a, b Slot) {
	checkSameLen(OpAdd, dst, a, b)
	f.emit(Instruction{Op: OpAdd, Dst: dst, A: a, B: b})
}

// Hadamard emits the element-wise product dst[i] = a[i] * b[i].
func (f *FunctionEmitter) Hadamard(dst, a, b Slot) {
	checkSameLen(OpMul, dst, a, b)
	f.emit(Instruction{Op: OpMul, Dst: dst, A: a, B: b})
}

// Gemv emits the matrix-vector product dst = mat · vec; mat must hold
// len(dst) x len(vec) elements, row-major.
func (f *FunctionEmitter) Gemv(dst, mat, vec Slot) {
	if mat.Len != dst.Len*vec.Len {
		exceptions.Panicf("%s: matrix %s is not %dx%d", OpGemv, mat, dst.Len, vec.Len)
	}
	f.emit(Instruction{Op: OpGemv, Dst: dst, A: mat, B: vec})
}

// Activation emits dst[i] = act(a[i]).
func (f *FunctionEmitter) Activation(act activations.Kind, dst, a Slot) {
	checkSameLen(OpActivation, dst, a)
	f.emit(Instruction{Op: OpActivation, Dst: dst, A: a, Activation: act})
}

// FallingEdge emits dst[0] = (prev true and current false), the edge
// detector for reset triggers.
func (f *FunctionEmitter) FallingEdge(dst, prev, current Slot) {
	if dst.Len != 1 || prev.Len != 1 || current.Len != 1 {
		exceptions.Panicf("%s: operands must be scalar: %s, %s, %s", OpFallingEdge, dst, prev, current)
	}
	f.emit(Instruction{Op: OpFallingEdge, Dst: dst, A: prev, B: current})
}

// ClearOnFlag emits a conditional zeroing of dst, taken when flag is true.
func (f *FunctionEmitter) ClearOnFlag(flag, dst Slot) {
	if flag.Len != 1 {
		exceptions.Panicf("%s: flag must be scalar: %s", OpClearOnFlag, flag)
	}
	f.emit(Instruction{Op: OpClearOnFlag, Dst: dst, A: flag})
}
