package nodes

import (
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/yosshor/ELL/activations"
	"github.com/yosshor/ELL/archive"
	"github.com/yosshor/ELL/compiler"
	"github.com/yosshor/ELL/layers"
	"github.com/yosshor/ELL/model"
)

// LSTMBindings collects the input bindings of an LSTMNode. ResetTrigger is a
// scalar int32 signal; the weight ports carry the gate parameters, usually
// from ConstantNodes produced by refining an LSTMLayerNode.
type LSTMBindings struct {
	Input        model.PortElements
	ResetTrigger model.PortElements

	InputWeights     model.PortElements
	ForgetWeights    model.PortElements
	CandidateWeights model.PortElements
	OutputWeights    model.PortElements

	InputBias     model.PortElements
	ForgetBias    model.PortElements
	CandidateBias model.PortElements
	OutputBias    model.PortElements
}

// LSTMNode is the primitive recurrent cell: one evaluation consumes one
// input vector and advances the hidden and cell state by one step. The
// resetTrigger port clears the state on a falling edge (the trigger was
// nonzero on the previous evaluation and is zero now), so a held-high
// trigger masks further resets until it drops and rises again.
//
// The node requires canonical (row-major) input ordering; wirings with a
// permuted dimension order are rejected at attach time.
type LSTMNode[T Float] struct {
	model.NodeBase

	hiddenSize          int
	activation          activations.Kind
	recurrentActivation activations.Kind

	input   *model.InputPort
	trigger *model.InputPort
	weights [4]*model.InputPort
	biases  [4]*model.InputPort
	out     *model.OutputPort

	hidden      []T
	cell        []T
	prevTrigger bool

	// Gather and step scratch, reused across evaluations.
	x, newHidden, newCell []T
	wScratch              [4][]T
	bScratch              [4][]T
	trigScratch           []int32
}

var (
	_ compiler.Compilable = (*LSTMNode[float32])(nil)
	_ archive.Archiver    = (*LSTMNode[float32])(nil)
)

const lstmNodeBaseName = "LSTMNode"

var lstmTriggerLayout = model.MakeLayout(1)

// NewLSTM creates a primitive LSTM node and attaches it to m. The input
// layout determines the input size; the weight ports are declared with
// hiddenSize x (inputSize+hiddenSize) row-major layouts, the bias ports with
// hiddenSize. activation applies to the candidate branch and the cell
// output, recurrentActivation to the three gates.
func NewLSTM[T Float](m *model.Model, inputLayout model.PortMemoryLayout, hiddenSize int,
	activation, recurrentActivation activations.Kind, b LSTMBindings) *LSTMNode[T] {
	if hiddenSize <= 0 {
		throwf(model.ErrShapeMismatch, "NewLSTM: hidden size must be positive, got %d", hiddenSize)
	}
	inputSize := inputLayout.Size()
	n := &LSTMNode[T]{
		hiddenSize:          hiddenSize,
		activation:          activation,
		recurrentActivation: recurrentActivation,
		hidden:              make([]T, hiddenSize),
		cell:                make([]T, hiddenSize),
		newHidden:           make([]T, hiddenSize),
		newCell:             make([]T, hiddenSize),
	}
	n.Init(n, model.CompositeTypeName[T](lstmNodeBaseName))
	dtype := model.DTypeFor[T]()
	weightLayout := model.MakeLayout(hiddenSize, inputSize+hiddenSize)
	biasLayout := model.MakeLayout(hiddenSize)
	n.input = n.AddInput(InputPortName, dtype, inputLayout, b.Input)
	n.trigger = n.AddInput(ResetTriggerPortName, dtypes.Int32, lstmTriggerLayout, b.ResetTrigger)
	for ii, w := range []struct {
		name     string
		elements model.PortElements
	}{
		{InputWeightsPortName, b.InputWeights},
		{ForgetWeightsPortName, b.ForgetWeights},
		{CandidateWeightsPortName, b.CandidateWeights},
		{OutputWeightsPortName, b.OutputWeights},
	} {
		n.weights[ii] = n.AddInput(w.name, dtype, weightLayout, w.elements)
	}
	for ii, w := range []struct {
		name     string
		elements model.PortElements
	}{
		{InputBiasPortName, b.InputBias},
		{ForgetBiasPortName, b.ForgetBias},
		{CandidateBiasPortName, b.CandidateBias},
		{OutputBiasPortName, b.OutputBias},
	} {
		n.biases[ii] = n.AddInput(w.name, dtype, biasLayout, w.elements)
	}
	n.out = n.AddOutput(OutputPortName, dtype, model.MakeLayout(hiddenSize))
	m.Attach(n)
	return n
}

// Output is the hidden-state port, updated each evaluation.
func (n *LSTMNode[T]) Output() *model.OutputPort { return n.out }

// HiddenSize of the cell.
func (n *LSTMNode[T]) HiddenSize() int { return n.hiddenSize }

// HasState implements model.Node.
func (n *LSTMNode[T]) HasState() bool { return true }

// Reset implements model.Node: clears hidden and cell state and the trigger
// edge detector.
func (n *LSTMNode[T]) Reset() {
	clear(n.hidden)
	clear(n.cell)
	n.prevTrigger = false
}

// CanAcceptInputLayout implements model.Node: only canonical ordering.
func (n *LSTMNode[T]) CanAcceptInputLayout(order model.DimensionOrder) bool {
	return order.IsCanonical()
}

// Compute implements model.Node: one recurrent step.
func (n *LSTMNode[T]) Compute() error {
	n.trigScratch = model.Gather(n.trigger, n.trigScratch)
	trigger := n.trigScratch[0] != 0
	if n.prevTrigger && !trigger {
		clear(n.hidden)
		clear(n.cell)
	}
	n.prevTrigger = trigger

	n.x = model.Gather(n.input, n.x)
	layer := layers.LSTMLayer[T]{
		InputSize:           n.input.Size(),
		HiddenSize:          n.hiddenSize,
		Activation:          n.activation,
		RecurrentActivation: n.recurrentActivation,
	}
	for ii, p := range n.weights {
		n.wScratch[ii] = model.Gather(p, n.wScratch[ii])
	}
	for ii, p := range n.biases {
		n.bScratch[ii] = model.Gather(p, n.bScratch[ii])
	}
	layer.InputWeights, layer.ForgetWeights, layer.CandidateWeights, layer.OutputWeights =
		n.wScratch[0], n.wScratch[1], n.wScratch[2], n.wScratch[3]
	layer.InputBias, layer.ForgetBias, layer.CandidateBias, layer.OutputBias =
		n.bScratch[0], n.bScratch[1], n.bScratch[2], n.bScratch[3]

	layer.Step(n.x, n.hidden, n.cell, n.newHidden, n.newCell)
	copy(n.hidden, n.newHidden)
	copy(n.cell, n.newCell)
	copy(model.Flat[T](n.out), n.hidden)
	return nil
}

func (n *LSTMNode[T]) bindings(t *model.Transformer) LSTMBindings {
	return LSTMBindings{
		Input:            t.TransformElements(n.input.Elements()),
		ResetTrigger:     t.TransformElements(n.trigger.Elements()),
		InputWeights:     t.TransformElements(n.weights[0].Elements()),
		ForgetWeights:    t.TransformElements(n.weights[1].Elements()),
		CandidateWeights: t.TransformElements(n.weights[2].Elements()),
		OutputWeights:    t.TransformElements(n.weights[3].Elements()),
		InputBias:        t.TransformElements(n.biases[0].Elements()),
		ForgetBias:       t.TransformElements(n.biases[1].Elements()),
		CandidateBias:    t.TransformElements(n.biases[2].Elements()),
		OutputBias:       t.TransformElements(n.biases[3].Elements()),
	}
}

// Copy implements model.Node. The copy starts in the reset state.
func (n *LSTMNode[T]) Copy(t *model.Transformer) {
	fresh := NewLSTM[T](t.Target(), n.input.Layout(), n.hiddenSize,
		n.activation, n.recurrentActivation, n.bindings(t))
	t.RecordCopy(n, fresh)
}

// IsCompilable implements compiler.Compilable.
func (n *LSTMNode[T]) IsCompilable(c *compiler.Compiler) bool { return true }

// Compile implements compiler.Compilable. Hidden and cell state live in the
// program's state segment; the reset trigger's falling edge is detected
// against a one-element state slot holding the previous trigger value, and
// the conditional clear is emitted branch-free via ClearOnFlag.
func (n *LSTMNode[T]) Compile(c *compiler.Compiler, fn *compiler.FunctionEmitter) {
	inputSize, h := n.input.Size(), n.hiddenSize

	x := c.Operand(n.input, fn)
	trigger := c.Operand(n.trigger, fn)
	var weights, biases [4]compiler.Slot
	for ii := range n.weights {
		weights[ii] = c.Operand(n.weights[ii], fn)
		biases[ii] = c.Operand(n.biases[ii], fn)
	}

	hidden := c.AllocState(n, "hidden", h)
	cell := c.AllocState(n, "cell", h)
	prevTrigger := c.AllocState(n, "prevTrigger", 1)

	resetFlag := c.AllocLocal(1)
	fn.FallingEdge(resetFlag, prevTrigger, trigger)
	fn.Copy(prevTrigger, trigger)
	fn.ClearOnFlag(resetFlag, hidden)
	fn.ClearOnFlag(resetFlag, cell)

	// xh = concat(x, hidden): the shared affine input of all four gates.
	xh := c.AllocLocal(inputSize + h)
	fn.Copy(xh.Sub(0, inputSize), x)
	fn.Copy(xh.Sub(inputSize, h), hidden)

	gate := func(w, b compiler.Slot, act activations.Kind) compiler.Slot {
		g := c.AllocLocal(h)
		fn.Gemv(g, w, xh)
		fn.Add(g, g, b)
		fn.Activation(act, g, g)
		return g
	}
	inputGate := gate(weights[0], biases[0], n.recurrentActivation)
	forgetGate := gate(weights[1], biases[1], n.recurrentActivation)
	candidate := gate(weights[2], biases[2], n.activation)
	outputGate := gate(weights[3], biases[3], n.recurrentActivation)

	// cell = forgetGate*cell + inputGate*candidate
	retained := c.AllocLocal(h)
	fn.Hadamard(retained, forgetGate, cell)
	written := c.AllocLocal(h)
	fn.Hadamard(written, inputGate, candidate)
	fn.Add(cell, retained, written)

	// hidden = outputGate * activation(cell)
	cellOut := c.AllocLocal(h)
	fn.Activation(n.activation, cellOut, cell)
	fn.Hadamard(hidden, outputGate, cellOut)

	fn.Copy(c.OutputSlot(n.out), hidden)
}

// ArchiveVersion implements archive.Archiver.
func (n *LSTMNode[T]) ArchiveVersion() uint32 { return 1 }

// WriteArchive implements archive.Archiver. The parameters travel over the
// weight bindings recorded in the node header, so the payload is only the
// structural description.
func (n *LSTMNode[T]) WriteArchive(w *archive.Writer) error {
	if err := w.WriteLayout(n.input.Layout()); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(n.hiddenSize)); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(n.activation)); err != nil {
		return err
	}
	return w.WriteUint8(uint8(n.recurrentActivation))
}

func init() {
	registerLSTM[float32]()
	registerLSTM[float64]()
}

func registerLSTM[T Float]() {
	archive.RegisterNodeType(model.CompositeTypeName[T](lstmNodeBaseName),
		func(r *archive.Reader, hdr archive.NodeHeader, m *model.Model) error {
			inputLayout, err := r.ReadLayout()
			if err != nil {
				return err
			}
			hiddenSize, err := r.ReadUint32()
			if err != nil {
				return err
			}
			act, err := r.ReadUint8()
			if err != nil {
				return err
			}
			recurrentAct, err := r.ReadUint8()
			if err != nil {
				return err
			}
			NewLSTM[T](m, inputLayout, int(hiddenSize),
				activations.Kind(act), activations.Kind(recurrentAct), LSTMBindings{
					Input:            hdr.MustElements(InputPortName),
					ResetTrigger:     hdr.MustElements(ResetTriggerPortName),
					InputWeights:     hdr.MustElements(InputWeightsPortName),
					ForgetWeights:    hdr.MustElements(ForgetWeightsPortName),
					CandidateWeights: hdr.MustElements(CandidateWeightsPortName),
					OutputWeights:    hdr.MustElements(OutputWeightsPortName),
					InputBias:        hdr.MustElements(InputBiasPortName),
					ForgetBias:       hdr.MustElements(ForgetBiasPortName),
					CandidateBias:    hdr.MustElements(CandidateBiasPortName),
					OutputBias:       hdr.MustElements(OutputBiasPortName),
				})
			return nil
		})
}
