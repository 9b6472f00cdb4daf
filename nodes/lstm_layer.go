package nodes

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/yosshor/ELL/activations"
	"github.com/yosshor/ELL/archive"
	"github.com/yosshor/ELL/compiler"
	"github.com/yosshor/ELL/layers"
	"github.com/yosshor/ELL/model"
)

// LSTMLayerNode is the composite form of a recurrent layer: it embeds the
// layer parameters directly and evaluates them interpreted, but cannot emit
// code. Refinement lowers it into ConstantNodes carrying the parameters plus
// a primitive LSTMNode wired to them; compilation requires that lowering to
// have happened.
type LSTMLayerNode[T Float] struct {
	model.NodeBase

	layer layers.LSTMLayer[T]

	input   *model.InputPort
	trigger *model.InputPort
	out     *model.OutputPort

	hidden      []T
	cell        []T
	prevTrigger bool

	x, newHidden, newCell []T
	trigScratch           []int32
}

var (
	_ model.Refiner       = (*LSTMLayerNode[float32])(nil)
	_ compiler.Compilable = (*LSTMLayerNode[float32])(nil)
	_ archive.Archiver    = (*LSTMLayerNode[float32])(nil)
)

const lstmLayerNodeBaseName = "LSTMLayerNode"

// NewLSTMLayer creates a composite LSTM layer node and attaches it to m. The
// input layout's flat size must equal the layer's InputSize.
func NewLSTMLayer[T Float](m *model.Model, layer layers.LSTMLayer[T], inputLayout model.PortMemoryLayout,
	input, resetTrigger model.PortElements) *LSTMLayerNode[T] {
	if err := layer.Validate(); err != nil {
		throwf(model.ErrShapeMismatch, "NewLSTMLayer: %v", err)
	}
	if inputLayout.Size() != layer.InputSize {
		throwf(model.ErrShapeMismatch, "NewLSTMLayer: input layout %s has %d elements, layer expects %d",
			inputLayout, inputLayout.Size(), layer.InputSize)
	}
	n := &LSTMLayerNode[T]{
		layer:     layer,
		hidden:    make([]T, layer.HiddenSize),
		cell:      make([]T, layer.HiddenSize),
		newHidden: make([]T, layer.HiddenSize),
		newCell:   make([]T, layer.HiddenSize),
	}
	n.Init(n, model.CompositeTypeName[T](lstmLayerNodeBaseName))
	dtype := model.DTypeFor[T]()
	n.input = n.AddInput(InputPortName, dtype, inputLayout, input)
	n.trigger = n.AddInput(ResetTriggerPortName, dtypes.Int32, lstmTriggerLayout, resetTrigger)
	n.out = n.AddOutput(OutputPortName, dtype, model.MakeLayout(layer.HiddenSize))
	m.Attach(n)
	return n
}

// Output is the hidden-state port, updated each evaluation.
func (n *LSTMLayerNode[T]) Output() *model.OutputPort { return n.out }

// Layer returns the embedded layer description.
func (n *LSTMLayerNode[T]) Layer() *layers.LSTMLayer[T] { return &n.layer }

// HasState implements model.Node.
func (n *LSTMLayerNode[T]) HasState() bool { return true }

// Reset implements model.Node.
func (n *LSTMLayerNode[T]) Reset() {
	clear(n.hidden)
	clear(n.cell)
	n.prevTrigger = false
}

// CanAcceptInputLayout implements model.Node: only canonical ordering, like
// the primitive node it refines into.
func (n *LSTMLayerNode[T]) CanAcceptInputLayout(order model.DimensionOrder) bool {
	return order.IsCanonical()
}

// Compute implements model.Node: one recurrent step on the embedded layer,
// with the same falling-edge reset semantics as the primitive node.
func (n *LSTMLayerNode[T]) Compute() error {
	n.trigScratch = model.Gather(n.trigger, n.trigScratch)
	trigger := n.trigScratch[0] != 0
	if n.prevTrigger && !trigger {
		clear(n.hidden)
		clear(n.cell)
	}
	n.prevTrigger = trigger

	n.x = model.Gather(n.input, n.x)
	n.layer.Step(n.x, n.hidden, n.cell, n.newHidden, n.newCell)
	copy(n.hidden, n.newHidden)
	copy(n.cell, n.newCell)
	copy(model.Flat[T](n.out), n.hidden)
	return nil
}

// Copy implements model.Node. The copy starts in the reset state.
func (n *LSTMLayerNode[T]) Copy(t *model.Transformer) {
	fresh := NewLSTMLayer[T](t.Target(), n.layer, n.input.Layout(),
		t.TransformElements(n.input.Elements()), t.TransformElements(n.trigger.Elements()))
	t.RecordCopy(n, fresh)
}

// Refine implements model.Refiner: the layer parameters become ConstantNodes
// and the recurrence a primitive LSTMNode consuming them. The composite's
// output is re-pointed at the primitive's.
func (n *LSTMLayerNode[T]) Refine(t *model.Transformer) {
	target := t.Target()
	l := &n.layer
	weightLayout := model.MakeLayout(l.HiddenSize, l.InputSize+l.HiddenSize)
	biasLayout := model.MakeLayout(l.HiddenSize)
	param := func(layout model.PortMemoryLayout, values []T) model.PortElements {
		return model.FromOutput(NewConstant(target, layout, values).Output())
	}
	lstm := NewLSTM[T](target, n.input.Layout(), l.HiddenSize, l.Activation, l.RecurrentActivation,
		LSTMBindings{
			Input:            t.TransformElements(n.input.Elements()),
			ResetTrigger:     t.TransformElements(n.trigger.Elements()),
			InputWeights:     param(weightLayout, l.InputWeights),
			ForgetWeights:    param(weightLayout, l.ForgetWeights),
			CandidateWeights: param(weightLayout, l.CandidateWeights),
			OutputWeights:    param(weightLayout, l.OutputWeights),
			InputBias:        param(biasLayout, l.InputBias),
			ForgetBias:       param(biasLayout, l.ForgetBias),
			CandidateBias:    param(biasLayout, l.CandidateBias),
			OutputBias:       param(biasLayout, l.OutputBias),
		})
	t.RecordOutput(n.out, model.FromOutput(lstm.Output()))
}

// IsCompilable implements compiler.Compilable: never. The refinement pass
// must lower the composite first.
func (n *LSTMLayerNode[T]) IsCompilable(c *compiler.Compiler) bool { return false }

// Compile implements compiler.Compilable; unreachable since IsCompilable is
// false.
func (n *LSTMLayerNode[T]) Compile(c *compiler.Compiler, fn *compiler.FunctionEmitter) {
	exceptions.Panicf("%s cannot emit code, refine the model first", n.TypeName())
}

// ArchiveVersion implements archive.Archiver.
func (n *LSTMLayerNode[T]) ArchiveVersion() uint32 { return 1 }

// WriteArchive implements archive.Archiver: the layer parameters are the
// payload, since the composite owns them rather than consuming them over
// weight ports.
func (n *LSTMLayerNode[T]) WriteArchive(w *archive.Writer) error {
	if err := w.WriteLayout(n.input.Layout()); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(n.layer.InputSize)); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(n.layer.HiddenSize)); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(n.layer.Activation)); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(n.layer.RecurrentActivation)); err != nil {
		return err
	}
	for _, values := range [][]T{
		n.layer.InputWeights, n.layer.ForgetWeights, n.layer.CandidateWeights, n.layer.OutputWeights,
		n.layer.InputBias, n.layer.ForgetBias, n.layer.CandidateBias, n.layer.OutputBias,
	} {
		if err := archive.WriteValues(w, values); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	registerLSTMLayer[float32]()
	registerLSTMLayer[float64]()
}

func registerLSTMLayer[T Float]() {
	archive.RegisterNodeType(model.CompositeTypeName[T](lstmLayerNodeBaseName),
		func(r *archive.Reader, hdr archive.NodeHeader, m *model.Model) error {
			inputLayout, err := r.ReadLayout()
			if err != nil {
				return err
			}
			inputSize, err := r.ReadUint32()
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
			layer := layers.LSTMLayer[T]{
				InputSize:           int(inputSize),
				HiddenSize:          int(hiddenSize),
				Activation:          activations.Kind(act),
				RecurrentActivation: activations.Kind(recurrentAct),
			}
			for _, dst := range []*[]T{
				&layer.InputWeights, &layer.ForgetWeights, &layer.CandidateWeights, &layer.OutputWeights,
				&layer.InputBias, &layer.ForgetBias, &layer.CandidateBias, &layer.OutputBias,
			} {
				if *dst, err = archive.ReadValues[T](r); err != nil {
					return err
				}
			}
			NewLSTMLayer[T](m, layer, inputLayout,
				hdr.MustElements(InputPortName), hdr.MustElements(ResetTriggerPortName))
			return nil
		})
}
