package nodes_test

import (
	"slices"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/require"

	"github.com/yosshor/ELL/activations"
	"github.com/yosshor/ELL/layers"
	"github.com/yosshor/ELL/model"
	"github.com/yosshor/ELL/nodes"
)

const (
	inputSize  = 2
	hiddenSize = 3
)

func testLayer() layers.LSTMLayer[float32] {
	fill := func(n int, scale float32) []float32 {
		out := make([]float32, n)
		for ii := range out {
			out[ii] = scale * float32(ii%5-2) / 10
		}
		return out
	}
	w := hiddenSize * (inputSize + hiddenSize)
	return layers.LSTMLayer[float32]{
		InputSize:           inputSize,
		HiddenSize:          hiddenSize,
		InputWeights:        fill(w, 1.0),
		ForgetWeights:       fill(w, 0.8),
		CandidateWeights:    fill(w, 1.2),
		OutputWeights:       fill(w, 0.9),
		InputBias:           fill(hiddenSize, 0.5),
		ForgetBias:          fill(hiddenSize, 1.5),
		CandidateBias:       fill(hiddenSize, 0.7),
		OutputBias:          fill(hiddenSize, 0.3),
		Activation:          activations.Tanh,
		RecurrentActivation: activations.Sigmoid,
	}
}

type lstmHarness struct {
	m       *model.Model
	in      *nodes.InputNode[float32]
	trigger *nodes.InputNode[int32]
	out     *nodes.OutputNode[float32]
}

func newHarness(t *testing.T) *lstmHarness {
	m := model.New("lstm-test")
	in := nodes.NewInput[float32](m, "features", model.MakeLayout(inputSize))
	trigger := nodes.NewInput[int32](m, "reset", model.MakeLayout(1))
	lstm := nodes.NewLSTMLayer(m, testLayer(), model.MakeLayout(inputSize),
		model.FromOutput(in.Output()), model.FromOutput(trigger.Output()))
	out := nodes.NewOutput[float32](m, "prediction", model.MakeLayout(hiddenSize),
		model.FromOutput(lstm.Output()))
	return &lstmHarness{m: m, in: in, trigger: trigger, out: out}
}

func (h *lstmHarness) step(t *testing.T, x []float32, trigger int32) []float32 {
	h.in.SetValue(x)
	h.trigger.SetValue([]int32{trigger})
	require.NoError(t, h.m.Compute())
	return slices.Clone(h.out.Value())
}

// The trigger resets state on its falling edge only: a held-high trigger
// does nothing further, and the clear happens on the step where it drops.
func TestLSTMFallingEdgeReset(t *testing.T) {
	h := newHarness(t)
	x := []float32{0.5, -0.25}
	triggers := []int32{1, 1, 0, 0, 1, 0}
	outputs := make([][]float32, len(triggers))
	for ii, trig := range triggers {
		outputs[ii] = h.step(t, x, trig)
	}

	// State evolves while the trigger holds.
	require.NotEqual(t, outputs[0], outputs[1])
	// Falling edge at step 2 clears state, so step 2 replays step 0 and
	// step 3 replays step 1.
	require.Equal(t, outputs[0], outputs[2])
	require.Equal(t, outputs[1], outputs[3])
	// The rise at step 4 does not clear: step 4 continues from step 3.
	require.NotEqual(t, outputs[0], outputs[4])
	// Falling edge at step 5 clears again.
	require.Equal(t, outputs[0], outputs[5])
}

// The composite's interpreted step must match the layer's reference Step.
func TestLSTMLayerNodeMatchesReference(t *testing.T) {
	h := newHarness(t)
	layer := testLayer()
	hidden := make([]float32, hiddenSize)
	cell := make([]float32, hiddenSize)
	newHidden := make([]float32, hiddenSize)
	newCell := make([]float32, hiddenSize)

	steps := [][]float32{{0.5, -0.25}, {1.0, 0.75}, {-0.5, 0.25}}
	for _, x := range steps {
		layer.Step(x, hidden, cell, newHidden, newCell)
		copy(hidden, newHidden)
		copy(cell, newCell)
		require.Equal(t, hidden, h.step(t, x, 0))
	}
}

func TestLSTMNodeReset(t *testing.T) {
	h := newHarness(t)
	x := []float32{0.3, 0.6}
	first := h.step(t, x, 0)
	second := h.step(t, x, 0)
	require.NotEqual(t, first, second)

	h.m.Reset()
	require.Equal(t, first, h.step(t, x, 0))
}

func TestLSTMRejectsNonCanonicalLayout(t *testing.T) {
	m := model.New("layout-reject")
	layout := model.MakeLayout(1, inputSize).WithOrder(model.DimensionOrder{1, 0})
	in := nodes.NewInput[float32](m, "features", layout)
	trigger := nodes.NewInput[int32](m, "reset", model.MakeLayout(1))

	err := exceptions.TryCatch[error](func() {
		nodes.NewLSTMLayer(m, testLayer(), layout,
			model.FromOutput(in.Output()), model.FromOutput(trigger.Output()))
	})
	require.ErrorIs(t, err, model.ErrLayoutIncompatible)
}

func TestLSTMLayerValidation(t *testing.T) {
	m := model.New("bad-layer")
	in := nodes.NewInput[float32](m, "features", model.MakeLayout(inputSize))
	trigger := nodes.NewInput[int32](m, "reset", model.MakeLayout(1))

	layer := testLayer()
	layer.ForgetBias = layer.ForgetBias[:1]
	err := exceptions.TryCatch[error](func() {
		nodes.NewLSTMLayer(m, layer, model.MakeLayout(inputSize),
			model.FromOutput(in.Output()), model.FromOutput(trigger.Output()))
	})
	require.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestConstantNodeCompute(t *testing.T) {
	m := model.New("const")
	c := nodes.NewConstant(m, model.MakeLayout(2, 2), []float64{1, 2, 3, 4})
	out := nodes.NewOutput[float64](m, "out", model.MakeLayout(2, 2), model.FromOutput(c.Output()))
	require.NoError(t, m.Compute())
	require.Equal(t, []float64{1, 2, 3, 4}, out.Value())

	err := exceptions.TryCatch[error](func() {
		nodes.NewConstant(m, model.MakeLayout(3), []float64{1, 2})
	})
	require.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestInputNodeSetValue(t *testing.T) {
	m := model.New("input")
	in := nodes.NewInput[float32](m, "x", model.MakeLayout(3))
	out := nodes.NewOutput[float32](m, "out", model.MakeLayout(3), model.FromOutput(in.Output()))

	in.SetValue([]float32{7, 8, 9})
	require.NoError(t, m.Compute())
	require.Equal(t, []float32{7, 8, 9}, out.Value())

	err := exceptions.TryCatch[error](func() { in.SetValue([]float32{1}) })
	require.ErrorIs(t, err, model.ErrShapeMismatch)
}
