package model_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yosshor/ELL/activations"
	"github.com/yosshor/ELL/layers"
	"github.com/yosshor/ELL/model"
	"github.com/yosshor/ELL/nodes"
)

const (
	testInputSize  = 2
	testHiddenSize = 3
)

// testLayer builds a small deterministic LSTM layer.
func testLayer() layers.LSTMLayer[float32] {
	fill := func(n int, scale float32) []float32 {
		out := make([]float32, n)
		for ii := range out {
			out[ii] = scale * float32(ii%5-2) / 10
		}
		return out
	}
	w := testHiddenSize * (testInputSize + testHiddenSize)
	return layers.LSTMLayer[float32]{
		InputSize:           testInputSize,
		HiddenSize:          testHiddenSize,
		InputWeights:        fill(w, 1.0),
		ForgetWeights:       fill(w, 0.8),
		CandidateWeights:    fill(w, 1.2),
		OutputWeights:       fill(w, 0.9),
		InputBias:           fill(testHiddenSize, 0.5),
		ForgetBias:          fill(testHiddenSize, 1.5),
		CandidateBias:       fill(testHiddenSize, 0.7),
		OutputBias:          fill(testHiddenSize, 0.3),
		Activation:          activations.Tanh,
		RecurrentActivation: activations.Sigmoid,
	}
}

func buildLSTMModel(t *testing.T, name string) *model.Model {
	m := model.New(name)
	in := nodes.NewInput[float32](m, "features", model.MakeLayout(testInputSize))
	trigger := nodes.NewInput[int32](m, "reset", model.MakeLayout(1))
	lstm := nodes.NewLSTMLayer(m, testLayer(), model.MakeLayout(testInputSize),
		model.FromOutput(in.Output()), model.FromOutput(trigger.Output()))
	nodes.NewOutput[float32](m, "prediction", model.MakeLayout(testHiddenSize),
		model.FromOutput(lstm.Output()))
	require.Equal(t, 4, m.NumNodes())
	return m
}

// driveSequence feeds one (features, trigger) pair per step and returns the
// per-step outputs. It locates the boundary nodes by name, so it works on
// originals, copies and refined models alike.
func driveSequence(t *testing.T, m *model.Model, xs [][]float64, triggers []float64) [][]float64 {
	var features, reset nodes.ModelInput
	var out nodes.ModelOutput
	for _, n := range m.Nodes() {
		if in, ok := n.(nodes.ModelInput); ok {
			switch in.Name() {
			case "features":
				features = in
			case "reset":
				reset = in
			}
		}
		if o, ok := n.(nodes.ModelOutput); ok {
			out = o
		}
	}
	require.NotNil(t, features)
	require.NotNil(t, reset)
	require.NotNil(t, out)

	results := make([][]float64, len(xs))
	for ii := range xs {
		features.SetFromFloat64(xs[ii])
		reset.SetFromFloat64(triggers[ii : ii+1])
		require.NoError(t, m.Compute())
		results[ii] = slices.Clone(out.Float64Value())
	}
	return results
}

var (
	testSteps = [][]float64{
		{0.5, -0.25}, {1.0, 0.75}, {-0.5, 0.25}, {0.1, 0.9}, {0.3, -0.7},
	}
	testTriggers = []float64{0, 0, 0, 0, 0}
)

func TestCopyModel(t *testing.T) {
	m := buildLSTMModel(t, "copy-src")
	want := driveSequence(t, m, testSteps, testTriggers)

	// The source model's state advanced; the copy must start reset and
	// reproduce the same sequence.
	clone, err := model.CopyModel(m)
	require.NoError(t, err)
	require.Equal(t, m.NumNodes(), clone.NumNodes())
	require.Equal(t, m.String(), clone.String())

	got := driveSequence(t, clone, testSteps, testTriggers)
	require.Equal(t, want, got)
}

func TestRefineModel(t *testing.T) {
	m := buildLSTMModel(t, "refine-src")
	want := driveSequence(t, m, testSteps, testTriggers)
	m.Reset()

	refined, err := model.RefineModel(m)
	require.NoError(t, err)

	// The composite is gone, replaced by its parameter constants and the
	// primitive cell: 2 inputs + 8 constants + LSTMNode + OutputNode.
	require.Equal(t, 12, refined.NumNodes())
	var constants, primitives int
	for _, n := range refined.Nodes() {
		_, isRefiner := n.(model.Refiner)
		require.False(t, isRefiner, "refined model still contains composite node %s", n.TypeName())
		switch n.(type) {
		case *nodes.ConstantNode[float32]:
			constants++
		case *nodes.LSTMNode[float32]:
			primitives++
		}
	}
	require.Equal(t, 8, constants)
	require.Equal(t, 1, primitives)

	got := driveSequence(t, refined, testSteps, testTriggers)
	require.Equal(t, len(want), len(got))
	for ii := range want {
		for jj := range want[ii] {
			require.InDelta(t, want[ii][jj], got[ii][jj], 1e-6,
				"step %d element %d", ii, jj)
		}
	}
}

func TestRefineModelIsIdempotent(t *testing.T) {
	m := buildLSTMModel(t, "refine-twice")
	once, err := model.RefineModel(m)
	require.NoError(t, err)
	twice, err := model.RefineModel(once)
	require.NoError(t, err)
	require.Equal(t, once.String(), twice.String())
}

func TestModelReset(t *testing.T) {
	m := buildLSTMModel(t, "reset")
	first := driveSequence(t, m, testSteps, testTriggers)
	m.Reset()
	second := driveSequence(t, m, testSteps, testTriggers)
	require.Equal(t, first, second)
}
