package archive_test

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yosshor/ELL/activations"
	"github.com/yosshor/ELL/archive"
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

func buildModel(t *testing.T, name string) *model.Model {
	m := model.New(name)
	in := nodes.NewInput[float32](m, "features", model.MakeLayout(inputSize))
	trigger := nodes.NewInput[int32](m, "reset", model.MakeLayout(1))
	lstm := nodes.NewLSTMLayer(m, testLayer(), model.MakeLayout(inputSize),
		model.FromOutput(in.Output()), model.FromOutput(trigger.Output()))
	nodes.NewOutput[float32](m, "prediction", model.MakeLayout(hiddenSize),
		model.FromOutput(lstm.Output()))
	return m
}

func drive(t *testing.T, m *model.Model, xs [][]float64) [][]float64 {
	var features, reset nodes.ModelInput
	var out nodes.ModelOutput
	for _, n := range m.Nodes() {
		if in, ok := n.(nodes.ModelInput); ok {
			if in.Name() == "features" {
				features = in
			} else {
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
		reset.SetFromFloat64([]float64{0})
		require.NoError(t, m.Compute())
		results[ii] = slices.Clone(out.Float64Value())
	}
	return results
}

var testSteps = [][]float64{{0.5, -0.25}, {1.0, 0.75}, {-0.5, 0.25}}

func TestRoundTrip(t *testing.T) {
	m := buildModel(t, "round-trip")

	var buf bytes.Buffer
	require.NoError(t, archive.Write(&buf, m))

	restored, err := archive.Read(&buf)
	require.NoError(t, err)
	require.Equal(t, m.Name(), restored.Name())
	require.Equal(t, m.ID(), restored.ID())
	require.Equal(t, m.String(), restored.String())

	// Identical structure and parameters give identical evaluations.
	require.Equal(t, drive(t, m, testSteps), drive(t, restored, testSteps))
}

func TestRoundTripRefined(t *testing.T) {
	refined, err := model.RefineModel(buildModel(t, "refined-round-trip"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, archive.Write(&buf, refined))
	restored, err := archive.Read(&buf)
	require.NoError(t, err)
	require.Equal(t, refined.String(), restored.String())
	require.Equal(t, drive(t, refined, testSteps), drive(t, restored, testSteps))
}

func TestHalfPrecision(t *testing.T) {
	m := buildModel(t, "half")

	var full, half bytes.Buffer
	require.NoError(t, archive.Write(&full, m))
	require.NoError(t, archive.Write(&half, m, archive.WithHalfPrecision()))
	require.Less(t, half.Len(), full.Len())

	restored, err := archive.Read(&half)
	require.NoError(t, err)

	want := drive(t, m, testSteps)
	got := drive(t, restored, testSteps)
	for ii := range want {
		for jj := range want[ii] {
			// binary16 has ~3 decimal digits; state feedback compounds it.
			require.InDelta(t, want[ii][jj], got[ii][jj], 2e-2, "step %d element %d", ii, jj)
		}
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := archive.Read(bytes.NewReader([]byte("not a model archive")))
	require.Error(t, err)
}

// A corrupt length prefix must fail the read, not drive a huge allocation.
func TestReadRejectsOversizedLengths(t *testing.T) {
	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	require.NoError(t, w.WriteUint32(0x4D4C4C45)) // "ELLM"
	require.NoError(t, w.WriteUint32(1))
	require.NoError(t, w.WriteUint32(0xFFFFFFFF)) // model name length

	_, err := archive.Read(bytes.NewReader(buf.Bytes()))
	require.ErrorContains(t, err, "exceeds limit")

	r := archive.NewReader(bytes.NewReader(buf.Bytes()[8:]))
	_, err = archive.ReadValues[float32](r)
	require.ErrorContains(t, err, "exceeds limit")
}

func TestWriteValuesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	require.NoError(t, archive.WriteValues(w, []int32{1, -2, 3}))
	require.NoError(t, archive.WriteValues(w, []float64{0.5, -1.25}))

	r := archive.NewReader(&buf)
	ints, err := archive.ReadValues[int32](r)
	require.NoError(t, err)
	require.Equal(t, []int32{1, -2, 3}, ints)
	floats, err := archive.ReadValues[float64](r)
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, -1.25}, floats)
}
