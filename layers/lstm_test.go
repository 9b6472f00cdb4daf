package layers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yosshor/ELL/activations"
)

// A 1x1 cell small enough to check against the textbook equations written
// out by hand.
func scalarLayer() LSTMLayer[float64] {
	return LSTMLayer[float64]{
		InputSize:           1,
		HiddenSize:          1,
		InputWeights:        []float64{0.5, -0.25},
		ForgetWeights:       []float64{0.3, 0.4},
		CandidateWeights:    []float64{-0.6, 0.2},
		OutputWeights:       []float64{0.7, -0.1},
		InputBias:           []float64{0.1},
		ForgetBias:          []float64{1.0},
		CandidateBias:       []float64{-0.2},
		OutputBias:          []float64{0.05},
		Activation:          activations.Tanh,
		RecurrentActivation: activations.Sigmoid,
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func TestStepScalar(t *testing.T) {
	l := scalarLayer()
	require.NoError(t, l.Validate())

	x, h, c := 0.8, 0.2, -0.3
	ig := sigmoid(0.5*x + -0.25*h + 0.1)
	fg := sigmoid(0.3*x + 0.4*h + 1.0)
	cand := math.Tanh(-0.6*x + 0.2*h + -0.2)
	og := sigmoid(0.7*x + -0.1*h + 0.05)
	wantCell := fg*c + ig*cand
	wantHidden := og * math.Tanh(wantCell)

	newHidden := make([]float64, 1)
	newCell := make([]float64, 1)
	l.Step([]float64{x}, []float64{h}, []float64{c}, newHidden, newCell)
	require.InDelta(t, wantCell, newCell[0], 1e-12)
	require.InDelta(t, wantHidden, newHidden[0], 1e-12)
}

func TestStepZeroState(t *testing.T) {
	// From the zero state with zero input, only the biases act.
	l := scalarLayer()
	newHidden := make([]float64, 1)
	newCell := make([]float64, 1)
	l.Step([]float64{0}, []float64{0}, []float64{0}, newHidden, newCell)

	wantCell := sigmoid(0.1) * math.Tanh(-0.2)
	require.InDelta(t, wantCell, newCell[0], 1e-12)
	require.InDelta(t, sigmoid(0.05)*math.Tanh(wantCell), newHidden[0], 1e-12)
}

func TestValidate(t *testing.T) {
	l := scalarLayer()
	require.NoError(t, l.Validate())

	l.InputWeights = l.InputWeights[:1]
	require.ErrorContains(t, l.Validate(), "InputWeights")

	l = scalarLayer()
	l.OutputBias = nil
	require.ErrorContains(t, l.Validate(), "OutputBias")

	l = scalarLayer()
	l.HiddenSize = 0
	require.ErrorContains(t, l.Validate(), "positive")
}
