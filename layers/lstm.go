// Package layers holds the high-level layer descriptions wrapped by
// composite nodes. A layer bundles the learned parameters and activation
// choices of one network layer; it carries no graph structure and no
// runtime state of its own.
package layers

import (
	"golang.org/x/exp/constraints"

	"github.com/pkg/errors"

	"github.com/yosshor/ELL/activations"
	"github.com/yosshor/ELL/internal/kernels"
)

// LSTMLayer describes a recurrent LSTM layer: the four gate weight matrices
// and bias vectors, the layer sizes, and the two activation choices. Weight
// matrices are row-major with HiddenSize rows and InputSize+HiddenSize
// columns: each gate's affine transform is applied to the concatenation of
// the current input and the previous hidden state.
//
// Activation is applied to the candidate branch and the cell output
// (conventionally Tanh); RecurrentActivation is applied to the input,
// forget and output gates (conventionally Sigmoid).
type LSTMLayer[T constraints.Float] struct {
	InputSize  int
	HiddenSize int

	InputWeights     []T
	ForgetWeights    []T
	CandidateWeights []T
	OutputWeights    []T

	InputBias     []T
	ForgetBias    []T
	CandidateBias []T
	OutputBias    []T

	Activation          activations.Kind
	RecurrentActivation activations.Kind
}

// Validate checks that all parameter slices match the declared sizes.
func (l *LSTMLayer[T]) Validate() error {
	if l.InputSize <= 0 || l.HiddenSize <= 0 {
		return errors.Errorf("LSTMLayer sizes must be positive, got input=%d hidden=%d", l.InputSize, l.HiddenSize)
	}
	wantW := l.HiddenSize * (l.InputSize + l.HiddenSize)
	for _, w := range []struct {
		name   string
		values []T
		want   int
	}{
		{"InputWeights", l.InputWeights, wantW},
		{"ForgetWeights", l.ForgetWeights, wantW},
		{"CandidateWeights", l.CandidateWeights, wantW},
		{"OutputWeights", l.OutputWeights, wantW},
		{"InputBias", l.InputBias, l.HiddenSize},
		{"ForgetBias", l.ForgetBias, l.HiddenSize},
		{"CandidateBias", l.CandidateBias, l.HiddenSize},
		{"OutputBias", l.OutputBias, l.HiddenSize},
	} {
		if len(w.values) != w.want {
			return errors.Errorf("LSTMLayer.%s has %d elements, want %d", w.name, len(w.values), w.want)
		}
	}
	return nil
}

// Step performs one reference evaluation of the cell: given the input x and
// the previous hidden/cell state, it writes the new hidden and cell values.
// newHidden and newCell must have HiddenSize elements and must not alias
// hidden or cell. This is the numeric contract both the interpreted and the
// compiled LSTM node reproduce.
func (l *LSTMLayer[T]) Step(x, hidden, cell, newHidden, newCell []T) {
	h := l.HiddenSize
	xh := make([]T, 0, l.InputSize+h)
	xh = append(xh, x...)
	xh = append(xh, hidden...)

	gate := func(weights, bias []T, act activations.Kind) []T {
		out := make([]T, h)
		kernels.Gemv(out, weights, xh)
		kernels.Add(out, out, bias)
		activations.Apply(act, out, out)
		return out
	}
	inputGate := gate(l.InputWeights, l.InputBias, l.RecurrentActivation)
	forgetGate := gate(l.ForgetWeights, l.ForgetBias, l.RecurrentActivation)
	candidate := gate(l.CandidateWeights, l.CandidateBias, l.Activation)
	outputGate := gate(l.OutputWeights, l.OutputBias, l.RecurrentActivation)

	for ii := range newCell {
		newCell[ii] = forgetGate[ii]*cell[ii] + inputGate[ii]*candidate[ii]
	}
	for ii := range newHidden {
		newHidden[ii] = outputGate[ii] * activations.Scalar(l.Activation, newCell[ii])
	}
}
