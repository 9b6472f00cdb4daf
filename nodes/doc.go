// Package nodes implements the concrete node kinds of the dataflow graph:
// the model boundary nodes (InputNode, OutputNode), ConstantNode, and the
// LSTM pair, where the composite LSTMLayerNode wraps a layers.LSTMLayer and
// refines into a primitive LSTMNode fed by constant parameter nodes.
//
// Node constructors attach the node to the model they are given and follow
// the throw-and-catch convention of the model package: invalid arguments
// panic with a wrapped error kind, to be recovered by phase drivers.
package nodes

import (
	"github.com/pkg/errors"

	"github.com/yosshor/ELL/model"
)

// Float constrains the value types LSTM nodes operate on. Control signals
// (reset triggers) are always int32 and are not constrained by it.
type Float interface {
	float32 | float64
}

// ModelInput is the value-type-erased view of an InputNode, for drivers
// feeding models whose value type is only known at run time.
type ModelInput interface {
	model.Node
	Name() string
	Output() *model.OutputPort
	SetFromFloat64(values []float64)
}

// ModelOutput is the value-type-erased view of an OutputNode.
type ModelOutput interface {
	model.Node
	Name() string
	Output() *model.OutputPort
	Float64Value() []float64
}

// Port names shared across node kinds.
const (
	InputPortName        = "input"
	OutputPortName       = "output"
	ResetTriggerPortName = "resetTrigger"

	InputWeightsPortName     = "inputWeights"
	ForgetWeightsPortName    = "forgetMeWeights"
	CandidateWeightsPortName = "candidateWeights"
	OutputWeightsPortName    = "outputWeights"
	InputBiasPortName        = "inputBias"
	ForgetBiasPortName       = "forgetMeBias"
	CandidateBiasPortName    = "candidateBias"
	OutputBiasPortName       = "outputBias"
)

func throwf(kind error, format string, args ...any) {
	panic(errors.Wrapf(kind, format, args...))
}
