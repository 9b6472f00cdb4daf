// Package activations defines the pluggable scalar activation functions
// applied by nodes and by compiled programs. An activation is pure and
// side-effect-free, and its semantics are numerically identical in the
// interpreted and compiled execution paths: both dispatch on the same Kind.
package activations

import (
	"math"

	"golang.org/x/exp/constraints"
)

//go:generate go tool enumer -type=Kind -output=gen_kind_enumer.go activations.go

// Kind identifies an activation function.
type Kind uint8

const (
	// Identity passes values through unchanged.
	Identity Kind = iota

	// Sigmoid is the logistic function 1/(1+e^-x), the conventional gate
	// activation for recurrent cells.
	Sigmoid

	// Tanh is the hyperbolic tangent, the conventional candidate/output
	// activation for recurrent cells.
	Tanh

	// HardSigmoid is the piecewise-linear approximation
	// clamp(0.2*x+0.5, 0, 1), cheaper on targets without exp.
	HardSigmoid

	// ReLU is max(0, x).
	ReLU
)

// Scalar applies the activation to a single value.
func Scalar[T constraints.Float](k Kind, x T) T {
	switch k {
	case Identity:
		return x
	case Sigmoid:
		return T(1.0 / (1.0 + math.Exp(-float64(x))))
	case Tanh:
		return T(math.Tanh(float64(x)))
	case HardSigmoid:
		v := 0.2*float64(x) + 0.5
		return T(math.Min(1, math.Max(0, v)))
	case ReLU:
		if x < 0 {
			return 0
		}
		return x
	}
	return x
}

// Apply applies the activation element-wise, dst[i] = k(src[i]). dst may
// alias src.
func Apply[T constraints.Float](k Kind, dst, src []T) {
	for ii, x := range src {
		dst[ii] = Scalar(k, x)
	}
}
