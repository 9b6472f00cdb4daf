package activations

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalar(t *testing.T) {
	require.Equal(t, 1.5, Scalar(Identity, 1.5))
	require.InDelta(t, 0.5, Scalar(Sigmoid, 0.0), 1e-12)
	require.InDelta(t, 1.0/(1.0+math.Exp(2)), Scalar(Sigmoid, -2.0), 1e-12)
	require.InDelta(t, math.Tanh(0.7), Scalar(Tanh, 0.7), 1e-12)

	// HardSigmoid clamps outside [-2.5, 2.5].
	require.Equal(t, 0.0, Scalar(HardSigmoid, -3.0))
	require.Equal(t, 1.0, Scalar(HardSigmoid, 3.0))
	require.InDelta(t, 0.7, Scalar(HardSigmoid, 1.0), 1e-12)

	require.Equal(t, float32(0), Scalar[float32](ReLU, -4))
	require.Equal(t, float32(4), Scalar[float32](ReLU, 4))
}

func TestApplyAliasing(t *testing.T) {
	values := []float64{-1, 0, 2}
	Apply(ReLU, values, values)
	require.Equal(t, []float64{0, 0, 2}, values)
}

func TestKindStrings(t *testing.T) {
	require.Equal(t, "Tanh", Tanh.String())
	require.Equal(t, "HardSigmoid", HardSigmoid.String())

	kind, err := KindString("Sigmoid")
	require.NoError(t, err)
	require.Equal(t, Sigmoid, kind)

	// Lookup is case-insensitive on the lower-cased form.
	kind, err = KindString("relu")
	require.NoError(t, err)
	require.Equal(t, ReLU, kind)

	_, err = KindString("Swish")
	require.Error(t, err)

	require.True(t, Tanh.IsAKind())
	require.False(t, Kind(200).IsAKind())
}
