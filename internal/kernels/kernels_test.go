package kernels

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZero(t *testing.T) {
	values := []float32{1, 2, 3}
	Zero(values)
	require.Equal(t, []float32{0, 0, 0}, values)
}

func TestAddAndHadamard(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{10, 20, 30}
	dst := make([]float64, 3)

	Add(dst, a, b)
	require.Equal(t, []float64{11, 22, 33}, dst)

	Hadamard(dst, a, b)
	require.Equal(t, []float64{10, 40, 90}, dst)

	// Aliasing dst with an operand is allowed.
	Add(a, a, b)
	require.Equal(t, []float64{11, 22, 33}, a)
}

func TestGemv(t *testing.T) {
	// 2x3 row-major matrix times a 3-vector.
	mat := []float64{
		1, 2, 3,
		4, 5, 6,
	}
	vec := []float64{1, 0, -1}
	dst := make([]float64, 2)
	Gemv(dst, mat, vec)
	require.Equal(t, []float64{-2, -2}, dst)
}
