// Package kernels holds the small dense-math kernels shared by the
// interpreted nodes and the compiled program's executor. All kernels are
// allocation-free and operate on pre-sized slices; callers own the sizing.
package kernels

import (
	"golang.org/x/exp/constraints"
)

// Zero clears dst.
func Zero[T constraints.Float](dst []T) {
	for ii := range dst {
		dst[ii] = 0
	}
}

// Add sets dst[i] = a[i] + b[i]. dst may alias a or b.
func Add[T constraints.Float](dst, a, b []T) {
	for ii := range dst {
		dst[ii] = a[ii] + b[ii]
	}
}

// Hadamard sets dst[i] = a[i] * b[i] (element-wise product). dst may alias
// a or b.
func Hadamard[T constraints.Float](dst, a, b []T) {
	for ii := range dst {
		dst[ii] = a[ii] * b[ii]
	}
}

// Gemv computes the dense matrix-vector product dst = mat · vec, where mat
// is row-major with len(dst) rows and len(vec) columns. dst must not alias
// mat or vec.
func Gemv[T constraints.Float](dst, mat, vec []T) {
	cols := len(vec)
	for row := range dst {
		var acc T
		r := mat[row*cols : (row+1)*cols]
		for col, v := range vec {
			acc += r[col] * v
		}
		dst[row] = acc
	}
}
