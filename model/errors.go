package model

import (
	"github.com/pkg/errors"
)

// Error kinds surfaced by graph construction, refinement and compilation.
// They are wrapped with context (node ids, port names, sizes) at the point
// of failure, so test with errors.Is.
var (
	// ErrShapeMismatch is reported at binding time, when the element count of
	// a PortElements disagrees with the declared size of the input port it
	// feeds.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrLayoutIncompatible is reported when a node rejects the memory layout
	// order of an input wiring (see Node.CanAcceptInputLayout).
	ErrLayoutIncompatible = errors.New("incompatible memory layout")

	// ErrNotCompilable is reported by the compiler when it reaches a node
	// that cannot emit code. After refinement this is fatal: the refinement
	// pass should have eliminated every such node.
	ErrNotCompilable = errors.New("node is not compilable")

	// ErrNotImplemented is reported by operations that are deliberately
	// unsupported, e.g. archiving a node type with no registered reader.
	ErrNotImplemented = errors.New("operation not implemented")
)

// throwf panics with kind wrapped with a formatted message and a stack trace.
// Graph building follows the throw-and-catch convention: builder entry points
// panic, phase drivers recover with exceptions.TryCatch and return the error.
func throwf(kind error, format string, args ...any) {
	panic(errors.Wrapf(kind, format, args...))
}
