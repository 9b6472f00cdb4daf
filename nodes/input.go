package nodes

import (
	"github.com/yosshor/ELL/archive"
	"github.com/yosshor/ELL/compiler"
	"github.com/yosshor/ELL/model"
)

// InputNode is a source node: it has no inputs and republishes whatever
// value was last set on it. In a compiled program it becomes a declared
// input port of the emitted function, under the node's name.
type InputNode[T model.Value] struct {
	model.NodeBase
	name string
	out  *model.OutputPort
}

var (
	_ compiler.Compilable = (*InputNode[float32])(nil)
	_ archive.Archiver    = (*InputNode[float32])(nil)
	_ ModelInput          = (*InputNode[int32])(nil)
)

const inputNodeBaseName = "InputNode"

// NewInput creates an input node with the given port name and layout and
// attaches it to m. The name becomes the compiled function's input port
// name, so it must be unique among the model's input nodes.
func NewInput[T model.Value](m *model.Model, name string, layout model.PortMemoryLayout) *InputNode[T] {
	n := &InputNode[T]{name: name}
	n.Init(n, model.CompositeTypeName[T](inputNodeBaseName))
	n.out = n.AddOutput(OutputPortName, model.DTypeFor[T](), layout)
	m.Attach(n)
	return n
}

// Name of the input, as exposed by the compiled function.
func (n *InputNode[T]) Name() string { return n.name }

// Output is the port carrying the node's current value.
func (n *InputNode[T]) Output() *model.OutputPort { return n.out }

// SetValue sets the value the node publishes on subsequent evaluations.
func (n *InputNode[T]) SetValue(values []T) {
	if len(values) != n.out.Size() {
		throwf(model.ErrShapeMismatch, "InputNode %q: SetValue got %d elements, port holds %d",
			n.name, len(values), n.out.Size())
	}
	copy(model.Flat[T](n.out), values)
}

// SetFromFloat64 sets the value from float64 data, converting to the node's
// value type. For drivers that do not know T; see ModelInput.
func (n *InputNode[T]) SetFromFloat64(values []float64) {
	if len(values) != n.out.Size() {
		throwf(model.ErrShapeMismatch, "InputNode %q: SetFromFloat64 got %d elements, port holds %d",
			n.name, len(values), n.out.Size())
	}
	flat := model.Flat[T](n.out)
	for ii, v := range values {
		flat[ii] = T(v)
	}
}

// Compute implements model.Node. The output buffer already holds the value
// set via SetValue (zeros if never set).
func (n *InputNode[T]) Compute() error { return nil }

// Copy implements model.Node.
func (n *InputNode[T]) Copy(t *model.Transformer) {
	fresh := NewInput[T](t.Target(), n.name, n.out.Layout())
	t.RecordCopy(n, fresh)
}

// IsCompilable implements compiler.Compilable.
func (n *InputNode[T]) IsCompilable(c *compiler.Compiler) bool { return true }

// Compile implements compiler.Compilable: the node's value becomes a
// declared input of the program.
func (n *InputNode[T]) Compile(c *compiler.Compiler, fn *compiler.FunctionEmitter) {
	c.BindOutput(n.out, c.DeclareInput(n.name, n.out.Size()))
}

// ArchiveVersion implements archive.Archiver.
func (n *InputNode[T]) ArchiveVersion() uint32 { return 1 }

// WriteArchive implements archive.Archiver.
func (n *InputNode[T]) WriteArchive(w *archive.Writer) error {
	if err := w.WriteString(n.name); err != nil {
		return err
	}
	return w.WriteLayout(n.out.Layout())
}

func init() {
	registerInput[float32]()
	registerInput[float64]()
	registerInput[int32]()
}

func registerInput[T model.Value]() {
	archive.RegisterNodeType(model.CompositeTypeName[T](inputNodeBaseName),
		func(r *archive.Reader, hdr archive.NodeHeader, m *model.Model) error {
			name, err := r.ReadString()
			if err != nil {
				return err
			}
			layout, err := r.ReadLayout()
			if err != nil {
				return err
			}
			NewInput[T](m, name, layout)
			return nil
		})
}
