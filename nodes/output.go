package nodes

import (
	"github.com/yosshor/ELL/archive"
	"github.com/yosshor/ELL/compiler"
	"github.com/yosshor/ELL/model"
)

// OutputNode is a sink node marking a model result: it gathers its bound
// elements into its own output buffer, where callers read results after
// Model.Compute. In a compiled program it becomes a declared output port of
// the emitted function, under the node's name.
type OutputNode[T model.Value] struct {
	model.NodeBase
	name    string
	in      *model.InputPort
	out     *model.OutputPort
	scratch []T
}

var (
	_ compiler.Compilable = (*OutputNode[float32])(nil)
	_ archive.Archiver    = (*OutputNode[float32])(nil)
	_ ModelOutput         = (*OutputNode[float64])(nil)
)

const outputNodeBaseName = "OutputNode"

// NewOutput creates an output node consuming the given elements and attaches
// it to m. The name becomes the compiled function's output port name.
func NewOutput[T model.Value](m *model.Model, name string, layout model.PortMemoryLayout, elements model.PortElements) *OutputNode[T] {
	n := &OutputNode[T]{name: name}
	n.Init(n, model.CompositeTypeName[T](outputNodeBaseName))
	n.in = n.AddInput(InputPortName, model.DTypeFor[T](), layout, elements)
	n.out = n.AddOutput(OutputPortName, model.DTypeFor[T](), layout)
	m.Attach(n)
	return n
}

// Name of the output, as exposed by the compiled function.
func (n *OutputNode[T]) Name() string { return n.name }

// Output is the port holding the gathered result.
func (n *OutputNode[T]) Output() *model.OutputPort { return n.out }

// Value returns the result buffer of the last evaluation.
func (n *OutputNode[T]) Value() []T { return model.Flat[T](n.out) }

// Float64Value returns the result of the last evaluation converted to
// float64. For drivers that do not know T; see ModelOutput.
func (n *OutputNode[T]) Float64Value() []float64 {
	flat := model.Flat[T](n.out)
	out := make([]float64, len(flat))
	for ii, v := range flat {
		out[ii] = float64(v)
	}
	return out
}

// Compute implements model.Node.
func (n *OutputNode[T]) Compute() error {
	n.scratch = model.Gather(n.in, n.scratch)
	copy(model.Flat[T](n.out), n.scratch)
	return nil
}

// Copy implements model.Node.
func (n *OutputNode[T]) Copy(t *model.Transformer) {
	fresh := NewOutput[T](t.Target(), n.name, n.out.Layout(), t.TransformElements(n.in.Elements()))
	t.RecordCopy(n, fresh)
}

// IsCompilable implements compiler.Compilable.
func (n *OutputNode[T]) IsCompilable(c *compiler.Compiler) bool { return true }

// Compile implements compiler.Compilable: the gathered value becomes a
// declared output of the program.
func (n *OutputNode[T]) Compile(c *compiler.Compiler, fn *compiler.FunctionEmitter) {
	dst := c.DeclareOutput(n.name, n.out.Size())
	fn.Copy(dst, c.Operand(n.in, fn))
	c.BindOutput(n.out, dst)
}

// ArchiveVersion implements archive.Archiver.
func (n *OutputNode[T]) ArchiveVersion() uint32 { return 1 }

// WriteArchive implements archive.Archiver.
func (n *OutputNode[T]) WriteArchive(w *archive.Writer) error {
	if err := w.WriteString(n.name); err != nil {
		return err
	}
	return w.WriteLayout(n.out.Layout())
}

func init() {
	registerOutput[float32]()
	registerOutput[float64]()
	registerOutput[int32]()
}

func registerOutput[T model.Value]() {
	archive.RegisterNodeType(model.CompositeTypeName[T](outputNodeBaseName),
		func(r *archive.Reader, hdr archive.NodeHeader, m *model.Model) error {
			name, err := r.ReadString()
			if err != nil {
				return err
			}
			layout, err := r.ReadLayout()
			if err != nil {
				return err
			}
			NewOutput[T](m, name, layout, hdr.MustElements(InputPortName))
			return nil
		})
}
