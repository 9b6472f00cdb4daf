package nodes

import (
	"slices"

	"github.com/yosshor/ELL/archive"
	"github.com/yosshor/ELL/compiler"
	"github.com/yosshor/ELL/model"
)

// ConstantNode publishes a fixed value. Refinement uses it to carry layer
// parameters: a composite's weights become constant nodes feeding the
// primitive node's weight ports. Compiled, the value is baked into the
// program's constant segment.
type ConstantNode[T model.Value] struct {
	model.NodeBase
	values []T
	out    *model.OutputPort
}

var (
	_ compiler.Compilable = (*ConstantNode[float32])(nil)
	_ archive.Archiver    = (*ConstantNode[float32])(nil)
)

const constantNodeBaseName = "ConstantNode"

// NewConstant creates a constant node holding a copy of values and attaches
// it to m.
func NewConstant[T model.Value](m *model.Model, layout model.PortMemoryLayout, values []T) *ConstantNode[T] {
	if len(values) != layout.Size() {
		throwf(model.ErrShapeMismatch, "NewConstant: %d values for layout %s of size %d",
			len(values), layout, layout.Size())
	}
	n := &ConstantNode[T]{values: slices.Clone(values)}
	n.Init(n, model.CompositeTypeName[T](constantNodeBaseName))
	n.out = n.AddOutput(OutputPortName, model.DTypeFor[T](), layout)
	m.Attach(n)
	return n
}

// Output is the port carrying the constant value.
func (n *ConstantNode[T]) Output() *model.OutputPort { return n.out }

// Values returns the node's values. The slice is shared; callers must not
// modify it.
func (n *ConstantNode[T]) Values() []T { return n.values }

// Compute implements model.Node.
func (n *ConstantNode[T]) Compute() error {
	copy(model.Flat[T](n.out), n.values)
	return nil
}

// Copy implements model.Node.
func (n *ConstantNode[T]) Copy(t *model.Transformer) {
	fresh := NewConstant[T](t.Target(), n.out.Layout(), n.values)
	t.RecordCopy(n, fresh)
}

// IsCompilable implements compiler.Compilable.
func (n *ConstantNode[T]) IsCompilable(c *compiler.Compiler) bool { return true }

// Compile implements compiler.Compilable.
func (n *ConstantNode[T]) Compile(c *compiler.Compiler, fn *compiler.FunctionEmitter) {
	values := make([]float64, len(n.values))
	for ii, v := range n.values {
		values[ii] = float64(v)
	}
	c.BindOutput(n.out, c.Constant(values))
}

// ArchiveVersion implements archive.Archiver.
func (n *ConstantNode[T]) ArchiveVersion() uint32 { return 1 }

// WriteArchive implements archive.Archiver.
func (n *ConstantNode[T]) WriteArchive(w *archive.Writer) error {
	if err := w.WriteLayout(n.out.Layout()); err != nil {
		return err
	}
	return archive.WriteValues(w, n.values)
}

func init() {
	registerConstant[float32]()
	registerConstant[float64]()
	registerConstant[int32]()
}

func registerConstant[T model.Value]() {
	archive.RegisterNodeType(model.CompositeTypeName[T](constantNodeBaseName),
		func(r *archive.Reader, hdr archive.NodeHeader, m *model.Model) error {
			layout, err := r.ReadLayout()
			if err != nil {
				return err
			}
			values, err := archive.ReadValues[T](r)
			if err != nil {
				return err
			}
			NewConstant[T](m, layout, values)
			return nil
		})
}
