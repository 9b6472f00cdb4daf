package model_test

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/require"

	"github.com/yosshor/ELL/model"
	"github.com/yosshor/ELL/nodes"
)

func catch(fn func()) error {
	return exceptions.TryCatch[error](fn)
}

func TestAttachRejectsBadBindings(t *testing.T) {
	m := model.New("bad-bindings")
	c := nodes.NewConstant(m, model.MakeLayout(2), []float32{1, 2})

	// Declared size vs binding size.
	err := catch(func() {
		nodes.NewOutput[float32](m, "out", model.MakeLayout(3), model.FromOutput(c.Output()))
	})
	require.ErrorIs(t, err, model.ErrShapeMismatch)

	// DType mismatch.
	err = catch(func() {
		nodes.NewOutput[int32](m, "out", model.MakeLayout(2), model.FromOutput(c.Output()))
	})
	require.ErrorIs(t, err, model.ErrShapeMismatch)

	// Unknown output port.
	err = catch(func() {
		bad := model.FromRanges([]model.PortRange{{Node: c.ID(), Port: "nope", Start: 0, Count: 2}})
		nodes.NewOutput[float32](m, "out", model.MakeLayout(2), bad)
	})
	require.ErrorIs(t, err, model.ErrShapeMismatch)

	// Reference to a node not yet in the model.
	err = catch(func() {
		bad := model.FromRanges([]model.PortRange{{Node: 7, Port: "output", Start: 0, Count: 2}})
		nodes.NewOutput[float32](m, "out", model.MakeLayout(2), bad)
	})
	require.ErrorIs(t, err, model.ErrShapeMismatch)

	// Out-of-bounds range.
	err = catch(func() {
		bad := model.FromRanges([]model.PortRange{{Node: c.ID(), Port: "output", Start: 1, Count: 2}})
		nodes.NewOutput[float32](m, "out", model.MakeLayout(2), bad)
	})
	require.ErrorIs(t, err, model.ErrShapeMismatch)

	// Failed attaches must not leave partial nodes behind.
	require.Equal(t, 1, m.NumNodes())
}

func TestFanInGather(t *testing.T) {
	m := model.New("fan-in")
	c0 := nodes.NewConstant(m, model.MakeLayout(3), []float64{1, 2, 3})
	c1 := nodes.NewConstant(m, model.MakeLayout(2), []float64{10, 20})
	out := nodes.NewOutput[float64](m, "out", model.MakeLayout(4), model.Concat(
		model.FromRange(c0.Output(), 1, 2),
		model.FromOutput(c1.Output()),
	))

	require.NoError(t, m.Compute())
	require.Equal(t, []float64{2, 3, 10, 20}, out.Value())
}

func TestTopologicalOrder(t *testing.T) {
	m := model.New("topo")
	c := nodes.NewConstant(m, model.MakeLayout(2), []float32{1, 2})
	o1 := nodes.NewOutput[float32](m, "o1", model.MakeLayout(2), model.FromOutput(c.Output()))
	o2 := nodes.NewOutput[float32](m, "o2", model.MakeLayout(2), model.FromOutput(o1.Output()))

	order, err := m.TopologicalOrder()
	require.NoError(t, err)
	require.Equal(t, []model.NodeID{c.ID(), o1.ID(), o2.ID()}, order)
}

func TestModelString(t *testing.T) {
	m := model.New("pretty")
	c := nodes.NewConstant(m, model.MakeLayout(2), []float32{1, 2})
	nodes.NewOutput[float32](m, "out", model.MakeLayout(2), model.FromOutput(c.Output()))

	s := m.String()
	require.Contains(t, s, `Model "pretty": 2 nodes`)
	require.Contains(t, s, "ConstantNode<float32>")
	require.Contains(t, s, "OutputNode<float32>")
	require.Contains(t, s, "#0.output[0:2]")
}
