package modelfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yosshor/ELL/compiler"
	"github.com/yosshor/ELL/model"
	"github.com/yosshor/ELL/nodes"
)

const testDoc = `
name: speech
value_type: float32
nodes:
  - kind: input
    name: features
    dims: [2]
  - kind: input
    name: reset
    value_type: int32
    dims: [1]
  - kind: lstm
    name: lstm0
    input: features
    reset_trigger: reset
    hidden_size: 3
    activation: Tanh
    recurrent_activation: Sigmoid
    seed: 7
  - kind: output
    name: prediction
    input: lstm0
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speech.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDoc), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "speech", m.Name())
	require.Equal(t, 4, m.NumNodes())

	var lstm *nodes.LSTMLayerNode[float32]
	for _, n := range m.Nodes() {
		if l, ok := n.(*nodes.LSTMLayerNode[float32]); ok {
			lstm = l
		}
	}
	require.NotNil(t, lstm)
	require.Equal(t, 3, lstm.Layer().HiddenSize)
	require.NoError(t, lstm.Layer().Validate())

	// Built models are end-to-end usable: they refine and compile.
	refined, err := model.RefineModel(m)
	require.NoError(t, err)
	_, err = compiler.Compile(refined)
	require.NoError(t, err)
}

func TestLoadIsDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speech.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDoc), 0o644))

	a, err := Load(path)
	require.NoError(t, err)
	b, err := Load(path)
	require.NoError(t, err)

	// Same seed, same generated parameters.
	layerOf := func(m *model.Model) *nodes.LSTMLayerNode[float32] {
		for _, n := range m.Nodes() {
			if l, ok := n.(*nodes.LSTMLayerNode[float32]); ok {
				return l
			}
		}
		return nil
	}
	require.Equal(t, layerOf(a).Layer(), layerOf(b).Layer())
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(&File{Name: "bad", ValueType: "complex64"})
	require.ErrorContains(t, err, "unsupported model value type")

	_, err = Build(&File{Name: "bad", Nodes: []NodeSpec{
		{Kind: "output", Name: "out", Input: "missing"},
	}})
	require.ErrorContains(t, err, "unknown node")

	_, err = Build(&File{Name: "bad", Nodes: []NodeSpec{
		{Kind: "teleport", Name: "x"},
	}})
	require.ErrorContains(t, err, "unknown node kind")

	_, err = Build(&File{Name: "bad", Nodes: []NodeSpec{
		{Kind: "input", Name: "x", Dims: []int{1}},
		{Kind: "input", Name: "x", Dims: []int{1}},
	}})
	require.ErrorContains(t, err, "duplicate node name")

	_, err = Build(&File{Name: "bad", Nodes: []NodeSpec{
		{Kind: "constant", Name: "c", Dims: []int{3}, Values: []float64{1, 2}},
	}})
	require.ErrorIs(t, err, model.ErrShapeMismatch)
}
