// Package modelfile builds models from a YAML description, the authoring
// format consumed by the command-line tools. A model file names its value
// type and lists nodes in wiring order; each node references the outputs of
// earlier nodes by name.
//
// LSTM layer parameters can be given inline or generated deterministically
// from a seed, which keeps demo and benchmark files small.
package modelfile

import (
	"math/rand"
	"os"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/yosshor/ELL/activations"
	"github.com/yosshor/ELL/layers"
	"github.com/yosshor/ELL/model"
	"github.com/yosshor/ELL/nodes"
)

// File is the top-level YAML document.
type File struct {
	Name string `yaml:"name"`

	// ValueType is the model's float type: "float32" (default) or "float64".
	ValueType string `yaml:"value_type"`

	Nodes []NodeSpec `yaml:"nodes"`
}

// NodeSpec describes one node. Kind selects which of the remaining fields
// apply.
type NodeSpec struct {
	// Kind is one of "input", "constant", "lstm" or "output".
	Kind string `yaml:"kind"`

	// Name doubles as the reference key for later nodes and, for inputs and
	// outputs, as the port name of the compiled program.
	Name string `yaml:"name"`

	// ValueType overrides the model value type for this node; "int32" marks
	// control inputs such as reset triggers.
	ValueType string `yaml:"value_type"`

	// Dims is the layout of input and constant nodes.
	Dims []int `yaml:"dims"`

	// Values holds constant data.
	Values []float64 `yaml:"values"`

	// Input references the node feeding this one (lstm, output).
	Input string `yaml:"input"`

	// LSTM fields.
	ResetTrigger        string    `yaml:"reset_trigger"`
	HiddenSize          int       `yaml:"hidden_size"`
	Activation          string    `yaml:"activation"`
	RecurrentActivation string    `yaml:"recurrent_activation"`
	Seed                int64     `yaml:"seed"`
	Scale               float64   `yaml:"scale"`
	InputWeights        []float64 `yaml:"input_weights"`
	ForgetWeights       []float64 `yaml:"forget_weights"`
	CandidateWeights    []float64 `yaml:"candidate_weights"`
	OutputWeights       []float64 `yaml:"output_weights"`
	InputBias           []float64 `yaml:"input_bias"`
	ForgetBias          []float64 `yaml:"forget_bias"`
	CandidateBias       []float64 `yaml:"candidate_bias"`
	OutputBias          []float64 `yaml:"output_bias"`
}

// Load reads and builds a model file.
func Load(path string) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading model file %q", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing model file %q", path)
	}
	m, err := Build(&f)
	if err != nil {
		return nil, errors.WithMessagef(err, "building model file %q", path)
	}
	return m, nil
}

// Build constructs the described model.
func Build(f *File) (*model.Model, error) {
	switch f.ValueType {
	case "", "float32":
		return build[float32](f)
	case "float64":
		return build[float64](f)
	default:
		return nil, errors.Errorf("unsupported model value type %q", f.ValueType)
	}
}

func build[T nodes.Float](f *File) (*model.Model, error) {
	m := model.New(f.Name)
	outputs := make(map[string]*model.OutputPort)
	resolve := func(name string) *model.OutputPort {
		p, ok := outputs[name]
		if !ok {
			exceptions.Panicf("reference to unknown node %q (nodes must be declared before use)", name)
		}
		return p
	}
	err := exceptions.TryCatch[error](func() {
		for _, spec := range f.Nodes {
			if spec.Name == "" {
				exceptions.Panicf("every node needs a name (kind %q)", spec.Kind)
			}
			if _, dup := outputs[spec.Name]; dup {
				exceptions.Panicf("duplicate node name %q", spec.Name)
			}
			var out *model.OutputPort
			switch spec.Kind {
			case "input":
				out = buildInput[T](m, spec)
			case "constant":
				out = buildConstant[T](m, spec)
			case "lstm":
				layer := lstmLayer[T](spec, resolve(spec.Input).Size())
				out = nodes.NewLSTMLayer(m, layer, resolve(spec.Input).Layout(),
					model.FromOutput(resolve(spec.Input)),
					model.FromOutput(resolve(spec.ResetTrigger))).Output()
			case "output":
				src := resolve(spec.Input)
				out = buildOutput[T](m, spec, src)
			default:
				exceptions.Panicf("unknown node kind %q", spec.Kind)
			}
			outputs[spec.Name] = out
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func buildInput[T nodes.Float](m *model.Model, spec NodeSpec) *model.OutputPort {
	layout := model.MakeLayout(spec.Dims...)
	switch spec.ValueType {
	case "":
		return nodes.NewInput[T](m, spec.Name, layout).Output()
	case "int32":
		return nodes.NewInput[int32](m, spec.Name, layout).Output()
	case "float32":
		return nodes.NewInput[float32](m, spec.Name, layout).Output()
	case "float64":
		return nodes.NewInput[float64](m, spec.Name, layout).Output()
	default:
		exceptions.Panicf("node %q: unsupported value type %q", spec.Name, spec.ValueType)
		return nil
	}
}

func buildConstant[T nodes.Float](m *model.Model, spec NodeSpec) *model.OutputPort {
	layout := model.MakeLayout(spec.Dims...)
	switch spec.ValueType {
	case "":
		return nodes.NewConstant(m, layout, convert[T](spec.Values)).Output()
	case "int32":
		return nodes.NewConstant(m, layout, convert[int32](spec.Values)).Output()
	case "float32":
		return nodes.NewConstant(m, layout, convert[float32](spec.Values)).Output()
	case "float64":
		return nodes.NewConstant(m, layout, convert[float64](spec.Values)).Output()
	default:
		exceptions.Panicf("node %q: unsupported value type %q", spec.Name, spec.ValueType)
		return nil
	}
}

func buildOutput[T nodes.Float](m *model.Model, spec NodeSpec, src *model.OutputPort) *model.OutputPort {
	layout := src.Layout()
	elements := model.FromOutput(src)
	switch spec.ValueType {
	case "":
		return nodes.NewOutput[T](m, spec.Name, layout, elements).Output()
	case "int32":
		return nodes.NewOutput[int32](m, spec.Name, layout, elements).Output()
	case "float32":
		return nodes.NewOutput[float32](m, spec.Name, layout, elements).Output()
	case "float64":
		return nodes.NewOutput[float64](m, spec.Name, layout, elements).Output()
	default:
		exceptions.Panicf("node %q: unsupported value type %q", spec.Name, spec.ValueType)
		return nil
	}
}

func convert[T model.Value](values []float64) []T {
	out := make([]T, len(values))
	for ii, v := range values {
		out[ii] = T(v)
	}
	return out
}

// lstmLayer materializes the layer parameters of an lstm node spec: inline
// values when given, otherwise deterministic uniform values from the seed.
func lstmLayer[T nodes.Float](spec NodeSpec, inputSize int) layers.LSTMLayer[T] {
	layer := layers.LSTMLayer[T]{
		InputSize:           inputSize,
		HiddenSize:          spec.HiddenSize,
		Activation:          activationKind(spec.Activation, activations.Tanh),
		RecurrentActivation: activationKind(spec.RecurrentActivation, activations.Sigmoid),
	}
	scale := spec.Scale
	if scale == 0 {
		scale = 0.1
	}
	rng := rand.New(rand.NewSource(spec.Seed))
	wantW := spec.HiddenSize * (inputSize + spec.HiddenSize)
	materialize := func(field string, values []float64, want int) []T {
		if len(values) > 0 {
			if len(values) != want {
				exceptions.Panicf("node %q: %s has %d values, want %d", spec.Name, field, len(values), want)
			}
			return convert[T](values)
		}
		out := make([]T, want)
		for ii := range out {
			out[ii] = T((rng.Float64()*2 - 1) * scale)
		}
		return out
	}
	layer.InputWeights = materialize("input_weights", spec.InputWeights, wantW)
	layer.ForgetWeights = materialize("forget_weights", spec.ForgetWeights, wantW)
	layer.CandidateWeights = materialize("candidate_weights", spec.CandidateWeights, wantW)
	layer.OutputWeights = materialize("output_weights", spec.OutputWeights, wantW)
	layer.InputBias = materialize("input_bias", spec.InputBias, spec.HiddenSize)
	layer.ForgetBias = materialize("forget_bias", spec.ForgetBias, spec.HiddenSize)
	layer.CandidateBias = materialize("candidate_bias", spec.CandidateBias, spec.HiddenSize)
	layer.OutputBias = materialize("output_bias", spec.OutputBias, spec.HiddenSize)
	return layer
}

func activationKind(name string, fallback activations.Kind) activations.Kind {
	if name == "" {
		return fallback
	}
	kind, err := activations.KindString(name)
	if err != nil {
		exceptions.Panicf("unknown activation %q", name)
	}
	return kind
}
