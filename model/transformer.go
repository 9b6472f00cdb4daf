package model

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// maxRefinePasses bounds the refinement fixpoint iteration. Each pass
// removes one level of composite nesting, so hitting the cap means a node
// refines into another refinable instance of itself.
const maxRefinePasses = 32

// Transformer rewrites a source model into a target model. It underlies the
// two graph rewrites: Copy (structure-preserving clone) and Refine (lower
// composites into primitive subgraphs). Nodes being copied or refined use
// TransformElements to re-target their input bindings and RecordOutput /
// RecordCopy to publish where their outputs went, so that downstream
// consumers are re-pointed automatically.
type Transformer struct {
	target  *Model
	outputs map[portKey]PortElements
}

type portKey struct {
	node NodeID
	port string
}

func newTransformer(name string) *Transformer {
	return &Transformer{
		target:  New(name),
		outputs: make(map[portKey]PortElements),
	}
}

// Target is the model being built by the rewrite. Node Copy/Refine
// implementations construct their replacements in it.
func (t *Transformer) Target() *Model { return t.target }

// TransformElements maps a binding expressed against the source model into
// the equivalent binding against the target model, slicing through the
// recorded output correspondences.
func (t *Transformer) TransformElements(e PortElements) PortElements {
	var out PortElements
	for _, r := range e.ranges {
		mapped, ok := t.outputs[portKey{node: r.Node, port: r.Port}]
		if !ok {
			exceptions.Panicf("TransformElements: output port %q of source node #%d has no correspondence in the target model (source nodes must be transformed in topological order)",
				r.Port, r.Node)
		}
		out = Concat(out, mapped.Slice(r.Start, r.Count))
	}
	return out
}

// RecordOutput declares that the source output port corresponds to the new
// elements in the target model. Sizes must match.
func (t *Transformer) RecordOutput(old *OutputPort, new PortElements) {
	if old.Size() != new.Size() {
		throwf(ErrShapeMismatch, "RecordOutput: source port %q has %d elements, replacement %s has %d",
			old.name, old.Size(), new, new.Size())
	}
	t.outputs[portKey{node: old.node.ID(), port: old.name}] = new
}

// RecordCopy records the pairwise output correspondence between a source
// node and its freshly constructed equivalent in the target model.
func (t *Transformer) RecordCopy(old, fresh Node) {
	oldOuts, freshOuts := old.Outputs(), fresh.Outputs()
	if len(oldOuts) != len(freshOuts) {
		exceptions.Panicf("RecordCopy: %s has %d outputs, its copy has %d", old.TypeName(), len(oldOuts), len(freshOuts))
	}
	for ii, op := range oldOuts {
		t.RecordOutput(op, FromOutput(freshOuts[ii]))
	}
}

// CopyModel produces a structure-preserving clone of src: one freshly
// constructed node per source node, all bindings re-targeted, node order
// preserved. Stateful nodes start in their reset state.
func CopyModel(src *Model) (*Model, error) {
	dst, _, err := runPass(src, false)
	return dst, err
}

// RefineModel lowers src until it contains only primitive nodes: each pass
// replaces every Refiner node with its primitive subgraph and copies the
// rest, and passes repeat until one completes without refining anything.
// Termination is bounded by the composite nesting depth.
func RefineModel(src *Model) (*Model, error) {
	current := src
	for pass := 1; pass <= maxRefinePasses; pass++ {
		next, refined, err := runPass(current, true)
		if err != nil {
			return nil, errors.WithMessagef(err, "refinement pass %d", pass)
		}
		klog.V(1).Infof("refinement pass %d on model %q: %d -> %d nodes (refined=%v)",
			pass, src.Name(), current.NumNodes(), next.NumNodes(), refined)
		if !refined {
			return next, nil
		}
		current = next
	}
	return nil, errors.Errorf("refinement of model %q did not reach a fixpoint after %d passes",
		src.Name(), maxRefinePasses)
}

// runPass walks src in arena (topological) order, refining or copying each
// node into a fresh target model. Builder panics thrown by node
// constructors are caught and returned as errors.
func runPass(src *Model, refine bool) (dst *Model, refinedAny bool, err error) {
	t := newTransformer(src.Name())
	err = exceptions.TryCatch[error](func() {
		for _, n := range src.nodes {
			if refine {
				if r, ok := n.(Refiner); ok {
					r.Refine(t)
					refinedAny = true
					continue
				}
			}
			n.Copy(t)
		}
	})
	if err != nil {
		return nil, false, err
	}
	return t.target, refinedAny, nil
}
