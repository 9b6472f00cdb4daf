// Package model defines the dataflow-graph intermediate representation: typed
// ports and memory layouts, PortElements edge bindings, the Node contract,
// the Model arena owning the nodes, and the Transformer performing the
// Copy and Refine graph rewrites.
//
// Graph building follows a throw-and-catch error convention: constructors
// and binding helpers panic with a wrapped error kind (see errors.go) and
// phase drivers such as Transformer.RefineModel or compiler.Compile recover
// them with github.com/gomlx/exceptions and return them as plain errors.
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Model owns a collection of nodes forming a directed acyclic graph. Nodes
// live in an arena slice and are addressed by NodeID (their index); the edge
// set is derived from each node's PortElements bindings, never stored
// separately.
//
// Acyclicity is enforced at attach time: a binding may only reference nodes
// already present in the model, so the arena order is always a valid
// topological order. TopologicalOrder re-derives and re-checks it.
type Model struct {
	name  string
	id    uuid.UUID
	nodes []Node
}

// New creates an empty model with a fresh identity.
func New(name string) *Model {
	return &Model{name: name, id: uuid.New()}
}

// NewWithID creates an empty model with the given identity, used when
// reconstructing a model from an archive.
func NewWithID(name string, id uuid.UUID) *Model {
	return &Model{name: name, id: id}
}

// Name of the model.
func (m *Model) Name() string { return m.name }

// ID is the model's unique identity, preserved by archives.
func (m *Model) ID() uuid.UUID { return m.id }

// NumNodes returns how many nodes the model owns.
func (m *Model) NumNodes() int { return len(m.nodes) }

// Node returns the node with the given id. It panics on an out-of-range id.
func (m *Model) Node(id NodeID) Node {
	return m.nodes[id]
}

// Nodes returns the model's nodes in arena (topological) order. The slice is
// shared; callers must not modify it.
func (m *Model) Nodes() []Node { return m.nodes }

// Attach adds a node to the model, assigning its id and validating every
// input binding. It panics (throw-and-catch convention) with
// ErrShapeMismatch or ErrLayoutIncompatible on invalid wirings.
//
// Node constructors call Attach; user code normally never does.
func (m *Model) Attach(n Node) {
	b := n.base()
	if b.self == nil {
		throwf(ErrShapeMismatch, "node %s was not initialized (missing NodeBase.Init)", n.TypeName())
	}
	if b.id != InvalidNodeID {
		throwf(ErrShapeMismatch, "node %s#%d already belongs to a model", n.TypeName(), b.id)
	}
	for _, p := range n.Inputs() {
		m.validateBinding(n, p)
		if !n.CanAcceptInputLayout(p.layout.Order) {
			throwf(ErrLayoutIncompatible, "node %s rejects dimension order %s of input port %q",
				n.TypeName(), p.layout.Order, p.name)
		}
	}
	b.id = NodeID(len(m.nodes))
	b.model = m
	for _, p := range n.Inputs() {
		p.model = m
	}
	m.nodes = append(m.nodes, n)
}

// validateBinding checks that every range of the port's elements resolves to
// an output port already in the model, stays in bounds, matches the dtype,
// and that the total element count equals the port's declared size.
func (m *Model) validateBinding(n Node, p *InputPort) {
	total := 0
	for _, r := range p.elements.ranges {
		if r.Node < 0 || int(r.Node) >= len(m.nodes) {
			throwf(ErrShapeMismatch,
				"input port %q of node %s references node #%d, not present in the model (forward or dangling references would create a cycle)",
				p.name, n.TypeName(), r.Node)
		}
		src := m.nodes[r.Node].base().OutputByName(r.Port)
		if src == nil {
			throwf(ErrShapeMismatch, "input port %q of node %s references unknown output port %q of node #%d (%s)",
				p.name, n.TypeName(), r.Port, r.Node, m.nodes[r.Node].TypeName())
		}
		if src.dtype != p.dtype {
			throwf(ErrShapeMismatch, "input port %q of node %s is %s but referenced port %s is %s",
				p.name, n.TypeName(), p.dtype, r, src.dtype)
		}
		if r.Start < 0 || r.Count <= 0 || r.Start+r.Count > src.Size() {
			throwf(ErrShapeMismatch, "input port %q of node %s references range %s out of bounds for port of size %d",
				p.name, n.TypeName(), r, src.Size())
		}
		total += r.Count
	}
	if total != p.Size() {
		throwf(ErrShapeMismatch, "input port %q of node %s declares %d elements but its binding provides %d",
			p.name, n.TypeName(), p.Size(), total)
	}
}

// outputPort resolves a (node id, port name) pair. Bindings are validated at
// attach time, so failures here indicate a broken rewrite and panic.
func (m *Model) outputPort(id NodeID, name string) *OutputPort {
	p := m.nodes[id].base().OutputByName(name)
	if p == nil {
		panic(errors.Errorf("model %q has no output port %q on node #%d", m.name, name, id))
	}
	return p
}

// TopologicalOrder returns the node ids in dependency order, visiting each
// node exactly once (Kahn's algorithm over the derived edge relation). The
// attach-time invariant makes cycles impossible; an error here means the
// model was corrupted by unsafe mutation.
func (m *Model) TopologicalOrder() ([]NodeID, error) {
	inDegree := make([]int, len(m.nodes))
	dependents := make([][]NodeID, len(m.nodes))
	for _, n := range m.nodes {
		seen := make(map[NodeID]bool)
		for _, p := range n.Inputs() {
			for _, r := range p.elements.ranges {
				if seen[r.Node] {
					continue
				}
				seen[r.Node] = true
				inDegree[n.ID()]++
				dependents[r.Node] = append(dependents[r.Node], n.ID())
			}
		}
	}
	queue := make([]NodeID, 0, len(m.nodes))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, NodeID(id))
		}
	}
	order := make([]NodeID, 0, len(m.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if len(order) != len(m.nodes) {
		return nil, errors.Errorf("model %q contains a cycle: topological sort visited %d of %d nodes",
			m.name, len(order), len(m.nodes))
	}
	return order, nil
}

// Compute evaluates the whole model once: a sequential walk in topological
// order, calling Compute on each node. Deterministic for a fixed graph
// structure.
func (m *Model) Compute() error {
	order, err := m.TopologicalOrder()
	if err != nil {
		return err
	}
	for _, id := range order {
		n := m.nodes[id]
		if err := n.Compute(); err != nil {
			return errors.WithMessagef(err, "computing node #%d (%s)", id, n.TypeName())
		}
	}
	return nil
}

// Reset forces every stateful node back to its initial state.
func (m *Model) Reset() {
	for _, n := range m.nodes {
		if n.HasState() {
			n.Reset()
		}
	}
}

// String implements fmt.Stringer with one line per node.
func (m *Model) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Model %q: %d nodes\n", m.name, len(m.nodes))
	for _, n := range m.nodes {
		fmt.Fprintf(&sb, "#%d\t%s", n.ID(), n.TypeName())
		for _, p := range n.Inputs() {
			fmt.Fprintf(&sb, " %s", p)
		}
		for _, p := range n.Outputs() {
			fmt.Fprintf(&sb, " ->%s", p)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
