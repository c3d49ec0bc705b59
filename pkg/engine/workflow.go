// Package engine runs workflows: graphs of wrapped commands whose outputs
// feed the inputs of downstream nodes and, finally, a DataSink.
package engine

import (
	"errors"
	"fmt"
	"sort"

	"trampolino/pkg/interfaces"
)

var (
	ErrUnknownNode = errors.New("unknown node")
	ErrCycle       = errors.New("connection would create a cycle")
)

// Node is a named instance of a wrapped command inside a workflow.
type Node struct {
	Name  string
	Iface *interfaces.Interface

	// Overrides are raw text values applied with Parse just before the node
	// runs, after upstream outputs are connected. ${...} references are
	// resolved against the engine Context first.
	Overrides map[string]string
}

// NewNode binds a fresh Interface for spec to name.
func NewNode(name string, spec *interfaces.Spec) *Node {
	return &Node{Name: name, Iface: interfaces.New(spec)}
}

// Set stores a static input. It panics on error and is meant for
// pipeline construction where inputs are known to be well typed.
func (n *Node) Set(param string, value any) *Node {
	if err := n.Iface.Set(param, value); err != nil {
		panic(fmt.Sprintf("engine: node %s: %v", n.Name, err))
	}
	return n
}

// Override records a text value for param, applied at run time.
func (n *Node) Override(param, text string) error {
	if _, ok := n.Iface.Spec.Param(param); !ok {
		return fmt.Errorf("node %s (%s): %w: %s", n.Name, n.Iface.Spec.Name, interfaces.ErrUnknownParam, param)
	}
	if n.Overrides == nil {
		n.Overrides = make(map[string]string)
	}
	n.Overrides[param] = text
	return nil
}

// Edge connects an output of one node to an input of another.
type Edge struct {
	Src, SrcOutput string
	Dst, DstInput  string
}

// SinkEdge routes a node output into the workflow's DataSink.
type SinkEdge struct {
	Src, SrcOutput string
	Key            string
}

// Workflow is a named DAG of nodes.
type Workflow struct {
	Name  string
	Sink  *DataSink
	nodes map[string]*Node
	order []string // insertion order, for stable scheduling
	edges []Edge
	sinks []SinkEdge
}

func NewWorkflow(name string) *Workflow {
	return &Workflow{Name: name, nodes: make(map[string]*Node)}
}

// Add registers nodes. Adding two nodes with the same name is an error.
func (w *Workflow) Add(nodes ...*Node) error {
	for _, n := range nodes {
		if _, dup := w.nodes[n.Name]; dup {
			return fmt.Errorf("workflow %s: duplicate node %s", w.Name, n.Name)
		}
		w.nodes[n.Name] = n
		w.order = append(w.order, n.Name)
	}
	return nil
}

// Node looks up a node by name.
func (w *Workflow) Node(name string) (*Node, bool) {
	n, ok := w.nodes[name]
	return n, ok
}

// Nodes returns the nodes in insertion order.
func (w *Workflow) Nodes() []*Node {
	out := make([]*Node, 0, len(w.order))
	for _, name := range w.order {
		out = append(out, w.nodes[name])
	}
	return out
}

// Connect wires src's output to dst's input. Unknown nodes, unknown ports,
// an input fed twice and cycles are rejected.
func (w *Workflow) Connect(src, srcOutput, dst, dstInput string) error {
	s, ok := w.nodes[src]
	if !ok {
		return fmt.Errorf("workflow %s: %w: %s", w.Name, ErrUnknownNode, src)
	}
	d, ok := w.nodes[dst]
	if !ok {
		return fmt.Errorf("workflow %s: %w: %s", w.Name, ErrUnknownNode, dst)
	}
	if _, ok := s.Iface.Spec.Output(srcOutput); !ok {
		return fmt.Errorf("workflow %s: %s (%s) has no output %s", w.Name, src, s.Iface.Spec.Name, srcOutput)
	}
	if _, ok := d.Iface.Spec.Param(dstInput); !ok {
		return fmt.Errorf("workflow %s: %s (%s) has no input %s", w.Name, dst, d.Iface.Spec.Name, dstInput)
	}
	for _, e := range w.edges {
		if e.Dst == dst && e.DstInput == dstInput {
			return fmt.Errorf("workflow %s: %s.%s is already connected to %s.%s", w.Name, dst, dstInput, e.Src, e.SrcOutput)
		}
	}
	if src == dst || w.reaches(dst, src) {
		return fmt.Errorf("workflow %s: %s -> %s: %w", w.Name, src, dst, ErrCycle)
	}
	w.edges = append(w.edges, Edge{Src: src, SrcOutput: srcOutput, Dst: dst, DstInput: dstInput})
	return nil
}

// ConnectSink routes src's output into the DataSink under key.
func (w *Workflow) ConnectSink(src, srcOutput, key string) error {
	if w.Sink == nil {
		return fmt.Errorf("workflow %s: no datasink", w.Name)
	}
	s, ok := w.nodes[src]
	if !ok {
		return fmt.Errorf("workflow %s: %w: %s", w.Name, ErrUnknownNode, src)
	}
	if _, ok := s.Iface.Spec.Output(srcOutput); !ok {
		return fmt.Errorf("workflow %s: %s (%s) has no output %s", w.Name, src, s.Iface.Spec.Name, srcOutput)
	}
	if _, _, err := parseSinkKey(key); err != nil {
		return fmt.Errorf("workflow %s: %w", w.Name, err)
	}
	w.sinks = append(w.sinks, SinkEdge{Src: src, SrcOutput: srcOutput, Key: key})
	return nil
}

// reaches reports whether to is reachable from from along existing edges.
func (w *Workflow) reaches(from, to string) bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		for _, e := range w.edges {
			if e.Src == cur && !seen[e.Dst] {
				seen[e.Dst] = true
				stack = append(stack, e.Dst)
			}
		}
	}
	return false
}

// TopoOrder returns node names in a dependency-respecting order. Ties are
// broken by insertion order.
func (w *Workflow) TopoOrder() []string {
	indeg := make(map[string]int, len(w.nodes))
	for _, e := range w.edges {
		indeg[e.Dst]++
	}
	pos := make(map[string]int, len(w.order))
	for i, name := range w.order {
		pos[name] = i
	}
	var ready, out []string
	for _, name := range w.order {
		if indeg[name] == 0 {
			ready = append(ready, name)
		}
	}
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		out = append(out, cur)
		for _, e := range w.edges {
			if e.Src != cur {
				continue
			}
			indeg[e.Dst]--
			if indeg[e.Dst] == 0 {
				ready = append(ready, e.Dst)
				sort.SliceStable(ready, func(a, b int) bool { return pos[ready[a]] < pos[ready[b]] })
			}
		}
	}
	return out
}

// downstream returns the edges leaving node.
func (w *Workflow) downstream(node string) []Edge {
	var out []Edge
	for _, e := range w.edges {
		if e.Src == node {
			out = append(out, e)
		}
	}
	return out
}

func (w *Workflow) upstreamCount(node string) int {
	n := 0
	for _, e := range w.edges {
		if e.Dst == node {
			n++
		}
	}
	return n
}
