// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package instgraph implements the instruction graph of a REIL function: a directed graph with one node per REIL
// instruction and one edge per possible control-flow transfer between two instructions.
//
// The graph is stored as an arena: nodes and edges live in slices and are identified by their index. The edge list is
// the single source of truth; the incoming and outgoing edge lists of each node are derived from it by [Graph.AddEdge]
// and [Graph.RemoveEdge].
//
// An edge whose target is the first REIL instruction of a native instruction is an exit edge: state flowing along it
// leaves the native instruction of its source.
package instgraph

import (
	"errors"
	"fmt"

	"github.com/zynamics/monoreil/analysis/reil"
)

// ErrUnknownNode is returned when a node or edge identifier does not belong to the graph
var ErrUnknownNode = errors.New("node not in graph")

// NodeID identifies a node in its graph
type NodeID int

// EdgeID identifies an edge in its graph
type EdgeID int

// Node is a node of the instruction graph
type Node struct {
	ID          NodeID
	Instruction reil.Instruction
	// Synthetic is true for the entry and exit nodes added by FromFunction
	Synthetic bool
}

func (n Node) String() string {
	if n.Synthetic {
		return fmt.Sprintf("#%d synthetic %s", n.ID, n.Instruction)
	}
	return fmt.Sprintf("#%d %s", n.ID, n.Instruction)
}

// Edge is a directed edge of the instruction graph
type Edge struct {
	ID     EdgeID
	Source NodeID
	Target NodeID
	Kind   reil.EdgeKind
	// Exit is true if the edge leaves the native instruction of its source
	Exit bool
}

// IsTrue returns true if the edge is not the false edge of a conditional jump
func (e Edge) IsTrue() bool { return e.Kind.IsTrue() }

func (e Edge) String() string {
	s := fmt.Sprintf("#%d -> #%d (%s", e.Source, e.Target, e.Kind)
	if e.Exit {
		s += ", exit"
	}
	return s + ")"
}

// Graph is an instruction graph. Graphs are not safe for concurrent mutation, but any number of goroutines can read a
// graph that is not being mutated.
type Graph struct {
	nodes   []Node
	edges   []Edge
	removed []bool
	in      [][]EdgeID
	out     [][]EdgeID
	byAddr  map[uint64]NodeID
	live    int
	entry   NodeID
	exit    NodeID
	hasEnds bool
}

// New returns an empty graph
func New() *Graph {
	return &Graph{byAddr: map[uint64]NodeID{}}
}

// AddNode adds a node for the instruction and returns its identifier
func (g *Graph) AddNode(ins reil.Instruction) NodeID {
	return g.addNode(ins, false)
}

func (g *Graph) addNode(ins reil.Instruction, synthetic bool) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{ID: id, Instruction: ins, Synthetic: synthetic})
	g.in = append(g.in, nil)
	g.out = append(g.out, nil)
	if !synthetic {
		g.byAddr[ins.Address] = id
	}
	return id
}

// AddEdge adds an edge from src to dst and returns its identifier
func (g *Graph) AddEdge(src, dst NodeID, kind reil.EdgeKind) (EdgeID, error) {
	if !g.hasNode(src) || !g.hasNode(dst) {
		return 0, fmt.Errorf("edge #%d -> #%d: %w", src, dst, ErrUnknownNode)
	}
	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, Edge{
		ID:     id,
		Source: src,
		Target: dst,
		Kind:   kind,
		Exit:   g.nodes[dst].Instruction.IsFirstOfNative(),
	})
	g.removed = append(g.removed, false)
	g.out[src] = append(g.out[src], id)
	g.in[dst] = append(g.in[dst], id)
	g.live++
	return id, nil
}

// RemoveEdge removes an edge from the graph. Identifiers of the other edges are not changed.
func (g *Graph) RemoveEdge(id EdgeID) error {
	if !g.hasEdge(id) {
		return fmt.Errorf("edge %d: %w", id, ErrUnknownNode)
	}
	e := g.edges[id]
	g.out[e.Source] = without(g.out[e.Source], id)
	g.in[e.Target] = without(g.in[e.Target], id)
	g.removed[id] = true
	g.live--
	return nil
}

func without(ids []EdgeID, id EdgeID) []EdgeID {
	res := ids[:0]
	for _, x := range ids {
		if x != id {
			res = append(res, x)
		}
	}
	return res
}

func (g *Graph) hasNode(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}

func (g *Graph) hasEdge(id EdgeID) bool {
	return id >= 0 && int(id) < len(g.edges) && !g.removed[id]
}

// NodeCount returns the number of nodes in the graph
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph
func (g *Graph) EdgeCount() int { return g.live }

// Node returns the node with the given identifier
func (g *Graph) Node(id NodeID) (Node, error) {
	if !g.hasNode(id) {
		return Node{}, fmt.Errorf("node #%d: %w", id, ErrUnknownNode)
	}
	return g.nodes[id], nil
}

// Edge returns the edge with the given identifier
func (g *Graph) Edge(id EdgeID) (Edge, error) {
	if !g.hasEdge(id) {
		return Edge{}, fmt.Errorf("edge %d: %w", id, ErrUnknownNode)
	}
	return g.edges[id], nil
}

// Source returns the source node of the edge
func (g *Graph) Source(id EdgeID) (NodeID, error) {
	e, err := g.Edge(id)
	return e.Source, err
}

// Target returns the target node of the edge
func (g *Graph) Target(id EdgeID) (NodeID, error) {
	e, err := g.Edge(id)
	return e.Target, err
}

// Nodes returns the identifiers of all nodes, in increasing order
func (g *Graph) Nodes() []NodeID {
	ids := make([]NodeID, len(g.nodes))
	for i := range g.nodes {
		ids[i] = NodeID(i)
	}
	return ids
}

// Edges returns the identifiers of all edges, in increasing order
func (g *Graph) Edges() []EdgeID {
	ids := make([]EdgeID, 0, g.live)
	for i := range g.edges {
		if !g.removed[i] {
			ids = append(ids, EdgeID(i))
		}
	}
	return ids
}

// Incoming returns the edges whose target is n
func (g *Graph) Incoming(n NodeID) ([]EdgeID, error) {
	if !g.hasNode(n) {
		return nil, fmt.Errorf("node #%d: %w", n, ErrUnknownNode)
	}
	return append([]EdgeID(nil), g.in[n]...), nil
}

// Outgoing returns the edges whose source is n
func (g *Graph) Outgoing(n NodeID) ([]EdgeID, error) {
	if !g.hasNode(n) {
		return nil, fmt.Errorf("node #%d: %w", n, ErrUnknownNode)
	}
	return append([]EdgeID(nil), g.out[n]...), nil
}

// Parents returns the sources of the incoming edges of n, one per edge
func (g *Graph) Parents(n NodeID) ([]NodeID, error) {
	in, err := g.Incoming(n)
	if err != nil {
		return nil, err
	}
	res := make([]NodeID, len(in))
	for i, e := range in {
		res[i] = g.edges[e].Source
	}
	return res, nil
}

// Children returns the targets of the outgoing edges of n, one per edge
func (g *Graph) Children(n NodeID) ([]NodeID, error) {
	out, err := g.Outgoing(n)
	if err != nil {
		return nil, err
	}
	res := make([]NodeID, len(out))
	for i, e := range out {
		res[i] = g.edges[e].Target
	}
	return res, nil
}

// NodeAt returns the node of the instruction at the REIL address
func (g *Graph) NodeAt(address uint64) (NodeID, bool) {
	id, ok := g.byAddr[address]
	return id, ok
}

// NodesAt returns the nodes of the instructions translated from the native instruction at the address
func (g *Graph) NodesAt(native uint64) []NodeID {
	var res []NodeID
	for _, n := range g.nodes {
		if !n.Synthetic && n.Instruction.NativeAddress() == native {
			res = append(res, n.ID)
		}
	}
	return res
}

// IncomingEdgesForAddress returns the edges whose target belongs to the native instruction at the address
func (g *Graph) IncomingEdgesForAddress(native uint64) []EdgeID {
	var res []EdgeID
	for _, id := range g.Edges() {
		if g.nodes[g.edges[id].Target].Instruction.NativeAddress() == native {
			res = append(res, id)
		}
	}
	return res
}

// OutgoingEdgesForAddress returns the exit edges whose source belongs to the native instruction at the address
func (g *Graph) OutgoingEdgesForAddress(native uint64) []EdgeID {
	var res []EdgeID
	for _, id := range g.Edges() {
		e := g.edges[id]
		if e.Exit && g.nodes[e.Source].Instruction.NativeAddress() == native {
			res = append(res, id)
		}
	}
	return res
}

// Entry returns the synthetic entry node added by FromFunction
func (g *Graph) Entry() (NodeID, bool) { return g.entry, g.hasEnds }

// Exit returns the synthetic exit node added by FromFunction
func (g *Graph) Exit() (NodeID, bool) { return g.exit, g.hasEnds }

// Validate checks that the incidence lists of the nodes agree with the edge list
func (g *Graph) Validate() error {
	inCount := make([]int, len(g.nodes))
	outCount := make([]int, len(g.nodes))
	for _, id := range g.Edges() {
		e := g.edges[id]
		if !g.hasNode(e.Source) || !g.hasNode(e.Target) {
			return fmt.Errorf("edge %s: %w", e, ErrUnknownNode)
		}
		inCount[e.Target]++
		outCount[e.Source]++
	}
	for i := range g.nodes {
		if len(g.in[i]) != inCount[i] || len(g.out[i]) != outCount[i] {
			return fmt.Errorf("incidence lists of node #%d do not match the edges", i)
		}
		for _, e := range g.in[i] {
			if !g.hasEdge(e) || g.edges[e].Target != NodeID(i) {
				return fmt.Errorf("incoming edge %d of node #%d does not target it", e, i)
			}
		}
		for _, e := range g.out[i] {
			if !g.hasEdge(e) || g.edges[e].Source != NodeID(i) {
				return fmt.Errorf("outgoing edge %d of node #%d does not start from it", e, i)
			}
		}
	}
	return nil
}
