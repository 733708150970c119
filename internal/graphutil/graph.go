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

package graphutil

import (
	"sort"

	"github.com/zynamics/monoreil/analysis/instgraph"
	"gonum.org/v1/gonum/graph"
)

// IGraph is an abstraction over an instruction graph to work with existing graph libraries. It implements the
// methods to satisfy graph.Iterator and Gonum's graph.Directed
type IGraph struct {
	// The order of the graph
	order int

	// The original instruction graph the IGraph was constructed from
	Graph *instgraph.Graph

	// IDMap maps from node IDs to INodes
	IDMap map[int64]INode

	// Keys are all the node IDs, sorted
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between IDMap[x] and IDMap[y]
	Edges map[int64]map[int64]bool
}

// NewIterator returns a new iterator over the instruction graph where node ids are the instgraph.NodeID of
// each node. When reverse is true, the edges of the iterator go against the control flow.
func NewIterator(g *instgraph.Graph, reverse bool) IGraph {
	n := g.NodeCount()
	idmap := make(map[int64]INode, n)
	edges := make(map[int64]map[int64]bool, n)
	keys := make([]int64, 0, n)
	for _, id := range g.Nodes() {
		node, _ := g.Node(id)
		keys = append(keys, int64(id))
		idmap[int64(id)] = INode{node}
		if edges[int64(id)] == nil {
			edges[int64(id)] = map[int64]bool{}
		}
	}
	for _, eid := range g.Edges() {
		e, _ := g.Edge(eid)
		from, to := int64(e.Source), int64(e.Target)
		if reverse {
			from, to = to, from
		}
		edges[from][to] = true
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return IGraph{
		order: n,
		Graph: g,
		IDMap: idmap,
		Edges: edges,
		Keys:  keys,
	}
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order and Graph are the same as in origin, meaning that node indices will stay consistent
// across subgraphs.
func Subgraph(original IGraph, include []int64) IGraph {
	idmap := make(map[int64]INode, len(include))
	edges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))

	for j, i := range include {
		keys[j] = i
		idmap[i] = original.IDMap[i]
	}

	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if _, ok := idmap[e]; ok {
				edges[i][e] = true
			}
		}
	}

	return IGraph{
		order: original.Order(),
		Graph: original.Graph,
		IDMap: idmap,
		Edges: edges,
		Keys:  keys,
	}
}

// successors returns the successors of v in increasing order
func (c IGraph) successors(v int64) []int64 {
	res := make([]int64, 0, len(c.Edges[v]))
	for w := range c.Edges[v] {
		res = append(res, w)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Order implements the order of the graph.Iterator interface for the IGraph
func (c IGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the IGraph
func (c IGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.IDMap[int64(v)]; !ok {
		return false
	}
	for _, w := range c.successors(int64(v)) {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (c IGraph) Node(id int64) graph.Node {
	n, ok := c.IDMap[id]
	if !ok {
		return nil
	}
	return n
}

// Nodes returns the set of nodes in the graph
func (c IGraph) Nodes() graph.Nodes {
	keys := make([]int64, 0, len(c.IDMap))
	for _, k := range c.Keys {
		if _, ok := c.IDMap[k]; ok {
			keys = append(keys, k)
		}
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   -1,
	}
}

// From returns the set of nodes reachable in one step from the id
func (c IGraph) From(id int64) graph.Nodes {
	return &NodeSet{
		nodes: c.IDMap,
		ids:   c.successors(id),
		cur:   -1,
	}
}

// To returns the set of nodes that reach the id in one step
func (c IGraph) To(id int64) graph.Nodes {
	var keys []int64
	for _, k := range c.Keys {
		if c.Edges[k][id] {
			keys = append(keys, k)
		}
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   -1,
	}
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c IGraph) HasEdgeBetween(xid, yid int64) bool {
	xe := c.Edges[xid]
	ye := c.Edges[yid]
	return xe[yid] || ye[xid]
}

// HasEdgeFromTo returns whether there is an edge from uid to vid
func (c IGraph) HasEdgeFromTo(uid, vid int64) bool {
	return c.Edges[uid][vid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c IGraph) Edge(uid, vid int64) graph.Edge {
	ue := c.Edges[uid]
	if ue != nil {
		if ue[vid] {
			return IEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
		}
	}
	return nil
}

// *************** Nodes implementation **********************

// INode is a wrapper around an instgraph.Node that implements the graph.Node interface
type INode struct {
	Node instgraph.Node
}

// ID returns the id of the node
func (n INode) ID() int64 {
	return int64(n.Node.ID)
}

func (n INode) String() string {
	return n.Node.String()
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]INode

	// ids is the set of node ids in the iterator
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]
	// invariant: -1 <= cur < len(ids), and cur is -1 before the first call to Next
	cur int
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the number of nodes left in the set
func (ns *NodeSet) Len() int {
	return len(ns.ids) - ns.cur - 1
}

// Reset resets the id of the current node in the set
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.ids) {
		return nil
	}
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// IEdge implements the graph.Edge interface
type IEdge struct {
	from INode
	to   INode
}

// From returns the origin of the edge
func (e IEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e IEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e IEdge) ReversedEdge() graph.Edge {
	return IEdge{from: e.to, to: e.from}
}
