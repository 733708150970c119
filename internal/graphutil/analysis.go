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
	"github.com/yourbasic/graph"
	"github.com/zynamics/monoreil/analysis/instgraph"
	"golang.org/x/exp/slices"
)

// Reachable returns the nodes reachable from the roots, including the roots, in increasing order.
// When reverse is true, edges are followed against the control flow.
func Reachable(g *instgraph.Graph, roots []instgraph.NodeID, reverse bool) []instgraph.NodeID {
	it := NewIterator(g, reverse)
	seen := map[instgraph.NodeID]bool{}
	for _, r := range roots {
		if seen[r] || int(r) >= it.Order() {
			continue
		}
		seen[r] = true
		graph.BFS(it, int(r), func(_, w int, _ int64) {
			seen[instgraph.NodeID(w)] = true
		})
	}
	res := make([]instgraph.NodeID, 0, len(seen))
	for n := range seen {
		res = append(res, n)
	}
	slices.Sort(res)
	return res
}

// Stats summarizes the shape of an instruction graph
type Stats struct {
	Nodes     int
	Edges     int
	ExitEdges int

	// Loops is the number of self loops
	Loops int

	// Components is the number of strongly connected components with a cycle
	Components int

	// Cycles is the number of elementary cycles
	Cycles int

	Acyclic bool
}

// ComputeStats returns the statistics of the instruction graph
func ComputeStats(g *instgraph.Graph) Stats {
	it := NewIterator(g, false)
	check := graph.Check(it)
	s := Stats{
		Nodes:   g.NodeCount(),
		Edges:   g.EdgeCount(),
		Loops:   check.Loops,
		Acyclic: graph.Acyclic(it),
	}
	for _, id := range g.Edges() {
		if e, err := g.Edge(id); err == nil && e.Exit {
			s.ExitEdges++
		}
	}
	for _, c := range graph.StrongComponents(it) {
		if hasCycle(it, c) {
			s.Components++
		}
	}
	s.Cycles = len(FindAllElementaryCycles(it))
	return s
}
