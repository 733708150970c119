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

package instgraph

import (
	"fmt"

	"github.com/zynamics/monoreil/analysis/reil"
)

const (
	// EntryAddress is the REIL address of the synthetic entry node
	EntryAddress uint64 = 0
	// ExitAddress is the REIL address of the synthetic exit node
	ExitAddress uint64 = 0xFFFFFF00
)

// FromFunction builds the instruction graph of a function. Instructions of a block are chained by unconditional
// edges, and the last instruction of a block is connected to the first instruction of each successor block with
// an edge of the same kind as the block edge.
// A synthetic entry nop is connected to every node without predecessors and every node without successors is
// connected to a synthetic exit nop.
func FromFunction(fn *reil.Function) (*Graph, error) {
	if err := fn.Validate(); err != nil {
		return nil, fmt.Errorf("could not build instruction graph: %w", err)
	}
	g := New()
	first := make([]NodeID, len(fn.Blocks))
	last := make([]NodeID, len(fn.Blocks))
	for _, b := range fn.Blocks {
		var prev NodeID
		for i, ins := range b.Instructions {
			id := g.AddNode(ins)
			if i == 0 {
				first[b.Index] = id
			} else if _, err := g.AddEdge(prev, id, reil.Unconditional); err != nil {
				return nil, err
			}
			prev = id
		}
		last[b.Index] = prev
	}
	for _, e := range fn.Edges {
		if _, err := g.AddEdge(last[e.Source], first[e.Target], e.Kind); err != nil {
			return nil, err
		}
	}

	n := g.NodeCount()
	entry := g.addNode(reil.NewNop(EntryAddress), true)
	exit := g.addNode(reil.NewNop(ExitAddress), true)
	for i := 0; i < n; i++ {
		id := NodeID(i)
		if len(g.in[id]) == 0 {
			if _, err := g.AddEdge(entry, id, reil.Unconditional); err != nil {
				return nil, err
			}
		}
		if len(g.out[id]) == 0 {
			if _, err := g.AddEdge(id, exit, reil.Unconditional); err != nil {
				return nil, err
			}
		}
	}
	g.entry, g.exit, g.hasEnds = entry, exit, true
	return g, nil
}
