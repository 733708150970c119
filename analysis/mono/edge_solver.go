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

package mono

import (
	"fmt"

	"github.com/zynamics/monoreil/analysis/instgraph"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Seed is an edge and the state it starts with
type Seed struct {
	Edge  instgraph.EdgeID
	State Element
}

// EdgeSolver computes the fixpoint of a monotone analysis with one state per edge, starting from seed edges
type EdgeSolver struct {
	graph   *instgraph.Graph
	lattice Lattice
	walker  Walker
	opts    Options
}

// NewEdgeSolver returns an edge solver for the graph
func NewEdgeSolver(g *instgraph.Graph, lattice Lattice, walker Walker, opts Options) (*EdgeSolver, error) {
	switch {
	case g == nil:
		return nil, fmt.Errorf("%w: nil graph", ErrInvalidArgument)
	case lattice == nil:
		return nil, fmt.Errorf("%w: nil lattice", ErrInvalidArgument)
	case walker == nil:
		return nil, fmt.Errorf("%w: nil walker", ErrInvalidArgument)
	}
	return &EdgeSolver{graph: g, lattice: lattice, walker: walker, opts: opts}, nil
}

// EdgeResult is the result of an edge solver
type EdgeResult struct {
	Graph     *instgraph.Graph
	Direction Direction

	// States maps the edges reached from the seeds to their state
	States map[instgraph.EdgeID]Element

	// Iterations is the number of edges the solver processed
	Iterations int

	// Converged is false if the solver stopped because it reached the maximum number of iterations
	Converged bool
}

// Solve propagates the states of the seeds. Processing an edge runs the transfer function of the node its state
// flows into on the combined states of all the edges flowing into that node, and updates the edges that node flows
// into. Walking down, the false edges of a node receive the Branch state of its transition.
func (s *EdgeSolver) Solve(provider TransformationProvider, seeds []Seed) (*EdgeResult, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil transformation provider", ErrInvalidArgument)
	}
	logger := s.opts.logger()
	dir := s.walker.Direction()
	states := map[instgraph.EdgeID]Element{}
	wl := &worklist{}
	for _, seed := range seeds {
		if _, err := s.graph.Edge(seed.Edge); err != nil {
			return nil, fmt.Errorf("%w: seed %v", ErrInvalidArgument, err)
		}
		if seed.State == nil {
			return nil, fmt.Errorf("%w: seed edge %d has no state", ErrInvalidArgument, seed.Edge)
		}
		if prev, ok := states[seed.Edge]; ok {
			states[seed.Edge] = s.lattice.Combine([]Element{prev, seed.State})
		} else {
			states[seed.Edge] = seed.State.Copy()
		}
		wl.add(int(seed.Edge))
	}
	logger.Debugf("solving from %d seed edges %s", len(seeds), dir)

	iterations := 0
	for !wl.empty() {
		if s.opts.capped(iterations) {
			logger.Warnf("solver stopped after %d iterations with %d edges left", iterations, wl.len())
			return &EdgeResult{Graph: s.graph, Direction: dir, States: states, Iterations: iterations}, nil
		}
		iterations++
		n, err := s.walker.Carrier(s.graph, instgraph.EdgeID(wl.pop()))
		if err != nil {
			return nil, err
		}
		node, err := s.graph.Node(n)
		if err != nil {
			return nil, err
		}

		in, err := s.walker.InEdges(s.graph, n)
		if err != nil {
			return nil, err
		}
		var inputs []Element
		for _, e := range in {
			if st, ok := states[e]; ok {
				inputs = append(inputs, st)
			}
		}
		tr, err := provider.Transform(node, nil, s.lattice.Combine(inputs))
		if err != nil {
			return nil, fmt.Errorf("transfer function failed on %s: %w", node, err)
		}
		if tr.State == nil {
			return nil, fmt.Errorf("%w: transfer function returned no state for %s", ErrInvalidArgument, node)
		}

		out, err := s.walker.OutEdges(s.graph, n)
		if err != nil {
			return nil, err
		}
		for _, id := range out {
			e, err := s.graph.Edge(id)
			if err != nil {
				return nil, err
			}
			st := tr.along(e, dir)
			if e.Exit {
				st = st.Copy()
				st.OnInstructionExit()
			}
			old, had := states[id]
			if had && old.Equal(st) {
				continue
			}
			if had {
				if err := checkMonotone(s.lattice, s.opts, logger, old, st, e.String()); err != nil {
					return nil, err
				}
			}
			logger.Tracef("edge %s: %s", e, st)
			states[id] = st
			wl.add(int(id))
		}
	}
	logger.Debugf("solver converged after %d iterations, %d edges reached", iterations, len(states))
	return &EdgeResult{Graph: s.graph, Direction: dir, States: states, Iterations: iterations, Converged: true}, nil
}

// State returns the state of the edge, and false if the edge was not reached
func (r *EdgeResult) State(e instgraph.EdgeID) (Element, bool) {
	st, ok := r.States[e]
	return st, ok
}

// Edges returns the reached edges, in increasing order
func (r *EdgeResult) Edges() []instgraph.EdgeID {
	edges := maps.Keys(r.States)
	slices.Sort(edges)
	return edges
}

// AddressToState maps native instructions to the state flowing out of them: walking down, the states of the exit
// edges leaving the instruction; walking up, the states of the exit edges entering it. The states of several edges
// are combined. Synthetic nodes are skipped.
func (r *EdgeResult) AddressToState(lattice Lattice) map[uint64]Element {
	groups := map[uint64][]Element{}
	for _, id := range r.Edges() {
		e, err := r.Graph.Edge(id)
		if err != nil || !e.Exit {
			continue
		}
		end := e.Source
		if r.Direction == Up {
			end = e.Target
		}
		node, err := r.Graph.Node(end)
		if err != nil || node.Synthetic {
			continue
		}
		addr := node.Instruction.NativeAddress()
		groups[addr] = append(groups[addr], r.States[id])
	}
	res := make(map[uint64]Element, len(groups))
	for addr, states := range groups {
		if len(states) == 1 {
			res[addr] = states[0]
		} else {
			res[addr] = lattice.Combine(states)
		}
	}
	return res
}
