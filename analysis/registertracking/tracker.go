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

package registertracking

import (
	"errors"
	"fmt"

	"github.com/zynamics/monoreil/analysis/config"
	"github.com/zynamics/monoreil/analysis/instgraph"
	"github.com/zynamics/monoreil/analysis/mono"
	"github.com/zynamics/monoreil/analysis/reil"
	"github.com/zynamics/monoreil/internal/graphutil"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrNoSeedEdges is returned when the start instruction has no edge to seed the query on
var ErrNoSeedEdges = errors.New("no edge to start tracking from")

// Result is the result of a register tracking query
type Result struct {
	// Register is the tracked register
	Register string

	// Start is the native address the query started from
	Start uint64

	Direction mono.Direction

	// Iterations is the number of edges processed by the solver
	Iterations int

	// Converged is false when the solver reached the maximum number of iterations
	Converged bool

	states map[uint64]*RegisterSet
	edges  map[instgraph.EdgeID]*RegisterSet
}

// Track tracks the register in the function, starting from the native instruction at start
func Track(fn *reil.Function, start uint64, register string, opts Options) (*Result, error) {
	g, err := instgraph.FromFunction(fn)
	if err != nil {
		return nil, err
	}
	return TrackGraph(g, start, register, opts)
}

// TrackGraph tracks the register in the instruction graph, starting from the native instruction at start.
// The query is seeded on the edges entering the start instruction when opts.TrackIncoming is set, and on the edges
// leaving it otherwise.
func TrackGraph(g *instgraph.Graph, start uint64, register string, opts Options) (*Result, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", mono.ErrInvalidArgument)
	}
	if register == "" {
		return nil, fmt.Errorf("%w: no register to track", mono.ErrInvalidArgument)
	}
	var edges []instgraph.EdgeID
	if opts.TrackIncoming {
		edges = g.IncomingEdgesForAddress(start)
	} else {
		edges = g.OutgoingEdgesForAddress(start)
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("%w at %08X", ErrNoSeedEdges, start)
	}
	seeds := make([]mono.Seed, len(edges))
	for i, e := range edges {
		seeds[i] = mono.Seed{Edge: e, State: Seed(register)}
	}

	lattice := Lattice{}
	solver, err := mono.NewEdgeSolver(g, lattice, mono.WalkerFor(opts.Direction), opts.solverOptions())
	if err != nil {
		return nil, err
	}
	if opts.Logger != nil {
		opts.Logger.Infof("tracking %s from %08X %s", register, start, opts.Direction)
	}
	if opts.Logger != nil && opts.Logger.Level() >= config.DebugLevel {
		opts.Logger.Debugf("%d nodes in the scope of the query", len(scope(g, edges, opts.Direction)))
	}
	res, err := solver.Solve(mono.PerInstruction(NewTransformationProvider(opts)), seeds)
	if err != nil {
		return nil, err
	}

	states := map[uint64]*RegisterSet{}
	for addr, st := range res.AddressToState(lattice) {
		rs, ok := st.(*RegisterSet)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a register set", mono.ErrInvalidArgument, st)
		}
		states[addr] = rs
	}
	edgeStates := make(map[instgraph.EdgeID]*RegisterSet, len(res.States))
	for e, st := range res.States {
		if rs, ok := st.(*RegisterSet); ok {
			edgeStates[e] = rs
		}
	}
	return &Result{
		Register:   register,
		Start:      start,
		Direction:  opts.Direction,
		Iterations: res.Iterations,
		Converged:  res.Converged,
		states:     states,
		edges:      edgeStates,
	}, nil
}

// Addresses returns the native addresses with a state, in increasing order
func (r *Result) Addresses() []uint64 {
	addrs := maps.Keys(r.states)
	slices.Sort(addrs)
	return addrs
}

// State returns the state flowing out of the native instruction, and false if the query did not reach it
func (r *Result) State(address uint64) (*RegisterSet, bool) {
	st, ok := r.states[address]
	return st, ok
}

// EdgeState returns the state of an edge of the instruction graph, and false if the query did not reach it
func (r *Result) EdgeState(e instgraph.EdgeID) (*RegisterSet, bool) {
	st, ok := r.edges[e]
	return st, ok
}

// scope returns the nodes the states of the seed edges can flow to
func scope(g *instgraph.Graph, seeds []instgraph.EdgeID, dir mono.Direction) []instgraph.NodeID {
	walker := mono.WalkerFor(dir)
	var roots []instgraph.NodeID
	for _, e := range seeds {
		if n, err := walker.Carrier(g, e); err == nil {
			roots = append(roots, n)
		}
	}
	return graphutil.Reachable(g, roots, dir == mono.Up)
}

// AddressToState returns a copy of the map from native addresses to states
func (r *Result) AddressToState() map[uint64]*RegisterSet {
	return maps.Clone(r.states)
}
