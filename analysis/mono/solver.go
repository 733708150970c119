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

	"github.com/zynamics/monoreil/analysis/config"
	"github.com/zynamics/monoreil/analysis/instgraph"
)

// Solver computes the fixpoint of a monotone analysis with one state per node of a graph
type Solver struct {
	graph    *instgraph.Graph
	lattice  Lattice
	states   *StateVector
	branches map[instgraph.NodeID]Element
	provider TransformationProvider
	walker   Walker
	opts     Options
}

// Result is the result of a solver
type Result struct {
	// States is the frozen vector of the state of each node
	States *StateVector

	// Iterations is the number of nodes the solver processed
	Iterations int

	// Converged is false if the solver stopped because it reached the maximum number of iterations
	Converged bool
}

// NewSolver returns a solver for the graph. The initial vector must have a state for every node of the graph; it is
// copied, so later changes to its elements do not affect the solver.
func NewSolver(g *instgraph.Graph, lattice Lattice, initial *StateVector, provider TransformationProvider,
	walker Walker, opts Options) (*Solver, error) {
	switch {
	case g == nil:
		return nil, fmt.Errorf("%w: nil graph", ErrInvalidArgument)
	case lattice == nil:
		return nil, fmt.Errorf("%w: nil lattice", ErrInvalidArgument)
	case initial == nil:
		return nil, fmt.Errorf("%w: nil initial state vector", ErrInvalidArgument)
	case provider == nil:
		return nil, fmt.Errorf("%w: nil transformation provider", ErrInvalidArgument)
	case walker == nil:
		return nil, fmt.Errorf("%w: nil walker", ErrInvalidArgument)
	}
	if g.NodeCount() != initial.Size() {
		return nil, fmt.Errorf("%w: graph has %d nodes but the initial state vector has %d states",
			ErrInvalidArgument, g.NodeCount(), initial.Size())
	}
	for _, n := range g.Nodes() {
		if !initial.HasState(n) {
			node, _ := g.Node(n)
			return nil, fmt.Errorf("%w: node %s has no initial state", ErrInvalidArgument, node)
		}
	}
	return &Solver{
		graph:    g,
		lattice:  lattice,
		states:   initial.Clone(false),
		branches: map[instgraph.NodeID]Element{},
		provider: provider,
		walker:   walker,
		opts:     opts,
	}, nil
}

// Solve runs the worklist algorithm until no state changes or the iteration limit is reached.
// Every node is processed at least once, in increasing order of their identifiers. The state of a node is the
// transformation of the combined states of the nodes influencing it. When walking down, the Branch state of a
// conditional jump flows along its false edges. The states of the result are copies of the states of the solver.
func (s *Solver) Solve() (*Result, error) {
	logger := s.opts.logger()
	wl := &worklist{}
	for _, n := range s.graph.Nodes() {
		wl.add(int(n))
	}
	logger.Debugf("solving %d nodes %s", s.graph.NodeCount(), s.walker.Direction())

	iterations := 0
	for !wl.empty() {
		if s.opts.capped(iterations) {
			logger.Warnf("solver stopped after %d iterations with %d nodes left", iterations, wl.len())
			return &Result{States: s.states.Clone(true), Iterations: iterations, Converged: false}, nil
		}
		iterations++
		n := instgraph.NodeID(wl.pop())
		node, err := s.graph.Node(n)
		if err != nil {
			return nil, err
		}

		input, err := s.combinedInput(n)
		if err != nil {
			return nil, err
		}
		current, _ := s.states.State(n)
		tr, err := s.provider.Transform(node, current, input)
		if err != nil {
			return nil, fmt.Errorf("transfer function failed on %s: %w", node, err)
		}
		if tr.State == nil {
			return nil, fmt.Errorf("%w: transfer function returned no state for %s", ErrInvalidArgument, node)
		}
		branchChanged, err := s.updateBranch(n, tr, logger, node.String())
		if err != nil {
			return nil, err
		}
		if current.Equal(tr.State) && !branchChanged {
			continue
		}
		if err := checkMonotone(s.lattice, s.opts, logger, current, tr.State, node.String()); err != nil {
			return nil, err
		}
		logger.Tracef("%s: %s", node, tr.State)
		if err := s.states.SetState(n, tr.State); err != nil {
			return nil, err
		}
		influenced, err := s.walker.Influenced(s.graph, n)
		if err != nil {
			return nil, err
		}
		for _, m := range influenced {
			wl.add(int(m))
		}
	}
	logger.Debugf("solver converged after %d iterations", iterations)
	return &Result{States: s.states.Clone(true), Iterations: iterations, Converged: true}, nil
}

// updateBranch stores the false edge state of the transition and reports whether it changed
func (s *Solver) updateBranch(n instgraph.NodeID, tr Transition, logger *config.LogGroup, where string) (bool, error) {
	old, had := s.branches[n]
	next, has := tr.Branch.Get()
	switch {
	case !had && !has:
		return false, nil
	case !has:
		delete(s.branches, n)
		return true, nil
	case had && old.Equal(next):
		return false, nil
	}
	if had {
		if err := checkMonotone(s.lattice, s.opts, logger, old, next, where+" (false edges)"); err != nil {
			return false, err
		}
	}
	s.branches[n] = next
	return true, nil
}

func (s *Solver) combinedInput(n instgraph.NodeID) (Element, error) {
	influencing, err := s.walker.Influencing(s.graph, n)
	if err != nil {
		return nil, err
	}
	inputs := make([]Element, 0, len(influencing))
	for _, inf := range influencing {
		st, ok := s.states.State(inf.Node)
		if !ok {
			st = s.lattice.MinimalElement()
		}
		if id, ok := inf.Via.Get(); ok {
			e, err := s.graph.Edge(id)
			if err != nil {
				return nil, err
			}
			if b, ok := s.branches[inf.Node]; ok && s.walker.Direction() == Down && !e.IsTrue() {
				st = b
			}
			if e.Exit {
				st = st.Copy()
				st.OnInstructionExit()
			}
		}
		inputs = append(inputs, st)
	}
	return s.lattice.Combine(inputs), nil
}

// checkMonotone checks that the state replacing old is greater or equal
func checkMonotone(lattice Lattice, opts Options, logger *config.LogGroup, old, next Element, where string) error {
	if old == nil || lattice.IsSmallerEqual(old, next) {
		return nil
	}
	if opts.StrictMonotonicity {
		return fmt.Errorf("%w at %s: %s is not smaller or equal than %s", ErrNotMonotone, where, old, next)
	}
	logger.Warnf("state decreased at %s: %s is not smaller or equal than %s", where, old, next)
	return nil
}
