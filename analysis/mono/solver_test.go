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

package mono_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/zynamics/monoreil/analysis/config"
	"github.com/zynamics/monoreil/analysis/instgraph"
	"github.com/zynamics/monoreil/analysis/mono"
)

func solve(t *testing.T, g *instgraph.Graph, walker mono.Walker) *mono.Result {
	initial := mono.NewStateVectorFor(g, regSet{})
	solver, err := mono.NewSolver(g, regLattice{}, initial, defines, walker, mono.Options{})
	if err != nil {
		t.Fatalf("could not create solver: %v", err)
	}
	res, err := solver.Solve()
	if err != nil {
		t.Fatalf("solver failed: %v", err)
	}
	if !res.Converged {
		t.Fatalf("solver did not converge after %d iterations", res.Iterations)
	}
	return res
}

func checkState(t *testing.T, v *mono.StateVector, n instgraph.NodeID, want regSet) {
	st, ok := v.State(n)
	if !ok {
		t.Errorf("no state for node #%d", n)
		return
	}
	if !st.Equal(want) {
		t.Errorf("state of node #%d: got %s, want %s", n, st, want)
	}
}

func TestSolveDown(t *testing.T) {
	g := loadGraph(t, "linear.reil")
	res := solve(t, g, mono.DownWalker{})
	entry, _ := g.Entry()
	exit, _ := g.Exit()
	checkState(t, res.States, entry, regs())
	checkState(t, res.States, nodeAt(t, g, 0x100), regs("t0"))
	checkState(t, res.States, nodeAt(t, g, 0x101), regs("t0", "ebx"))
	checkState(t, res.States, nodeAt(t, g, 0x200), regs("ebx", "edx"))
	checkState(t, res.States, exit, regs("ebx", "edx"))
	if !res.States.Frozen() {
		t.Errorf("result states should be frozen")
	}
}

func TestSolveUp(t *testing.T) {
	g := loadGraph(t, "linear.reil")
	res := solve(t, g, mono.UpWalker{})
	entry, _ := g.Entry()
	exit, _ := g.Exit()
	checkState(t, res.States, exit, regs())
	checkState(t, res.States, nodeAt(t, g, 0x200), regs("edx"))
	checkState(t, res.States, nodeAt(t, g, 0x101), regs("ebx", "edx"))
	checkState(t, res.States, nodeAt(t, g, 0x100), regs("t0", "ebx", "edx"))
	checkState(t, res.States, entry, regs("ebx", "edx"))
}

func TestSolveLoop(t *testing.T) {
	g := loadGraph(t, "loop.reil")
	res := solve(t, g, mono.DownWalker{})
	checkState(t, res.States, nodeAt(t, g, 0x200), regs("ecx", "t0"))
	checkState(t, res.States, nodeAt(t, g, 0x300), regs("ecx"))
	checkState(t, res.States, nodeAt(t, g, 0x400), regs("ecx", "eax"))
	if res.Iterations < g.NodeCount() {
		t.Errorf("every node should be processed at least once, got %d iterations", res.Iterations)
	}
}

func TestSolveIdempotent(t *testing.T) {
	for _, name := range []string{"linear.reil", "loop.reil", "branches.reil"} {
		t.Run(name, func(t *testing.T) {
			g := loadGraph(t, name)
			first := solve(t, g, mono.DownWalker{})
			solver, err := mono.NewSolver(g, regLattice{}, first.States.Thaw(), defines, mono.DownWalker{},
				mono.Options{StrictMonotonicity: true})
			if err != nil {
				t.Fatalf("could not create solver: %v", err)
			}
			second, err := solver.Solve()
			if err != nil {
				t.Fatalf("solver failed: %v", err)
			}
			if !second.States.Equal(first.States) {
				t.Errorf("solving from a fixpoint changed the states:\n%s\nvs\n%s", first.States, second.States)
			}
			if second.Iterations != g.NodeCount() {
				t.Errorf("expected %d iterations from a fixpoint, got %d", g.NodeCount(), second.Iterations)
			}
		})
	}
}

func TestNewSolverValidation(t *testing.T) {
	g := loadGraph(t, "linear.reil")
	full := mono.NewStateVectorFor(g, regSet{})

	short := mono.NewStateVector()
	_ = short.SetState(0, regSet{})

	wrongNodes := mono.NewStateVector()
	for i := 0; i < g.NodeCount(); i++ {
		_ = wrongNodes.SetState(instgraph.NodeID(i+1), regSet{})
	}

	tests := []struct {
		name     string
		graph    *instgraph.Graph
		lattice  mono.Lattice
		initial  *mono.StateVector
		provider mono.TransformationProvider
		walker   mono.Walker
		contains string
	}{
		{"nil graph", nil, regLattice{}, full, defines, mono.DownWalker{}, "nil graph"},
		{"nil lattice", g, nil, full, defines, mono.DownWalker{}, "nil lattice"},
		{"nil vector", g, regLattice{}, nil, defines, mono.DownWalker{}, "nil initial"},
		{"nil provider", g, regLattice{}, full, nil, mono.DownWalker{}, "nil transformation"},
		{"nil walker", g, regLattice{}, full, defines, nil, "nil walker"},
		{"size mismatch", g, regLattice{}, short, defines, mono.DownWalker{}, "5 nodes but the initial state vector has 1"},
		{"missing node", g, regLattice{}, wrongNodes, defines, mono.DownWalker{}, "#0"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := mono.NewSolver(test.graph, test.lattice, test.initial, test.provider, test.walker, mono.Options{})
			if !errors.Is(err, mono.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			if !strings.Contains(err.Error(), test.contains) {
				t.Errorf("error %q should mention %q", err, test.contains)
			}
		})
	}
}

func TestSolveIterationCap(t *testing.T) {
	g := loadGraph(t, "loop.reil")
	increment := mono.TransformationFunc(
		func(_ instgraph.Node, _ mono.Element, input mono.Element) (mono.Transition, error) {
			return mono.Single(input.(counter) + 1), nil
		})
	cfg := config.NewDefault()
	cfg.LogLevel = int(config.WarnLevel)
	logger := config.NewLogGroup(cfg)
	var buf bytes.Buffer
	logger.SetAllOutput(&buf)
	logger.SetAllFlags(0)
	solver, err := mono.NewSolver(g, counterLattice{}, mono.NewStateVectorFor(g, counter(0)), increment,
		mono.DownWalker{}, mono.Options{MaxIterations: 50, Logger: logger})
	if err != nil {
		t.Fatalf("could not create solver: %v", err)
	}
	res, err := solver.Solve()
	if err != nil {
		t.Fatalf("solver failed: %v", err)
	}
	if res.Converged || res.Iterations != 50 {
		t.Errorf("solver should stop after 50 iterations without converging, got %d, %v", res.Iterations, res.Converged)
	}
	if !strings.Contains(buf.String(), "[WARN] solver stopped after 50 iterations") {
		t.Errorf("expected a warning, got %q", buf.String())
	}
}

func TestSolveMonotonicity(t *testing.T) {
	g := loadGraph(t, "linear.reil")
	reset := mono.TransformationFunc(
		func(_ instgraph.Node, _ mono.Element, _ mono.Element) (mono.Transition, error) {
			return mono.Single(counter(0)), nil
		})

	strict, _ := mono.NewSolver(g, counterLattice{}, mono.NewStateVectorFor(g, counter(10)), reset,
		mono.DownWalker{}, mono.Options{StrictMonotonicity: true})
	if _, err := strict.Solve(); !errors.Is(err, mono.ErrNotMonotone) {
		t.Errorf("expected ErrNotMonotone, got %v", err)
	}

	cfg := config.NewDefault()
	logger := config.NewLogGroup(cfg)
	var buf bytes.Buffer
	logger.SetAllOutput(&buf)
	lenient, _ := mono.NewSolver(g, counterLattice{}, mono.NewStateVectorFor(g, counter(10)), reset,
		mono.DownWalker{}, mono.Options{Logger: logger})
	res, err := lenient.Solve()
	if err != nil {
		t.Fatalf("non-strict solver should not fail: %v", err)
	}
	if !strings.Contains(buf.String(), "state decreased") {
		t.Errorf("expected a monotonicity warning, got %q", buf.String())
	}
	st, _ := res.States.State(0)
	if st != counter(0) {
		t.Errorf("state should be replaced even when it decreases, got %s", st)
	}
}

func TestSolveTransformError(t *testing.T) {
	g := loadGraph(t, "linear.reil")
	errBoom := errors.New("boom")
	failing := mono.TransformationFunc(
		func(node instgraph.Node, _ mono.Element, _ mono.Element) (mono.Transition, error) {
			return mono.Transition{}, errBoom
		})
	solver, _ := mono.NewSolver(g, regLattice{}, mono.NewStateVectorFor(g, regSet{}), failing, mono.DownWalker{},
		mono.Options{})
	if _, err := solver.Solve(); !errors.Is(err, errBoom) {
		t.Errorf("expected the transfer function error, got %v", err)
	}
}

func TestSolveDoesNotModifyInitialVector(t *testing.T) {
	g := loadGraph(t, "linear.reil")
	initial := mono.NewStateVectorFor(g, regSet{})
	solver, _ := mono.NewSolver(g, regLattice{}, initial, defines, mono.DownWalker{}, mono.Options{})
	if _, err := solver.Solve(); err != nil {
		t.Fatalf("solver failed: %v", err)
	}
	initial.ForEach(func(n instgraph.NodeID, e mono.Element) {
		if !e.Equal(regSet{}) {
			t.Errorf("initial state of #%d changed to %s", n, e)
		}
	})
}

func TestSolveBranches(t *testing.T) {
	g := loadGraph(t, "branches.reil")
	branching := mono.TransformationFunc(
		func(node instgraph.Node, current mono.Element, input mono.Element) (mono.Transition, error) {
			if !node.Instruction.IsConditionalJump() {
				return defines(node, current, input)
			}
			taken := input.Copy().(regSet)
			taken["T"] = true
			notTaken := input.Copy().(regSet)
			notTaken["F"] = true
			return mono.Branching(taken, notTaken), nil
		})
	solver, err := mono.NewSolver(g, regLattice{}, mono.NewStateVectorFor(g, regSet{}), branching,
		mono.DownWalker{}, mono.Options{StrictMonotonicity: true})
	if err != nil {
		t.Fatalf("could not create solver: %v", err)
	}
	res, err := solver.Solve()
	if err != nil {
		t.Fatalf("solver failed: %v", err)
	}
	checkState(t, res.States, nodeAt(t, g, 0x200), regs("T"))
	checkState(t, res.States, nodeAt(t, g, 0x300), regs("F"))
	checkState(t, res.States, nodeAt(t, g, 0x301), regs("F", "ebx"))
	checkState(t, res.States, nodeAt(t, g, 0x400), regs("T", "F", "ebx"))
}

func TestSolveResultIsACopy(t *testing.T) {
	g := loadGraph(t, "linear.reil")
	initial := mono.NewStateVectorFor(g, regSet{})
	solver, err := mono.NewSolver(g, regLattice{}, initial, defines, mono.DownWalker{},
		mono.Options{StrictMonotonicity: true})
	if err != nil {
		t.Fatalf("could not create solver: %v", err)
	}
	entry, _ := g.Entry()
	st, _ := initial.State(entry)
	st.(regSet)["Z"] = true

	first, err := solver.Solve()
	if err != nil {
		t.Fatalf("changing the initial vector should not affect the solver: %v", err)
	}
	exit, _ := g.Exit()
	checkState(t, first.States, entry, regs())
	st, _ = first.States.State(exit)
	st.(regSet)["Z"] = true

	second, err := solver.Solve()
	if err != nil {
		t.Fatalf("changing the result should not affect the solver: %v", err)
	}
	checkState(t, second.States, exit, regs("ebx", "edx"))
}
