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

/*
Package mono implements monotone dataflow analyses over REIL instruction graphs.

An analysis is defined by three components:
  - a [Lattice] of abstract states ([Element]), with a combine operation used where control flow merges;
  - a [TransformationProvider], the transfer function computing the state after an instruction from the state before
    it. [PerInstruction] turns an [InstructionTransformer], which has one method per REIL opcode, into a provider;
  - a [Walker], which gives the direction of the analysis: [DownWalker] propagates states along control flow and
    [UpWalker] against it.

The [Solver] computes one state per node of the graph. It starts from an initial [StateVector] that holds a state
for every node and iterates a worklist until no state changes. The [EdgeSolver] computes one state per edge, starting
from a set of seed edges: edges whose state has never been set are not part of the result, which is how register
tracking restricts itself to the part of the graph reached from the tracked instruction.

When a state flows along an exit edge, the solvers call [Element.OnInstructionExit] on a copy of it. Elements use
this hook to summarize the effect of a whole native instruction and drop what only lives within one (REIL temporary
registers).

Transfer functions must be monotone: a new state must be greater or equal than the state it replaces. A violation is
reported as a warning, or as an error wrapping [ErrNotMonotone] when [Options].StrictMonotonicity is set. Both solvers
stop after [Options].MaxIterations iterations and report whether they converged in their result.

Solvers are single-threaded and own their state. The graph must not be mutated during a solve, but several solvers
can run concurrently on the same graph.
*/
package mono
