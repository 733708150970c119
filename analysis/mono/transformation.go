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
	"github.com/zynamics/monoreil/analysis/reil"
	"github.com/zynamics/monoreil/internal/funcutil"
)

// Transition is the result of a transfer function
type Transition struct {
	// State is the state after the instruction
	State Element

	// Branch is the state flowing along the false edges of a conditional jump, when it differs from State. It is
	// only used by solvers walking down.
	Branch funcutil.Optional[Element]
}

// Single returns the transition to the state s on every edge
func Single(s Element) Transition {
	return Transition{State: s}
}

// Branching returns the transition to onTrue on the true edges and to onFalse on the false edges
func Branching(onTrue, onFalse Element) Transition {
	return Transition{State: onTrue, Branch: funcutil.Some(onFalse)}
}

// along returns the state flowing along the edge
func (t Transition) along(e instgraph.Edge, d Direction) Element {
	if d == Down && !e.IsTrue() {
		return t.Branch.ValueOr(t.State)
	}
	return t.State
}

// A TransformationProvider computes the state after a node from the combined state of the nodes influencing it.
// current is the state stored for the node, nil if there is none.
type TransformationProvider interface {
	Transform(node instgraph.Node, current Element, input Element) (Transition, error)
}

// TransformationFunc is a function implementing TransformationProvider
type TransformationFunc func(node instgraph.Node, current Element, input Element) (Transition, error)

func (f TransformationFunc) Transform(node instgraph.Node, current Element, input Element) (Transition, error) {
	return f(node, current, input)
}

// An InstructionTransformer has a transfer function for each REIL opcode.
// Each function receives the instruction and the combined input state, and must not modify the input.
type InstructionTransformer interface {
	TransformAdd(ins reil.Instruction, input Element) (Transition, error)
	TransformAnd(ins reil.Instruction, input Element) (Transition, error)
	TransformBisz(ins reil.Instruction, input Element) (Transition, error)
	TransformBsh(ins reil.Instruction, input Element) (Transition, error)
	TransformDiv(ins reil.Instruction, input Element) (Transition, error)
	TransformJcc(ins reil.Instruction, input Element) (Transition, error)
	TransformLdm(ins reil.Instruction, input Element) (Transition, error)
	TransformMod(ins reil.Instruction, input Element) (Transition, error)
	TransformMul(ins reil.Instruction, input Element) (Transition, error)
	TransformNop(ins reil.Instruction, input Element) (Transition, error)
	TransformOr(ins reil.Instruction, input Element) (Transition, error)
	TransformStm(ins reil.Instruction, input Element) (Transition, error)
	TransformStr(ins reil.Instruction, input Element) (Transition, error)
	TransformSub(ins reil.Instruction, input Element) (Transition, error)
	TransformUndef(ins reil.Instruction, input Element) (Transition, error)
	TransformUnknown(ins reil.Instruction, input Element) (Transition, error)
	TransformXor(ins reil.Instruction, input Element) (Transition, error)
}

// PerInstruction returns the provider dispatching each node to the transfer function of its opcode
func PerInstruction(t InstructionTransformer) TransformationProvider {
	return TransformationFunc(func(node instgraph.Node, _ Element, input Element) (Transition, error) {
		return Dispatch(t, node.Instruction, input)
	})
}

// Dispatch calls the transfer function of the opcode of the instruction
func Dispatch(t InstructionTransformer, ins reil.Instruction, input Element) (Transition, error) {
	switch ins.Opcode {
	case reil.Add:
		return t.TransformAdd(ins, input)
	case reil.And:
		return t.TransformAnd(ins, input)
	case reil.Bisz:
		return t.TransformBisz(ins, input)
	case reil.Bsh:
		return t.TransformBsh(ins, input)
	case reil.Div:
		return t.TransformDiv(ins, input)
	case reil.Jcc:
		return t.TransformJcc(ins, input)
	case reil.Ldm:
		return t.TransformLdm(ins, input)
	case reil.Mod:
		return t.TransformMod(ins, input)
	case reil.Mul:
		return t.TransformMul(ins, input)
	case reil.Nop:
		return t.TransformNop(ins, input)
	case reil.Or:
		return t.TransformOr(ins, input)
	case reil.Stm:
		return t.TransformStm(ins, input)
	case reil.Str:
		return t.TransformStr(ins, input)
	case reil.Sub:
		return t.TransformSub(ins, input)
	case reil.Undef:
		return t.TransformUndef(ins, input)
	case reil.Unknown:
		return t.TransformUnknown(ins, input)
	case reil.Xor:
		return t.TransformXor(ins, input)
	default:
		return Transition{}, fmt.Errorf("%w %s at %08X", ErrUnknownOpcode, ins.Opcode, ins.Address)
	}
}
