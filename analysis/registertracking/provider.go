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
	"fmt"
	"strings"

	"github.com/zynamics/monoreil/analysis/mono"
	"github.com/zynamics/monoreil/analysis/reil"
)

// TransformationProvider has the transfer functions of the register tracking analysis.
// It implements mono.InstructionTransformer.
type TransformationProvider struct {
	opts Options
}

// NewTransformationProvider returns the transfer functions for the direction and call handling of the options
func NewTransformationProvider(opts Options) *TransformationProvider {
	return &TransformationProvider{opts: opts}
}

func registerSet(ins reil.Instruction, e mono.Element) (*RegisterSet, error) {
	s, ok := e.(*RegisterSet)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a register set at %s", mono.ErrInvalidArgument, e, ins)
	}
	return s, nil
}

// inputRegisters returns the registers among the first two operands
func inputRegisters(ins reil.Instruction) []string {
	var res []string
	for _, op := range []reil.Operand{ins.First, ins.Second} {
		if op.IsRegister() {
			res = append(res, op.Value)
		}
	}
	return res
}

// normal is the transfer function of instructions computing their third operand from the first two
func (p *TransformationProvider) normal(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	st, err := registerSet(ins, input)
	if err != nil {
		return mono.Transition{}, err
	}
	res := st.derive()
	if !ins.Third.IsRegister() {
		return mono.Single(res), nil
	}
	out := ins.Third.Value
	inputs := inputRegisters(ins)

	if p.opts.Direction == mono.Up {
		if st.IsTainted(out) {
			res.Untaint(out)
			if len(inputs) > 0 {
				res.AddReadRegister(out)
				res.TaintAll(inputs)
			}
		}
		return mono.Single(res), nil
	}

	taintedInput := false
	for _, r := range inputs {
		if st.IsTainted(r) {
			taintedInput = true
			res.AddReadRegister(r)
		}
	}
	if taintedInput {
		res.Taint(out)
	} else {
		res.Untaint(out)
	}
	return mono.Single(res), nil
}

// untaintOutput is the transfer function of instructions whose third operand does not depend on tainted registers
func (p *TransformationProvider) untaintOutput(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	st, err := registerSet(ins, input)
	if err != nil {
		return mono.Transition{}, err
	}
	res := st.derive()
	if ins.Third.IsRegister() {
		res.Untaint(ins.Third.Value)
	}
	return mono.Single(res), nil
}

func (p *TransformationProvider) passThrough(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	st, err := registerSet(ins, input)
	if err != nil {
		return mono.Transition{}, err
	}
	return mono.Single(st.derive()), nil
}

func isZero(op reil.Operand) bool {
	v, ok := op.Literal()
	return ok && v == 0
}

// multiplyByZero is true for the instructions that multiply or mask with a zero literal
func multiplyByZero(ins reil.Instruction) bool {
	return isZero(ins.First) || isZero(ins.Second)
}

func (p *TransformationProvider) TransformAdd(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	return p.normal(ins, input)
}

func (p *TransformationProvider) TransformAnd(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	if multiplyByZero(ins) {
		return p.untaintOutput(ins, input)
	}
	return p.normal(ins, input)
}

func (p *TransformationProvider) TransformBisz(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	return p.normal(ins, input)
}

func (p *TransformationProvider) TransformBsh(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	return p.normal(ins, input)
}

func (p *TransformationProvider) TransformDiv(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	return p.normal(ins, input)
}

// TransformJcc untaints the registers clobbered by function calls. Other jumps do not change the state.
func (p *TransformationProvider) TransformJcc(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	st, err := registerSet(ins, input)
	if err != nil {
		return mono.Transition{}, err
	}
	res := st.derive()
	if ins.IsFunctionCall() {
		if p.opts.ClearAllRegistersOnCall {
			res.UntaintAll(st.TaintedRegisters())
		} else {
			res.UntaintAll(p.opts.ClearedRegisters)
		}
	}
	return mono.Single(res), nil
}

func (p *TransformationProvider) TransformLdm(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	return p.untaintOutput(ins, input)
}

func (p *TransformationProvider) TransformMod(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	return p.normal(ins, input)
}

func (p *TransformationProvider) TransformMul(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	if multiplyByZero(ins) {
		return p.untaintOutput(ins, input)
	}
	return p.normal(ins, input)
}

func (p *TransformationProvider) TransformNop(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	return p.normal(ins, input)
}

// TransformOr untaints the output when one of the operands is the all-ones mask of the output size
func (p *TransformationProvider) TransformOr(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	size := ins.Third.Size
	if mask, ok := size.Mask(); ok && ins.First.Size == size && ins.Second.Size == size {
		for _, op := range []reil.Operand{ins.First, ins.Second} {
			if v, isLit := op.Literal(); isLit && v == mask {
				return p.untaintOutput(ins, input)
			}
		}
	}
	return p.normal(ins, input)
}

// TransformStm records that a tainted register is stored to memory
func (p *TransformationProvider) TransformStm(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	st, err := registerSet(ins, input)
	if err != nil {
		return mono.Transition{}, err
	}
	res := st.derive()
	if ins.First.IsRegister() && st.IsTainted(ins.First.Value) {
		res.AddReadRegister(ins.First.Value)
	}
	return mono.Single(res), nil
}

func (p *TransformationProvider) TransformStr(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	return p.normal(ins, input)
}

func (p *TransformationProvider) TransformSub(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	if strings.EqualFold(ins.First.Value, ins.Second.Value) {
		return p.untaintOutput(ins, input)
	}
	return p.normal(ins, input)
}

func (p *TransformationProvider) TransformUndef(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	return p.untaintOutput(ins, input)
}

func (p *TransformationProvider) TransformUnknown(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	return p.passThrough(ins, input)
}

func (p *TransformationProvider) TransformXor(ins reil.Instruction, input mono.Element) (mono.Transition, error) {
	if strings.EqualFold(ins.First.Value, ins.Second.Value) {
		return p.untaintOutput(ins, input)
	}
	return p.normal(ins, input)
}
