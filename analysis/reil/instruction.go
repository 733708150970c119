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

package reil

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MetaIsCall is the metadata key marking a jcc instruction as a function call
const MetaIsCall = "isCall"

// Instruction is a REIL instruction
type Instruction struct {
	// Address is the REIL address of the instruction: the native address shifted by 8 bits plus the index of the
	// instruction in the translation of the native instruction
	Address uint64

	Opcode Opcode

	First  Operand
	Second Operand
	Third  Operand

	// Metadata holds key-value annotations of the translator, such as MetaIsCall
	Metadata map[string]string
}

// New returns the instruction with the given address, opcode and operands
func New(address uint64, opcode Opcode, first, second, third Operand) Instruction {
	return Instruction{Address: address, Opcode: opcode, First: first, Second: second, Third: third}
}

// NewNop returns a nop instruction
func NewNop(address uint64) Instruction {
	return New(address, Nop, Empty, Empty, Empty)
}

// NewUnknown returns an unkn instruction, which stands for a native instruction that could not be translated
func NewUnknown(address uint64) Instruction {
	return New(address, Unknown, Empty, Empty, Empty)
}

// NewStr returns an instruction storing src into the register dst
func NewStr(address uint64, src, dst Operand) Instruction {
	return New(address, Str, src, Empty, dst)
}

// NewLdm returns an instruction loading the memory at addr into the register dst
func NewLdm(address uint64, addr, dst Operand) Instruction {
	return New(address, Ldm, addr, Empty, dst)
}

// NewStm returns an instruction storing value into the memory at addr
func NewStm(address uint64, value, addr Operand) Instruction {
	return New(address, Stm, value, Empty, addr)
}

// NewUndef returns an instruction making dst undefined
func NewUndef(address uint64, dst Operand) Instruction {
	return New(address, Undef, Empty, Empty, dst)
}

// NewBisz returns an instruction setting dst to 1 if src is zero, and 0 otherwise
func NewBisz(address uint64, src, dst Operand) Instruction {
	return New(address, Bisz, src, Empty, dst)
}

// NewJcc returns a jump to target if cond is not zero
func NewJcc(address uint64, cond, target Operand) Instruction {
	return New(address, Jcc, cond, Empty, target)
}

// NewCall returns a jcc instruction marked as a function call to target
func NewCall(address uint64, target Operand) Instruction {
	ins := NewJcc(address, Lit(Byte, 1), target)
	ins.Metadata = map[string]string{MetaIsCall: "true"}
	return ins
}

// NativeAddress returns the address of the native instruction the instruction was translated from
func (i Instruction) NativeAddress() uint64 {
	return ToNativeAddress(i.Address)
}

// IsFirstOfNative returns true if the instruction is the first of the translation of its native instruction
func (i Instruction) IsFirstOfNative() bool {
	return i.Address&0xFF == 0
}

// IsJump returns true for jcc instructions
func (i Instruction) IsJump() bool {
	return i.Opcode == Jcc
}

// IsFunctionCall returns true for jcc instructions that the translator marked as function calls
func (i Instruction) IsFunctionCall() bool {
	return i.Opcode == Jcc && strings.EqualFold(i.Metadata[MetaIsCall], "true")
}

// IsUnconditionalJump returns true for jcc instructions whose condition is a non-zero literal
func (i Instruction) IsUnconditionalJump() bool {
	if i.Opcode != Jcc {
		return false
	}
	v, ok := i.First.Literal()
	return ok && v != 0
}

// IsConditionalJump returns true for jcc instructions whose condition is not a literal
func (i Instruction) IsConditionalJump() bool {
	return i.Opcode == Jcc && !i.First.IsLiteral()
}

// Operands returns the three operands of the instruction
func (i Instruction) Operands() [3]Operand {
	return [3]Operand{i.First, i.Second, i.Third}
}

func (i Instruction) String() string {
	s := fmt.Sprintf("%08X: %s [%s, %s, %s]", i.Address, i.Opcode, i.First, i.Second, i.Third)
	if len(i.Metadata) == 0 {
		return s
	}
	keys := maps.Keys(i.Metadata)
	slices.Sort(keys)
	meta := make([]string, len(keys))
	for j, k := range keys {
		meta[j] = k + "=" + i.Metadata[k]
	}
	return s + " {" + strings.Join(meta, ",") + "}"
}

// ToNativeAddress converts a REIL address to the address of its native instruction
func ToNativeAddress(address uint64) uint64 {
	return address >> 8
}

// ToReilAddress converts a native address to the address of the first REIL instruction of its translation
func ToReilAddress(native uint64) uint64 {
	return native << 8
}

// IsTemporaryRegister returns true if the register is a REIL temporary register
func IsTemporaryRegister(name string) bool {
	return strings.HasPrefix(name, "t")
}
