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
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownOpcode is returned when a mnemonic or an opcode value is not part of the REIL instruction set
var ErrUnknownOpcode = errors.New("unknown REIL opcode")

// Opcode is the operation of a REIL instruction
type Opcode int

const (
	Add Opcode = iota + 1
	And
	Bisz
	Bsh
	Div
	Jcc
	Ldm
	Mod
	Mul
	Nop
	Or
	Stm
	Str
	Sub
	Undef
	Unknown
	Xor
)

var mnemonics = map[Opcode]string{
	Add:     "add",
	And:     "and",
	Bisz:    "bisz",
	Bsh:     "bsh",
	Div:     "div",
	Jcc:     "jcc",
	Ldm:     "ldm",
	Mod:     "mod",
	Mul:     "mul",
	Nop:     "nop",
	Or:      "or",
	Stm:     "stm",
	Str:     "str",
	Sub:     "sub",
	Undef:   "undef",
	Unknown: "unkn",
	Xor:     "xor",
}

// Opcodes returns all the opcodes of the instruction set, in order
func Opcodes() []Opcode {
	ops := make([]Opcode, 0, len(mnemonics))
	for op := Add; op <= Xor; op++ {
		ops = append(ops, op)
	}
	return ops
}

// Valid returns true if the opcode is part of the instruction set
func (op Opcode) Valid() bool {
	_, ok := mnemonics[op]
	return ok
}

func (op Opcode) String() string {
	if m, ok := mnemonics[op]; ok {
		return m
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// ParseOpcode returns the opcode of a mnemonic. The mnemonic is not case-sensitive.
func ParseOpcode(mnemonic string) (Opcode, error) {
	m := strings.ToLower(strings.TrimSpace(mnemonic))
	if m == "unknown" {
		return Unknown, nil
	}
	for op, s := range mnemonics {
		if s == m {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOpcode, mnemonic)
}
