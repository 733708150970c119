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
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var instructionLine = regexp.MustCompile(`^(?:0x)?([0-9A-Fa-f]+):\s*([A-Za-z]+)\s*\[(.*)\]\s*(?:\{(.*)\})?$`)

// ParseListing reads a REIL listing and splits it into the basic blocks of a function.
// Each non-empty line that does not start with '#' is an instruction in the format of [Instruction.String].
// Block leaders are the first instruction, the targets of jumps, and the instructions following jumps. Function
// calls do not end blocks.
func ParseListing(name string, r io.Reader) (*Function, error) {
	var instructions []Instruction
	seen := map[uint64]int{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ins, err := ParseInstruction(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, lineNum, err)
		}
		if prev, ok := seen[ins.Address]; ok {
			return nil, fmt.Errorf("%s:%d: address %08X already defined at line %d", name, lineNum, ins.Address, prev)
		}
		seen[ins.Address] = lineNum
		instructions = append(instructions, ins)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read listing %s: %w", name, err)
	}
	return BuildFunction(name, instructions), nil
}

// ParseInstruction parses a single instruction in the format of [Instruction.String]
func ParseInstruction(line string) (Instruction, error) {
	m := instructionLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Instruction{}, fmt.Errorf("malformed instruction %q", line)
	}
	address, err := strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return Instruction{}, fmt.Errorf("invalid address %q: %w", m[1], err)
	}
	opcode, err := ParseOpcode(m[2])
	if err != nil {
		return Instruction{}, err
	}
	parts := strings.Split(m[3], ",")
	if len(parts) != 3 {
		return Instruction{}, fmt.Errorf("expected 3 operands, got %d in %q", len(parts), line)
	}
	var ops [3]Operand
	for i, p := range parts {
		ops[i], err = parseOperand(p)
		if err != nil {
			return Instruction{}, err
		}
	}
	ins := New(address, opcode, ops[0], ops[1], ops[2])
	if m[4] != "" {
		ins.Metadata = map[string]string{}
		for _, kv := range strings.Split(m[4], ",") {
			k, v, found := strings.Cut(kv, "=")
			if !found {
				return Instruction{}, fmt.Errorf("malformed metadata %q", kv)
			}
			ins.Metadata[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return ins, nil
}

func parseOperand(s string) (Operand, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 0:
		return Empty, nil
	case 1:
		if strings.EqualFold(fields[0], "EMPTY") {
			return Empty, nil
		}
		return Empty, fmt.Errorf("operand %q has no size", s)
	case 2:
		size, err := ParseOperandSize(fields[0])
		if err != nil {
			return Empty, err
		}
		return Op(size, fields[1]), nil
	}
	return Empty, fmt.Errorf("malformed operand %q", s)
}

// BuildFunction splits a sequence of instructions into basic blocks connected by control-flow edges.
// Jumps to addresses outside the sequence, or to registers, have no edge.
func BuildFunction(name string, instructions []Instruction) *Function {
	f := NewFunction(name)
	if len(instructions) == 0 {
		return f
	}
	index := make(map[uint64]int, len(instructions))
	for i, ins := range instructions {
		index[ins.Address] = i
	}

	leaders := map[int]bool{0: true}
	for i, ins := range instructions {
		if !ins.IsJump() || ins.IsFunctionCall() {
			continue
		}
		if t, ok := jumpTarget(ins, index); ok {
			leaders[t] = true
		}
		if i+1 < len(instructions) {
			leaders[i+1] = true
		}
	}

	blockOf := make([]int, len(instructions))
	start := 0
	for i := 1; i <= len(instructions); i++ {
		if i == len(instructions) || leaders[i] {
			b := f.AddBlock(instructions[start:i]...)
			for j := start; j < i; j++ {
				blockOf[j] = b.Index
			}
			start = i
		}
	}

	for _, b := range f.Blocks {
		last := b.Last()
		next := b.Index + 1
		hasNext := next < len(f.Blocks)
		if !last.IsJump() || last.IsFunctionCall() {
			if hasNext {
				f.AddEdge(b, f.Blocks[next], Unconditional)
			}
			continue
		}
		target, hasTarget := jumpTarget(last, index)
		switch {
		case last.IsConditionalJump():
			if hasTarget {
				f.AddEdge(b, f.Blocks[blockOf[target]], True)
			}
			if hasNext {
				f.AddEdge(b, f.Blocks[next], False)
			}
		case last.IsUnconditionalJump():
			if hasTarget {
				f.AddEdge(b, f.Blocks[blockOf[target]], Unconditional)
			}
		default:
			// jump that is never taken
			if hasNext {
				f.AddEdge(b, f.Blocks[next], Unconditional)
			}
		}
	}
	return f
}

func jumpTarget(ins Instruction, index map[uint64]int) (int, bool) {
	addr, ok := ins.Third.TargetAddress()
	if !ok {
		return 0, false
	}
	i, ok := index[addr]
	return i, ok
}
