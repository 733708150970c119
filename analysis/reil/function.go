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

import "fmt"

// EdgeKind is the kind of a control-flow edge
type EdgeKind int

const (
	// Unconditional edges always flow: sequential flow or unconditional jumps
	Unconditional EdgeKind = iota
	// True edges are taken when the condition of a conditional jump holds
	True
	// False edges are taken when the condition of a conditional jump does not hold
	False
)

// IsTrue returns true for all the edges except the false edges of conditional jumps
func (k EdgeKind) IsTrue() bool {
	return k != False
}

func (k EdgeKind) String() string {
	switch k {
	case Unconditional:
		return "unconditional"
	case True:
		return "true"
	case False:
		return "false"
	}
	return fmt.Sprintf("EdgeKind(%d)", int(k))
}

// Block is a basic block of REIL instructions
type Block struct {
	// Index is the position of the block in its function
	Index        int
	Instructions []Instruction
}

// First returns the first instruction of the block. The block must not be empty.
func (b *Block) First() Instruction { return b.Instructions[0] }

// Last returns the last instruction of the block. The block must not be empty.
func (b *Block) Last() Instruction { return b.Instructions[len(b.Instructions)-1] }

// BlockEdge is a control-flow edge between two blocks of a function, identified by their index
type BlockEdge struct {
	Source int
	Target int
	Kind   EdgeKind
}

// Function is the REIL control-flow graph of a native function
type Function struct {
	Name   string
	Blocks []*Block
	Edges  []BlockEdge
}

// NewFunction returns an empty function
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// AddBlock adds a block made of the instructions to the function and returns it
func (f *Function) AddBlock(instructions ...Instruction) *Block {
	b := &Block{Index: len(f.Blocks), Instructions: instructions}
	f.Blocks = append(f.Blocks, b)
	return b
}

// AddEdge adds an edge from src to dst
func (f *Function) AddEdge(src, dst *Block, kind EdgeKind) {
	f.Edges = append(f.Edges, BlockEdge{Source: src.Index, Target: dst.Index, Kind: kind})
}

// InstructionCount returns the number of instructions in the function
func (f *Function) InstructionCount() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instructions)
	}
	return n
}

// Validate checks that blocks are indexed by their position, are not empty, and edges refer to blocks of the
// function
func (f *Function) Validate() error {
	for i, b := range f.Blocks {
		if b == nil {
			return fmt.Errorf("block %d of %s is nil", i, f.Name)
		}
		if b.Index != i {
			return fmt.Errorf("block %d of %s has index %d", i, f.Name, b.Index)
		}
		if len(b.Instructions) == 0 {
			return fmt.Errorf("block %d of %s is empty", i, f.Name)
		}
	}
	for _, e := range f.Edges {
		if e.Source < 0 || e.Source >= len(f.Blocks) || e.Target < 0 || e.Target >= len(f.Blocks) {
			return fmt.Errorf("edge %d -> %d of %s refers to a block that does not exist", e.Source, e.Target, f.Name)
		}
	}
	return nil
}
