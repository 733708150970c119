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
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zynamics/monoreil/analysis/instgraph"
	"github.com/zynamics/monoreil/analysis/mono"
	"github.com/zynamics/monoreil/analysis/reil"
	"github.com/zynamics/monoreil/internal/funcutil"
)

//go:embed testdata
var testfsys embed.FS

func loadGraph(t *testing.T, name string) *instgraph.Graph {
	f, err := testfsys.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to open %s: %v", name, err)
	}
	defer f.Close()
	fn, err := reil.ParseListing(name, f)
	if err != nil {
		t.Fatalf("failed to parse %s: %v", name, err)
	}
	g, err := instgraph.FromFunction(fn)
	if err != nil {
		t.Fatalf("failed to build graph of %s: %v", name, err)
	}
	return g
}

func nodeAt(t *testing.T, g *instgraph.Graph, address uint64) instgraph.NodeID {
	n, ok := g.NodeAt(address)
	if !ok {
		t.Fatalf("no node at %08X", address)
	}
	return n
}

// regSet is the set of registers defined on some path to a node. Temporaries are dropped at instruction exits.
type regSet map[string]bool

func regs(names ...string) regSet {
	s := regSet{}
	for _, n := range names {
		s[n] = true
	}
	return s
}

func (s regSet) Copy() mono.Element { return regSet(funcutil.CopySet(s)) }

func (s regSet) LessOrEqual(o mono.Element) bool { return funcutil.Subset(s, o.(regSet)) }

func (s regSet) Equal(o mono.Element) bool { return funcutil.SetEqual(s, o.(regSet)) }

func (s regSet) OnInstructionExit() {
	for r := range s {
		if reil.IsTemporaryRegister(r) {
			delete(s, r)
		}
	}
}

func (s regSet) String() string {
	return "{" + strings.Join(funcutil.SetToOrderedSlice(s), ",") + "}"
}

type regLattice struct{}

func (regLattice) Combine(states []mono.Element) mono.Element {
	res := regSet{}
	for _, s := range states {
		funcutil.Union(res, s.(regSet))
	}
	return res
}

func (regLattice) IsSmallerEqual(a, b mono.Element) bool { return a.LessOrEqual(b) }

func (regLattice) MinimalElement() mono.Element { return regSet{} }

var defines = mono.TransformationFunc(
	func(node instgraph.Node, _ mono.Element, input mono.Element) (mono.Transition, error) {
		res := input.Copy().(regSet)
		ins := node.Instruction
		if !ins.IsJump() && ins.Third.IsRegister() {
			res[ins.Third.Value] = true
		}
		return mono.Single(res), nil
	})

// counter is a lattice of integers ordered by <=
type counter int

func (c counter) Copy() mono.Element              { return c }
func (c counter) LessOrEqual(o mono.Element) bool { return c <= o.(counter) }
func (c counter) Equal(o mono.Element) bool       { return c == o.(counter) }
func (c counter) OnInstructionExit()              {}
func (c counter) String() string                  { return fmt.Sprintf("%d", int(c)) }

type counterLattice struct{}

func (counterLattice) Combine(states []mono.Element) mono.Element {
	var m counter
	for _, s := range states {
		if c := s.(counter); c > m {
			m = c
		}
	}
	return m
}

func (counterLattice) IsSmallerEqual(a, b mono.Element) bool { return a.LessOrEqual(b) }

func (counterLattice) MinimalElement() mono.Element { return counter(0) }
