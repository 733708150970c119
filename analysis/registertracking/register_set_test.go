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
	"testing"

	"github.com/zynamics/monoreil/analysis/mono"
	"github.com/zynamics/monoreil/internal/funcutil"
)

func TestTaintUntaint(t *testing.T) {
	s := NewRegisterSet()
	s.Taint("eax")
	s.Taint("eax")
	s.Untaint("ebx")
	if !s.IsTainted("eax") || s.IsTainted("ebx") {
		t.Fatalf("unexpected state %s", s)
	}
	checkRegs(t, "newly tainted", keys(s.newlyTainted), "eax")
	checkRegs(t, "updated", keys(s.updated), "eax")
	checkRegs(t, "untainted", keys(s.untainted))

	s.Untaint("eax")
	if s.IsAnyTainted() {
		t.Errorf("no register should be tainted: %s", s)
	}
	// tainting a register untainted by the same instruction is an update
	s.Taint("eax")
	checkRegs(t, "untainted", keys(s.untainted))
	checkRegs(t, "updated", keys(s.updated), "eax")
}

func keys(r regs) []string {
	return funcutil.SetToOrderedSlice(r)
}

func TestSeed(t *testing.T) {
	s := Seed("ecx")
	checkRegs(t, "tainted", s.TaintedRegisters(), "ecx")
	checkRegs(t, "newly tainted", s.NewlyTaintedRegisters(), "ecx")
	d := s.derive()
	checkRegs(t, "derived newly tainted", d.NewlyTaintedRegisters())
	checkRegs(t, "derived tainted", d.TaintedRegisters(), "ecx")
}

func TestCopyIsDeep(t *testing.T) {
	s := Seed("ecx")
	c := s.Copy().(*RegisterSet)
	c.Taint("edx")
	c.OnInstructionExit()
	if s.IsTainted("edx") {
		t.Errorf("copy shares the tainted set")
	}
	checkRegs(t, "original newly tainted", s.NewlyTaintedRegisters(), "ecx")
	checkRegs(t, "copy newly tainted", c.NewlyTaintedRegisters(), "edx")
}

func TestLattice(t *testing.T) {
	l := Lattice{}
	a := Seed("eax")
	b := NewTaintedRegisterSet("ebx")
	b.AddReadRegister("ebx")
	b.OnInstructionExit()
	c := NewTaintedRegisterSet("ecx")

	ab := l.Combine([]mono.Element{a, b, c})
	ba := l.Combine([]mono.Element{c, b, a})
	if !ab.Equal(ba) {
		t.Errorf("combine depends on the order of the states: %s != %s", ab, ba)
	}
	for _, x := range []mono.Element{a, b, c} {
		if !l.IsSmallerEqual(x, ab) {
			t.Errorf("%s should be smaller than the combination %s", x, ab)
		}
	}
	if l.IsSmallerEqual(ab, a) {
		t.Errorf("%s should not be smaller than %s", ab, a)
	}
	if !l.IsSmallerEqual(l.MinimalElement(), a) {
		t.Errorf("the minimal element should be smaller than %s", a)
	}
	if !l.Combine(nil).Equal(l.MinimalElement()) {
		t.Errorf("combining no state should give the minimal element")
	}
	rs := ab.(*RegisterSet)
	checkRegs(t, "tainted", rs.TaintedRegisters(), "eax", "ebx", "ecx")
	checkRegs(t, "newly tainted", rs.NewlyTaintedRegisters(), "eax")
	checkRegs(t, "read", rs.ReadRegisters(), "ebx")
}

func TestOnInstructionExitDropsTemporaries(t *testing.T) {
	s := NewRegisterSet()
	s.Taint("t0")
	s.Taint("eax")
	s.AddReadRegister("t1")
	s.Untaint("t0")
	s.OnInstructionExit()
	checkRegs(t, "tainted", s.TaintedRegisters(), "eax")
	checkRegs(t, "newly tainted", s.NewlyTaintedRegisters(), "eax")
	checkRegs(t, "untainted", s.UntaintedRegisters())
	checkRegs(t, "read", s.ReadRegisters())
	if !s.Equal(Seed("eax")) {
		t.Errorf("%s should equal the seed of eax", s)
	}
}
