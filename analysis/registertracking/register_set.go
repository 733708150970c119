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
	"github.com/zynamics/monoreil/internal/funcutil"
)

type regs = map[string]bool

// RegisterSet is the state of the register tracking analysis.
//
// The tainted set holds the registers whose value depends on the tracked register. The newly tainted, untainted,
// read and updated sets accumulate what happens within the current native instruction; at the exit of the
// instruction they are moved to the native sets, which are the ones exposed by the getters.
type RegisterSet struct {
	tainted      regs
	newlyTainted regs
	untainted    regs
	read         regs
	updated      regs

	nativeNewlyTainted regs
	nativeUntainted    regs
	nativeRead         regs
	nativeUpdated      regs
}

// NewRegisterSet returns an empty register set
func NewRegisterSet() *RegisterSet {
	return &RegisterSet{
		tainted:            regs{},
		newlyTainted:       regs{},
		untainted:          regs{},
		read:               regs{},
		updated:            regs{},
		nativeNewlyTainted: regs{},
		nativeUntainted:    regs{},
		nativeRead:         regs{},
		nativeUpdated:      regs{},
	}
}

// NewTaintedRegisterSet returns a register set where only the given registers are tainted
func NewTaintedRegisterSet(registers ...string) *RegisterSet {
	s := NewRegisterSet()
	for _, r := range registers {
		s.tainted[r] = true
	}
	return s
}

// Seed returns the state a tracking query starts with: the register is tainted and reported as newly tainted by the
// start instruction.
func Seed(register string) *RegisterSet {
	s := NewRegisterSet()
	s.tainted[register] = true
	s.newlyTainted[register] = true
	s.OnInstructionExit()
	return s
}

// Taint taints the register. The register is reported as updated if it was already tainted or was untainted
// within the instruction, and as newly tainted otherwise.
func (s *RegisterSet) Taint(register string) {
	if s.tainted[register] || s.untainted[register] {
		s.updated[register] = true
	} else {
		s.newlyTainted[register] = true
	}
	s.tainted[register] = true
	delete(s.untainted, register)
}

// TaintAll taints all the registers
func (s *RegisterSet) TaintAll(registers []string) {
	for _, r := range registers {
		s.Taint(r)
	}
}

// Untaint removes the taint of a tainted register. Untainted registers are not affected.
func (s *RegisterSet) Untaint(register string) {
	if s.tainted[register] {
		s.untainted[register] = true
		delete(s.tainted, register)
	}
}

// UntaintAll untaints all the registers
func (s *RegisterSet) UntaintAll(registers []string) {
	for _, r := range registers {
		s.Untaint(r)
	}
}

// AddReadRegister records that the instruction reads the tainted register
func (s *RegisterSet) AddReadRegister(register string) {
	s.read[register] = true
}

// IsTainted returns true if the register is tainted
func (s *RegisterSet) IsTainted(register string) bool {
	return s.tainted[register]
}

// IsAnyTainted returns true if some register is tainted
func (s *RegisterSet) IsAnyTainted() bool {
	return len(s.tainted) > 0
}

// TaintedRegisters returns the tainted registers, sorted
func (s *RegisterSet) TaintedRegisters() []string { return funcutil.SetToOrderedSlice(s.tainted) }

// NewlyTaintedRegisters returns the registers the native instruction tainted, sorted
func (s *RegisterSet) NewlyTaintedRegisters() []string {
	return funcutil.SetToOrderedSlice(s.nativeNewlyTainted)
}

// UntaintedRegisters returns the registers the native instruction untainted, sorted
func (s *RegisterSet) UntaintedRegisters() []string { return funcutil.SetToOrderedSlice(s.nativeUntainted) }

// ReadRegisters returns the tainted registers the native instruction read, sorted
func (s *RegisterSet) ReadRegisters() []string { return funcutil.SetToOrderedSlice(s.nativeRead) }

// UpdatedRegisters returns the tainted registers the native instruction tainted again, sorted
func (s *RegisterSet) UpdatedRegisters() []string { return funcutil.SetToOrderedSlice(s.nativeUpdated) }

// Copy implements mono.Element
func (s *RegisterSet) Copy() mono.Element {
	return &RegisterSet{
		tainted:            funcutil.CopySet(s.tainted),
		newlyTainted:       funcutil.CopySet(s.newlyTainted),
		untainted:          funcutil.CopySet(s.untainted),
		read:               funcutil.CopySet(s.read),
		updated:            funcutil.CopySet(s.updated),
		nativeNewlyTainted: funcutil.CopySet(s.nativeNewlyTainted),
		nativeUntainted:    funcutil.CopySet(s.nativeUntainted),
		nativeRead:         funcutil.CopySet(s.nativeRead),
		nativeUpdated:      funcutil.CopySet(s.nativeUpdated),
	}
}

// derive returns a copy of the instruction-level sets, without the native sets of the previous instruction.
// Transfer functions start from it.
func (s *RegisterSet) derive() *RegisterSet {
	d := NewRegisterSet()
	d.tainted = funcutil.CopySet(s.tainted)
	d.newlyTainted = funcutil.CopySet(s.newlyTainted)
	d.untainted = funcutil.CopySet(s.untainted)
	d.read = funcutil.CopySet(s.read)
	d.updated = funcutil.CopySet(s.updated)
	return d
}

func (s *RegisterSet) sets() []regs {
	return []regs{s.tainted, s.newlyTainted, s.untainted, s.read, s.updated,
		s.nativeNewlyTainted, s.nativeUntainted, s.nativeRead, s.nativeUpdated}
}

// LessOrEqual implements mono.Element: every set is included in the corresponding set of other
func (s *RegisterSet) LessOrEqual(other mono.Element) bool {
	o, ok := other.(*RegisterSet)
	if !ok {
		return false
	}
	others := o.sets()
	for i, x := range s.sets() {
		if !funcutil.Subset(x, others[i]) {
			return false
		}
	}
	return true
}

// Equal implements mono.Element
func (s *RegisterSet) Equal(other mono.Element) bool {
	o, ok := other.(*RegisterSet)
	if !ok {
		return false
	}
	others := o.sets()
	for i, x := range s.sets() {
		if !funcutil.SetEqual(x, others[i]) {
			return false
		}
	}
	return true
}

// OnInstructionExit implements mono.Element: temporary registers are dropped and the instruction-level sets become
// the native sets.
func (s *RegisterSet) OnInstructionExit() {
	for _, set := range []regs{s.tainted, s.newlyTainted, s.untainted, s.read, s.updated} {
		for r := range set {
			if reil.IsTemporaryRegister(r) {
				delete(set, r)
			}
		}
	}
	s.nativeNewlyTainted, s.newlyTainted = s.newlyTainted, regs{}
	s.nativeUntainted, s.untainted = s.untainted, regs{}
	s.nativeRead, s.read = s.read, regs{}
	s.nativeUpdated, s.updated = s.updated, regs{}
}

// union adds all the registers of other to s
func (s *RegisterSet) union(other *RegisterSet) {
	others := other.sets()
	for i, x := range s.sets() {
		funcutil.Union(x, others[i])
	}
}

func (s *RegisterSet) String() string {
	f := func(x regs) string { return "{" + strings.Join(funcutil.SetToOrderedSlice(x), ",") + "}" }
	return fmt.Sprintf("tainted=%s newly=%s untainted=%s read=%s updated=%s native(newly=%s untainted=%s read=%s updated=%s)",
		f(s.tainted), f(s.newlyTainted), f(s.untainted), f(s.read), f(s.updated),
		f(s.nativeNewlyTainted), f(s.nativeUntainted), f(s.nativeRead), f(s.nativeUpdated))
}

// Lattice is the lattice of register sets ordered by inclusion
type Lattice struct{}

// Combine implements mono.Lattice. The result is the union of the states.
func (Lattice) Combine(states []mono.Element) mono.Element {
	res := NewRegisterSet()
	for _, st := range states {
		res.union(st.(*RegisterSet))
	}
	return res
}

// IsSmallerEqual implements mono.Lattice
func (Lattice) IsSmallerEqual(a, b mono.Element) bool {
	return a.LessOrEqual(b)
}

// MinimalElement implements mono.Lattice
func (Lattice) MinimalElement() mono.Element {
	return NewRegisterSet()
}
