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
	"errors"
	"testing"

	"github.com/zynamics/monoreil/analysis/mono"
	"github.com/zynamics/monoreil/analysis/reil"
	"golang.org/x/exp/slices"
)

func transform(t *testing.T, p *TransformationProvider, ins reil.Instruction, input *RegisterSet) *RegisterSet {
	tr, err := mono.Dispatch(p, ins, input)
	if err != nil {
		t.Fatalf("transfer function of %s failed: %v", ins, err)
	}
	if tr.Branch.IsSome() {
		t.Fatalf("transfer function of %s should not branch", ins)
	}
	st, ok := tr.State.(*RegisterSet)
	if !ok {
		t.Fatalf("transfer function of %s returned %T", ins, tr.State)
	}
	return st
}

// exited returns a copy of the state after the exit of its native instruction
func exited(s *RegisterSet) *RegisterSet {
	c := s.Copy().(*RegisterSet)
	c.OnInstructionExit()
	return c
}

func checkRegs(t *testing.T, what string, got []string, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		t.Errorf("%s: got %v, want %v", what, got, want)
	}
}

var (
	eax = reil.Reg(reil.Dword, "eax")
	ebx = reil.Reg(reil.Dword, "ebx")
	ecx = reil.Reg(reil.Dword, "ecx")
)

func TestTransformForward(t *testing.T) {
	p := NewTransformationProvider(Options{Direction: mono.Down})

	t.Run("tainted input taints output", func(t *testing.T) {
		st := exited(transform(t, p, reil.New(0x100, reil.Add, eax, ecx, ebx), NewTaintedRegisterSet("eax")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax", "ebx")
		checkRegs(t, "newly tainted", st.NewlyTaintedRegisters(), "ebx")
		checkRegs(t, "read", st.ReadRegisters(), "eax")
	})

	t.Run("untainted inputs untaint output", func(t *testing.T) {
		st := exited(transform(t, p, reil.New(0x100, reil.Add, eax, ecx, ebx), NewTaintedRegisterSet("ebx")))
		checkRegs(t, "tainted", st.TaintedRegisters())
		checkRegs(t, "untainted", st.UntaintedRegisters(), "ebx")
		checkRegs(t, "read", st.ReadRegisters())
	})

	t.Run("retaint is an update", func(t *testing.T) {
		st := exited(transform(t, p, reil.New(0x100, reil.Add, eax, ebx, ebx), NewTaintedRegisterSet("eax", "ebx")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax", "ebx")
		checkRegs(t, "newly tainted", st.NewlyTaintedRegisters())
		checkRegs(t, "updated", st.UpdatedRegisters(), "ebx")
		checkRegs(t, "read", st.ReadRegisters(), "eax", "ebx")
	})

	t.Run("and with zero", func(t *testing.T) {
		ins := reil.New(0x100, reil.And, eax, reil.Lit(reil.Dword, 0), ebx)
		st := exited(transform(t, p, ins, NewTaintedRegisterSet("eax", "ebx")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax")
		checkRegs(t, "untainted", st.UntaintedRegisters(), "ebx")
		checkRegs(t, "read", st.ReadRegisters())
	})

	t.Run("mul by zero", func(t *testing.T) {
		ins := reil.New(0x100, reil.Mul, reil.Lit(reil.Dword, 0), eax, ebx)
		st := exited(transform(t, p, ins, NewTaintedRegisterSet("eax")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax")
	})

	t.Run("or with mask", func(t *testing.T) {
		ins := reil.New(0x100, reil.Or, eax, reil.Op(reil.Dword, "0xFFFFFFFF"), ebx)
		st := exited(transform(t, p, ins, NewTaintedRegisterSet("eax", "ebx")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax")
		checkRegs(t, "untainted", st.UntaintedRegisters(), "ebx")
	})

	t.Run("or with mask of another size", func(t *testing.T) {
		ins := reil.New(0x100, reil.Or, reil.Reg(reil.Word, "ax"), reil.Lit(reil.Word, 0xFFFF), ebx)
		st := exited(transform(t, p, ins, NewTaintedRegisterSet("ax")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "ax", "ebx")
	})

	t.Run("qword mask", func(t *testing.T) {
		rax := reil.Reg(reil.Qword, "rax")
		ins := reil.New(0x100, reil.Or, rax, reil.Op(reil.Qword, "-1"), reil.Reg(reil.Qword, "rbx"))
		st := exited(transform(t, p, ins, NewTaintedRegisterSet("rax")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "rax")
	})

	t.Run("xor self", func(t *testing.T) {
		st := exited(transform(t, p, reil.New(0x100, reil.Xor, eax, reil.Reg(reil.Dword, "EAX"), eax),
			NewTaintedRegisterSet("eax")))
		checkRegs(t, "tainted", st.TaintedRegisters())
		checkRegs(t, "untainted", st.UntaintedRegisters(), "eax")
	})

	t.Run("xor self clears tainted output", func(t *testing.T) {
		ins := reil.New(0x100, reil.Xor, eax, eax, ebx)
		st := exited(transform(t, p, ins, NewTaintedRegisterSet("ebx")))
		checkRegs(t, "tainted", st.TaintedRegisters())
		checkRegs(t, "untainted", st.UntaintedRegisters(), "ebx")
		checkRegs(t, "read", st.ReadRegisters())

		st = exited(transform(t, p, ins, NewTaintedRegisterSet("eax", "ebx")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax")
		checkRegs(t, "untainted", st.UntaintedRegisters(), "ebx")
	})

	t.Run("sub self", func(t *testing.T) {
		st := exited(transform(t, p, reil.New(0x100, reil.Sub, eax, eax, ebx), NewTaintedRegisterSet("eax")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax")
	})

	t.Run("ldm", func(t *testing.T) {
		st := exited(transform(t, p, reil.NewLdm(0x100, eax, ebx), NewTaintedRegisterSet("eax", "ebx")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax")
		checkRegs(t, "untainted", st.UntaintedRegisters(), "ebx")
	})

	t.Run("undef", func(t *testing.T) {
		st := exited(transform(t, p, reil.NewUndef(0x100, eax), NewTaintedRegisterSet("eax")))
		checkRegs(t, "tainted", st.TaintedRegisters())
	})

	t.Run("stm", func(t *testing.T) {
		st := exited(transform(t, p, reil.NewStm(0x100, eax, ebx), NewTaintedRegisterSet("eax")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax")
		checkRegs(t, "read", st.ReadRegisters(), "eax")
	})

	t.Run("temporaries dropped at exit", func(t *testing.T) {
		ins := reil.New(0x100, reil.Add, eax, ecx, reil.Reg(reil.Qword, "t0"))
		st := transform(t, p, ins, NewTaintedRegisterSet("eax"))
		if !st.IsTainted("t0") {
			t.Errorf("t0 should be tainted within the instruction")
		}
		st = exited(st)
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax")
		checkRegs(t, "newly tainted", st.NewlyTaintedRegisters())
	})

	t.Run("unknown", func(t *testing.T) {
		in := NewTaintedRegisterSet("eax")
		st := transform(t, p, reil.NewUnknown(0x100), in)
		if !st.Equal(in) {
			t.Errorf("unknown instruction changed the state: %s", st)
		}
	})
}

func TestTransformBackward(t *testing.T) {
	p := NewTransformationProvider(Options{Direction: mono.Up})

	t.Run("tainted output taints inputs", func(t *testing.T) {
		st := exited(transform(t, p, reil.New(0x100, reil.Add, eax, ecx, ebx), NewTaintedRegisterSet("ebx")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "eax", "ecx")
		checkRegs(t, "newly tainted", st.NewlyTaintedRegisters(), "eax", "ecx")
		checkRegs(t, "untainted", st.UntaintedRegisters(), "ebx")
		checkRegs(t, "read", st.ReadRegisters(), "ebx")
	})

	t.Run("untainted output", func(t *testing.T) {
		in := NewTaintedRegisterSet("eax")
		st := transform(t, p, reil.New(0x100, reil.Add, eax, ecx, ebx), in)
		if !st.Equal(in) {
			t.Errorf("got %s, want %s", st, in)
		}
	})

	t.Run("literal source", func(t *testing.T) {
		st := exited(transform(t, p, reil.NewStr(0x100, reil.Lit(reil.Dword, 1), ebx), NewTaintedRegisterSet("ebx")))
		checkRegs(t, "tainted", st.TaintedRegisters())
		checkRegs(t, "untainted", st.UntaintedRegisters(), "ebx")
		checkRegs(t, "read", st.ReadRegisters())
	})

	t.Run("wide literal source", func(t *testing.T) {
		xmm0 := reil.Reg(reil.Oword, "xmm0")
		mask := reil.Op(reil.Oword, "340282366920938463463374607431768211455")
		st := exited(transform(t, p, reil.New(0x100, reil.And, xmm0, mask, eax), NewTaintedRegisterSet("eax")))
		checkRegs(t, "tainted", st.TaintedRegisters(), "xmm0")
		checkRegs(t, "untainted", st.UntaintedRegisters(), "eax")
		checkRegs(t, "read", st.ReadRegisters(), "eax")
	})
}

func TestTransformCall(t *testing.T) {
	call := reil.NewCall(0x100, reil.Lit(reil.Dword, 0x1000))
	jump := reil.NewJcc(0x100, reil.Lit(reil.Byte, 1), reil.Lit(reil.Dword, 0x1000))

	all := NewTransformationProvider(Options{ClearAllRegistersOnCall: true})
	st := exited(transform(t, all, call, NewTaintedRegisterSet("eax", "esi")))
	checkRegs(t, "tainted after call", st.TaintedRegisters())
	checkRegs(t, "untainted by call", st.UntaintedRegisters(), "eax", "esi")

	some := NewTransformationProvider(Options{ClearedRegisters: []string{"eax", "edx"}})
	st = exited(transform(t, some, call, NewTaintedRegisterSet("eax", "esi")))
	checkRegs(t, "tainted after call", st.TaintedRegisters(), "esi")
	checkRegs(t, "untainted by call", st.UntaintedRegisters(), "eax")

	st = exited(transform(t, all, jump, NewTaintedRegisterSet("eax")))
	checkRegs(t, "tainted after jump", st.TaintedRegisters(), "eax")
}

type notARegisterSet struct{ mono.Element }

func TestTransformWrongState(t *testing.T) {
	p := NewTransformationProvider(Options{})
	_, err := mono.Dispatch(p, reil.NewStr(0x100, eax, ebx), notARegisterSet{})
	if !errors.Is(err, mono.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	_, err = mono.Dispatch(p, reil.Instruction{Address: 0x100}, NewRegisterSet())
	if !errors.Is(err, mono.ErrUnknownOpcode) {
		t.Errorf("expected ErrUnknownOpcode, got %v", err)
	}
}

func TestCallingConventions(t *testing.T) {
	regs, err := CallingConventionRegisters("X86-cdecl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkRegs(t, "x86-cdecl", regs, "eax", "ecx", "edx")
	regs, err = CallingConventionRegisters("x86-64-win")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkRegs(t, "x86-64-win", regs, "rax", "rcx", "rdx", "r8", "r9", "r10", "r11")
	if _, err := CallingConventionRegisters("pascal"); err == nil {
		t.Errorf("expected an error for an unknown calling convention")
	}
	checkRegs(t, "conventions", CallingConventions(), "x86-64-sysv", "x86-64-win", "x86-cdecl")
}
