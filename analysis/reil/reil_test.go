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

package reil_test

import (
	"embed"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zynamics/monoreil/analysis/reil"
)

//go:embed testdata
var testfsys embed.FS

func TestParseOpcode(t *testing.T) {
	for _, op := range reil.Opcodes() {
		parsed, err := reil.ParseOpcode(strings.ToUpper(op.String()))
		if err != nil {
			t.Errorf("could not parse mnemonic %s: %v", op, err)
		}
		if parsed != op {
			t.Errorf("parsed %s as %s", op, parsed)
		}
	}
	if _, err := reil.ParseOpcode("consume"); !errors.Is(err, reil.ErrUnknownOpcode) {
		t.Errorf("expected ErrUnknownOpcode, got %v", err)
	}
	if reil.Opcode(99).Valid() {
		t.Errorf("Opcode(99) should not be valid")
	}
}

func TestOperandType(t *testing.T) {
	tests := []struct {
		value string
		want  reil.OperandType
	}{
		{"", reil.EmptyOperand},
		{"eax", reil.Register},
		{"t12", reil.Register},
		{"0", reil.IntegerLiteral},
		{"4294967295", reil.IntegerLiteral},
		{"0x400", reil.IntegerLiteral},
		{"-1", reil.IntegerLiteral},
		{"1024.3", reil.SubAddress},
		{"0x400.1", reil.SubAddress},
		{"340282366920938463463374607431768211455", reil.IntegerLiteral},
		{"0xFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF", reil.IntegerLiteral},
		{"1_000", reil.Register},
		{"0x", reil.Register},
		{"0xzz", reil.Register},
	}
	for _, test := range tests {
		if got := reil.Op(reil.Dword, test.value).Type(); got != test.want {
			t.Errorf("type of %q: got %s, want %s", test.value, got, test.want)
		}
	}
	if a, ok := reil.Op(reil.Address, "4.3").TargetAddress(); !ok || a != 0x403 {
		t.Errorf("sub-address 4.3 should be 0x403, got %x", a)
	}
	if v, _ := reil.Op(reil.Qword, "-1").Literal(); v != 0xFFFFFFFFFFFFFFFF {
		t.Errorf("-1 should be all ones, got %x", v)
	}
}

func TestOperandLiteral(t *testing.T) {
	tests := []struct {
		value string
		want  uint64
		ok    bool
	}{
		{"010", 10, true},
		{"0x10", 16, true},
		{"0X1f", 31, true},
		{"18446744073709551615", math.MaxUint64, true},
		{"18446744073709551616", 0, false},
		{"340282366920938463463374607431768211455", 0, false},
		{"-2", 0xFFFFFFFFFFFFFFFE, true},
		{"1_000", 0, false},
		{"eax", 0, false},
	}
	for _, test := range tests {
		got, ok := reil.Op(reil.Oword, test.value).Literal()
		if ok != test.ok || got != test.want {
			t.Errorf("literal %q: got %d, %v, want %d, %v", test.value, got, ok, test.want, test.ok)
		}
	}
	if a, ok := reil.Op(reil.Address, "0x4.2").TargetAddress(); !ok || a != 0x402 {
		t.Errorf("sub-address 0x4.2 should be 0x402, got %x", a)
	}
	if a, ok := reil.Op(reil.Dword, "1536").TargetAddress(); !ok || a != 0x600 {
		t.Errorf("decimal target 1536 should be 0x600, got %x", a)
	}
}

func TestOperandSizeMask(t *testing.T) {
	tests := []struct {
		size reil.OperandSize
		mask uint64
		ok   bool
	}{
		{reil.Byte, 255, true},
		{reil.Word, 65535, true},
		{reil.Dword, 4294967295, true},
		{reil.Qword, 0xFFFFFFFFFFFFFFFF, true},
		{reil.Oword, 0, false},
	}
	for _, test := range tests {
		mask, ok := test.size.Mask()
		if mask != test.mask || ok != test.ok {
			t.Errorf("mask of %s: got (%d, %v), want (%d, %v)", test.size, mask, ok, test.mask, test.ok)
		}
	}
}

func TestInstructionPredicates(t *testing.T) {
	call := reil.NewCall(0x300, reil.Lit(reil.Dword, 0x1000))
	if !call.IsFunctionCall() || !call.IsUnconditionalJump() || call.IsConditionalJump() {
		t.Errorf("unexpected predicates for call %s", call)
	}
	jcc := reil.NewJcc(0x201, reil.Reg(reil.Byte, "t1"), reil.Lit(reil.Dword, 0x400))
	if jcc.IsFunctionCall() || !jcc.IsConditionalJump() {
		t.Errorf("unexpected predicates for jump %s", jcc)
	}
	if jcc.NativeAddress() != 2 || jcc.IsFirstOfNative() {
		t.Errorf("unexpected native address of %s", jcc)
	}
	if !reil.IsTemporaryRegister("t0") || reil.IsTemporaryRegister("eax") {
		t.Errorf("only registers starting with t are temporaries")
	}
}

func TestParseInstructionRoundTrip(t *testing.T) {
	lines := []string{
		"00000100: add [DWORD eax, DWORD ecx, QWORD t0]",
		"00000200: jcc [BYTE 1, EMPTY , DWORD 4096] {isCall=true}",
		"00000500: nop [EMPTY , EMPTY , EMPTY ]",
	}
	for _, line := range lines {
		ins, err := reil.ParseInstruction(line)
		if err != nil {
			t.Fatalf("could not parse %q: %v", line, err)
		}
		if ins.String() != line {
			t.Errorf("parsed %q, printed %q", line, ins.String())
		}
	}
	for _, bad := range []string{"add eax", "00000100: add [DWORD eax, DWORD ecx]", "00000100: mov [EMPTY , EMPTY , EMPTY ]"} {
		if _, err := reil.ParseInstruction(bad); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}

func TestParseListing(t *testing.T) {
	f, err := testfsys.Open(filepath.Join("testdata", "branches.reil"))
	if err != nil {
		t.Fatalf("failed to open listing: %v", err)
	}
	defer f.Close()
	fn, err := reil.ParseListing("branches", f)
	if err != nil {
		t.Fatalf("failed to parse listing: %v", err)
	}
	if err := fn.Validate(); err != nil {
		t.Fatalf("invalid function: %v", err)
	}
	// blocks: [100 101 200] [300 301] [400] [500] [600]
	if len(fn.Blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(fn.Blocks))
	}
	if fn.InstructionCount() != 8 {
		t.Errorf("expected 8 instructions, got %d", fn.InstructionCount())
	}
	want := []reil.BlockEdge{
		{Source: 0, Target: 2, Kind: reil.True},
		{Source: 0, Target: 1, Kind: reil.False},
		{Source: 1, Target: 2, Kind: reil.Unconditional},
		{Source: 2, Target: 4, Kind: reil.Unconditional},
		{Source: 3, Target: 4, Kind: reil.Unconditional},
	}
	if len(fn.Edges) != len(want) {
		t.Fatalf("expected %d edges, got %v", len(want), fn.Edges)
	}
	for i, e := range want {
		if fn.Edges[i] != e {
			t.Errorf("edge %d: got %+v, want %+v", i, fn.Edges[i], e)
		}
	}
}

func TestParseListingErrors(t *testing.T) {
	dup := "00000100: nop [EMPTY , EMPTY , EMPTY ]\n00000100: nop [EMPTY , EMPTY , EMPTY ]\n"
	if _, err := reil.ParseListing("dup", strings.NewReader(dup)); err == nil ||
		!strings.Contains(err.Error(), "dup:2") {
		t.Errorf("expected a duplicate address error on line 2, got %v", err)
	}
	fn, err := reil.ParseListing("empty", strings.NewReader("# nothing\n\n"))
	if err != nil || len(fn.Blocks) != 0 {
		t.Errorf("expected an empty function, got %v, %v", fn, err)
	}
}
