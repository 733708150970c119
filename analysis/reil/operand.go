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
	"math"
	"strconv"
	"strings"
)

// OperandSize is the size of an operand
type OperandSize int

const (
	// SizeEmpty is the size of an empty operand
	SizeEmpty OperandSize = iota
	Byte
	Word
	Dword
	Qword
	Oword
	// Address is the size of an operand that holds the address of the target of a jump
	Address
)

var sizeNames = map[OperandSize]string{
	SizeEmpty: "EMPTY",
	Byte:      "BYTE",
	Word:      "WORD",
	Dword:     "DWORD",
	Qword:     "QWORD",
	Oword:     "OWORD",
	Address:   "ADDRESS",
}

func (s OperandSize) String() string {
	if n, ok := sizeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("OperandSize(%d)", int(s))
}

// ParseOperandSize returns the size named by s (e.g. "DWORD"). The name is not case-sensitive.
func ParseOperandSize(s string) (OperandSize, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for size, name := range sizeNames {
		if name == u {
			return size, nil
		}
	}
	return SizeEmpty, fmt.Errorf("unknown operand size %q", s)
}

// Mask returns the value where all the bits of the size are set. ok is false for sizes that do not fit in 64 bits.
func (s OperandSize) Mask() (mask uint64, ok bool) {
	switch s {
	case Byte:
		return math.MaxUint8, true
	case Word:
		return math.MaxUint16, true
	case Dword:
		return math.MaxUint32, true
	case Qword:
		return math.MaxUint64, true
	default:
		return 0, false
	}
}

// OperandType is the kind of value held by an operand
type OperandType int

const (
	EmptyOperand OperandType = iota
	IntegerLiteral
	Register
	SubAddress
)

func (t OperandType) String() string {
	switch t {
	case EmptyOperand:
		return "empty"
	case IntegerLiteral:
		return "integer literal"
	case Register:
		return "register"
	case SubAddress:
		return "sub-address"
	}
	return fmt.Sprintf("OperandType(%d)", int(t))
}

// Operand is an operand of a REIL instruction. The zero Operand is empty.
type Operand struct {
	Size  OperandSize
	Value string
}

// Empty is the empty operand
var Empty = Operand{}

// Op returns an operand of the given size and value
func Op(size OperandSize, value string) Operand {
	return Operand{Size: size, Value: value}
}

// Reg returns an operand holding a register
func Reg(size OperandSize, name string) Operand {
	return Operand{Size: size, Value: name}
}

// Lit returns an operand holding an integer literal
func Lit(size OperandSize, value uint64) Operand {
	return Operand{Size: size, Value: strconv.FormatUint(value, 10)}
}

// Type returns the type of the operand, inferred from its value
func (o Operand) Type() OperandType {
	v := o.Value
	if v == "" {
		return EmptyOperand
	}
	if isLiteral(v) {
		return IntegerLiteral
	}
	if _, ok := parseSubAddress(v); ok {
		return SubAddress
	}
	return Register
}

// IsEmpty returns true if the operand is empty
func (o Operand) IsEmpty() bool { return o.Type() == EmptyOperand }

// IsRegister returns true if the operand holds a register
func (o Operand) IsRegister() bool { return o.Type() == Register }

// IsLiteral returns true if the operand holds an integer literal
func (o Operand) IsLiteral() bool { return o.Type() == IntegerLiteral }

// Literal returns the value of an integer literal operand. Negative literals are returned in two's complement.
// ok is false for literals that do not fit in 64 bits, such as OWORD masks.
func (o Operand) Literal() (uint64, bool) {
	return parseLiteral(o.Value)
}

// TargetAddress returns the REIL address denoted by a literal or sub-address operand.
func (o Operand) TargetAddress() (uint64, bool) {
	if a, ok := parseSubAddress(o.Value); ok {
		return a, true
	}
	return parseLiteral(o.Value)
}

func (o Operand) String() string {
	if o.IsEmpty() {
		return "EMPTY "
	}
	return o.Size.String() + " " + o.Value
}

// isLiteral returns true for decimal values, values starting with "-" and hexadecimal values prefixed with 0x
func isLiteral(v string) bool {
	if strings.HasPrefix(v, "-") {
		return true
	}
	digits, base := splitBase(v)
	if digits == "" {
		return false
	}
	for _, c := range digits {
		if !isDigit(c, base) {
			return false
		}
	}
	return true
}

func splitBase(v string) (string, int) {
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		return v[2:], 16
	}
	return v, 10
}

func isDigit(c rune, base int) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case base == 16 && 'a' <= c && c <= 'f', base == 16 && 'A' <= c && c <= 'F':
		return true
	}
	return false
}

// parseUnsigned parses a decimal value, or a hexadecimal value prefixed with 0x
func parseUnsigned(v string, bits int) (uint64, bool) {
	digits, base := splitBase(v)
	u, err := strconv.ParseUint(digits, base, bits)
	if err != nil {
		return 0, false
	}
	return u, true
}

func parseLiteral(v string) (uint64, bool) {
	if strings.HasPrefix(v, "-") {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return uint64(i), true
	}
	return parseUnsigned(v, 64)
}

// parseSubAddress parses "native.index" into a REIL address
func parseSubAddress(v string) (uint64, bool) {
	native, sub, found := strings.Cut(v, ".")
	if !found {
		return 0, false
	}
	n, ok := parseUnsigned(native, 56)
	if !ok {
		return 0, false
	}
	s, err := strconv.ParseUint(sub, 10, 8)
	if err != nil {
		return 0, false
	}
	return n<<8 | s, true
}
