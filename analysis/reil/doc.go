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

/*
Package reil models the Reverse Engineering Intermediate Language: a small three-operand intermediate language that
binary code is translated to before analysis.

Each native instruction is translated to a sequence of REIL instructions. A REIL address is the native address
shifted left by 8 bits, plus the index of the REIL instruction in the translation of that native instruction. Hence
the first REIL instruction of a native instruction has an address whose low byte is zero.

Every instruction has three operands. The first two are the inputs and the third is the output, except for jcc (the
third operand is the jump target) and stm (the third operand is the memory address). Unused operands are empty.
Registers whose name starts with "t" are temporaries: they only live within the translation of one native
instruction.

The package also provides [ParseListing], which reads a textual listing of REIL instructions into a [Function]
made of basic blocks, for example:

	# mov eax, [ebp+8]
	00000100: add [DWORD ebp, DWORD 8, QWORD t0]
	00000101: and [QWORD t0, DWORD 4294967295, DWORD t1]
	00000102: ldm [DWORD t1, EMPTY , DWORD t2]
	00000103: str [DWORD t2, EMPTY , DWORD eax]
	00000200: jcc [DWORD eax, EMPTY , DWORD 0x400]
*/
package reil
