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
Package registertracking tracks how the value of a register flows through the REIL translation of a function.

Starting from a register at a native instruction, the analysis taints the register and propagates taint forward
(where does the value go, [mono.Down]) or backward (where does the value come from, [mono.Up]). Each native
instruction reached by the analysis gets a [RegisterSet] that lists the tainted registers and, for the instruction
itself, the registers it newly tainted, untainted, read and updated.

Taint is removed when a register is overwritten by a value that does not depend on tainted registers, including
the idioms that always produce a constant (and with 0, or with an all-ones mask, sub or xor of a register with
itself). Function calls untaint every tainted register or the registers of [Options].ClearedRegisters.

Usage:

	fn, err := reil.ParseListing("f", r)
	...
	res, err := registertracking.Track(fn, 0x5, "ecx", registertracking.Options{Direction: mono.Down})
	...
	for _, addr := range res.Addresses() {
		state, _ := res.State(addr)
		fmt.Printf("%X: %v\n", addr, state.TaintedRegisters())
	}
*/
package registertracking
