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

package mono

// Element is an abstract state of an analysis.
// Elements are treated as values: solvers never mutate an element after it has been stored, and transfer functions
// must copy their input before modifying it.
type Element interface {
	// Copy returns an independent clone of the element
	Copy() Element

	// LessOrEqual returns true if the element is smaller or equal than other in the lattice order
	LessOrEqual(other Element) bool

	// Equal returns true if the element and other represent the same state
	Equal(other Element) bool

	// OnInstructionExit is called on the state flowing out of a native instruction. It may modify the element.
	OnInstructionExit()

	String() string
}

// Lattice defines the combine operation and order of the elements of an analysis
type Lattice interface {
	// Combine returns the least upper bound of the states. The result must not depend on the order of states, and
	// must not alias any of them when len(states) > 1. Combine of an empty slice returns the minimal element.
	Combine(states []Element) Element

	// IsSmallerEqual returns true if a is smaller or equal than b
	IsSmallerEqual(a, b Element) bool

	// MinimalElement returns the bottom of the lattice
	MinimalElement() Element
}
