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

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/zynamics/monoreil/analysis/instgraph"
)

type nodeHasher struct{}

func (nodeHasher) Hash(n instgraph.NodeID) uint32 {
	x := uint32(n)
	x ^= x >> 16
	x *= 0x45d9f3b
	x ^= x >> 16
	return x
}

func (nodeHasher) Equal(a, b instgraph.NodeID) bool { return a == b }

// StateVector maps nodes of an instruction graph to their state.
// It is backed by a persistent map, so that [StateVector.Freeze] is constant time and a frozen vector never observes
// later updates of the vector it was frozen from.
type StateVector struct {
	states *immutable.Map[instgraph.NodeID, Element]
	frozen bool
}

// NewStateVector returns an empty state vector
func NewStateVector() *StateVector {
	return &StateVector{states: immutable.NewMap[instgraph.NodeID, Element](nodeHasher{})}
}

// NewStateVectorFor returns a state vector mapping every node of the graph to its own copy of the element
func NewStateVectorFor(g *instgraph.Graph, e Element) *StateVector {
	v := NewStateVector()
	for _, n := range g.Nodes() {
		v.states = v.states.Set(n, e.Copy())
	}
	return v
}

// State returns the state of the node, and false if the vector has no state for it
func (v *StateVector) State(n instgraph.NodeID) (Element, bool) {
	return v.states.Get(n)
}

// HasState returns true if the vector has a state for the node
func (v *StateVector) HasState(n instgraph.NodeID) bool {
	_, ok := v.states.Get(n)
	return ok
}

// SetState sets the state of the node, replacing any previous state
func (v *StateVector) SetState(n instgraph.NodeID, e Element) error {
	if v.frozen {
		return ErrFrozen
	}
	v.states = v.states.Set(n, e)
	return nil
}

// Size returns the number of nodes that have a state
func (v *StateVector) Size() int {
	return v.states.Len()
}

// Frozen returns true if the vector cannot be modified
func (v *StateVector) Frozen() bool {
	return v.frozen
}

// Freeze returns a frozen snapshot of the vector
func (v *StateVector) Freeze() *StateVector {
	return &StateVector{states: v.states, frozen: true}
}

// Thaw returns a modifiable copy of the vector
func (v *StateVector) Thaw() *StateVector {
	return &StateVector{states: v.states}
}

// Clone returns a vector holding a copy of every element of v. frozen sets whether the clone can be modified.
// Unlike Freeze and Thaw, mutating an element of the clone never affects v.
func (v *StateVector) Clone(frozen bool) *StateVector {
	c := NewStateVector()
	v.ForEach(func(n instgraph.NodeID, e Element) {
		c.states = c.states.Set(n, e.Copy())
	})
	c.frozen = frozen
	return c
}

// ForEach calls f on each node and its state
func (v *StateVector) ForEach(f func(instgraph.NodeID, Element)) {
	it := v.states.Iterator()
	for !it.Done() {
		n, e, _ := it.Next()
		f(n, e)
	}
}

// Nodes returns the nodes that have a state, in increasing order
func (v *StateVector) Nodes() []instgraph.NodeID {
	var nodes []instgraph.NodeID
	v.ForEach(func(n instgraph.NodeID, _ Element) { nodes = append(nodes, n) })
	sortNodes(nodes)
	return nodes
}

// Equal returns true if both vectors have states for the same nodes, and these states are equal
func (v *StateVector) Equal(other *StateVector) bool {
	if v.Size() != other.Size() {
		return false
	}
	equal := true
	v.ForEach(func(n instgraph.NodeID, e Element) {
		o, ok := other.State(n)
		if !ok || !e.Equal(o) {
			equal = false
		}
	})
	return equal
}

func (v *StateVector) String() string {
	var b strings.Builder
	for _, n := range v.Nodes() {
		e, _ := v.State(n)
		fmt.Fprintf(&b, "#%d: %s\n", n, e)
	}
	return b.String()
}
