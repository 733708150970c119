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

	"github.com/zynamics/monoreil/analysis/instgraph"
	"github.com/zynamics/monoreil/internal/funcutil"
)

// Direction is the direction in which states are propagated
type Direction int

const (
	// Down propagates states along the control flow
	Down Direction = iota
	// Up propagates states against the control flow
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// ParseDirection returns the direction named "down" or "up"
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "down", "":
		return Down, nil
	case "up":
		return Up, nil
	}
	return Down, fmt.Errorf("%w: unknown direction %q", ErrInvalidArgument, s)
}

// Influence is a node whose state flows into another node, and the edge the state flows along when there is one
type Influence struct {
	Node instgraph.NodeID
	Via  funcutil.Optional[instgraph.EdgeID]
}

// A Walker relates the nodes of a graph according to a direction of propagation
type Walker interface {
	Direction() Direction

	// Influenced returns the nodes whose state depends on the state of n
	Influenced(g *instgraph.Graph, n instgraph.NodeID) ([]instgraph.NodeID, error)

	// Influencing returns the nodes whose state the state of n depends on
	Influencing(g *instgraph.Graph, n instgraph.NodeID) ([]Influence, error)

	// InEdges returns the edges whose state flows into n
	InEdges(g *instgraph.Graph, n instgraph.NodeID) ([]instgraph.EdgeID, error)

	// OutEdges returns the edges the state of n flows into
	OutEdges(g *instgraph.Graph, n instgraph.NodeID) ([]instgraph.EdgeID, error)

	// Carrier returns the node the state of the edge flows into
	Carrier(g *instgraph.Graph, e instgraph.EdgeID) (instgraph.NodeID, error)
}

// WalkerFor returns the walker of the direction
func WalkerFor(d Direction) Walker {
	if d == Up {
		return UpWalker{}
	}
	return DownWalker{}
}

// DownWalker propagates states from a node to its children
type DownWalker struct{}

func (DownWalker) Direction() Direction { return Down }

func (DownWalker) Influenced(g *instgraph.Graph, n instgraph.NodeID) ([]instgraph.NodeID, error) {
	return g.Children(n)
}

func (DownWalker) Influencing(g *instgraph.Graph, n instgraph.NodeID) ([]Influence, error) {
	in, err := g.Incoming(n)
	if err != nil {
		return nil, err
	}
	return influences(g, in, func(e instgraph.Edge) instgraph.NodeID { return e.Source })
}

func (DownWalker) InEdges(g *instgraph.Graph, n instgraph.NodeID) ([]instgraph.EdgeID, error) {
	return g.Incoming(n)
}

func (DownWalker) OutEdges(g *instgraph.Graph, n instgraph.NodeID) ([]instgraph.EdgeID, error) {
	return g.Outgoing(n)
}

func (DownWalker) Carrier(g *instgraph.Graph, e instgraph.EdgeID) (instgraph.NodeID, error) {
	edge, err := g.Edge(e)
	return edge.Target, err
}

// UpWalker propagates states from a node to its parents
type UpWalker struct{}

func (UpWalker) Direction() Direction { return Up }

func (UpWalker) Influenced(g *instgraph.Graph, n instgraph.NodeID) ([]instgraph.NodeID, error) {
	return g.Parents(n)
}

func (UpWalker) Influencing(g *instgraph.Graph, n instgraph.NodeID) ([]Influence, error) {
	out, err := g.Outgoing(n)
	if err != nil {
		return nil, err
	}
	return influences(g, out, func(e instgraph.Edge) instgraph.NodeID { return e.Target })
}

func (UpWalker) InEdges(g *instgraph.Graph, n instgraph.NodeID) ([]instgraph.EdgeID, error) {
	return g.Outgoing(n)
}

func (UpWalker) OutEdges(g *instgraph.Graph, n instgraph.NodeID) ([]instgraph.EdgeID, error) {
	return g.Incoming(n)
}

func (UpWalker) Carrier(g *instgraph.Graph, e instgraph.EdgeID) (instgraph.NodeID, error) {
	edge, err := g.Edge(e)
	return edge.Source, err
}

func influences(g *instgraph.Graph, edges []instgraph.EdgeID,
	end func(instgraph.Edge) instgraph.NodeID) ([]Influence, error) {
	res := make([]Influence, 0, len(edges))
	for _, id := range edges {
		e, err := g.Edge(id)
		if err != nil {
			return nil, err
		}
		res = append(res, Influence{Node: end(e), Via: funcutil.Some(id)})
	}
	return res, nil
}
