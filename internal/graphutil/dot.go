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

package graphutil

import (
	"fmt"
	"io"

	"github.com/zynamics/monoreil/analysis/instgraph"
	"github.com/zynamics/monoreil/analysis/reil"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"
)

// EdgeLabeler returns the label of an edge in the DOT output, and false when the edge has no label
type EdgeLabeler func(e instgraph.Edge) (string, bool)

type dotNode struct {
	node instgraph.Node
}

func (n dotNode) ID() int64 { return int64(n.node.ID) }

// DOTID implements dot.Node
func (n dotNode) DOTID() string { return fmt.Sprintf("n%d", n.node.ID) }

// Attributes implements encoding.Attributer
func (n dotNode) Attributes() []encoding.Attribute {
	label := n.node.Instruction.String()
	attrs := []encoding.Attribute{{Key: "shape", Value: "box"}}
	if n.node.Synthetic {
		label = "entry"
		if n.node.Instruction.Address == instgraph.ExitAddress {
			label = "exit"
		}
		attrs = append(attrs, encoding.Attribute{Key: "style", Value: "dashed"})
	}
	return append(attrs, encoding.Attribute{Key: "label", Value: fmt.Sprintf("%q", label)})
}

type dotLine struct {
	from, to dotNode
	edge     instgraph.Edge
	label    string
}

func (l dotLine) From() graph.Node         { return l.from }
func (l dotLine) To() graph.Node           { return l.to }
func (l dotLine) ID() int64                { return int64(l.edge.ID) }
func (l dotLine) ReversedLine() graph.Line { return dotLine{from: l.to, to: l.from, edge: l.edge, label: l.label} }

// Attributes implements encoding.Attributer
func (l dotLine) Attributes() []encoding.Attribute {
	var attrs []encoding.Attribute
	switch l.edge.Kind {
	case reil.True:
		attrs = append(attrs, encoding.Attribute{Key: "color", Value: "green"})
	case reil.False:
		attrs = append(attrs, encoding.Attribute{Key: "color", Value: "red"})
	}
	if l.edge.Exit {
		attrs = append(attrs, encoding.Attribute{Key: "penwidth", Value: "2"})
	}
	if l.label != "" {
		attrs = append(attrs, encoding.Attribute{Key: "label", Value: fmt.Sprintf("%q", l.label)})
	}
	return attrs
}

// ToGonum returns the instruction graph as a gonum multigraph. Lines have the ID of their edge.
func ToGonum(g *instgraph.Graph, labeler EdgeLabeler) *multi.DirectedGraph {
	mg := multi.NewDirectedGraph()
	nodes := make(map[instgraph.NodeID]dotNode, g.NodeCount())
	for _, id := range g.Nodes() {
		n, _ := g.Node(id)
		nodes[id] = dotNode{node: n}
		mg.AddNode(nodes[id])
	}
	for _, id := range g.Edges() {
		e, err := g.Edge(id)
		if err != nil {
			continue
		}
		l := dotLine{from: nodes[e.Source], to: nodes[e.Target], edge: e}
		if labeler != nil {
			if label, ok := labeler(e); ok {
				l.label = label
			}
		}
		mg.SetLine(l)
	}
	return mg
}

// WriteDOT writes the instruction graph in the DOT format. Edges are annotated with the labels returned by the
// labeler, which may be nil.
func WriteDOT(w io.Writer, name string, g *instgraph.Graph, labeler EdgeLabeler) error {
	b, err := dot.MarshalMulti(ToGonum(g, labeler), name, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal graph %s: %w", name, err)
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
