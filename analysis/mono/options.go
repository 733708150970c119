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
	"github.com/zynamics/monoreil/analysis/config"
	"github.com/zynamics/monoreil/analysis/instgraph"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/container/intsets"
)

// Options are the options of the solvers
type Options struct {
	// MaxIterations is the maximum number of worklist iterations. There is no limit when MaxIterations <= 0.
	MaxIterations int

	// StrictMonotonicity makes a solver fail when a transfer function makes a state decrease
	StrictMonotonicity bool

	// Logger receives the diagnostics of the solver. Nothing is logged when nil.
	Logger *config.LogGroup
}

// OptionsFromConfig returns the solver options set in the config
func OptionsFromConfig(cfg *config.Config, logger *config.LogGroup) Options {
	return Options{
		MaxIterations:      cfg.MaxIterations,
		StrictMonotonicity: cfg.StrictMonotonicity,
		Logger:             logger,
	}
}

func (o Options) logger() *config.LogGroup {
	if o.Logger == nil {
		return config.NewDiscardLogGroup()
	}
	return o.Logger
}

func (o Options) capped(iterations int) bool {
	return o.MaxIterations > 0 && iterations >= o.MaxIterations
}

// worklist is a FIFO queue of node or edge identifiers, without duplicates
type worklist struct {
	queue   []int
	members intsets.Sparse
}

// add enqueues x unless it is already in the worklist
func (w *worklist) add(x int) {
	if w.members.Insert(x) {
		w.queue = append(w.queue, x)
	}
}

func (w *worklist) pop() int {
	x := w.queue[0]
	w.queue = w.queue[1:]
	w.members.Remove(x)
	return x
}

func (w *worklist) empty() bool {
	return len(w.queue) == 0
}

func (w *worklist) len() int {
	return len(w.queue)
}

func sortNodes(nodes []instgraph.NodeID) {
	slices.Sort(nodes)
}
