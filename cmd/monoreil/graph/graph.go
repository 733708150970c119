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

package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/zynamics/monoreil/analysis/instgraph"
	"github.com/zynamics/monoreil/analysis/registertracking"
	"github.com/zynamics/monoreil/cmd/monoreil/tools"
	"github.com/zynamics/monoreil/internal/formatutil"
	"github.com/zynamics/monoreil/internal/graphutil"
)

// Flags represents the parsed flags for the graph sub-command.
type Flags struct {
	tools.CommonFlags
	dotFile  string
	register string
	address  string
}

// NewFlags creates parsed graph sub-command flags for args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("graph")
	dotFile := flags.FlagSet.String("dot", "", "write the instruction graph in the DOT format to this file")
	register := flags.FlagSet.String("register", "", "annotate the DOT edges with the tracking states of this register")
	address := flags.FlagSet.String("address", "", "native address the tracking starts from, in hexadecimal")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	if common.FlagSet.NArg() != 1 {
		return Flags{}, fmt.Errorf("graph: expected one listing, got %d", common.FlagSet.NArg())
	}
	if (*register == "") != (*address == "") {
		return Flags{}, fmt.Errorf("graph: -register and -address must be used together")
	}
	return Flags{
		CommonFlags: common,
		dotFile:     *dotFile,
		register:    strings.ToLower(*register),
		address:     *address,
	}, nil
}

const usage = `Print statistics about the instruction graph of a REIL listing, and optionally export it.

Usage:
  monoreil graph [-dot out.dot [-register reg -address addr]] listing.reil

Use the -help flag to display the options.

Examples:
% monoreil graph f.reil
% monoreil graph -dot f.dot -register ecx -address 5 f.reil
`

// Run prints the statistics of the instruction graph and writes the DOT file with flags.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	logger := tools.NewLogger(cfg, flags.Verbose)

	listing := flags.FlagSet.Arg(0)
	fn, err := tools.LoadListing(listing)
	if err != nil {
		return err
	}
	g, err := instgraph.FromFunction(fn)
	if err != nil {
		return err
	}
	stats := graphutil.ComputeStats(g)
	fmt.Printf("%s %s\n", formatutil.Bold("Instruction graph of"), listing)
	fmt.Printf("  blocks:     %d\n", len(fn.Blocks))
	fmt.Printf("  nodes:      %d\n", stats.Nodes)
	fmt.Printf("  edges:      %d (%d exit edges)\n", stats.Edges, stats.ExitEdges)
	fmt.Printf("  self loops: %d\n", stats.Loops)
	fmt.Printf("  cycles:     %d in %d components\n", stats.Cycles, stats.Components)
	if stats.Acyclic {
		fmt.Println(formatutil.Green("  acyclic"))
	}

	if flags.dotFile == "" {
		return nil
	}
	var labeler graphutil.EdgeLabeler
	if flags.register != "" {
		start, err := tools.ParseAddress(flags.address)
		if err != nil {
			return err
		}
		opts, err := registertracking.OptionsFromConfig(cfg, logger)
		if err != nil {
			return err
		}
		res, err := registertracking.TrackGraph(g, start, flags.register, opts)
		if err != nil {
			return err
		}
		labeler = func(e instgraph.Edge) (string, bool) {
			st, ok := res.EdgeState(e.ID)
			if !ok {
				return "", false
			}
			return strings.Join(st.TaintedRegisters(), " "), true
		}
	}
	f, err := os.Create(flags.dotFile)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", flags.dotFile, err)
	}
	defer f.Close()
	if err := graphutil.WriteDOT(f, dotName(listing), g, labeler); err != nil {
		return err
	}
	logger.Infof("graph written to %s", flags.dotFile)
	return nil
}

// dotName returns a DOT identifier for the listing file
func dotName(listing string) string {
	base := strings.TrimSuffix(filepath.Base(listing), filepath.Ext(listing))
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, base)
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "g" + name
	}
	return name
}
