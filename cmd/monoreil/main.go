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

package main

import (
	"fmt"
	"os"

	"github.com/zynamics/monoreil/analysis"
	"github.com/zynamics/monoreil/cmd/monoreil/graph"
	"github.com/zynamics/monoreil/cmd/monoreil/tools"
	"github.com/zynamics/monoreil/cmd/monoreil/track"
)

const usage = `MonoREIL: monotone dataflow analyses over REIL
Usage:
  monoreil [tool] [options] <REIL listing>
Tools:
  - track: tracks registers forward or backward from an instruction
  - graph: prints statistics about the instruction graph of a listing, and exports it in the DOT format
Examples:
  Track ecx from the instruction at 0x5: monoreil track -register ecx -address 5 f.reil
  Export the instruction graph: monoreil graph -dot f.dot f.reil`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(analysis.Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "track":
		flags, err := track.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := track.Run(flags); err != nil {
			errExit(err)
		}
	case "graph":
		flags, err := graph.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := graph.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
