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

package registertracking

import (
	"fmt"
	"strings"

	"github.com/zynamics/monoreil/analysis/config"
	"github.com/zynamics/monoreil/analysis/mono"
	"golang.org/x/arch/x86/x86asm"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DefaultMaxIterations is the iteration cap of a tracking query when Options.MaxIterations is not set
const DefaultMaxIterations = config.DefaultMaxIterations

// Options are the options of a register tracking query
type Options struct {
	// ClearAllRegistersOnCall untaints every tainted register at function calls
	ClearAllRegistersOnCall bool

	// ClearedRegisters are the registers untainted at function calls when ClearAllRegistersOnCall is false
	ClearedRegisters []string

	// TrackIncoming seeds the query on the edges entering the start instruction. Otherwise, the query is seeded on
	// the edges leaving it.
	TrackIncoming bool

	Direction mono.Direction

	// MaxIterations caps the number of iterations of the solver. DefaultMaxIterations is used when <= 0.
	MaxIterations int

	// StrictMonotonicity makes the query fail when a state decreases
	StrictMonotonicity bool

	Logger *config.LogGroup
}

// OptionsFromConfig returns the options of the register-tracking section of the config. The registers of the
// calling convention, if any, are added to the cleared registers.
func OptionsFromConfig(cfg *config.Config, logger *config.LogGroup) (Options, error) {
	tracking := cfg.RegisterTracking
	dir, err := mono.ParseDirection(tracking.Direction)
	if err != nil {
		return Options{}, err
	}
	cleared := append([]string(nil), tracking.ClearedRegisters...)
	if tracking.CallingConvention != "" {
		ccRegs, err := CallingConventionRegisters(tracking.CallingConvention)
		if err != nil {
			return Options{}, err
		}
		cleared = append(cleared, ccRegs...)
	}
	return Options{
		ClearAllRegistersOnCall: tracking.ClearAllRegistersOnCall,
		ClearedRegisters:        cleared,
		TrackIncoming:           tracking.TrackIncoming,
		Direction:               dir,
		MaxIterations:           cfg.MaxIterations,
		StrictMonotonicity:      cfg.StrictMonotonicity,
		Logger:                  logger,
	}, nil
}

func (o Options) solverOptions() mono.Options {
	max := o.MaxIterations
	if max <= 0 {
		max = DefaultMaxIterations
	}
	return mono.Options{MaxIterations: max, StrictMonotonicity: o.StrictMonotonicity, Logger: o.Logger}
}

// callingConventions lists the registers a callee may clobber
var callingConventions = map[string][]x86asm.Reg{
	"x86-cdecl":   {x86asm.EAX, x86asm.ECX, x86asm.EDX},
	"x86-64-sysv": {x86asm.RAX, x86asm.RCX, x86asm.RDX, x86asm.RSI, x86asm.RDI, x86asm.R8, x86asm.R9, x86asm.R10, x86asm.R11},
	"x86-64-win":  {x86asm.RAX, x86asm.RCX, x86asm.RDX, x86asm.R8, x86asm.R9, x86asm.R10, x86asm.R11},
}

// CallingConventions returns the names of the known calling conventions, sorted
func CallingConventions() []string {
	names := maps.Keys(callingConventions)
	slices.Sort(names)
	return names
}

// CallingConventionRegisters returns the lower case names of the registers a function call may clobber in the
// calling convention
func CallingConventionRegisters(name string) ([]string, error) {
	cc, ok := callingConventions[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown calling convention %q, expected one of %s", name,
			strings.Join(CallingConventions(), ", "))
	}
	res := make([]string, len(cc))
	for i, r := range cc {
		res[i] = strings.ToLower(r.String())
	}
	return res, nil
}
