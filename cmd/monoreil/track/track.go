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

package track

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/zynamics/monoreil/analysis/instgraph"
	"github.com/zynamics/monoreil/analysis/registertracking"
	"github.com/zynamics/monoreil/cmd/monoreil/tools"
	"github.com/zynamics/monoreil/internal/formatutil"
	"github.com/zynamics/monoreil/internal/funcutil"
)

// Flags represents the parsed flags for the track sub-command.
type Flags struct {
	tools.CommonFlags
	registers         tools.Registers
	address           string
	direction         string
	incoming          bool
	clearAll          bool
	callingConvention string
}

// NewFlags creates parsed track sub-command flags for args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("track")
	var registers tools.Registers
	flags.FlagSet.Var(&registers, "register", "register(s) to track, comma-separated")
	address := flags.FlagSet.String("address", "", "native address of the start instruction, in hexadecimal")
	direction := flags.FlagSet.String("direction", "", "down to follow the value, up to find where it comes from")
	incoming := flags.FlagSet.Bool("incoming", false, "start on the edges entering the instruction")
	clearAll := flags.FlagSet.Bool("clear-all", false, "untaint every register at function calls")
	cc := flags.FlagSet.String("calling-convention", "",
		"untaint the registers clobbered by calls in the calling convention ("+
			strings.Join(registertracking.CallingConventions(), ", ")+")")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	if len(registers) == 0 {
		return Flags{}, fmt.Errorf("track: the -register flag is required")
	}
	if *address == "" {
		return Flags{}, fmt.Errorf("track: the -address flag is required")
	}
	if common.FlagSet.NArg() != 1 {
		return Flags{}, fmt.Errorf("track: expected one listing, got %d", common.FlagSet.NArg())
	}

	return Flags{
		CommonFlags:       common,
		registers:         registers,
		address:           *address,
		direction:         *direction,
		incoming:          *incoming,
		clearAll:          *clearAll,
		callingConvention: *cc,
	}, nil
}

const usage = `Track registers through the REIL translation of a function.

Usage:
  monoreil track -register reg[,reg...] -address addr [options] listing.reil

The listing contains one REIL instruction per line, e.g. "00000500: add [DWORD ebp, DWORD 5, QWORD t0]".
Lines starting with # are comments. The address is the native address of the start instruction.

Use the -help flag to display the options.

Examples:
% monoreil track -register ecx -address 5 f.reil
% monoreil track -register eax,ebx -address 0x12 -direction up -config config.yaml f.reil
`

// Run runs register tracking with flags, and prints the report of each register.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	logger := tools.NewLogger(cfg, flags.Verbose)

	start, err := tools.ParseAddress(flags.address)
	if err != nil {
		return err
	}
	if flags.IsSet("direction") {
		cfg.RegisterTracking.Direction = flags.direction
	}
	if flags.IsSet("incoming") {
		cfg.RegisterTracking.TrackIncoming = flags.incoming
	}
	if flags.IsSet("clear-all") {
		cfg.RegisterTracking.ClearAllRegistersOnCall = flags.clearAll
	}
	if flags.IsSet("calling-convention") {
		cfg.RegisterTracking.CallingConvention = flags.callingConvention
	}
	opts, err := registertracking.OptionsFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	listing := flags.FlagSet.Arg(0)
	fn, err := tools.LoadListing(listing)
	if err != nil {
		return err
	}
	g, err := instgraph.FromFunction(fn)
	if err != nil {
		return err
	}
	logger.Infof("%s: %d instructions, %d graph nodes", listing, fn.InstructionCount(), g.NodeCount())

	type outcome struct {
		res *registertracking.Result
		err error
	}
	outcomes := funcutil.MapParallel([]string(flags.registers), func(r string) outcome {
		res, err := registertracking.TrackGraph(g, start, r, opts)
		return outcome{res, err}
	}, runtime.NumCPU())

	for i, o := range outcomes {
		if o.err != nil {
			return fmt.Errorf("tracking %s: %w", flags.registers[i], o.err)
		}
		Print(o.res)
		if !o.res.Converged {
			logger.Warnf("tracking %s stopped after %d iterations", o.res.Register, o.res.Iterations)
		}
		if cfg.ReportsDir != "" {
			if err := writeReportFile(cfg.ReportsDir, o.res); err != nil {
				return err
			}
		}
	}
	return nil
}

// Print prints the result on standard output, with the registers that changed at each address highlighted
func Print(res *registertracking.Result) {
	fmt.Printf("%s %s from %s %s\n", formatutil.Bold("Tracking"), formatutil.Cyan(res.Register),
		formatutil.Yellow(fmt.Sprintf("%08X", res.Start)), res.Direction)
	if len(res.Addresses()) == 0 {
		fmt.Println(formatutil.Faint("  no instruction reached"))
	}
	for _, addr := range res.Addresses() {
		st, _ := res.State(addr)
		line := fmt.Sprintf("  %s %s", formatutil.Yellow(fmt.Sprintf("%08X", addr)),
			strings.Join(st.TaintedRegisters(), " "))
		if regs := st.NewlyTaintedRegisters(); len(regs) > 0 {
			line += " " + formatutil.Green("+"+strings.Join(regs, " +"))
		}
		if regs := st.UntaintedRegisters(); len(regs) > 0 {
			line += " " + formatutil.Red("-"+strings.Join(regs, " -"))
		}
		if regs := st.ReadRegisters(); len(regs) > 0 {
			line += " " + formatutil.Faint("read "+strings.Join(regs, " "))
		}
		if regs := st.UpdatedRegisters(); len(regs) > 0 {
			line += " " + formatutil.Faint("updated "+strings.Join(regs, " "))
		}
		fmt.Println(line)
	}
	if !res.Converged {
		fmt.Println(formatutil.Red("  not converged"))
	}
}

func writeReportFile(dir string, res *registertracking.Result) error {
	var buf bytes.Buffer
	if err := registertracking.WriteReport(&buf, res); err != nil {
		return err
	}
	name := filepath.Join(dir, fmt.Sprintf("track-%s-%X-%s.txt", res.Register, res.Start, res.Direction))
	if err := os.WriteFile(name, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}
	fmt.Fprintf(os.Stderr, formatutil.Faint("Report written in %s")+"\n", name)
	return nil
}
