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

// Package tools contains utility types and functions for monoreil tool frontends.
package tools

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/zynamics/monoreil/analysis/config"
	"github.com/zynamics/monoreil/analysis/reil"
)

// UnparsedCommonFlags represents an unparsed CLI sub-command flags.
type UnparsedCommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath *string
	Verbose    *bool
}

// NewUnparsedCommonFlags returns an unparsed flag set with a given name.
// This is useful for creating sub-commands that have the flags -config and -verbose but need other flags in
// addition.
func NewUnparsedCommonFlags(name string) UnparsedCommonFlags {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := cmd.String("config", "", "config file path for analysis")
	verbose := cmd.Bool("verbose", false, "verbose printing on standard output")
	return UnparsedCommonFlags{
		FlagSet:    cmd,
		ConfigPath: configPath,
		Verbose:    verbose,
	}
}

// CommonFlags represents a parsed CLI sub-command flags.
// E.g., for the command `monoreil track ...`, "track" is the sub-command.
type CommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath string
	Verbose    bool
}

// Parse parses the arguments of the sub-command and returns the common flags
func (u UnparsedCommonFlags) Parse(args []string) (CommonFlags, error) {
	if err := u.FlagSet.Parse(args); err != nil {
		return CommonFlags{}, fmt.Errorf("failed to parse command %s with args %v: %v", u.FlagSet.Name(), args, err)
	}
	return CommonFlags{
		FlagSet:    u.FlagSet,
		ConfigPath: *u.ConfigPath,
		Verbose:    *u.Verbose,
	}, nil
}

// IsSet returns true if the flag was set on the command line
func (c CommonFlags) IsSet(name string) bool {
	set := false
	c.FlagSet.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// SetUsage sets cmd's usage (for --help flag) to output the string cmdUsage
// followed by each flag's documentation.
func SetUsage(cmd *flag.FlagSet, cmdUsage string) {
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", cmdUsage)
		fmt.Fprintf(os.Stderr, "Options:\n")
		cmd.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  %s: %s (default: %q)\n", f.Name, f.Usage, f.DefValue)
		})
	}
}

// Registers represents a list of registers given as a comma-separated list, or with the flag repeated.
type Registers []string

func (r *Registers) String() string {
	if r == nil {
		return ""
	}
	return strings.Join(*r, ",")
}

// Set adds the registers of value to r.
// This method satisfies the flag.Value interface.
func (r *Registers) Set(value string) error {
	for _, reg := range strings.Split(value, ",") {
		reg = strings.TrimSpace(reg)
		if reg == "" {
			return fmt.Errorf("empty register name in %q", value)
		}
		*r = append(*r, reg)
	}
	return nil
}

// ParseAddress parses a native address in hexadecimal, with or without the 0x prefix
func ParseAddress(s string) (uint64, error) {
	a, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return a, nil
}

// LoadConfig loads the config file from configPath, or returns the default config when configPath is empty.
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.NewDefault(), nil
	}
	config.SetGlobalConfig(configPath)
	cfg, err := config.LoadGlobal()
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %v", configPath, err)
	}

	return cfg, nil
}

// NewLogger returns the log group of the config. Verbose raises the level to debug.
func NewLogger(cfg *config.Config, verbose bool) *config.LogGroup {
	logger := config.NewLogGroup(cfg)
	if verbose && logger.Level() < config.DebugLevel {
		logger.SetLevel(config.DebugLevel)
	}
	return logger
}

// LoadListing reads and parses the REIL listing in the file
func LoadListing(filename string) (*reil.Function, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open listing: %w", err)
	}
	defer f.Close()
	return reil.ParseListing(filename, f)
}

// HintForErrorMessage returns a hint for common errors, or the empty string
func HintForErrorMessage(msg string) string {
	switch {
	case strings.Contains(msg, "no edge to start tracking from"):
		return "the address must be the native address of an instruction of the listing (REIL address / 0x100)"
	case strings.Contains(msg, "unknown REIL opcode"):
		return "check that the listing only contains REIL instructions"
	case strings.Contains(msg, "failed to load config"):
		return "configuration files are yaml, or toml when their name ends with .toml"
	}
	return ""
}
