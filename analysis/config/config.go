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

package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the solvers and the default register tracking query.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options" toml:"options"`

	sourceFile string

	// RegisterTracking holds the default options of register tracking queries
	RegisterTracking TrackingSpec `yaml:"register-tracking" toml:"register-tracking"`
}

// TrackingSpec contains the options of a register tracking query
type TrackingSpec struct {
	// Direction is either "down" (follow the flow of the value) or "up" (find where the value comes from)
	Direction string `yaml:"direction" toml:"direction"`

	// TrackIncoming seeds the analysis on the edges entering the start instruction instead of the ones leaving it
	TrackIncoming bool `yaml:"track-incoming" toml:"track-incoming"`

	// ClearAllRegistersOnCall untaints every tainted register at a function call
	ClearAllRegistersOnCall bool `yaml:"clear-all-registers-on-call" toml:"clear-all-registers-on-call"`

	// ClearedRegisters lists the registers untainted at a function call when ClearAllRegistersOnCall is false
	ClearedRegisters []string `yaml:"cleared-registers" toml:"cleared-registers"`

	// CallingConvention names a preset of cleared registers. The registers of the preset are added to
	// ClearedRegisters.
	CallingConvention string `yaml:"calling-convention" toml:"calling-convention"`
}

// Options are the general options of the tool
type Options struct {
	// ReportsDir is the directory where reports will be written. If empty, reports are only printed.
	ReportsDir string `yaml:"reports-dir" toml:"reports-dir"`

	// MaxIterations caps the number of worklist iterations of a solver. If the provided value is <= 0, then
	// DefaultMaxIterations is used.
	MaxIterations int `yaml:"max-iterations" toml:"max-iterations"`

	// StrictMonotonicity turns a transfer function that makes a state decrease into an error. When false, the
	// violation is only logged.
	StrictMonotonicity bool `yaml:"strict-monotonicity" toml:"strict-monotonicity"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level" toml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn" toml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			ReportsDir:         "",
			MaxIterations:      DefaultMaxIterations,
			StrictMonotonicity: false,
			LogLevel:           int(InfoLevel),
			SilenceWarn:        false,
		},
		RegisterTracking: TrackingSpec{
			Direction: DirectionDown,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return LoadBytes(filename, b)
}

// LoadBytes reads a configuration from the contents of a file. The filename is used to choose the format and to
// resolve relative paths.
func LoadBytes(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if strings.HasSuffix(filename, ".toml") {
		if _, err := toml.Decode(string(b), cfg); err != nil {
			return nil, fmt.Errorf("could not unmarshal config file %s as toml: %w", filename, err)
		}
	} else if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file %s as yaml: %w", filename, err)
	}

	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	if err := cfg.RegisterTracking.normalize(); err != nil {
		return nil, fmt.Errorf("invalid register-tracking section in %s: %w", filename, err)
	}

	if cfg.ReportsDir != "" {
		if err := setReportsDir(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (t *TrackingSpec) normalize() error {
	switch strings.ToLower(t.Direction) {
	case "", DirectionDown:
		t.Direction = DirectionDown
	case DirectionUp:
		t.Direction = DirectionUp
	default:
		return fmt.Errorf("unknown direction %q", t.Direction)
	}
	for i, r := range t.ClearedRegisters {
		t.ClearedRegisters[i] = strings.TrimSpace(r)
	}
	return nil
}

func setReportsDir(c *Config) error {
	if !path.IsAbs(c.ReportsDir) {
		c.ReportsDir = c.RelPath(c.ReportsDir)
	}
	err := os.Mkdir(c.ReportsDir, 0750)
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("could not create directory %s: %w", c.ReportsDir, err)
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// SourceFile returns the name of the file the config was loaded from, empty for a default config
func (c Config) SourceFile() string {
	return c.sourceFile
}
