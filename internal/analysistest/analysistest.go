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

// Package analysistest contains helpers to load the REIL listings used in tests, and the expectations annotated in
// their comments.
package analysistest

import (
	"bufio"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/zynamics/monoreil/analysis/instgraph"
	"github.com/zynamics/monoreil/analysis/reil"
)

// LoadListing loads the REIL listing at path in fsys. The test fails if the listing cannot be read or parsed.
func LoadListing(t *testing.T, fsys fs.FS, filename string) *reil.Function {
	t.Helper()
	f, err := fsys.Open(filename)
	if err != nil {
		t.Fatalf("failed to open %s: %v", filename, err)
	}
	defer f.Close()
	fn, err := reil.ParseListing(path.Base(filename), f)
	if err != nil {
		t.Fatalf("failed to parse %s: %v", filename, err)
	}
	return fn
}

// LoadGraph loads the REIL listing at path in fsys and builds its instruction graph
func LoadGraph(t *testing.T, fsys fs.FS, filename string) *instgraph.Graph {
	t.Helper()
	g, err := instgraph.FromFunction(LoadListing(t, fsys, filename))
	if err != nil {
		t.Fatalf("failed to build the graph of %s: %v", filename, err)
	}
	return g
}

// TaintedRegex matches annotations of the form "# @Tainted(0x8) ecx edx": the registers tainted after the native
// instruction at the address
var TaintedRegex = regexp.MustCompile(`^#.*@Tainted\(\s*(\w+)\s*\)((?:\s+\w+)*)\s*$`)

// GetExpectedTainted reads the @Tainted annotations of the listing at path in fsys. The registers of each address
// are sorted.
func GetExpectedTainted(fsys fs.FS, filename string) (map[uint64][]string, error) {
	f, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	expected := map[uint64][]string{}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		a := TaintedRegex.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if len(a) < 3 {
			continue
		}
		addr, err := strconv.ParseUint(a[1], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid address %q", filename, line, a[1])
		}
		regs := strings.Fields(a[2])
		sort.Strings(regs)
		if regs == nil {
			regs = []string{}
		}
		expected[addr] = regs
	}
	return expected, scanner.Err()
}
