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

import "testing"

func TestDotName(t *testing.T) {
	for in, want := range map[string]string{
		"f.reil":             "f",
		"dir/my-func.reil":   "my_func",
		"0x401000.reil":      "g0x401000",
		"/abs/path/main.txt": "main",
	} {
		if got := dotName(in); got != want {
			t.Errorf("dotName(%q) = %q, want %q", in, got, want)
		}
	}
}
