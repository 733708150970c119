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
	"io"
	"strings"
)

// WriteReport writes one line per native address reached by the query, in increasing address order:
//
//	00000005 tainted=[ecx] new=[ecx] untainted=[] read=[] updated=[]
func WriteReport(w io.Writer, r *Result) error {
	if _, err := fmt.Fprintf(w, "track %s from %08X %s\n", r.Register, r.Start, r.Direction); err != nil {
		return err
	}
	for _, addr := range r.Addresses() {
		st := r.states[addr]
		_, err := fmt.Fprintf(w, "%08X tainted=[%s] new=[%s] untainted=[%s] read=[%s] updated=[%s]\n",
			addr,
			strings.Join(st.TaintedRegisters(), " "),
			strings.Join(st.NewlyTaintedRegisters(), " "),
			strings.Join(st.UntaintedRegisters(), " "),
			strings.Join(st.ReadRegisters(), " "),
			strings.Join(st.UpdatedRegisters(), " "))
		if err != nil {
			return err
		}
	}
	if !r.Converged {
		if _, err := fmt.Fprintln(w, "not converged"); err != nil {
			return err
		}
	}
	return nil
}
