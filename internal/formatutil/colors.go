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

// Package formatutil manipulates string colors and other formatting operations.
package formatutil

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

func init() {
	color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
}

var (
	Bold    = Color(color.Bold)
	Faint   = Color(color.Faint)
	Italic  = Color(color.Italic)
	Red     = Color(color.FgRed, color.Bold)
	Green   = Color(color.FgGreen, color.Bold)
	Yellow  = Color(color.FgYellow, color.Bold)
	Purple  = Color(color.FgBlue, color.Bold)
	Magenta = Color(color.FgMagenta, color.Bold)
	Cyan    = Color(color.FgCyan, color.Bold)
	White   = Color(color.FgWhite, color.Bold)
)

// Color returns a function formatting its arguments with the given attributes. Attributes are ignored when
// standard output is not a terminal.
func Color(attrs ...color.Attribute) func(...interface{}) string {
	return color.New(attrs...).SprintFunc()
}

// Sanitize is a simple sanitizer that removes all escape sequences
func Sanitize(s string) string {
	r := fmt.Sprintf("%q", s)
	if len(r) >= 2 {
		return r[1 : len(r)-1]
	}
	return r
}
