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

package mono

import (
	"errors"

	"github.com/zynamics/monoreil/analysis/instgraph"
	"github.com/zynamics/monoreil/analysis/reil"
)

var (
	// ErrInvalidArgument is returned when a solver is constructed with missing or inconsistent arguments
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotMonotone is returned in strict mode when a transfer function makes a state decrease
	ErrNotMonotone = errors.New("transfer function is not monotone")

	// ErrFrozen is returned when setting a state in a frozen state vector
	ErrFrozen = errors.New("state vector is frozen")

	// ErrUnknownNode is returned when a node or edge does not belong to the graph
	ErrUnknownNode = instgraph.ErrUnknownNode

	// ErrUnknownOpcode is returned when an instruction has an opcode without transfer function
	ErrUnknownOpcode = reil.ErrUnknownOpcode
)
