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

const (
	// DefaultMaxIterations is the iteration cap of a solver when the config file does not specify one.
	DefaultMaxIterations = 1000000

	// DirectionDown is the name of the forward walking direction in config files
	DirectionDown = "down"

	// DirectionUp is the name of the backward walking direction in config files
	DirectionUp = "up"
)
