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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format, or in toml format when its name ends with ".toml". The top-level fields can
be any of the fields defined in the Config struct type. For example, a valid config file is as follows:

	options:
	  log-level: 4
	  max-iterations: 10000
	  strict-monotonicity: true

	register-tracking:
	  direction: up
	  track-incoming: true
	  calling-convention: x86-cdecl

# Register tracking

The register-tracking section gives the default options of a register tracking query. Command-line flags override
the values of the config file. Either clear-all-registers-on-call is set, in which case every tainted register is
untainted by a call, or the registers listed in cleared-registers (or the ones of the calling-convention) are.
*/
package config
