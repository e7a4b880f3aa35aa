// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the helloserver configuration.
//
// Values come from an ordered list of sources merged with later sources
// overriding earlier ones. The usual order is:
//
//  1. defaults from `default:"..."` struct tags
//  2. a configuration file (YAML, TOML or JSON by extension)
//  3. the bare PORT environment variable
//  4. environment variables with the HELLO_ prefix
//  5. command-line overrides
//
// Keys are case-insensitive and dot-separated. Environment variables map
// HELLO_<SECTION>_<KEY> to section.key, so HELLO_SERVER_READ_TIMEOUT sets
// server.read_timeout.
//
//	cfg, err := config.Load(ctx,
//	    config.WithFile("hello.yaml"),
//	    config.WithEnv("HELLO_"),
//	)
//
// The merged values are bound to [Config] and validated with struct tags.
// Every failure is returned as an [*Error].
package config
