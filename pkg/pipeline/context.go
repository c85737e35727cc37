// Copyright 2025 KrakLabs
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
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"github.com/kraklabs/lattice/pkg/parse"
	"github.com/kraklabs/lattice/pkg/resolve"
	"github.com/kraklabs/lattice/pkg/symbols"
)

// Flags carries the per-run switches the orchestrator consults at stage
// boundaries.
type Flags struct {
	Force        bool // reprocess every file even if its content hash is unchanged
	SkipMetadata bool // skip the optional metadata stage
}

// Context is the shared, single-writer-during-parse state threaded
// through every stage: the symbol registry, import processor, and
// inheritance tracker are populated while parsing and read-only from
// graph build onward; Parsed accumulates one parse.Result per
// successfully parsed file; Resolver is built only after all parsing
// completes, because call resolution requires the registry and import
// processor to be fully populated first.
type Context struct {
	Registry    *symbols.Registry
	Imports     *symbols.ImportProcessor
	Inheritance *symbols.InheritanceTracker
	Parsed      []parse.Result
	Resolver    *resolve.Resolver
	Summaries   map[string]string // entity/file QN or path -> LLM summary, filled by the summarize stage
	Flags       Flags
}

// newContext builds an empty Context scoped to project.
func newContext(project string, flags Flags) *Context {
	reg := symbols.New()
	return &Context{
		Registry:    reg,
		Imports:     symbols.NewImportProcessor(project),
		Inheritance: symbols.NewInheritanceTracker(reg),
		Summaries:   make(map[string]string),
		Flags:       flags,
	}
}
