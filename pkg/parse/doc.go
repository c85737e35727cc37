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

// Package parse implements the tree-sitter backed parser: for each scanned
// file it produces a ParsedFile (entity tree, imports, raw AST root) driven
// by a fixed per-language node-type configuration, and the per-function
// parameter/assignment metadata the type-inference engine consumes once the
// symbol registry has been fully populated.
//
// Parsing itself is CPU-bound; this package does not own a worker pool —
// the orchestrator (pkg/pipeline) dispatches ParseFile calls across its own
// pool, one *sitter.Parser per worker, matching the concurrency model's
// "each worker owns a tree-sitter parser instance" rule.
package parse
