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

// Package main implements the lattice CLI: a thin command layer over the
// scan/parse/graph/vector pipeline, the document pipeline, and the
// project manager.
//
// Usage:
//
//	lattice index <path> [--project name] [--watch]
//	lattice [--json] projects list|show|delete
//	lattice query <cypher>
//	lattice search <project> <text>
//	lattice status
//	lattice docs index|drift|list|links|show
//	lattice metadata show|regenerate
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
)

// GlobalFlags carries the flags every subcommand accepts, parsed out of
// the top-level argument list before dispatch.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
}

func main() {
	// Global flags must precede the subcommand name; everything from the
	// subcommand onward is that subcommand's own flag.NewFlagSet to
	// parse, so there is no interspersed-flag ambiguity between the two.
	globalArgs, rest := splitGlobalArgs(os.Args[1:])

	fs := flag.NewFlagSet("lattice", flag.ContinueOnError)
	var globals GlobalFlags
	fs.BoolVar(&globals.JSON, "json", false, "output machine-readable JSON")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "suppress progress output")
	fs.BoolVar(&globals.NoColor, "no-color", false, "disable colored terminal output")
	showVersion := fs.Bool("version", false, "show version and exit")

	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `lattice - hybrid code knowledge store

Usage:
  lattice <command> [options]

Commands:
  index       Scan a repository, build its graph and vector index
  projects    List, inspect, or delete indexed projects
  query       Run a raw openCypher query against the graph
  search      Run a semantic search over a project's vector index
  status      Show the status of every indexed project
  docs        Index and inspect a project's Markdown documentation
  metadata    Show or regenerate a project's LLM-written metadata

Global Options:
  --json        output machine-readable JSON
  -q, --quiet   suppress progress output
  --no-color    disable colored terminal output
  --version     show version and exit
`)
	}

	if err := fs.Parse(globalArgs); err != nil {
		os.Exit(lerrors.ExitInput)
	}
	ui.InitColors(globals.NoColor)

	if *showVersion {
		fmt.Printf("lattice version %s (%s)\n", version, commit)
		return
	}

	if len(rest) == 0 {
		fs.Usage()
		os.Exit(lerrors.ExitInput)
	}

	command := rest[0]
	cmdArgs := rest[1:]

	switch command {
	case "index":
		runIndex(cmdArgs, globals)
	case "projects":
		runProjects(cmdArgs, globals)
	case "query":
		runQuery(cmdArgs, globals)
	case "search":
		runSearch(cmdArgs, globals)
	case "status":
		runStatus(cmdArgs, globals)
	case "docs":
		runDocs(cmdArgs, globals)
	case "metadata":
		runMetadata(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		fs.Usage()
		os.Exit(lerrors.ExitInput)
	}
}

// splitGlobalArgs splits argv into the leading run of global flags and
// the subcommand name plus its own arguments, so each flag.FlagSet only
// ever sees flags it defined itself.
func splitGlobalArgs(argv []string) (globalArgs, rest []string) {
	for i, a := range argv {
		if len(a) == 0 || a[0] != '-' {
			return argv[:i], argv[i:]
		}
	}
	return argv, nil
}
