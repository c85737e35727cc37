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

package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/internal/output"
	"github.com/kraklabs/lattice/internal/ui"
)

func runProjects(args []string, globals GlobalFlags) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "Usage: lattice projects list|show|delete|sweep [options]\n")
		os.Exit(lerrors.ExitInput)
	}
	sub, rest := args[0], args[1:]

	ctx := context.Background()
	e, err := openEnv(ctx, globals)
	if err != nil {
		fatal(err, globals)
	}
	defer e.close()
	mgr := e.projectManager()

	switch sub {
	case "list":
		summaries, err := mgr.List(ctx)
		if err != nil {
			fatal(err, globals)
		}
		if globals.JSON {
			_ = output.JSON(summaries)
			return
		}
		ui.Header("Indexed projects")
		for _, s := range summaries {
			fmt.Printf("%-24s %s  files=%s entities=%s\n", s.Name, ui.DimText(s.RootPath), ui.CountText(int(s.FileCount)), ui.CountText(int(s.EntityCount)))
		}

	case "show":
		fs := flag.NewFlagSet("projects show", flag.ExitOnError)
		fs.Parse(rest)
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, "Usage: lattice projects show <name>\n")
			os.Exit(lerrors.ExitInput)
		}
		s, err := mgr.Get(ctx, fs.Arg(0))
		if err != nil {
			fatal(err, globals)
		}
		if s == nil {
			fatal(lerrors.NewNotFoundError("project not found", "no such project", "run 'lattice projects list' to see indexed projects"), globals)
		}
		if globals.JSON {
			_ = output.JSON(s)
			return
		}
		fmt.Printf("%s %s\n", ui.Label("Name:         "), s.Name)
		fmt.Printf("%s %s\n", ui.Label("Root:         "), ui.DimText(s.RootPath))
		fmt.Printf("%s %s\n", ui.Label("Files:        "), ui.CountText(int(s.FileCount)))
		fmt.Printf("%s %s\n", ui.Label("Entities:     "), ui.CountText(int(s.EntityCount)))
		fmt.Printf("%s %s\n", ui.Label("Last indexed: "), s.LastIndexedAt)

	case "delete":
		fs := flag.NewFlagSet("projects delete", flag.ExitOnError)
		yes := fs.Bool("yes", false, "skip the confirmation prompt")
		fs.Parse(rest)
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, "Usage: lattice projects delete <name> [--yes]\n")
			os.Exit(lerrors.ExitInput)
		}
		name := fs.Arg(0)
		if !*yes && !globals.Quiet {
			fmt.Printf("Delete all graph, vector, and relational state for %q? [y/N] ", name)
			var answer string
			fmt.Scanln(&answer)
			if answer != "y" && answer != "Y" {
				fmt.Println("aborted")
				return
			}
		}
		if err := mgr.Delete(ctx, name); err != nil {
			fatal(err, globals)
		}
		if !globals.Quiet {
			ui.Successf("deleted project %q", name)
		}

	case "sweep":
		swept, err := mgr.SweepOrphans(ctx)
		if err != nil {
			fatal(err, globals)
		}
		if globals.JSON {
			_ = output.JSON(map[string]any{"swept": swept})
			return
		}
		if len(swept) == 0 {
			fmt.Println("no orphaned project data found")
			return
		}
		ui.Header("Swept orphaned project data")
		for _, name := range swept {
			fmt.Println(" -", name)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown projects subcommand: %s\n", sub)
		os.Exit(lerrors.ExitInput)
	}
}
