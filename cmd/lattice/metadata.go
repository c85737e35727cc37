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
	"path/filepath"

	flag "github.com/spf13/pflag"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/internal/output"
	"github.com/kraklabs/lattice/internal/ui"
	"github.com/kraklabs/lattice/pkg/astcache"
	"github.com/kraklabs/lattice/pkg/pipeline"
	"github.com/kraklabs/lattice/pkg/summarize"
)

func runMetadata(args []string, globals GlobalFlags) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "Usage: lattice metadata show <project>|regenerate <path> [options]\n")
		os.Exit(lerrors.ExitInput)
	}
	sub, rest := args[0], args[1:]

	ctx := context.Background()
	e, err := openEnv(ctx, globals)
	if err != nil {
		fatal(err, globals)
	}
	defer e.close()

	switch sub {
	case "show":
		fs := flag.NewFlagSet("metadata show", flag.ExitOnError)
		fs.Parse(rest)
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, "Usage: lattice metadata show <project>\n")
			os.Exit(lerrors.ExitInput)
		}
		name := fs.Arg(0)
		meta, err := e.rel.GetProjectMetadata(ctx, name)
		if err != nil {
			fatal(err, globals)
		}
		if meta == nil {
			fatal(lerrors.NewNotFoundError("no metadata for project", "project has not been indexed with metadata enabled", "run 'lattice index' without --skip-metadata"), globals)
		}
		log, err := e.rel.MetadataGenerationLog(ctx, name)
		if err != nil {
			fatal(err, globals)
		}
		if globals.JSON {
			_ = output.JSON(map[string]any{"metadata": meta, "log": log})
			return
		}
		ui.Header("Project metadata: " + name)
		fmt.Printf("Root:          %s\n", meta.RootPath)
		fmt.Printf("Last indexed:  %s\n", meta.LastIndexedAt)
		for k, v := range meta.Metadata {
			fmt.Printf("  %-16s %v\n", k, v)
		}
		fmt.Println()
		ui.SubHeader("Generation log")
		for _, entry := range log {
			fmt.Printf("  [%s] %s: %s %s\n", entry.CreatedAt, entry.Stage, entry.Status, entry.Detail)
		}

	case "regenerate":
		fs := flag.NewFlagSet("metadata regenerate", flag.ExitOnError)
		project := fs.String("project", "", "project name (default: the root directory's base name)")
		fs.Parse(rest)
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, "Usage: lattice metadata regenerate <path> [--project name]\n")
			os.Exit(lerrors.ExitInput)
		}
		root, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			fatal(lerrors.NewInputError("invalid path", err.Error(), "pass a valid directory"), globals)
		}
		projectName := *project
		if projectName == "" {
			projectName = filepath.Base(root)
		}

		llmProvider, err := newLLMProvider()
		if err != nil {
			fatal(err, globals)
		}
		cache := astcache.New(20000, 256<<20, 10)
		summar := summarize.New(llmProvider, nil, e.logger)
		pl := pipeline.New(pipeline.Config{
			ProjectName: projectName,
			RootPath:    root,
			Flags:       pipeline.Flags{Force: true},
		}, cache, e.writer, e.vectors, summar, e.rel, e.logger)

		if err := pl.Run(ctx); err != nil {
			fatal(lerrors.NewInternalError("metadata regeneration failed", err.Error(), "check the logs above", err), globals)
		}
		if !globals.Quiet {
			ui.Successf("regenerated metadata for %q", projectName)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown metadata subcommand: %s\n", sub)
		os.Exit(lerrors.ExitInput)
	}
}
