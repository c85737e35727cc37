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
	"github.com/kraklabs/lattice/pkg/pipeline"
)

func runDocs(args []string, globals GlobalFlags) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "Usage: lattice docs index|drift|list|links|show [options]\n")
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
	case "index":
		fs := flag.NewFlagSet("docs index", flag.ExitOnError)
		project := fs.String("project", "", "project name (default: the root directory's base name)")
		force := fs.Bool("force", false, "reprocess every document regardless of content hash")
		fs.Parse(rest)
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, "Usage: lattice docs index <path> [--project name] [--force]\n")
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

		provider, err := newLLMProvider()
		if err != nil {
			fatal(err, globals)
		}
		pl := pipeline.New(pipeline.Config{ProjectName: projectName, RootPath: root}, nil, e.writer, e.vectors, nil, e.rel, e.logger)
		dp := pl.NewDocPipeline(pipeline.DocConfig{
			ProjectName: projectName,
			RootPath:    root,
			Force:       *force,
		}, provider)
		if err := dp.Run(ctx); err != nil {
			fatal(lerrors.NewInternalError("documentation indexing failed", err.Error(), "check the logs above", err), globals)
		}
		if !globals.Quiet {
			ui.Successf("documentation index complete for %q", projectName)
		}

	case "list":
		fs := flag.NewFlagSet("docs list", flag.ExitOnError)
		fs.Parse(rest)
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, "Usage: lattice docs list <project>\n")
			os.Exit(lerrors.ExitInput)
		}
		docs, err := e.rel.ListDocuments(ctx, fs.Arg(0))
		if err != nil {
			fatal(err, globals)
		}
		if globals.JSON {
			_ = output.JSON(docs)
			return
		}
		for _, d := range docs {
			fmt.Printf("%-50s %s\n", d.FilePath, d.Title)
		}

	case "drift":
		fs := flag.NewFlagSet("docs drift", flag.ExitOnError)
		onlyDrifted := fs.Bool("only-drifted", true, "only show chunks where drift was detected")
		fs.Parse(rest)
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, "Usage: lattice docs drift <project> [--only-drifted]\n")
			os.Exit(lerrors.ExitInput)
		}
		analyses, err := e.rel.ListDriftAnalyses(ctx, fs.Arg(0), *onlyDrifted)
		if err != nil {
			fatal(err, globals)
		}
		if globals.JSON {
			_ = output.JSON(analyses)
			return
		}
		if len(analyses) == 0 {
			fmt.Println("no drift detected")
			return
		}
		for _, a := range analyses {
			fmt.Printf("[%s] %s <-> %s: %s\n", a.DriftSeverity, a.DocPath, a.EntityQN, a.Explanation)
		}

	case "links":
		fs := flag.NewFlagSet("docs links", flag.ExitOnError)
		fs.Parse(rest)
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, "Usage: lattice docs links <chunk-id>\n")
			os.Exit(lerrors.ExitInput)
		}
		links, err := e.rel.LinksByChunk(ctx, fs.Arg(0))
		if err != nil {
			fatal(err, globals)
		}
		if globals.JSON {
			_ = output.JSON(links)
			return
		}
		for _, l := range links {
			fmt.Printf("%-8s %-40s %.2f %s\n", l.LinkType, l.EntityQN, l.Confidence, l.Reasoning)
		}

	case "show":
		fs := flag.NewFlagSet("docs show", flag.ExitOnError)
		fs.Parse(rest)
		if fs.NArg() != 2 {
			fmt.Fprint(os.Stderr, "Usage: lattice docs show <project> <path>\n")
			os.Exit(lerrors.ExitInput)
		}
		documentID, _, found, err := e.rel.DocumentByPath(ctx, fs.Arg(0), fs.Arg(1))
		if err != nil {
			fatal(err, globals)
		}
		if !found {
			fatal(lerrors.NewNotFoundError("document not found", "no such document indexed for this project", "run 'lattice docs index' first"), globals)
		}
		chunks, err := e.rel.ChunksByDocument(ctx, documentID)
		if err != nil {
			fatal(err, globals)
		}
		if globals.JSON {
			_ = output.JSON(chunks)
			return
		}
		for _, c := range chunks {
			fmt.Printf("--- %v (drift=%s) ---\n%s\n\n", c.HeadingPath, c.DriftStatus, c.Content)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown docs subcommand: %s\n", sub)
		os.Exit(lerrors.ExitInput)
	}
}
