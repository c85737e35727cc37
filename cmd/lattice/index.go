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
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/internal/output"
	"github.com/kraklabs/lattice/internal/ui"
	"github.com/kraklabs/lattice/pkg/astcache"
	"github.com/kraklabs/lattice/pkg/pipeline"
	"github.com/kraklabs/lattice/pkg/summarize"
	"github.com/kraklabs/lattice/pkg/watcher"
)

func runIndex(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	project := fs.String("project", "", "project name (default: the root directory's base name)")
	force := fs.Bool("force", false, "reprocess every file regardless of content hash")
	skipMetadata := fs.Bool("skip-metadata", false, "skip the LLM metadata-generation stage")
	skipDocs := fs.Bool("skip-docs", false, "skip indexing the project's Markdown documentation")
	watch := fs.Bool("watch", false, "keep running, reindexing on filesystem changes")
	workers := fs.Int("workers", 0, "max parallel parse workers (default: NumCPU)")

	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `Usage: lattice index <path> [options]

Scans <path>, parses every supported source file, and writes the
resulting entities and call graph to the graph store, with matching
vector embeddings for semantic search.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(lerrors.ExitInput)
	}
	if fs.NArg() != 1 {
		fs.Usage()
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	e, err := openEnv(ctx, globals)
	if err != nil {
		fatal(err, globals)
	}
	defer e.close()

	llmProvider, err := newLLMProvider()
	if err != nil {
		fatal(err, globals)
	}

	cache := astcache.New(20000, 256<<20, 10)
	summar := summarize.New(llmProvider, nil, e.logger)

	pCfg := pipeline.Config{
		ProjectName:    projectName,
		RootPath:       root,
		MaxWorkers:     *workers,
		GraphBatchSize: 500,
		Flags: pipeline.Flags{
			Force:        *force,
			SkipMetadata: *skipMetadata,
		},
	}
	pl := pipeline.New(pCfg, cache, e.writer, e.vectors, summar, e.rel, e.logger)

	if !globals.Quiet {
		ui.Header(fmt.Sprintf("Indexing %s (project %q)", root, projectName))
	}
	if err := pl.Run(ctx); err != nil {
		fatal(lerrors.NewInternalError("indexing failed", err.Error(), "check the logs above for the failing stage", err), globals)
	}
	if !globals.Quiet {
		ui.Success("code index complete")
	}

	if !*skipDocs {
		docProvider, err := newLLMProvider()
		if err != nil {
			fatal(err, globals)
		}
		dp := pl.NewDocPipeline(pipeline.DocConfig{
			ProjectName: projectName,
			RootPath:    root,
			Force:       *force,
		}, docProvider)
		if err := dp.Run(ctx); err != nil {
			e.logger.Error("index.docs_failed", "err", err)
			if !globals.Quiet {
				ui.Warning("documentation indexing failed: " + err.Error())
			}
		} else if !globals.Quiet {
			ui.Success("documentation index complete")
		}
	}

	if globals.JSON {
		_ = output.JSON(map[string]any{
			"project": projectName,
			"root":    root,
			"status":  "indexed",
		})
	}

	if *watch {
		runWatch(ctx, e, pCfg, globals)
	}
}

// runWatch starts pkg/watcher against the just-indexed project with
// fresh, empty in-memory symbol tables. Only files the watcher processes
// after startup are registered in them, so a call into an entity of a
// file left untouched since watch started does not resolve.
func runWatch(ctx context.Context, e *env, cfg pipeline.Config, globals GlobalFlags) {
	if !globals.Quiet {
		ui.Info("watching for changes, press Ctrl+C to stop")
	}

	wCfg := watcher.Config{
		Project:          cfg.ProjectName,
		Root:             cfg.RootPath,
		Collection:       collectionFor(cfg.ProjectName),
		RecalculateCalls: true,
	}
	// A fresh registry/import-processor/inheritance-tracker/resolver:
	// pkg/watcher re-parses every changed file from scratch and holds
	// symbol state only for files it has itself processed since startup.
	reg, imports, inheritance, resolver := newSymbolTables(cfg.ProjectName)
	cache := astcache.New(20000, 256<<20, 10)

	w := watcher.New(wCfg, cache, e.writer, e.vectors, reg, imports, inheritance, resolver, e.logger)
	if globals.JSON {
		w.OnEvent = func(ev watcher.WatchEvent) {
			_ = output.JSONCompact(ev)
		}
	}
	if err := w.Start(ctx); err != nil {
		fatal(lerrors.NewInternalError("cannot start watcher", err.Error(), "check that the project path still exists", err), globals)
	}
	<-ctx.Done()
	w.Stop()
}
