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
	"log/slog"
	"os"
	"path/filepath"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/pkg/graph"
	"github.com/kraklabs/lattice/pkg/llm"
	"github.com/kraklabs/lattice/pkg/projects"
	"github.com/kraklabs/lattice/pkg/resolve"
	"github.com/kraklabs/lattice/pkg/store"
	"github.com/kraklabs/lattice/pkg/symbols"
	"github.com/kraklabs/lattice/pkg/vector"
)

// env bundles every external collaborator a command needs, wired from
// LATTICE_* environment variables.
type env struct {
	backend  graph.Backend
	writer   *graph.Writer
	vectors  *vector.Store
	rel      *store.Store
	logger   *slog.Logger
	globals  GlobalFlags
}

func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelInfo
	if globals.Quiet {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openEnv dials the graph store, opens the vector store and the
// relational store, and returns them bundled with a logger. Callers
// must call env.close() when done.
func openEnv(ctx context.Context, globals GlobalFlags) (*env, error) {
	logger := newLogger(globals)

	uri := getenv("LATTICE_GRAPH_URI", "neo4j://localhost:7687")
	user := getenv("LATTICE_GRAPH_USER", "neo4j")
	pass := getenv("LATTICE_GRAPH_PASSWORD", "")
	backend, err := graph.NewDriverBackend(ctx, graph.Config{
		URI:      uri,
		Username: user,
		Password: pass,
		Database: os.Getenv("LATTICE_GRAPH_DATABASE"),
	})
	if err != nil {
		return nil, lerrors.NewDatabaseError(
			"cannot connect to graph store",
			fmt.Sprintf("dialing %s failed", uri),
			"set LATTICE_GRAPH_URI/LATTICE_GRAPH_USER/LATTICE_GRAPH_PASSWORD or start a local graph store",
			err,
		)
	}

	dataDir := getenv("LATTICE_DATA_DIR", filepath.Join(mustHome(), ".lattice"))
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, lerrors.NewPermissionError("cannot create data directory", dataDir, "check permissions on "+dataDir, err)
	}

	provider, err := newEmbeddingProvider()
	if err != nil {
		return nil, err
	}
	vectors, err := vector.NewPersistentStore(filepath.Join(dataDir, "vectors"), provider)
	if err != nil {
		return nil, lerrors.NewDatabaseError("cannot open vector store", err.Error(), "check disk space and permissions", err)
	}

	rel, err := store.Open(filepath.Join(dataDir, "lattice.db"))
	if err != nil {
		return nil, lerrors.NewDatabaseError("cannot open relational store", err.Error(), "check disk space and permissions", err)
	}

	return &env{
		backend: backend,
		writer:  graph.New(backend, 500, logger),
		vectors: vectors,
		rel:     rel,
		logger:  logger,
		globals: globals,
	}, nil
}

func (e *env) close() {
	if e.rel != nil {
		e.rel.Close()
	}
	if e.backend != nil {
		e.backend.Close()
	}
}

func (e *env) projectManager() *projects.Manager {
	return projects.New(e.backend, e.vectors, e.rel, e.logger)
}

// newEmbeddingProvider reads LATTICE_EMBEDDING_PROVIDER to pick a real
// embedding backend. This module ships no concrete embedding client
// (pkg/vector.EmbeddingProvider is an external interface per the
// module's boundary) so the only provider available out of the box is
// the deterministic mock, useful for local indexing and tests without a
// live embedding API.
func newEmbeddingProvider() (vector.EmbeddingProvider, error) {
	switch getenv("LATTICE_EMBEDDING_PROVIDER", "mock") {
	case "mock", "":
		return vector.NewMockEmbeddingProvider(256), nil
	default:
		return nil, lerrors.NewConfigError(
			"unsupported embedding provider",
			"only 'mock' is built into this module; embedding backends are an external collaborator",
			"set LATTICE_EMBEDDING_PROVIDER=mock or wire a real provider via pkg/vector.EmbeddingProvider",
			nil,
		)
	}
}

// newLLMProvider builds the llm.Provider used by the summarize, drift,
// and link-finder stages from LATTICE_LLM_* environment variables.
func newLLMProvider() (llm.Provider, error) {
	cfg := llm.ProviderConfig{
		Type:         getenv("LATTICE_LLM_PROVIDER", "mock"),
		BaseURL:      os.Getenv("LATTICE_LLM_BASE_URL"),
		APIKey:       os.Getenv("LATTICE_LLM_API_KEY"),
		DefaultModel: os.Getenv("LATTICE_LLM_MODEL"),
	}
	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return nil, lerrors.NewConfigError("cannot build LLM provider", err.Error(), "set LATTICE_LLM_PROVIDER to ollama, openai, anthropic, or mock", err)
	}
	return provider, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func fatal(err error, globals GlobalFlags) {
	lerrors.FatalError(err, globals.JSON)
}

func collectionFor(projectName string) string {
	return vector.CollectionName(projectName)
}

func newSymbolTables(project string) (*symbols.Registry, *symbols.ImportProcessor, *symbols.InheritanceTracker, *resolve.Resolver) {
	reg := symbols.New()
	imports := symbols.NewImportProcessor(project)
	inheritance := symbols.NewInheritanceTracker(reg)
	resolver := resolve.New(reg, imports, inheritance)
	return reg, imports, inheritance, resolver
}
