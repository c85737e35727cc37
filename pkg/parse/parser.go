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

package parse

import (
	"context"
	"fmt"
	"os"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/pkg/astcache"
	"github.com/kraklabs/lattice/pkg/model"
	"github.com/kraklabs/lattice/pkg/symbols"
)

// FuncMeta carries the parameter and assignment shapes a function/method's
// body yielded at parse time, retained so the orchestrator can run type
// inference once the symbol registry is fully populated (type inference is
// intentionally a post-parse, pre-resolve step; see pkg/symbols/typeinfer.go).
type FuncMeta struct {
	Params      []symbols.Param
	Assignments []symbols.Assignment
}

// Result is everything ParseFile produces for one file.
type Result struct {
	File      model.ParsedFile
	FuncMeta  map[string]FuncMeta // entity QN -> metadata
	ClassQN   map[string]string   // method QN -> its parent class QN, duplicated for convenience
}

// Parser parses source files into entity trees, imports, and raw AST
// roots, using a fixed per-language node-type configuration. Each call to
// ParseFile is independent and safe to run concurrently from a worker
// pool; the parser keeps a small pool of per-goroutine *sitter.Parser
// instances so no shared mutable tree-sitter state is touched during
// parsing.
type Parser struct {
	cache *astcache.Cache
	pool  sync.Pool
}

// New creates a Parser. cache may be nil to disable AST caching.
func New(cache *astcache.Cache) *Parser {
	return &Parser{
		cache: cache,
		pool: sync.Pool{New: func() any { return sitter.NewParser() }},
	}
}

// ParseFile parses one scanned file and extracts its entity tree and
// imports. project names the enclosing project, used to derive qualified
// names. Unsupported languages yield a ParseError; the caller is expected
// to log it and skip the file, per the error-handling design.
func (p *Parser) ParseFile(ctx context.Context, project string, fi model.FileInfo) (Result, error) {
	cfg, ok := ConfigFor(fi.Language)
	if !ok {
		return Result{}, &lerrors.ParseError{Path: fi.RelativePath, Err: fmt.Errorf("unsupported language %q", fi.Language)}
	}

	src, err := os.ReadFile(fi.AbsolutePath)
	if err != nil {
		return Result{}, &lerrors.ParseError{Path: fi.RelativePath, Err: err}
	}

	sp := p.pool.Get().(*sitter.Parser)
	defer p.pool.Put(sp)
	sp.SetLanguage(cfg.TSLanguage)

	tree, err := sp.ParseCtx(ctx, nil, src)
	if err != nil {
		return Result{}, &lerrors.ParseError{Path: fi.RelativePath, Err: err}
	}
	root := tree.RootNode()

	moduleQN := model.ModuleQN(project, fi.RelativePath)
	ex := &extractor{cfg: cfg, src: src, filePath: fi.RelativePath, moduleQN: moduleQN}
	entities := ex.topLevel(root, 0)
	imports := extractImports(cfg, root, src)

	if p.cache != nil {
		p.cache.Put(fi.AbsolutePath, astcache.Entry{Root: root, Language: string(fi.Language), Bytes: len(src)})
	}

	return Result{
		File: model.ParsedFile{
			FileInfo: fi,
			Entities: entities,
			Imports:  imports,
			RawTree:  root,
		},
		FuncMeta: ex.funcMeta,
		ClassQN:  ex.classQN,
	}, nil
}
