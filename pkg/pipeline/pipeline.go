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
	"context"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/pkg/astcache"
	"github.com/kraklabs/lattice/pkg/graph"
	"github.com/kraklabs/lattice/pkg/llm"
	"github.com/kraklabs/lattice/pkg/model"
	"github.com/kraklabs/lattice/pkg/parse"
	"github.com/kraklabs/lattice/pkg/resolve"
	"github.com/kraklabs/lattice/pkg/scan"
	"github.com/kraklabs/lattice/pkg/store"
	"github.com/kraklabs/lattice/pkg/summarize"
	"github.com/kraklabs/lattice/pkg/symbols"
	"github.com/kraklabs/lattice/pkg/vector"
)

// Config controls one indexing run.
type Config struct {
	ProjectName        string
	RootPath           string
	IgnorePatterns     []string
	MaxWorkers         int
	GraphBatchSize     int
	ChunkMaxTokens     int
	ChunkOverlapTokens int
	MaxConcurrentAPI   int64
	MaxConcurrentGraph int64
	Flags              Flags
}

// withDefaults fills zero-valued Config fields with the documented
// defaults.
func (c Config) withDefaults() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = runtime.NumCPU()
	}
	if c.GraphBatchSize <= 0 {
		c.GraphBatchSize = 500
	}
	if c.ChunkMaxTokens <= 0 {
		c.ChunkMaxTokens = 1000
	}
	if c.ChunkOverlapTokens <= 0 {
		c.ChunkOverlapTokens = 100
	}
	if c.MaxConcurrentAPI <= 0 {
		c.MaxConcurrentAPI = 5
	}
	if c.MaxConcurrentGraph <= 0 {
		c.MaxConcurrentGraph = 5
	}
	return c
}

// Pipeline wires every collaborator the orchestrator drives: the
// scanner, parser, AST cache, batched graph writer, vector store, and
// summarizer. One Pipeline is built per project and is not safe for
// concurrent Run calls (the registry/import-processor/inheritance
// tracker it builds are single-writer per run, per the concurrency
// model).
type Pipeline struct {
	cfg      Config
	scanner  *scan.Scanner
	parser   *parse.Parser
	cache    *astcache.Cache
	writer   *graph.Writer
	vectors  *vector.Store
	summar   *summarize.Summarizer
	rel      *store.Store
	apiSem   *semaphore.Weighted
	graphSem *semaphore.Weighted
	progress *ProgressTracker
	logger   *slog.Logger
}

// New builds a Pipeline. summar/rel may be nil to skip the stages that
// depend on them (summarize/metadata); writer and vectors are required.
func New(cfg Config, cache *astcache.Cache, writer *graph.Writer, vectors *vector.Store, summar *summarize.Summarizer, rel *store.Store, logger *slog.Logger) *Pipeline {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		scanner:  scan.New(logger),
		parser:   parse.New(cache),
		cache:    cache,
		writer:   writer,
		vectors:  vectors,
		summar:   summar,
		rel:      rel,
		apiSem:   semaphore.NewWeighted(cfg.MaxConcurrentAPI),
		graphSem: semaphore.NewWeighted(cfg.MaxConcurrentGraph),
		progress: NewProgressTracker(256),
		logger:   logger,
	}
}

// Progress returns the tracker driving this pipeline's state machine.
func (p *Pipeline) Progress() *ProgressTracker { return p.progress }

// NewDocPipeline builds the companion document pipeline, sharing this
// Pipeline's vector store, relational store, API semaphore, and logger.
// provider drives the document pipeline's link finder and drift
// detector and may differ from the provider backing p's own summarizer.
func (p *Pipeline) NewDocPipeline(cfg DocConfig, provider llm.Provider) *DocPipeline {
	return NewDocPipeline(cfg, provider, p.apiSem, p.vectors, p.rel, p.logger)
}

// Run executes the fixed stage order scan -> parse -> graph ->
// summarize -> metadata(optional) -> embed. Any stage error transitions
// the progress tracker to failed and aborts the remaining stages;
// cleanup of the stages already run (flushing whatever the graph writer
// has buffered) always runs via defer.
func (p *Pipeline) Run(ctx context.Context) error {
	pipelineMetrics.init()
	pc := newContext(p.cfg.ProjectName, p.cfg.Flags)

	defer func() {
		if err := p.writer.FlushAll(context.Background()); err != nil {
			p.logger.Error("pipeline.cleanup.flush_failed", "err", err)
		}
	}()

	files, err := p.runScan(ctx)
	if err != nil {
		p.progress.Fail(err)
		return err
	}

	if err := p.runParse(ctx, pc, files); err != nil {
		p.progress.Fail(err)
		return err
	}

	if err := p.runGraph(ctx, pc); err != nil {
		p.progress.Fail(err)
		return err
	}

	if p.summar != nil {
		p.runSummarize(ctx, pc)
	}

	if !pc.Flags.SkipMetadata && p.rel != nil {
		p.runMetadata(ctx, pc, files)
	}

	if err := p.runEmbed(ctx, pc, files); err != nil {
		p.progress.Fail(err)
		return err
	}

	p.progress.SetStage(StageCompleted)
	return nil
}

func (p *Pipeline) runScan(ctx context.Context) ([]model.FileInfo, error) {
	p.progress.SetStage(StageScanning)
	start := time.Now()
	defer func() { pipelineMetrics.stageDuration.Observe(time.Since(start).Seconds()) }()

	var mu sync.Mutex
	var files []model.FileInfo
	err := p.scanner.Scan(scan.Options{Root: p.cfg.RootPath, IgnorePatterns: p.cfg.IgnorePatterns}, func(fi model.FileInfo) {
		mu.Lock()
		files = append(files, fi)
		mu.Unlock()
		pipelineMetrics.filesScanned.Inc()
	})
	if err != nil {
		return nil, &lerrors.IndexingError{Stage: "scan", Err: err}
	}
	p.progress.UpdateStage("scanned " + itoa(len(files)) + " files")
	return files, nil
}

// runParse dispatches ParseFile across a worker pool of cfg.MaxWorkers
// goroutines; parsing is unordered, but every worker's result is merged
// into pc sequentially after the pool drains so the registry has a
// single writer. Parse failures are recovered locally: the file is
// logged and skipped.
func (p *Pipeline) runParse(ctx context.Context, pc *Context, files []model.FileInfo) error {
	p.progress.SetStage(StageParsing)
	start := time.Now()
	defer func() { pipelineMetrics.stageDuration.Observe(time.Since(start).Seconds()) }()

	jobs := make(chan model.FileInfo)
	results := make(chan parse.Result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for fi := range jobs {
				res, err := p.parser.ParseFile(ctx, p.cfg.ProjectName, fi)
				if err != nil {
					p.logger.Warn("pipeline.parse.failed", "path", fi.RelativePath, "err", err)
					pipelineMetrics.filesParseFailed.Inc()
					continue
				}
				pipelineMetrics.filesParsed.Inc()
				results <- res
			}
		}()
	}
	go func() {
		for _, fi := range files {
			jobs <- fi
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		pc.Parsed = append(pc.Parsed, res)
	}

	// Two-pass registration: every module QN must be known to the import
	// processor before any file's imports are processed, since a
	// same-project single-segment import can only be told apart from an
	// external package by checking the registered module set.
	for _, res := range pc.Parsed {
		pc.Imports.RegisterModule(model.ModuleQN(p.cfg.ProjectName, res.File.FileInfo.RelativePath))
	}
	for _, res := range pc.Parsed {
		moduleQN := model.ModuleQN(p.cfg.ProjectName, res.File.FileInfo.RelativePath)
		pc.Imports.Process(moduleQN, res.File.FileInfo.RelativePath, res.File.FileInfo.Language, res.File.Imports)
		for _, e := range res.File.Entities {
			registerEntity(pc.Registry, pc.Inheritance, e)
		}
	}

	p.progress.UpdateStage("parsed " + itoa(len(pc.Parsed)) + " files")
	return nil
}

func registerEntity(reg *symbols.Registry, inh *symbols.InheritanceTracker, e *model.CodeEntity) {
	reg.Register(e.QualifiedName, string(e.Kind))
	pipelineMetrics.entitiesIndexed.Inc()
	if e.Kind == model.KindClass {
		inh.Register(e.QualifiedName, e.BaseClasses)
		for _, child := range e.Children {
			registerEntity(reg, inh, child)
		}
	}
}

// runGraph feeds every parsed file to the batched writer, resolves every
// raw call site now that the registry/import-processor/inheritance
// tracker are fully populated, and flushes.
func (p *Pipeline) runGraph(ctx context.Context, pc *Context) error {
	p.progress.SetStage(StageGraphBuild)
	start := time.Now()
	defer func() { pipelineMetrics.stageDuration.Observe(time.Since(start).Seconds()) }()

	if err := p.graphSem.Acquire(ctx, 1); err != nil {
		return &lerrors.IndexingError{Stage: "graph", Err: err}
	}
	defer p.graphSem.Release(1)

	for _, res := range pc.Parsed {
		if err := p.writer.AddParsedFile(ctx, p.cfg.ProjectName, res.File); err != nil {
			return &lerrors.IndexingError{Stage: "graph", Err: err}
		}
	}

	pc.Resolver = resolve.New(pc.Registry, pc.Imports, pc.Inheritance)
	edges := p.resolveCalls(pc)
	p.writer.SetCallEdges(edges)

	if err := p.writer.FlushAll(ctx); err != nil {
		return &lerrors.IndexingError{Stage: "graph", Err: err}
	}
	pipelineMetrics.graphFlushes.Inc()
	p.progress.UpdateStage("graph flush complete")
	return nil
}

func (p *Pipeline) resolveCalls(pc *Context) []graph.Row {
	var edges []graph.Row
	for _, res := range pc.Parsed {
		moduleQN := model.ModuleQN(p.cfg.ProjectName, res.File.FileInfo.RelativePath)
		for _, e := range res.File.Entities {
			edges = append(edges, p.resolveEntityCalls(pc, res, moduleQN, "", e)...)
		}
	}
	return edges
}

func (p *Pipeline) resolveEntityCalls(pc *Context, res parse.Result, moduleQN, classContext string, e *model.CodeEntity) []graph.Row {
	var edges []graph.Row
	if e.Kind == model.KindClass {
		for _, child := range e.Children {
			edges = append(edges, p.resolveEntityCalls(pc, res, moduleQN, e.QualifiedName, child)...)
		}
		return edges
	}

	var localTypes symbols.TypeMap
	if meta, ok := res.FuncMeta[e.QualifiedName]; ok {
		localTypes = symbols.InferLocalTypes(meta.Params, meta.Assignments, classContext, pc.Registry)
	}

	for _, raw := range e.Calls {
		call := resolve.UnresolvedCall{
			RawCall:        raw,
			CallerQN:       e.QualifiedName,
			CallerModuleQN: moduleQN,
			ClassContext:   classContext,
			Language:       res.File.FileInfo.Language,
			LocalTypes:     localTypes,
		}
		resolution := pc.Resolver.Resolve(call)
		row := graph.Row{
			"caller_qn":  e.QualifiedName,
			"callee_raw": raw,
			"project_id": p.cfg.ProjectName,
		}
		if resolution.Resolved {
			row["callee_qn"] = resolution.QN
			pipelineMetrics.callsResolved.Inc()
		} else {
			pipelineMetrics.callsUnresolved.Inc()
		}
		edges = append(edges, row)
	}
	return edges
}

// runSummarize submits the function or class prompt (SummarizeEntity) for
// every parsed entity, gated by the shared API semaphore inside the
// summarizer itself. This stage requests no file-level summaries. Results are kept in pc.Summaries so the embed
// stage can fold them into chunk content.
func (p *Pipeline) runSummarize(ctx context.Context, pc *Context) {
	p.progress.SetStage(StageSummarizing)
	start := time.Now()
	defer func() { pipelineMetrics.stageDuration.Observe(time.Since(start).Seconds()) }()

	batchSize := 3
	if p.cfg.MaxConcurrentAPI < 3 {
		batchSize = int(p.cfg.MaxConcurrentAPI)
	}
	if batchSize < 1 {
		batchSize = 1
	}

	var mu sync.Mutex
	jobs := make(chan *model.CodeEntity)
	var wg sync.WaitGroup
	for i := 0; i < batchSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				summary := p.summar.SummarizeEntity(ctx, e)
				if summary == "" {
					pipelineMetrics.summariesEmpty.Inc()
					continue
				}
				mu.Lock()
				pc.Summaries[e.QualifiedName] = summary
				mu.Unlock()
			}
		}()
	}
	go func() {
		for _, res := range pc.Parsed {
			for _, e := range res.File.Entities {
				enqueueEntities(jobs, e)
			}
		}
		close(jobs)
	}()
	wg.Wait()
	p.progress.UpdateStage("summarized " + itoa(len(pc.Summaries)) + " entities")
}

func enqueueEntities(jobs chan<- *model.CodeEntity, e *model.CodeEntity) {
	jobs <- e
	for _, child := range e.Children {
		enqueueEntities(jobs, child)
	}
}

// runMetadata records one metadata_generation_log row and upserts
// project_metadata with file/entity counts.
func (p *Pipeline) runMetadata(ctx context.Context, pc *Context, files []model.FileInfo) {
	p.progress.SetStage(StageMetadata)
	start := time.Now()
	defer func() { pipelineMetrics.stageDuration.Observe(time.Since(start).Seconds()) }()

	entityCount := 0
	for _, res := range pc.Parsed {
		entityCount += countEntities(res.File.Entities)
	}
	metadata := map[string]any{
		"file_count":    len(files),
		"entity_count":  entityCount,
		"unresolved_calls": p.writer.UnresolvedCallStats().Unresolved,
	}
	if err := p.rel.UpsertProjectMetadata(ctx, p.cfg.ProjectName, p.cfg.RootPath, metadata); err != nil {
		p.logger.Error("pipeline.metadata.upsert_failed", "err", err)
		_ = p.rel.LogMetadataGeneration(ctx, p.cfg.ProjectName, "index", "failed", err.Error())
		return
	}
	_ = p.rel.LogMetadataGeneration(ctx, p.cfg.ProjectName, "index", "completed", "")
	p.progress.UpdateStage("metadata recorded")
}

func countEntities(entities []*model.CodeEntity) int {
	n := 0
	for _, e := range entities {
		n++
		n += countEntities(e.Children)
	}
	return n
}

// runEmbed chunks every file (per-entity, or whole-file when a file has
// no entities), enriching entity chunk content with the summarizer's
// output when available, and upserts into the project's vector
// collection.
func (p *Pipeline) runEmbed(ctx context.Context, pc *Context, files []model.FileInfo) error {
	p.progress.SetStage(StageEmbedding)
	start := time.Now()
	defer func() { pipelineMetrics.stageDuration.Observe(time.Since(start).Seconds()) }()

	collection := vector.CollectionName(p.cfg.ProjectName)
	var chunks []model.Chunk

	for _, res := range pc.Parsed {
		if len(res.File.Entities) == 0 {
			data, err := readFile(res.File.FileInfo.AbsolutePath)
			if err == nil {
				chunks = append(chunks, vector.ChunkWholeFile(data, res.File.FileInfo, p.cfg.ProjectName))
			}
			continue
		}
		for _, e := range res.File.Entities {
			chunks = append(chunks, p.chunkEntityTree(res.File.FileInfo, e, pc)...)
		}
	}

	if err := p.vectors.UpsertChunks(ctx, collection, chunks); err != nil {
		return &lerrors.IndexingError{Stage: "embed", Err: err}
	}
	p.progress.UpdateStage("embedded " + itoa(len(chunks)) + " chunks")
	return nil
}

func (p *Pipeline) chunkEntityTree(fi model.FileInfo, e *model.CodeEntity, pc *Context) []model.Chunk {
	entityChunks := vector.ChunkEntity(e, fi, p.cfg.ProjectName, p.cfg.ChunkMaxTokens, p.cfg.ChunkOverlapTokens)
	if summary, ok := pc.Summaries[e.QualifiedName]; ok {
		for i := range entityChunks {
			entityChunks[i].Content = summary + "\n\n" + entityChunks[i].Content
		}
	}
	var out []model.Chunk
	out = append(out, entityChunks...)
	for _, child := range e.Children {
		out = append(out, p.chunkEntityTree(fi, child, pc)...)
	}
	return out
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
