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

	"golang.org/x/sync/semaphore"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/pkg/documents"
	"github.com/kraklabs/lattice/pkg/drift"
	"github.com/kraklabs/lattice/pkg/llm"
	"github.com/kraklabs/lattice/pkg/model"
	"github.com/kraklabs/lattice/pkg/store"
	"github.com/kraklabs/lattice/pkg/vector"
)

// DocConfig controls one document-pipeline run. It reuses the parent
// Pipeline's vector store, relational store, and API semaphore, but
// needs its own LLM-backed collaborators since the link finder and
// drift detector are document-pipeline-specific.
type DocConfig struct {
	ProjectName        string
	RootPath           string
	IgnorePatterns     []string
	ChunkMaxTokens     int
	ChunkOverlapTokens int
	Force              bool
}

// DocPipeline runs the scan -> chunk -> link -> drift sequence over a
// project's Markdown tree. Code chunks and document chunks share a
// single per-project vector collection (see vector.CollectionName),
// distinguished by their metadata keys rather than by a second
// collection.
type DocPipeline struct {
	cfg        DocConfig
	chunker    *documents.Chunker
	linkFinder *documents.LinkFinder
	drift      *drift.Detector
	vectors    *vector.Store
	rel        *store.Store
	progress   *ProgressTracker
	logger     *slog.Logger
	entityCode map[string]string // entity QN -> source snippet, for drift analysis
	entityKind map[string]string
	entityPath map[string]string
}

// NewDocPipeline builds a DocPipeline. provider drives both the link
// finder and the drift detector; sem is the shared process-wide API
// semaphore.
func NewDocPipeline(cfg DocConfig, provider llm.Provider, sem *semaphore.Weighted, vectors *vector.Store, rel *store.Store, logger *slog.Logger) *DocPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocPipeline{
		cfg:        cfg,
		chunker:    documents.NewChunker(cfg.ChunkMaxTokens, cfg.ChunkOverlapTokens),
		linkFinder: documents.NewLinkFinder(vectors, provider, sem, logger),
		drift:      drift.New(provider, sem, logger),
		vectors:    vectors,
		rel:        rel,
		progress:   NewProgressTracker(256),
		logger:     logger,
		entityCode: make(map[string]string),
		entityKind: make(map[string]string),
		entityPath: make(map[string]string),
	}
}

// IndexEntities primes the drift lookup tables from a completed code
// Run: the document pipeline needs each linked entity's current source
// so it can feed (doc excerpt, code excerpt) pairs to the drift
// detector.
func (dp *DocPipeline) IndexEntities(pc *Context) {
	for _, res := range pc.Parsed {
		for _, e := range res.File.Entities {
			dp.indexEntityTree(res.File.FileInfo.RelativePath, e)
		}
	}
}

func (dp *DocPipeline) indexEntityTree(filePath string, e *model.CodeEntity) {
	dp.entityCode[e.QualifiedName] = e.Code
	dp.entityKind[e.QualifiedName] = string(e.Kind)
	dp.entityPath[e.QualifiedName] = filePath
	for _, child := range e.Children {
		dp.indexEntityTree(filePath, child)
	}
}

// Run executes scan -> chunk -> link -> drift over every Markdown file
// under cfg.RootPath. A relational-store change check (content hash) is
// skipped entirely when cfg.Force is set.
func (dp *DocPipeline) Run(ctx context.Context) error {
	pipelineMetrics.init()
	dp.progress.SetStage(StageScanning)
	docs, err := documents.Scan(dp.cfg.RootPath, dp.cfg.IgnorePatterns)
	if err != nil {
		dp.progress.Fail(err)
		return &lerrors.IndexingError{Stage: "docs_scan", Err: err}
	}

	dp.progress.SetStage(StageParsing)
	for _, doc := range docs {
		if err := dp.processDoc(ctx, doc); err != nil {
			dp.logger.Error("pipeline.docs.process_failed", "path", doc.RelativePath, "err", err)
			continue
		}
	}
	dp.progress.SetStage(StageCompleted)
	return nil
}

func (dp *DocPipeline) processDoc(ctx context.Context, doc documents.ScannedDoc) error {
	if !dp.cfg.Force {
		_, existingHash, found, err := dp.rel.DocumentByPath(ctx, dp.cfg.ProjectName, doc.RelativePath)
		if err == nil && found && existingHash == doc.ContentHash {
			return nil
		}
	}

	title := documents.ExtractTitle(doc.Content)
	documentID, err := dp.rel.UpsertDocument(ctx, dp.cfg.ProjectName, doc.RelativePath, title, doc.ContentHash)
	if err != nil {
		return err
	}
	pipelineMetrics.docsIndexed.Inc()

	chunks := dp.chunker.Chunk(doc.Content, itoa64(documentID), dp.cfg.ProjectName)
	if err := dp.rel.ReplaceDocumentChunks(ctx, documentID, dp.cfg.ProjectName, chunks); err != nil {
		return err
	}

	collection := vector.CollectionName(dp.cfg.ProjectName)
	if err := dp.vectors.UpsertDocumentChunks(ctx, collection, doc.RelativePath, "markdown", dp.cfg.ProjectName, chunks); err != nil {
		dp.logger.Error("pipeline.docs.embed_failed", "path", doc.RelativePath, "err", err)
	}

	known := make(map[string]bool, len(dp.entityCode))
	for qn := range dp.entityCode {
		known[qn] = true
	}

	for _, chunk := range chunks {
		var links []model.DocumentLink

		explicit := documents.ExtractExplicitReferences(chunk.Content, known)
		explicitLinks := documents.ToDocumentLinks(chunk.ID, explicit)
		for i := range explicitLinks {
			explicitLinks[i].FilePath = dp.entityPath[explicitLinks[i].EntityQN]
			explicitLinks[i].EntityKind = dp.entityKind[explicitLinks[i].EntityQN]
		}
		links = append(links, explicitLinks...)

		implicit, err := dp.linkFinder.FindLinks(ctx, collection, dp.cfg.ProjectName, chunk)
		if err != nil {
			dp.logger.Warn("pipeline.docs.link_find_failed", "chunk", chunk.ID, "err", err)
		}
		links = append(links, implicit...)

		for _, link := range links {
			if err := dp.rel.UpsertDocumentLink(ctx, link); err != nil {
				dp.logger.Error("pipeline.docs.link_upsert_failed", "err", err)
				continue
			}
			dp.analyzeDrift(ctx, doc.RelativePath, chunk, link)
		}
	}
	return nil
}

func (dp *DocPipeline) analyzeDrift(ctx context.Context, docPath string, chunk model.DocumentChunk, link model.DocumentLink) {
	code, ok := dp.entityCode[link.EntityQN]
	if !ok {
		return
	}
	analysis, err := dp.drift.Analyze(ctx, drift.Input{
		ChunkID:     chunk.ID,
		DocPath:     docPath,
		EntityQN:    link.EntityQN,
		EntityKind:  dp.entityKind[link.EntityQN],
		FilePath:    dp.entityPath[link.EntityQN],
		HeadingPath: chunk.HeadingPath,
		DocContent:  chunk.Content,
		CodeContent: code,
		CodeHash:    model.HashContent([]byte(code)),
	})
	if err != nil || analysis == nil {
		return
	}
	if analysis.DriftDetected {
		pipelineMetrics.driftDetected.Inc()
	}
	if err := dp.rel.UpsertDriftAnalysis(ctx, *analysis); err != nil {
		dp.logger.Error("pipeline.docs.drift_upsert_failed", "err", err)
	}
}

func itoa64(n int64) string {
	return itoa(int(n))
}
