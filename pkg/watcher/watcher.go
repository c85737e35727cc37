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

package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kraklabs/lattice/pkg/astcache"
	"github.com/kraklabs/lattice/pkg/graph"
	"github.com/kraklabs/lattice/pkg/model"
	"github.com/kraklabs/lattice/pkg/parse"
	"github.com/kraklabs/lattice/pkg/resolve"
	"github.com/kraklabs/lattice/pkg/symbols"
	"github.com/kraklabs/lattice/pkg/vector"
)

// Config controls one Watcher.
type Config struct {
	Project        string
	Root           string
	Collection     string // vector collection name for this project
	DebounceDelay  time.Duration
	QueueSize      int
	ChunkMaxTokens int
	ChunkOverlap   int
	RecalculateCalls bool // whether to run the resolver after each update (can be expensive on hot-reload loops)
}

func (c Config) withDefaults() Config {
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = 500 * time.Millisecond
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.ChunkMaxTokens <= 0 {
		c.ChunkMaxTokens = 1000
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = 100
	}
	return c
}

// Watcher keeps a project's graph, vector, and AST-cache state in sync
// with its source tree. It requires the shared symbol registry,
// import processor, and inheritance tracker a prior full pipeline.Run
// already built, since call resolution depends on the whole-project
// symbol table, not just the changed file.
type Watcher struct {
	cfg     Config
	fsw     *fsnotify.Watcher
	cache   *astcache.Cache
	parser  *parse.Parser
	writer  *graph.Writer
	vectors *vector.Store

	registry    *symbols.Registry
	imports     *symbols.ImportProcessor
	inheritance *symbols.InheritanceTracker
	resolver    *resolve.Resolver

	logger *slog.Logger

	mu          sync.Mutex
	timers      map[string]*time.Timer
	fileEntities map[string][]string // relative path -> entity QNs currently registered for it

	queue chan fsnotify.Event
	done  chan struct{}
	stop  chan struct{}

	// OnEvent, if set, is invoked after each processed filesystem change.
	// cmd/lattice's watch mode uses this to stream one JSON line per
	// change when running with --json.
	OnEvent func(WatchEvent)
}

// WatchEvent describes one change the watcher finished applying, for
// callers that want to observe incremental progress.
type WatchEvent struct {
	Path   string `json:"path"`
	Action string `json:"action"` // "upsert" or "delete"
	Error  string `json:"error,omitempty"`
}

func (w *Watcher) emit(ev WatchEvent) {
	if w.OnEvent != nil {
		w.OnEvent(ev)
	}
}

// New builds a Watcher over an already-populated symbol table. resolver
// may be nil; if so, call resolution after an update is skipped (the
// watcher still keeps entities/graph/vector in sync).
func New(cfg Config, cache *astcache.Cache, writer *graph.Writer, vectors *vector.Store, registry *symbols.Registry, imports *symbols.ImportProcessor, inheritance *symbols.InheritanceTracker, resolver *resolve.Resolver, logger *slog.Logger) *Watcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:          cfg,
		cache:        cache,
		parser:       parse.New(cache),
		writer:       writer,
		vectors:      vectors,
		registry:     registry,
		imports:      imports,
		inheritance:  inheritance,
		resolver:     resolver,
		logger:       logger,
		timers:       make(map[string]*time.Timer),
		fileEntities: make(map[string][]string),
		queue:        make(chan fsnotify.Event, cfg.QueueSize),
		done:         make(chan struct{}),
		stop:         make(chan struct{}),
	}
}

// Start watches cfg.Root recursively and spawns the single consumer
// goroutine that drains the debounced event queue.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	err = filepath.WalkDir(w.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := fsw.Add(path); addErr != nil {
				w.logger.Warn("watcher.add_dir_failed", "path", path, "err", addErr)
			}
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return err
	}

	go w.debounceLoop()
	go w.consumeLoop(ctx)
	return nil
}

// Stop closes the filesystem watcher and waits up to 5s for the
// consumer to drain in-flight work before returning.
func (w *Watcher) Stop() {
	close(w.stop)
	if w.fsw != nil {
		w.fsw.Close()
	}
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		w.logger.Warn("watcher.stop_timeout")
	}
}

// debounceLoop reads raw fsnotify events, drops directory events and
// events for unsupported extensions, and coalesces bursts per-path into
// a single queued event fired cfg.DebounceDelay after the last edit.
func (w *Watcher) debounceLoop() {
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				continue
			}
			if _, ok := model.ExtensionLanguages[filepath.Ext(ev.Name)]; !ok {
				continue
			}
			w.scheduleDebounced(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher.fsnotify_error", "err", err)
		}
	}
}

func (w *Watcher) scheduleDebounced(ev fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[ev.Name]; ok {
		t.Stop()
	}
	w.timers[ev.Name] = time.AfterFunc(w.cfg.DebounceDelay, func() {
		w.mu.Lock()
		delete(w.timers, ev.Name)
		w.mu.Unlock()
		w.enqueue(ev)
	})
}

// enqueue drops the event with a warning if the bounded queue is full,
// so a slow consumer never blocks the filesystem watch itself.
func (w *Watcher) enqueue(ev fsnotify.Event) {
	select {
	case w.queue <- ev:
	default:
		w.logger.Warn("watcher.queue_full_dropped_event", "path", ev.Name, "op", ev.Op.String())
	}
}

func (w *Watcher) consumeLoop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case ev := <-w.queue:
			w.handle(ctx, ev)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	relPath, err := filepath.Rel(w.cfg.Root, ev.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)

	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.handleDeleted(ctx, relPath)
		return
	}
	w.handleUpsert(ctx, ev.Name, relPath)
}

// handleDeleted runs the deleted-file sequence: graph cleanup, vector
// cleanup, then AST cache eviction.
func (w *Watcher) handleDeleted(ctx context.Context, relPath string) {
	if err := w.writer.DeleteCallsForFile(ctx, relPath); err != nil {
		w.logger.Error("watcher.delete_calls_failed", "path", relPath, "err", err)
	}
	if err := w.writer.DeleteFileEntities(ctx, relPath); err != nil {
		w.logger.Error("watcher.delete_entities_failed", "path", relPath, "err", err)
	}
	if w.vectors != nil {
		if err := w.vectors.DeleteFile(ctx, w.cfg.Collection, relPath); err != nil {
			w.logger.Error("watcher.vector_delete_failed", "path", relPath, "err", err)
		}
	}
	w.unregisterFile(relPath)
	w.cache.Evict(filepath.Join(w.cfg.Root, relPath))
	w.emit(WatchEvent{Path: relPath, Action: "delete"})
}

// handleUpsert runs the created/modified sequence in the fixed order:
// delete stale entities, evict the stale AST, reparse, register,
// rebuild the graph, reindex vectors (delete+re-embed), and optionally
// recompute CALLS edges for the file.
func (w *Watcher) handleUpsert(ctx context.Context, absPath, relPath string) {
	if err := w.writer.DeleteCallsForFile(ctx, relPath); err != nil {
		w.logger.Error("watcher.delete_calls_failed", "path", relPath, "err", err)
	}
	if err := w.writer.DeleteFileEntities(ctx, relPath); err != nil {
		w.logger.Error("watcher.delete_entities_failed", "path", relPath, "err", err)
	}
	w.unregisterFile(relPath)
	w.cache.Evict(absPath)

	lang, ok := model.ExtensionLanguages[filepath.Ext(absPath)]
	if !ok {
		return
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		w.logger.Warn("watcher.read_failed", "path", relPath, "err", err)
		w.emit(WatchEvent{Path: relPath, Action: "upsert", Error: err.Error()})
		return
	}
	fi := model.FileInfo{
		AbsolutePath: absPath,
		RelativePath: relPath,
		Language:     lang,
		ContentHash:  model.HashContent(data),
		SizeBytes:    int64(len(data)),
	}

	res, err := w.parser.ParseFile(ctx, w.cfg.Project, fi)
	if err != nil {
		w.logger.Warn("watcher.parse_failed", "path", relPath, "err", err)
		w.emit(WatchEvent{Path: relPath, Action: "upsert", Error: err.Error()})
		return
	}

	moduleQN := model.ModuleQN(w.cfg.Project, relPath)
	w.imports.RegisterModule(moduleQN)
	w.imports.Process(moduleQN, relPath, lang, res.File.Imports)

	var qns []string
	for _, e := range res.File.Entities {
		qns = append(qns, registerEntityTree(w.registry, w.inheritance, e)...)
	}
	w.setFileEntities(relPath, qns)

	if err := w.writer.AddParsedFile(ctx, w.cfg.Project, res.File); err != nil {
		w.logger.Error("watcher.graph_write_failed", "path", relPath, "err", err)
		w.emit(WatchEvent{Path: relPath, Action: "upsert", Error: err.Error()})
		return
	}
	if err := w.writer.FlushAll(ctx); err != nil {
		w.logger.Error("watcher.graph_flush_failed", "path", relPath, "err", err)
	}

	w.reindexVectors(ctx, fi, res)

	if w.cfg.RecalculateCalls && w.resolver != nil {
		edges := w.resolveFileCalls(moduleQN, res)
		if err := w.writer.RebuildCallsForFile(ctx, edges); err != nil {
			w.logger.Error("watcher.rebuild_calls_failed", "path", relPath, "err", err)
		}
	}

	w.emit(WatchEvent{Path: relPath, Action: "upsert"})
}

func (w *Watcher) reindexVectors(ctx context.Context, fi model.FileInfo, res parse.Result) {
	if w.vectors == nil {
		return
	}
	var chunks []model.Chunk
	if len(res.File.Entities) == 0 {
		data, err := os.ReadFile(fi.AbsolutePath)
		if err == nil {
			chunks = append(chunks, vector.ChunkWholeFile(string(data), fi, w.cfg.Project))
		}
	} else {
		for _, e := range res.File.Entities {
			chunks = append(chunks, chunkEntityTree(e, fi, w.cfg.Project, w.cfg.ChunkMaxTokens, w.cfg.ChunkOverlap)...)
		}
	}
	if err := w.vectors.UpsertChunks(ctx, w.cfg.Collection, chunks); err != nil {
		w.logger.Error("watcher.vector_upsert_failed", "path", fi.RelativePath, "err", err)
	}
}

func chunkEntityTree(e *model.CodeEntity, fi model.FileInfo, project string, maxTokens, overlapTokens int) []model.Chunk {
	out := vector.ChunkEntity(e, fi, project, maxTokens, overlapTokens)
	for _, child := range e.Children {
		out = append(out, chunkEntityTree(child, fi, project, maxTokens, overlapTokens)...)
	}
	return out
}

func registerEntityTree(reg *symbols.Registry, inh *symbols.InheritanceTracker, e *model.CodeEntity) []string {
	reg.Register(e.QualifiedName, string(e.Kind))
	qns := []string{e.QualifiedName}
	if e.Kind == model.KindClass {
		inh.Register(e.QualifiedName, e.BaseClasses)
		for _, child := range e.Children {
			qns = append(qns, registerEntityTree(reg, inh, child)...)
		}
	}
	return qns
}

func (w *Watcher) resolveFileCalls(moduleQN string, res parse.Result) []graph.Row {
	var edges []graph.Row
	for _, e := range res.File.Entities {
		edges = append(edges, w.resolveEntityCalls(res, moduleQN, "", e)...)
	}
	return edges
}

func (w *Watcher) resolveEntityCalls(res parse.Result, moduleQN, classContext string, e *model.CodeEntity) []graph.Row {
	var edges []graph.Row
	if e.Kind == model.KindClass {
		for _, child := range e.Children {
			edges = append(edges, w.resolveEntityCalls(res, moduleQN, e.QualifiedName, child)...)
		}
		return edges
	}
	var localTypes symbols.TypeMap
	if meta, ok := res.FuncMeta[e.QualifiedName]; ok {
		localTypes = symbols.InferLocalTypes(meta.Params, meta.Assignments, classContext, w.registry)
	}
	for _, raw := range e.Calls {
		resolution := w.resolver.Resolve(resolve.UnresolvedCall{
			RawCall:        raw,
			CallerQN:       e.QualifiedName,
			CallerModuleQN: moduleQN,
			ClassContext:   classContext,
			Language:       res.File.FileInfo.Language,
			LocalTypes:     localTypes,
		})
		if !resolution.Resolved {
			continue
		}
		edges = append(edges, graph.Row{"caller_qn": e.QualifiedName, "callee_qn": resolution.QN})
	}
	return edges
}

func (w *Watcher) unregisterFile(relPath string) {
	w.mu.Lock()
	qns := w.fileEntities[relPath]
	delete(w.fileEntities, relPath)
	w.mu.Unlock()
	for _, qn := range qns {
		w.inheritance.Unregister(qn)
		w.registry.Unregister(qn)
	}
}

func (w *Watcher) setFileEntities(relPath string, qns []string) {
	w.mu.Lock()
	w.fileEntities[relPath] = qns
	w.mu.Unlock()
}
