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

package graph

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/pkg/model"
)

// Row is a property dictionary matching a node label's or relationship
// type's schema.
type Row = map[string]any

// EntityBuffer accumulates node rows per label before a flush.
type EntityBuffer struct {
	Files     []Row
	Classes   []Row
	Functions []Row
	Methods   []Row
	Imports   []Row
}

func (b *EntityBuffer) len() int {
	return len(b.Files) + len(b.Classes) + len(b.Functions) + len(b.Methods) + len(b.Imports)
}

func (b *EntityBuffer) clear() { *b = EntityBuffer{} }

// RelationshipBuffer accumulates relationship rows per type before a
// flush.
type RelationshipBuffer struct {
	DefinesClass    []Row
	DefinesFunction []Row
	DefinesMethod   []Row
	Extends         []Row
	Imports         []Row
	Calls           []Row
}

func (b *RelationshipBuffer) len() int {
	return len(b.DefinesClass) + len(b.DefinesFunction) + len(b.DefinesMethod) +
		len(b.Extends) + len(b.Imports) + len(b.Calls)
}

func (b *RelationshipBuffer) clear() { *b = RelationshipBuffer{} }

// UnresolvedCallStat counts the call rows of a CALLS flush that carry no
// resolved callee_qn.
type UnresolvedCallStat struct {
	Total      int
	Unresolved int
}

// Writer is the batched graph writer: two buffers, auto-flush on size,
// and the incremental delete/rebuild operations used by the watcher.
type Writer struct {
	mu         sync.Mutex
	backend    Backend
	logger     *slog.Logger
	batchSize  int
	entities   EntityBuffer
	relationships RelationshipBuffer
	lastUnresolved UnresolvedCallStat
}

// New creates a Writer that auto-flushes either buffer once its row
// count exceeds batchSize.
func New(backend Backend, batchSize int, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Writer{backend: backend, batchSize: batchSize, logger: logger}
}

// AddParsedFile appends a parsed file's entities and relationships to
// both buffers, auto-flushing when either exceeds batchSize.
func (w *Writer) AddParsedFile(ctx context.Context, projectID string, pf model.ParsedFile) error {
	w.mu.Lock()
	w.entities.Files = append(w.entities.Files, Row{
		"path":         pf.FileInfo.RelativePath,
		"content_hash": pf.FileInfo.ContentHash,
		"language":     string(pf.FileInfo.Language),
		"size_bytes":   pf.FileInfo.SizeBytes,
		"line_count":   pf.FileInfo.LineCount,
		"project_id":   projectID,
	})
	for _, imp := range pf.Imports {
		w.entities.Imports = append(w.entities.Imports, Row{
			"name":          imp.Name,
			"file_path":     pf.FileInfo.RelativePath,
			"alias":         imp.Alias,
			"source_module": imp.SourceModule,
			"is_external":   imp.IsExternal,
			"line_number":   imp.LineNumber,
			"project_id":    projectID,
		})
		w.relationships.Imports = append(w.relationships.Imports, Row{
			"file_path": pf.FileInfo.RelativePath,
			"name":      imp.Name,
			"project_id": projectID,
		})
	}
	for _, e := range pf.Entities {
		w.addEntityLocked(projectID, pf.FileInfo.RelativePath, "", e)
	}
	w.mu.Unlock()

	if w.entities.len() > w.batchSize || w.relationships.len() > w.batchSize {
		return w.FlushAll(ctx)
	}
	return nil
}

func (w *Writer) addEntityLocked(projectID, filePath, parentClassQN string, e *model.CodeEntity) {
	row := Row{
		"qualified_name": e.QualifiedName,
		"name":           e.Name,
		"signature":      e.Signature,
		"docstring":      e.Docstring,
		"code":           e.Code,
		"start_line":     e.StartLine,
		"end_line":       e.EndLine,
		"file_path":      filePath,
		"project_id":     projectID,
	}
	switch e.Kind {
	case model.KindClass:
		row["base_classes"] = e.BaseClasses
		w.entities.Classes = append(w.entities.Classes, row)
		w.relationships.DefinesClass = append(w.relationships.DefinesClass, Row{
			"file_path": filePath, "qualified_name": e.QualifiedName, "project_id": projectID,
		})
		for _, base := range e.BaseClasses {
			w.relationships.Extends = append(w.relationships.Extends, Row{
				"class_qn": e.QualifiedName, "parent_name": base, "project_id": projectID,
			})
		}
		for _, child := range e.Children {
			w.addEntityLocked(projectID, filePath, e.QualifiedName, child)
		}
	case model.KindFunction:
		row["is_async"] = e.IsAsync
		w.entities.Functions = append(w.entities.Functions, row)
		w.relationships.DefinesFunction = append(w.relationships.DefinesFunction, Row{
			"file_path": filePath, "qualified_name": e.QualifiedName, "project_id": projectID,
		})
		w.addCallsLocked(projectID, e)
	case model.KindMethod:
		row["is_async"] = e.IsAsync
		row["is_static"] = e.IsStatic
		row["is_classmethod"] = e.IsClassMethod
		row["parent_class"] = parentClassQN
		w.entities.Methods = append(w.entities.Methods, row)
		w.relationships.DefinesMethod = append(w.relationships.DefinesMethod, Row{
			"class_qn": parentClassQN, "qualified_name": e.QualifiedName, "project_id": projectID,
		})
		w.addCallsLocked(projectID, e)
	}
}

func (w *Writer) addCallsLocked(projectID string, e *model.CodeEntity) {
	for _, callee := range e.Calls {
		w.relationships.Calls = append(w.relationships.Calls, Row{
			"caller_qn":  e.QualifiedName,
			"callee_raw": callee,
			"project_id": projectID,
		})
	}
}

// SetCallEdges replaces the raw callee strings queued in the Calls
// relationship buffer with resolved (caller_qn, callee_qn) pairs, as
// produced by the call resolver after all parsing has completed.
func (w *Writer) SetCallEdges(edges []Row) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.relationships.Calls = edges
}

// FlushAll issues one UNWIND ... MERGE statement per populated label or
// relationship type, clears each buffer that flushed successfully, and
// is idempotent: calling it with empty buffers is a no-op. Failure of one
// label's flush is logged and that buffer alone is cleared; the pipeline
// does not abort on a single batch failure.
func (w *Writer) FlushAll(ctx context.Context) error {
	w.mu.Lock()
	entities := w.entities
	relationships := w.relationships
	w.entities.clear()
	w.relationships.clear()
	w.mu.Unlock()

	w.flushNodeLabel(ctx, "File", []string{"path"}, entities.Files)
	w.flushNodeLabel(ctx, "Class", []string{"qualified_name"}, entities.Classes)
	w.flushNodeLabel(ctx, "Function", []string{"qualified_name"}, entities.Functions)
	w.flushNodeLabel(ctx, "Method", []string{"qualified_name"}, entities.Methods)
	// Import nodes have no project-unique name: two files can each import
	// a same-named symbol from different source modules, and the same
	// name can recur across projects. Key the MERGE on the full triple so
	// those never collide onto one node and clobber each other's
	// source_module/alias/line_number/project_id on SET n += row.
	w.flushNodeLabel(ctx, "Import", []string{"name", "file_path", "project_id"}, entities.Imports)

	w.flushDefines(ctx, "File", "Class", "DEFINES", relationships.DefinesClass)
	w.flushDefines(ctx, "File", "Function", "DEFINES", relationships.DefinesFunction)
	w.flushDefinesMethod(ctx, relationships.DefinesMethod)
	w.flushExtends(ctx, relationships.Extends)
	w.flushImportsRel(ctx, relationships.Imports)
	w.flushCalls(ctx, relationships.Calls)

	return nil
}

// flushNodeLabel issues one UNWIND ... MERGE for label, keyed on the
// composite of pks (every property in pks must be present on every row).
// A single-element pks is the common case (qualified_name, path); Import
// nodes need the multi-property form since no single property of an
// import record is unique across files or projects.
func (w *Writer) flushNodeLabel(ctx context.Context, label string, pks []string, rows []Row) {
	if len(rows) == 0 {
		return
	}
	keyParts := make([]string, len(pks))
	for i, pk := range pks {
		keyParts[i] = pk + ": row." + pk
	}
	cypher := "UNWIND $rows AS row MERGE (n:" + label + " {" + strings.Join(keyParts, ", ") + "}) SET n += row"
	if err := w.backend.Execute(ctx, cypher, map[string]any{"rows": rows}); err != nil {
		w.logger.Error("graph.flush.failed", "label", label, "rows", len(rows), "err", &lerrors.GraphError{Op: "flush " + label, Err: err})
	}
}

func (w *Writer) flushDefines(ctx context.Context, fromLabel, toLabel, relType string, rows []Row) {
	if len(rows) == 0 {
		return
	}
	cypher := "UNWIND $rows AS row " +
		"MATCH (f:" + fromLabel + " {path: row.file_path}) " +
		"MATCH (t:" + toLabel + " {qualified_name: row.qualified_name}) " +
		"MERGE (f)-[:" + relType + "]->(t)"
	if err := w.backend.Execute(ctx, cypher, map[string]any{"rows": rows}); err != nil {
		w.logger.Error("graph.flush.failed", "rel", relType, "to", toLabel, "err", err)
	}
}

func (w *Writer) flushDefinesMethod(ctx context.Context, rows []Row) {
	if len(rows) == 0 {
		return
	}
	cypher := "UNWIND $rows AS row " +
		"MATCH (c:Class {qualified_name: row.class_qn}) " +
		"MATCH (m:Method {qualified_name: row.qualified_name}) " +
		"MERGE (c)-[:DEFINES_METHOD]->(m)"
	if err := w.backend.Execute(ctx, cypher, map[string]any{"rows": rows}); err != nil {
		w.logger.Error("graph.flush.failed", "rel", "DEFINES_METHOD", "err", err)
	}
}

func (w *Writer) flushExtends(ctx context.Context, rows []Row) {
	if len(rows) == 0 {
		return
	}
	cypher := "UNWIND $rows AS row " +
		"MATCH (c:Class {qualified_name: row.class_qn}) " +
		"OPTIONAL MATCH (p:Class {qualified_name: row.parent_name}) " +
		"WITH c, p WHERE p IS NOT NULL " +
		"MERGE (c)-[:EXTENDS]->(p)"
	if err := w.backend.Execute(ctx, cypher, map[string]any{"rows": rows}); err != nil {
		w.logger.Error("graph.flush.failed", "rel", "EXTENDS", "err", err)
	}
}

func (w *Writer) flushImportsRel(ctx context.Context, rows []Row) {
	if len(rows) == 0 {
		return
	}
	cypher := "UNWIND $rows AS row " +
		"MATCH (f:File {path: row.file_path}) " +
		"MATCH (i:Import {name: row.name, file_path: row.file_path, project_id: row.project_id}) " +
		"MERGE (f)-[:IMPORTS]->(i)"
	if err := w.backend.Execute(ctx, cypher, map[string]any{"rows": rows}); err != nil {
		w.logger.Error("graph.flush.failed", "rel", "IMPORTS", "err", err)
	}
}

func (w *Writer) flushCalls(ctx context.Context, rows []Row) {
	total := len(rows)
	var resolvedRows []Row
	unresolved := 0
	for _, r := range rows {
		if qn, ok := r["callee_qn"]; ok && qn != "" {
			resolvedRows = append(resolvedRows, r)
		} else {
			unresolved++
		}
	}
	w.mu.Lock()
	w.lastUnresolved = UnresolvedCallStat{Total: total, Unresolved: unresolved}
	w.mu.Unlock()
	if len(resolvedRows) == 0 {
		return
	}
	cypher := "UNWIND $rows AS row " +
		"MATCH (caller {qualified_name: row.caller_qn}) " +
		"MATCH (callee {qualified_name: row.callee_qn}) " +
		"MERGE (caller)-[:CALLS]->(callee)"
	if err := w.backend.Execute(ctx, cypher, map[string]any{"rows": resolvedRows}); err != nil {
		w.logger.Error("graph.flush.failed", "rel", "CALLS", "err", err)
	}
}

// UnresolvedCallStats returns the unresolved-callee count from the most
// recent CALLS flush.
func (w *Writer) UnresolvedCallStats() UnresolvedCallStat {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUnresolved
}

// FileNeedsUpdate reports whether no File node exists with the given
// (path, hash) pair.
func (w *Writer) FileNeedsUpdate(ctx context.Context, path, hash string) (bool, error) {
	res, err := w.backend.Query(ctx,
		"MATCH (f:File {path: $path, content_hash: $hash}) RETURN count(f) AS c",
		map[string]any{"path": path, "hash": hash})
	if err != nil {
		return false, &lerrors.GraphError{Op: "file_needs_update", Err: err}
	}
	if len(res.Rows) == 0 {
		return true, nil
	}
	count, _ := res.Rows[0][0].(int64)
	return count == 0, nil
}

// DeleteFileEntities removes every entity defined by path and its
// relationships.
func (w *Writer) DeleteFileEntities(ctx context.Context, path string) error {
	cypher := "MATCH (f:File {path: $path}) " +
		"OPTIONAL MATCH (f)-[:DEFINES]->(e) " +
		"OPTIONAL MATCH (e)-[:DEFINES_METHOD]->(m) " +
		"DETACH DELETE f, e, m"
	if err := w.backend.Execute(ctx, cypher, map[string]any{"path": path}); err != nil {
		return &lerrors.GraphError{Op: "delete_file_entities", Err: err}
	}
	return nil
}

// DeleteCallsForFile removes CALLS edges where either endpoint has
// file_path == path.
func (w *Writer) DeleteCallsForFile(ctx context.Context, path string) error {
	cypher := "MATCH (a)-[r:CALLS]->(b) WHERE a.file_path = $path OR b.file_path = $path DELETE r"
	if err := w.backend.Execute(ctx, cypher, map[string]any{"path": path}); err != nil {
		return &lerrors.GraphError{Op: "delete_calls_for_file", Err: err}
	}
	return nil
}

// RebuildCallsForFile re-applies MERGE (caller)-[:CALLS]->(callee) for
// every function/method defined in path, from the resolved edge rows the
// caller supplies (the watcher recomputes these via the resolver before
// calling this method).
func (w *Writer) RebuildCallsForFile(ctx context.Context, edges []Row) error {
	if len(edges) == 0 {
		return nil
	}
	cypher := "UNWIND $rows AS row " +
		"MATCH (caller {qualified_name: row.caller_qn}) " +
		"MATCH (callee {qualified_name: row.callee_qn}) " +
		"MERGE (caller)-[:CALLS]->(callee)"
	if err := w.backend.Execute(ctx, cypher, map[string]any{"rows": edges}); err != nil {
		return &lerrors.GraphError{Op: "rebuild_calls_for_file", Err: err}
	}
	return nil
}

// MarshalRowsForLog renders rows as JSON for diagnostic logging; best
// effort, never returns an error to the caller.
func MarshalRowsForLog(rows []Row) string {
	b, err := json.Marshal(rows)
	if err != nil {
		return "<unmarshalable>"
	}
	return string(b)
}
