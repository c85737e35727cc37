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

// Package store implements the relational store: documents, document
// chunks, document links, drift analyses, project metadata, and the
// metadata generation log, backed by SQLite via mattn/go-sqlite3.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/pkg/model"
)

// Store wraps the SQLite connection pool backing the relational schema.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath and applies the
// schema. dbPath may be ":memory:" for an ephemeral store.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, &lerrors.PostgresError{Op: "mkdir", Err: err}
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, &lerrors.PostgresError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &lerrors.PostgresError{Op: "ping", Err: err}
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, &lerrors.PostgresError{Op: "create_schema", Err: err}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_name  TEXT NOT NULL,
	file_path     TEXT NOT NULL,
	title         TEXT,
	content_hash  TEXT NOT NULL,
	updated_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_name, file_path)
);

CREATE TABLE IF NOT EXISTS document_chunks (
	id                   TEXT PRIMARY KEY,
	document_id          INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	project_name         TEXT NOT NULL,
	content              TEXT NOT NULL,
	heading_path         TEXT,
	heading_level        INTEGER,
	start_line           INTEGER,
	end_line             INTEGER,
	content_hash         TEXT,
	explicit_references  TEXT,
	drift_status         TEXT DEFAULT 'unknown',
	drift_score          REAL
);
CREATE INDEX IF NOT EXISTS idx_document_chunks_document ON document_chunks(document_id);

CREATE TABLE IF NOT EXISTS document_links (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id           TEXT NOT NULL REFERENCES document_chunks(id) ON DELETE CASCADE,
	entity_qn          TEXT NOT NULL,
	entity_kind        TEXT,
	file_path          TEXT,
	link_type          TEXT NOT NULL,
	confidence         REAL NOT NULL,
	line_range_start   INTEGER,
	line_range_end     INTEGER,
	code_version_hash  TEXT,
	reasoning          TEXT,
	UNIQUE(chunk_id, entity_qn)
);
CREATE INDEX IF NOT EXISTS idx_document_links_chunk ON document_links(chunk_id);
CREATE INDEX IF NOT EXISTS idx_document_links_entity ON document_links(entity_qn);

CREATE TABLE IF NOT EXISTS drift_analyses (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id           TEXT NOT NULL,
	doc_path           TEXT NOT NULL,
	entity_qn          TEXT NOT NULL,
	trigger            TEXT,
	drift_detected     INTEGER NOT NULL,
	drift_severity     TEXT NOT NULL,
	drift_score        REAL NOT NULL,
	issues             TEXT,
	explanation        TEXT,
	doc_excerpt        TEXT,
	code_excerpt       TEXT,
	doc_version_hash   TEXT,
	code_version_hash  TEXT,
	analyzed_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(chunk_id, entity_qn)
);

CREATE TABLE IF NOT EXISTS project_metadata (
	project_name     TEXT PRIMARY KEY,
	root_path        TEXT NOT NULL,
	metadata         TEXT,
	last_indexed_at  TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata_generation_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_name  TEXT NOT NULL,
	stage         TEXT NOT NULL,
	status        TEXT NOT NULL,
	detail        TEXT,
	created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// UpsertDocument inserts or updates the documents row keyed by
// (project_name, file_path), returning its id.
func (s *Store) UpsertDocument(ctx context.Context, projectName, filePath, title, contentHash string) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (project_name, file_path, title, content_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_name, file_path) DO UPDATE SET
			title = excluded.title,
			content_hash = excluded.content_hash,
			updated_at = CURRENT_TIMESTAMP
	`, projectName, filePath, title, contentHash)
	if err != nil {
		return 0, &lerrors.PostgresError{Op: "upsert_document", Err: err}
	}
	var id int64
	row := s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE project_name = ? AND file_path = ?`, projectName, filePath)
	if err := row.Scan(&id); err != nil {
		return 0, &lerrors.PostgresError{Op: "upsert_document_id", Err: err}
	}
	return id, nil
}

// DocumentByPath looks up a document by its (project_name, file_path) key.
func (s *Store) DocumentByPath(ctx context.Context, projectName, filePath string) (int64, string, bool, error) {
	var id int64
	var hash string
	row := s.db.QueryRowContext(ctx, `SELECT id, content_hash FROM documents WHERE project_name = ? AND file_path = ?`, projectName, filePath)
	err := row.Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, &lerrors.PostgresError{Op: "document_by_path", Err: err}
	}
	return id, hash, true, nil
}

// DocumentSummary is one row of the documents table, for `docs list`.
type DocumentSummary struct {
	ID          int64
	FilePath    string
	Title       string
	ContentHash string
	UpdatedAt   time.Time
}

// ListDocuments returns every document indexed for projectName, ordered
// by file path.
func (s *Store) ListDocuments(ctx context.Context, projectName string) ([]DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path, title, content_hash, updated_at FROM documents WHERE project_name = ? ORDER BY file_path`,
		projectName)
	if err != nil {
		return nil, &lerrors.PostgresError{Op: "list_documents", Err: err}
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		var title sql.NullString
		if err := rows.Scan(&d.ID, &d.FilePath, &title, &d.ContentHash, &d.UpdatedAt); err != nil {
			return nil, &lerrors.PostgresError{Op: "scan_document", Err: err}
		}
		d.Title = title.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListDriftAnalyses returns projectName's drift_analyses rows, newest
// first, optionally restricted to rows where drift_detected is true.
func (s *Store) ListDriftAnalyses(ctx context.Context, projectName string, onlyDrifted bool) ([]model.DriftAnalysis, error) {
	query := `
		SELECT a.chunk_id, a.doc_path, a.entity_qn, a.trigger, a.drift_detected, a.drift_severity,
		       a.drift_score, a.issues, a.explanation, a.doc_excerpt, a.code_excerpt,
		       a.doc_version_hash, a.code_version_hash, a.analyzed_at
		FROM drift_analyses a
		JOIN document_chunks c ON c.id = a.chunk_id
		WHERE c.project_name = ?`
	if onlyDrifted {
		query += ` AND a.drift_detected = 1`
	}
	query += ` ORDER BY a.analyzed_at DESC`

	rows, err := s.db.QueryContext(ctx, query, projectName)
	if err != nil {
		return nil, &lerrors.PostgresError{Op: "list_drift_analyses", Err: err}
	}
	defer rows.Close()

	var out []model.DriftAnalysis
	for rows.Next() {
		var a model.DriftAnalysis
		var severity string
		var issues string
		var analyzedAt time.Time
		if err := rows.Scan(&a.ChunkID, &a.DocPath, &a.EntityQN, &a.Trigger, &a.DriftDetected, &severity,
			&a.DriftScore, &issues, &a.Explanation, &a.DocExcerpt, &a.CodeExcerpt,
			&a.DocVersionHash, &a.CodeVersionHash, &analyzedAt); err != nil {
			return nil, &lerrors.PostgresError{Op: "scan_drift_analysis", Err: err}
		}
		a.DriftSeverity = model.DriftSeverity(severity)
		a.AnalyzedAt = analyzedAt.Format(time.RFC3339)
		_ = json.Unmarshal([]byte(issues), &a.Issues)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReplaceDocumentChunks deletes every existing chunk for documentID and
// inserts the supplied set, matching the document pipeline's "delete old
// chunks; insert new chunks" upsert contract.
func (s *Store) ReplaceDocumentChunks(ctx context.Context, documentID int64, projectName string, chunks []model.DocumentChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &lerrors.PostgresError{Op: "begin_tx", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?`, documentID); err != nil {
		return &lerrors.PostgresError{Op: "delete_chunks", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks
			(id, document_id, project_name, content, heading_path, heading_level,
			 start_line, end_line, content_hash, explicit_references, drift_status, drift_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &lerrors.PostgresError{Op: "prepare_insert_chunk", Err: err}
	}
	defer stmt.Close()

	for _, c := range chunks {
		headingPath, _ := json.Marshal(c.HeadingPath)
		refs, _ := json.Marshal(c.ExplicitReferences)
		status := c.DriftStatus
		if status == "" {
			status = model.DriftUnknown
		}
		if _, err := stmt.ExecContext(ctx, c.ID, documentID, projectName, c.Content,
			string(headingPath), c.HeadingLevel, c.StartLine, c.EndLine, c.ContentHash,
			string(refs), string(status), c.DriftScore); err != nil {
			return &lerrors.PostgresError{Op: "insert_chunk", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &lerrors.PostgresError{Op: "commit", Err: err}
	}
	return nil
}

// ChunksByDocument returns every chunk belonging to documentID, ordered
// by start line.
func (s *Store) ChunksByDocument(ctx context.Context, documentID int64) ([]model.DocumentChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, heading_path, heading_level, start_line, end_line,
		       content_hash, explicit_references, drift_status, drift_score
		FROM document_chunks WHERE document_id = ? ORDER BY start_line
	`, documentID)
	if err != nil {
		return nil, &lerrors.PostgresError{Op: "chunks_by_document", Err: err}
	}
	defer rows.Close()

	var out []model.DocumentChunk
	for rows.Next() {
		var c model.DocumentChunk
		var headingPath, refs string
		var score sql.NullFloat64
		var status string
		if err := rows.Scan(&c.ID, &c.Content, &headingPath, &c.HeadingLevel, &c.StartLine, &c.EndLine,
			&c.ContentHash, &refs, &status, &score); err != nil {
			return nil, &lerrors.PostgresError{Op: "scan_chunk", Err: err}
		}
		_ = json.Unmarshal([]byte(headingPath), &c.HeadingPath)
		_ = json.Unmarshal([]byte(refs), &c.ExplicitReferences)
		c.DriftStatus = model.DriftStatus(status)
		if score.Valid {
			v := score.Float64
			c.DriftScore = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertDocumentLink inserts or updates a (chunk_id, entity_qn) link,
// keeping the higher confidence on conflict per the document pipeline's
// "duplicates keyed by entity QN keep the highest confidence" rule.
func (s *Store) UpsertDocumentLink(ctx context.Context, l model.DocumentLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_links
			(chunk_id, entity_qn, entity_kind, file_path, link_type, confidence,
			 line_range_start, line_range_end, code_version_hash, reasoning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, entity_qn) DO UPDATE SET
			entity_kind = excluded.entity_kind,
			file_path = excluded.file_path,
			link_type = excluded.link_type,
			confidence = excluded.confidence,
			line_range_start = excluded.line_range_start,
			line_range_end = excluded.line_range_end,
			code_version_hash = excluded.code_version_hash,
			reasoning = excluded.reasoning
		WHERE excluded.confidence > document_links.confidence
	`, l.ChunkID, l.EntityQN, l.EntityKind, l.FilePath, string(l.LinkType), l.Confidence,
		l.LineRangeStart, l.LineRangeEnd, l.CodeVersionHash, l.Reasoning)
	if err != nil {
		return &lerrors.PostgresError{Op: "upsert_document_link", Err: err}
	}
	return nil
}

// LinksByChunk returns every link recorded for chunkID.
func (s *Store) LinksByChunk(ctx context.Context, chunkID string) ([]model.DocumentLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, entity_qn, entity_kind, file_path, link_type, confidence,
		       line_range_start, line_range_end, code_version_hash, reasoning
		FROM document_links WHERE chunk_id = ? ORDER BY confidence DESC
	`, chunkID)
	if err != nil {
		return nil, &lerrors.PostgresError{Op: "links_by_chunk", Err: err}
	}
	defer rows.Close()

	var out []model.DocumentLink
	for rows.Next() {
		var l model.DocumentLink
		var lineStart, lineEnd sql.NullInt64
		var linkType string
		if err := rows.Scan(&l.ChunkID, &l.EntityQN, &l.EntityKind, &l.FilePath, &linkType, &l.Confidence,
			&lineStart, &lineEnd, &l.CodeVersionHash, &l.Reasoning); err != nil {
			return nil, &lerrors.PostgresError{Op: "scan_link", Err: err}
		}
		l.LinkType = model.LinkType(linkType)
		if lineStart.Valid {
			v := int(lineStart.Int64)
			l.LineRangeStart = &v
		}
		if lineEnd.Valid {
			v := int(lineEnd.Int64)
			l.LineRangeEnd = &v
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpsertDriftAnalysis inserts or updates a (chunk_id, entity_qn) drift
// analysis, keeping the higher drift_score per §4.12's dedup rule, and
// reflects the retained status/score onto the owning chunk.
func (s *Store) UpsertDriftAnalysis(ctx context.Context, a model.DriftAnalysis) error {
	issues, _ := json.Marshal(a.Issues)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drift_analyses
			(chunk_id, doc_path, entity_qn, trigger, drift_detected, drift_severity, drift_score,
			 issues, explanation, doc_excerpt, code_excerpt, doc_version_hash, code_version_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, entity_qn) DO UPDATE SET
			trigger = excluded.trigger,
			drift_detected = excluded.drift_detected,
			drift_severity = excluded.drift_severity,
			drift_score = excluded.drift_score,
			issues = excluded.issues,
			explanation = excluded.explanation,
			doc_excerpt = excluded.doc_excerpt,
			code_excerpt = excluded.code_excerpt,
			doc_version_hash = excluded.doc_version_hash,
			code_version_hash = excluded.code_version_hash,
			analyzed_at = CURRENT_TIMESTAMP
		WHERE excluded.drift_score >= drift_analyses.drift_score
	`, a.ChunkID, a.DocPath, a.EntityQN, a.Trigger, a.DriftDetected, string(a.DriftSeverity), a.DriftScore,
		string(issues), a.Explanation, a.DocExcerpt, a.CodeExcerpt, a.DocVersionHash, a.CodeVersionHash)
	if err != nil {
		return &lerrors.PostgresError{Op: "upsert_drift_analysis", Err: err}
	}
	return s.refreshChunkDriftStatus(ctx, a.ChunkID)
}

// refreshChunkDriftStatus sets document_chunks.drift_status/score to the
// maximum drift_score recorded across that chunk's analyses.
func (s *Store) refreshChunkDriftStatus(ctx context.Context, chunkID string) error {
	var maxScore sql.NullFloat64
	var severity sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT drift_score, drift_severity FROM drift_analyses
		WHERE chunk_id = ? ORDER BY drift_score DESC LIMIT 1
	`, chunkID)
	if err := row.Scan(&maxScore, &severity); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return &lerrors.PostgresError{Op: "max_drift_score", Err: err}
	}
	status := severityToStatus(model.DriftSeverity(severity.String))
	_, err := s.db.ExecContext(ctx, `UPDATE document_chunks SET drift_status = ?, drift_score = ? WHERE id = ?`,
		string(status), maxScore.Float64, chunkID)
	if err != nil {
		return &lerrors.PostgresError{Op: "update_chunk_drift_status", Err: err}
	}
	return nil
}

func severityToStatus(sev model.DriftSeverity) model.DriftStatus {
	switch sev {
	case model.SeverityNone:
		return model.DriftAligned
	case model.SeverityMinor:
		return model.DriftMinor
	case model.SeverityMajor:
		return model.DriftMajor
	default:
		return model.DriftUnknown
	}
}

// UpsertProjectMetadata records a project's root path and indexing
// timestamp, merging metadata (an arbitrary JSON-able map) into the
// existing row.
func (s *Store) UpsertProjectMetadata(ctx context.Context, projectName, rootPath string, metadata map[string]any) error {
	blob, err := json.Marshal(metadata)
	if err != nil {
		return &lerrors.PostgresError{Op: "marshal_metadata", Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO project_metadata (project_name, root_path, metadata, last_indexed_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(project_name) DO UPDATE SET
			root_path = excluded.root_path,
			metadata = excluded.metadata,
			last_indexed_at = CURRENT_TIMESTAMP
	`, projectName, rootPath, string(blob))
	if err != nil {
		return &lerrors.PostgresError{Op: "upsert_project_metadata", Err: err}
	}
	return nil
}

// ProjectMetadata is the persisted row for one project.
type ProjectMetadata struct {
	ProjectName   string
	RootPath      string
	Metadata      map[string]any
	LastIndexedAt time.Time
}

// GetProjectMetadata returns the stored row for projectName, if any.
func (s *Store) GetProjectMetadata(ctx context.Context, projectName string) (*ProjectMetadata, error) {
	var pm ProjectMetadata
	var blob string
	var lastIndexed sql.NullTime
	row := s.db.QueryRowContext(ctx, `SELECT root_path, metadata, last_indexed_at FROM project_metadata WHERE project_name = ?`, projectName)
	if err := row.Scan(&pm.RootPath, &blob, &lastIndexed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &lerrors.PostgresError{Op: "get_project_metadata", Err: err}
	}
	pm.ProjectName = projectName
	if lastIndexed.Valid {
		pm.LastIndexedAt = lastIndexed.Time
	}
	_ = json.Unmarshal([]byte(blob), &pm.Metadata)
	return &pm, nil
}

// ListProjects returns every project_metadata row, ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]ProjectMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_name, root_path, metadata, last_indexed_at FROM project_metadata ORDER BY project_name`)
	if err != nil {
		return nil, &lerrors.PostgresError{Op: "list_projects", Err: err}
	}
	defer rows.Close()

	var out []ProjectMetadata
	for rows.Next() {
		var pm ProjectMetadata
		var blob string
		var lastIndexed sql.NullTime
		if err := rows.Scan(&pm.ProjectName, &pm.RootPath, &blob, &lastIndexed); err != nil {
			return nil, &lerrors.PostgresError{Op: "scan_project", Err: err}
		}
		if lastIndexed.Valid {
			pm.LastIndexedAt = lastIndexed.Time
		}
		_ = json.Unmarshal([]byte(blob), &pm.Metadata)
		out = append(out, pm)
	}
	return out, rows.Err()
}

// DeleteProject removes every relational row associated with
// projectName: documents (cascading to chunks), and the project_metadata
// row. document_links reference chunk_id, not project_name directly, so
// they are removed via the chunk cascade.
func (s *Store) DeleteProject(ctx context.Context, projectName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &lerrors.PostgresError{Op: "begin_tx", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM drift_analyses WHERE chunk_id IN (SELECT id FROM document_chunks WHERE project_name = ?)`, projectName); err != nil {
		return &lerrors.PostgresError{Op: "delete_drift_analyses", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE project_name = ?`, projectName); err != nil {
		return &lerrors.PostgresError{Op: "delete_documents", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_metadata WHERE project_name = ?`, projectName); err != nil {
		return &lerrors.PostgresError{Op: "delete_project_metadata", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata_generation_log WHERE project_name = ?`, projectName); err != nil {
		return &lerrors.PostgresError{Op: "delete_metadata_log", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &lerrors.PostgresError{Op: "commit", Err: err}
	}
	return nil
}

// LogMetadataGeneration appends one row to metadata_generation_log,
// recording a stage's outcome for later audit (`metadata show`).
func (s *Store) LogMetadataGeneration(ctx context.Context, projectName, stage, status, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata_generation_log (project_name, stage, status, detail) VALUES (?, ?, ?, ?)
	`, projectName, stage, status, detail)
	if err != nil {
		return &lerrors.PostgresError{Op: "log_metadata_generation", Err: err}
	}
	return nil
}

// MetadataGenerationEntry is one row of the metadata generation log.
type MetadataGenerationEntry struct {
	Stage     string
	Status    string
	Detail    string
	CreatedAt time.Time
}

// MetadataGenerationLog returns projectName's log entries, newest first.
func (s *Store) MetadataGenerationLog(ctx context.Context, projectName string) ([]MetadataGenerationEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, status, detail, created_at FROM metadata_generation_log
		WHERE project_name = ? ORDER BY created_at DESC, id DESC
	`, projectName)
	if err != nil {
		return nil, &lerrors.PostgresError{Op: "metadata_generation_log", Err: err}
	}
	defer rows.Close()

	var out []MetadataGenerationEntry
	for rows.Next() {
		var e MetadataGenerationEntry
		if err := rows.Scan(&e.Stage, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, &lerrors.PostgresError{Op: "scan_metadata_log", Err: err}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
