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

// Package model holds the data types shared across the indexing pipeline:
// scanned files, parsed entities, import records, graph-adjacent chunks,
// and document/drift records. Nothing in this package performs I/O.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Language identifies the programming language of a source file.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJSX        Language = "jsx"
	LangTSX        Language = "tsx"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangGo         Language = "go"
	LangCPP        Language = "cpp"
)

// ExtensionLanguages maps supported source extensions to their language.
// Matches the extension set enumerated in the external-interfaces filesystem
// contract.
var ExtensionLanguages = map[string]Language{
	".py":  LangPython,
	".js":  LangJavaScript,
	".mjs": LangJavaScript,
	".cjs": LangJavaScript,
	".jsx": LangJSX,
	".ts":  LangTypeScript,
	".mts": LangTypeScript,
	".cts": LangTypeScript,
	".tsx": LangTSX,
	".rs":  LangRust,
	".java": LangJava,
	".go":  LangGo,
	".cpp": LangCPP,
	".cc":  LangCPP,
	".cxx": LangCPP,
	".hpp": LangCPP,
	".h":   LangCPP,
	".hxx": LangCPP,
}

// FileInfo describes one scanned source file. Immutable once created.
type FileInfo struct {
	AbsolutePath string
	RelativePath string
	Language     Language
	ContentHash  string // sha256 hex of file bytes
	SizeBytes    int64
	LineCount    int
}

// HashContent computes the content_hash field: SHA-256 hex of raw bytes.
func HashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// EntityKind discriminates CodeEntity variants.
type EntityKind string

const (
	KindClass    EntityKind = "class"
	KindFunction EntityKind = "function"
	KindMethod   EntityKind = "method"
)

// CodeEntity is the discriminated union described by the data model: a
// class, function, or method extracted from a parsed file. Classes nest
// their methods (and nested classes) under Children; functions/methods
// additionally carry the raw call-site strings found in their body.
type CodeEntity struct {
	Kind          EntityKind
	Name          string
	QualifiedName string
	Signature     string
	Docstring     string
	Code          string
	StartLine     int // 1-based, inclusive
	EndLine       int // 1-based, inclusive
	FilePath      string

	// class-only
	BaseClasses []string
	Children    []*CodeEntity

	// function/method
	IsAsync bool
	Calls   []string // deduplicated, in source order

	// method-only
	ParentClassQN string
	IsStatic      bool
	IsClassMethod bool
}

// ImportRecord describes one import statement.
type ImportRecord struct {
	Name        string
	Alias       string
	SourceModule string
	IsExternal  bool
	LineNumber  int
}

// ParsedFile is the output of the parser stage for one file.
type ParsedFile struct {
	FileInfo FileInfo
	Entities []*CodeEntity
	Imports  []ImportRecord
	RawTree  any // opaque tree-sitter root, retained for AST cache reuse
}

// ModuleQN derives a module-level qualified name from a project name and a
// file's relative path, stripping a trailing __init__ module segment and
// the file extension, and converting path separators to dots.
func ModuleQN(project, relativePath string) string {
	p := relativePath
	if idx := strings.LastIndex(p, "."); idx >= 0 {
		p = p[:idx]
	}
	p = strings.ReplaceAll(p, "\\", "/")
	segs := strings.Split(p, "/")
	if len(segs) > 0 && (segs[len(segs)-1] == "__init__" || segs[len(segs)-1] == "index") {
		segs = segs[:len(segs)-1]
	}
	dotted := strings.Join(segs, ".")
	if dotted == "" {
		return project
	}
	return project + "." + dotted
}

// EntityQN derives an entity's qualified name from its enclosing module or
// class QN and its local name.
func EntityQN(parentQN, localName string) string {
	if parentQN == "" {
		return localName
	}
	return parentQN + "." + localName
}

// Chunk is a code chunk prepared for vector indexing.
type Chunk struct {
	Content      string
	FilePath     string
	EntityType   string
	EntityName   string
	Language     Language
	StartLine    int
	EndLine      int
	GraphNodeID  string // QN
	ContentHash  string
	ProjectName  string
}

// DriftStatus enumerates the aggregate drift state of a document chunk.
type DriftStatus string

const (
	DriftAligned DriftStatus = "aligned"
	DriftMinor   DriftStatus = "minor_drift"
	DriftMajor   DriftStatus = "major_drift"
	DriftUnknown DriftStatus = "unknown"
)

// DocumentChunk is one heading-delimited (and possibly sub-split) slice of
// a Markdown document.
type DocumentChunk struct {
	ID                 string
	DocumentID         string
	ProjectName        string
	Content            string
	HeadingPath        []string
	HeadingLevel       int
	StartLine          int
	EndLine            int
	ContentHash        string
	ExplicitReferences []string
	DriftStatus        DriftStatus
	DriftScore         *float64
}

// LinkType enumerates how a DocumentLink was discovered.
type LinkType string

const (
	LinkExplicit LinkType = "explicit"
	LinkImplicit LinkType = "implicit"
)

// DocumentLink connects a DocumentChunk to a code entity it documents.
type DocumentLink struct {
	ChunkID         string
	EntityQN        string
	EntityKind      string
	FilePath        string
	LinkType        LinkType
	Confidence      float64
	LineRangeStart  *int
	LineRangeEnd    *int
	CodeVersionHash string
	Reasoning       string
}

// DriftSeverity mirrors the LLM drift-check response vocabulary.
type DriftSeverity string

const (
	SeverityNone  DriftSeverity = "none"
	SeverityMinor DriftSeverity = "minor"
	SeverityMajor DriftSeverity = "major"
)

// DriftAnalysis is the persisted result of comparing a doc chunk against
// the code it references.
type DriftAnalysis struct {
	ChunkID         string
	DocPath         string
	EntityQN        string
	Trigger         string
	DriftDetected   bool
	DriftSeverity   DriftSeverity
	DriftScore      float64
	Issues          []DriftIssue
	Explanation     string
	DocExcerpt      string
	CodeExcerpt     string
	DocVersionHash  string
	CodeVersionHash string
	AnalyzedAt      string
}

// DriftIssue is one itemized disagreement surfaced by the drift LLM call.
type DriftIssue struct {
	Description string `json:"description"`
	DocQuote    string `json:"doc_quote"`
	CodeQuote   string `json:"code_quote"`
}
