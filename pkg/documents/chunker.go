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

package documents

import (
	"bytes"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kraklabs/lattice/pkg/model"
	"github.com/kraklabs/lattice/pkg/tokenize"
)

// ExtractTitle returns the text of the first level-1 heading found in the
// first 20 lines of content, or "" if none.
func ExtractTitle(content string) string {
	lines := strings.Split(content, "\n")
	limit := 20
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		}
		if trimmed == "#" {
			return ""
		}
	}
	return ""
}

type headingMark struct {
	level int
	line  int // 1-based
	text  string
}

// headingMarks parses source with goldmark and returns every heading's
// level, line number, and title text, in document order. Using an actual
// Markdown parser (rather than a "^#" line regex) keeps '#' characters
// inside fenced code blocks from being mistaken for headings.
func headingMarks(source []byte) []headingMark {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var marks []headingMark
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		offset := 0
		if h.Lines().Len() > 0 {
			offset = h.Lines().At(0).Start
		}
		line := 1 + bytes.Count(source[:offset], []byte("\n"))
		marks = append(marks, headingMark{level: h.Level, line: line, text: headingNodeText(h, source)})
		return ast.WalkSkipChildren, nil
	})
	return marks
}

func headingNodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		if t, ok := n.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		walk(c)
	}
	return strings.TrimSpace(buf.String())
}

// section is one heading-delimited slice of the document prior to
// token-budget sub-splitting.
type section struct {
	headingPath []string
	level       int
	startLine   int // 1-based, inclusive
	endLine     int // 1-based, inclusive
}

// Chunker splits Markdown content by heading (levels 1-6), then
// sub-splits any section exceeding MaxTokens into overlapping line-wise
// pieces that keep the same heading_path.
type Chunker struct {
	MaxTokens     int
	OverlapTokens int
}

// NewChunker creates a Chunker with the indexing config's chunk size.
func NewChunker(maxTokens, overlapTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	if overlapTokens < 0 {
		overlapTokens = 100
	}
	return &Chunker{MaxTokens: maxTokens, OverlapTokens: overlapTokens}
}

// Chunk splits content into DocumentChunks for documentID/projectName.
// Every returned chunk has a freshly generated ID and DriftStatus set to
// model.DriftUnknown.
func (c *Chunker) Chunk(content, documentID, projectName string) []model.DocumentChunk {
	lines := strings.Split(content, "\n")
	sections := c.sections(content, len(lines))

	var out []model.DocumentChunk
	for _, sec := range sections {
		body := strings.Join(lines[sec.startLine-1:sec.endLine], "\n")
		if tokenize.Count(body) <= c.MaxTokens {
			out = append(out, c.newChunk(body, documentID, projectName, sec.headingPath, sec.level, sec.startLine, sec.endLine))
			continue
		}
		out = append(out, c.splitSection(body, documentID, projectName, sec)...)
	}
	if len(out) == 0 {
		out = append(out, c.newChunk(content, documentID, projectName, nil, 0, 1, len(lines)))
	}
	return out
}

// sections delimits content by heading boundaries, tracking the stack of
// enclosing headings (heading_path) for each section.
func (c *Chunker) sections(content string, lineCount int) []section {
	marks := headingMarks([]byte(content))
	if len(marks) == 0 {
		return []section{{startLine: 1, endLine: lineCount}}
	}

	var sections []section
	var stack []headingMark
	for i, m := range marks {
		for len(stack) > 0 && stack[len(stack)-1].level >= m.level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, m)

		end := lineCount
		if i+1 < len(marks) {
			end = marks[i+1].line - 1
		}
		path := make([]string, len(stack))
		for j, s := range stack {
			path[j] = s.text
		}
		sections = append(sections, section{headingPath: path, level: m.level, startLine: m.line, endLine: end})
	}

	if marks[0].line > 1 {
		sections = append([]section{{startLine: 1, endLine: marks[0].line - 1}}, sections...)
	}
	return sections
}

// splitSection sub-splits a too-long section line-wise, carrying
// OverlapTokens worth of trailing lines into the next piece, keeping the
// same heading_path on every piece.
func (c *Chunker) splitSection(body, documentID, projectName string, sec section) []model.DocumentChunk {
	lines := strings.Split(body, "\n")
	var out []model.DocumentChunk

	var current []string
	currentTokens := 0
	lineOffset := sec.startLine

	flush := func(consumed int) {
		if len(current) == 0 {
			return
		}
		piece := strings.Join(current, "\n")
		out = append(out, c.newChunk(piece, documentID, projectName, sec.headingPath, sec.level, lineOffset, lineOffset+len(current)-1))
	}

	for _, line := range lines {
		lineTokens := tokenize.Count(line)
		if currentTokens+lineTokens > c.MaxTokens && len(current) > 0 {
			flush(len(current))
			overlap := carryOverlap(current, c.OverlapTokens)
			lineOffset += len(current) - len(overlap)
			current = append([]string(nil), overlap...)
			currentTokens = tokenize.Count(strings.Join(current, "\n"))
		}
		current = append(current, line)
		currentTokens += lineTokens
	}
	flush(len(current))
	return out
}

func carryOverlap(lines []string, overlapTokens int) []string {
	if overlapTokens <= 0 {
		return nil
	}
	total := 0
	start := len(lines)
	for start > 0 {
		t := tokenize.Count(lines[start-1])
		if total+t > overlapTokens {
			break
		}
		total += t
		start--
	}
	return lines[start:]
}

func (c *Chunker) newChunk(content, documentID, projectName string, headingPath []string, level, startLine, endLine int) model.DocumentChunk {
	return model.DocumentChunk{
		ID:           uuid.NewString(),
		DocumentID:   documentID,
		ProjectName:  projectName,
		Content:      content,
		HeadingPath:  headingPath,
		HeadingLevel: level,
		StartLine:    startLine,
		EndLine:      endLine,
		ContentHash:  model.HashContent([]byte(content)),
		DriftStatus:  model.DriftUnknown,
	}
}
