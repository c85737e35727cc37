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

package vector

import (
	"fmt"
	"strings"

	"github.com/kraklabs/lattice/pkg/model"
	"github.com/kraklabs/lattice/pkg/tokenize"
)

// ChunkEntity formats one entity's content (signature + docstring +
// body), counts tokens with the fixed BPE encoder, and emits one chunk if
// it fits within maxTokens, or splits line-wise into overlapping
// sub-chunks named entity_qn_part2, _part3, … otherwise.
func ChunkEntity(e *model.CodeEntity, fi model.FileInfo, project string, maxTokens, overlapTokens int) []model.Chunk {
	content := formatEntityContent(e)
	if tokenize.Count(content) <= maxTokens {
		return []model.Chunk{newChunk(content, e, fi, project)}
	}
	return splitLineWise(content, e, fi, project, maxTokens, overlapTokens)
}

// ChunkWholeFile produces a single whole-file chunk for files with no
// extracted entities.
func ChunkWholeFile(content string, fi model.FileInfo, project string) model.Chunk {
	return model.Chunk{
		Content:     content,
		FilePath:    fi.RelativePath,
		EntityType:  "file",
		EntityName:  fi.RelativePath,
		Language:    fi.Language,
		StartLine:   1,
		EndLine:     fi.LineCount,
		GraphNodeID: "",
		ContentHash: model.HashContent([]byte(content)),
		ProjectName: project,
	}
}

func formatEntityContent(e *model.CodeEntity) string {
	var b strings.Builder
	if e.Signature != "" {
		b.WriteString(e.Signature)
		b.WriteString("\n")
	}
	if e.Docstring != "" {
		b.WriteString(e.Docstring)
		b.WriteString("\n")
	}
	b.WriteString(e.Code)
	return b.String()
}

func newChunk(content string, e *model.CodeEntity, fi model.FileInfo, project string) model.Chunk {
	return model.Chunk{
		Content:     content,
		FilePath:    fi.RelativePath,
		EntityType:  string(e.Kind),
		EntityName:  e.Name,
		Language:    fi.Language,
		StartLine:   e.StartLine,
		EndLine:     e.EndLine,
		GraphNodeID: e.QualifiedName,
		ContentHash: model.HashContent([]byte(content)),
		ProjectName: project,
	}
}

// splitLineWise breaks content into line groups under maxTokens, each
// carrying overlapTokens worth of trailing lines from the previous group.
func splitLineWise(content string, e *model.CodeEntity, fi model.FileInfo, project string, maxTokens, overlapTokens int) []model.Chunk {
	lines := strings.Split(content, "\n")
	var chunks []model.Chunk
	part := 2
	startLine := e.StartLine

	var current []string
	currentTokens := 0
	flush := func() {
		if len(current) == 0 {
			return
		}
		body := strings.Join(current, "\n")
		name := e.QualifiedName
		if len(chunks) > 0 {
			name = fmt.Sprintf("%s_part%d", e.QualifiedName, part)
			part++
		}
		chunks = append(chunks, model.Chunk{
			Content:     body,
			FilePath:    fi.RelativePath,
			EntityType:  string(e.Kind),
			EntityName:  e.Name,
			Language:    fi.Language,
			StartLine:   startLine,
			EndLine:     startLine + len(current) - 1,
			GraphNodeID: name,
			ContentHash: model.HashContent([]byte(body)),
			ProjectName: project,
		})
	}

	for i, line := range lines {
		lineTokens := tokenize.Count(line)
		if currentTokens+lineTokens > maxTokens && len(current) > 0 {
			flush()
			overlap := carryOverlap(current, overlapTokens)
			startLine = startLine + len(current) - len(overlap)
			current = append([]string(nil), overlap...)
			currentTokens = tokenize.Count(strings.Join(current, "\n"))
		}
		current = append(current, line)
		currentTokens += lineTokens
		_ = i
	}
	flush()
	return chunks
}

// carryOverlap returns the trailing lines of current whose combined
// token count is <= overlapTokens.
func carryOverlap(current []string, overlapTokens int) []string {
	if overlapTokens <= 0 {
		return nil
	}
	total := 0
	start := len(current)
	for start > 0 {
		t := tokenize.Count(current[start-1])
		if total+t > overlapTokens {
			break
		}
		total += t
		start--
	}
	return current[start:]
}
