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
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/philippgille/chromem-go"
	"golang.org/x/sync/semaphore"

	"github.com/kraklabs/lattice/pkg/llm"
	"github.com/kraklabs/lattice/pkg/model"
)

const (
	candidateLimit       = 20
	entityListLimit      = 15
	contentPreviewLength = 300
	queryPreviewLength   = 200
)

// VectorSearcher is the subset of pkg/vector.Store the link finder needs;
// satisfied directly by *vector.Store.
type VectorSearcher interface {
	Query(ctx context.Context, collectionName, queryText string, topK int, where map[string]string) ([]chromem.Result, error)
}

// candidate is one nearest-neighbor search hit, deduped by entity.
type candidate struct {
	entityQN    string
	entityType  string
	filePath    string
	content     string
	graphNodeID string
}

// LinkFinder embeds a document chunk, searches the project's code-chunk
// collection for nearest-neighbor entities, and asks the LLM which of
// those candidates the chunk actually documents.
type LinkFinder struct {
	searcher VectorSearcher
	provider llm.Provider
	sem      *semaphore.Weighted
	retry    llm.RetryConfig
	logger   *slog.Logger
}

// NewLinkFinder builds a LinkFinder. logger may be nil.
func NewLinkFinder(searcher VectorSearcher, provider llm.Provider, sem *semaphore.Weighted, logger *slog.Logger) *LinkFinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkFinder{searcher: searcher, provider: provider, sem: sem, retry: llm.DefaultRetryConfig(), logger: logger}
}

// FindLinks searches codeCollection (scoped to projectName) for entities
// related to chunk, asks the LLM to judge relevance, and returns implicit
// DocumentLinks for every candidate the LLM both names and that is
// present in the candidate set.
func (f *LinkFinder) FindLinks(ctx context.Context, codeCollection, projectName string, chunk model.DocumentChunk) ([]model.DocumentLink, error) {
	results, err := f.searcher.Query(ctx, codeCollection, chunk.Content, candidateLimit, map[string]string{"project_name": projectName})
	if err != nil {
		return nil, err
	}
	candidates := dedupCandidates(results)
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) > entityListLimit {
		candidates = candidates[:entityListLimit]
	}

	prompt := renderLinkFinderPrompt(chunk, candidates)
	raw, err := f.complete(ctx, prompt)
	if err != nil || raw == "" {
		return nil, err
	}

	verdicts := parseLinkVerdicts(raw)
	known := make(map[string]candidate, len(candidates))
	for _, c := range candidates {
		known[c.entityQN] = c
	}

	var links []model.DocumentLink
	for _, v := range verdicts {
		c, ok := known[v.EntityQualifiedName]
		if !ok {
			continue
		}
		links = append(links, model.DocumentLink{
			ChunkID:    chunk.ID,
			EntityQN:   c.entityQN,
			EntityKind: c.entityType,
			FilePath:   c.filePath,
			LinkType:   model.LinkImplicit,
			Confidence: relevanceToConfidence(v.Relevance),
			Reasoning:  v.Reasoning,
		})
	}
	return links, nil
}

func dedupCandidates(results []chromem.Result) []candidate {
	seen := make(map[string]bool)
	var out []candidate
	for _, r := range results {
		entity := r.Metadata["entity_name"]
		if entity == "" {
			continue
		}
		key := r.Metadata["graph_node_id"]
		if key == "" {
			key = entity
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, candidate{
			entityQN:    entity,
			entityType:  r.Metadata["entity_type"],
			filePath:    r.Metadata["file_path"],
			content:     r.Content,
			graphNodeID: r.Metadata["graph_node_id"],
		})
	}
	return out
}

func (f *LinkFinder) complete(ctx context.Context, prompt string) (string, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return "", nil
	}
	defer f.sem.Release(1)

	req := llm.ChatRequest{
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: 1500,
	}
	resp, err := llm.ChatWithRetry(ctx, f.provider, req, f.retry, f.logger)
	if err != nil {
		f.logger.Warn("link finder LLM call failed permanently", "error", err)
		return "", nil
	}
	return resp.Message.Content, nil
}

func renderLinkFinderPrompt(chunk model.DocumentChunk, candidates []candidate) string {
	var b strings.Builder
	b.WriteString("You link documentation to the code entities it describes.\n\n")
	if len(chunk.HeadingPath) > 0 {
		b.WriteString("Section: ")
		b.WriteString(strings.Join(chunk.HeadingPath, " > "))
		b.WriteString("\n\n")
	}
	b.WriteString("Documentation text:\n")
	b.WriteString(truncate(chunk.Content, 2000))
	b.WriteString("\n\nCandidate code entities:\n")
	for i, c := range candidates {
		preview := truncate(c.content, contentPreviewLength)
		b.WriteString(strings.Repeat("-", 1))
		b.WriteString(" ")
		b.WriteString(c.entityQN)
		if c.entityType != "" {
			b.WriteString(" (")
			b.WriteString(c.entityType)
			b.WriteString(")")
		}
		b.WriteString("\n  ")
		b.WriteString(preview)
		b.WriteString("\n")
		if i+1 >= entityListLimit {
			break
		}
	}
	b.WriteString("\nFor every candidate the documentation text actually describes, respond with a JSON array ")
	b.WriteString("of objects: [{\"entity_qualified_name\": string, \"entity_type\": string, \"relevance\": \"high\"|\"medium\"|\"low\", \"reasoning\": string}]. ")
	b.WriteString("Only use entity_qualified_name values from the candidate list above. Respond with [] if none apply.")
	return b.String()
}

type linkVerdict struct {
	EntityQualifiedName string `json:"entity_qualified_name"`
	EntityType          string `json:"entity_type"`
	Relevance           string `json:"relevance"`
	Reasoning           string `json:"reasoning"`
}

func parseLinkVerdicts(raw string) []linkVerdict {
	cleaned := stripFence(raw)
	var verdicts []linkVerdict
	if err := json.Unmarshal([]byte(cleaned), &verdicts); err != nil {
		return nil
	}
	return verdicts
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func relevanceToConfidence(relevance string) float64 {
	switch strings.ToLower(relevance) {
	case "high":
		return 0.90
	case "medium":
		return 0.70
	case "low":
		return 0.50
	default:
		return 0.50
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
