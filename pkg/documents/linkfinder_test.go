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
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/kraklabs/lattice/pkg/llm"
	"github.com/kraklabs/lattice/pkg/model"
)

type stubSearcher struct {
	results []chromem.Result
}

func (s *stubSearcher) Query(ctx context.Context, collectionName, queryText string, topK int, where map[string]string) ([]chromem.Result, error) {
	return s.results, nil
}

type stubChatProvider struct {
	content string
}

func (p *stubChatProvider) Name() string { return "stub" }
func (p *stubChatProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: p.content}}, nil
}

func sampleResults() []chromem.Result {
	return []chromem.Result{
		{
			ID:      "p1",
			Content: "class TokenManager: issues and rotates auth tokens.",
			Metadata: map[string]string{
				"entity_name":   "proj.auth.TokenManager",
				"entity_type":   "class",
				"file_path":     "auth/token.py",
				"graph_node_id": "n1",
			},
		},
		{
			ID:      "p2",
			Content: "duplicate entry for the same graph node",
			Metadata: map[string]string{
				"entity_name":   "proj.auth.TokenManager",
				"entity_type":   "class",
				"file_path":     "auth/token.py",
				"graph_node_id": "n1",
			},
		},
		{
			ID:      "p3",
			Content: "def rotate_keys(): ...",
			Metadata: map[string]string{
				"entity_name":   "proj.auth.rotate_keys",
				"entity_type":   "function",
				"file_path":     "auth/token.py",
				"graph_node_id": "n2",
			},
		},
	}
}

func TestFindLinks_AcceptsKnownEntityAndRejectsUnknown(t *testing.T) {
	content := `[{"entity_qualified_name": "proj.auth.TokenManager", "entity_type": "class", "relevance": "high", "reasoning": "chunk describes it"}, {"entity_qualified_name": "not.in.candidates", "entity_type": "class", "relevance": "high", "reasoning": "hallucinated"}]`
	lf := NewLinkFinder(&stubSearcher{results: sampleResults()}, &stubChatProvider{content: content}, semaphore.NewWeighted(1), nil)

	chunk := model.DocumentChunk{ID: "chunk-1", Content: "TokenManager rotates tokens.", HeadingPath: []string{"Auth"}}
	links, err := lf.FindLinks(context.Background(), "code_chunks", "proj", chunk)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "proj.auth.TokenManager", links[0].EntityQN)
	assert.Equal(t, model.LinkImplicit, links[0].LinkType)
	assert.Equal(t, 0.90, links[0].Confidence)
	assert.Equal(t, "auth/token.py", links[0].FilePath)
}

func TestFindLinks_DedupsByGraphNodeID(t *testing.T) {
	content := `[]`
	_ = NewLinkFinder(&stubSearcher{results: sampleResults()}, &stubChatProvider{content: content}, semaphore.NewWeighted(1), nil)
	candidates := dedupCandidates(sampleResults())
	assert.Len(t, candidates, 2)
}

func TestFindLinks_NoCandidatesReturnsNil(t *testing.T) {
	lf := NewLinkFinder(&stubSearcher{results: nil}, &stubChatProvider{content: "[]"}, semaphore.NewWeighted(1), nil)
	links, err := lf.FindLinks(context.Background(), "code_chunks", "proj", model.DocumentChunk{ID: "c1", Content: "hello"})
	require.NoError(t, err)
	assert.Nil(t, links)
}

func TestRelevanceToConfidence_MapsAllTiers(t *testing.T) {
	assert.Equal(t, 0.90, relevanceToConfidence("high"))
	assert.Equal(t, 0.70, relevanceToConfidence("medium"))
	assert.Equal(t, 0.50, relevanceToConfidence("low"))
	assert.Equal(t, 0.50, relevanceToConfidence("unknown"))
}

func TestParseLinkVerdicts_StripsJSONFence(t *testing.T) {
	raw := "```json\n[{\"entity_qualified_name\": \"proj.auth.TokenManager\", \"relevance\": \"medium\"}]\n```"
	verdicts := parseLinkVerdicts(raw)
	require.Len(t, verdicts, 1)
	assert.Equal(t, "proj.auth.TokenManager", verdicts[0].EntityQualifiedName)
}
