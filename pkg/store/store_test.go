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

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lattice/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertDocument_InsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id1, err := s.UpsertDocument(ctx, "proj", "docs/a.md", "A", "hash1")
	require.NoError(t, err)
	assert.NotZero(t, id1)

	id2, err := s.UpsertDocument(ctx, "proj", "docs/a.md", "A updated", "hash2")
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "upsert on the same (project, path) must keep the row id")

	_, hash, found, err := s.DocumentByPath(ctx, "proj", "docs/a.md")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hash2", hash)
}

func TestDocumentByPath_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, _, found, err := s.DocumentByPath(ctx, "proj", "missing.md")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReplaceDocumentChunks_ReplacesPriorSet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	docID, err := s.UpsertDocument(ctx, "proj", "docs/a.md", "A", "h1")
	require.NoError(t, err)

	score := 0.4
	require.NoError(t, s.ReplaceDocumentChunks(ctx, docID, "proj", []model.DocumentChunk{
		{ID: "c1", Content: "first", HeadingPath: []string{"A"}, StartLine: 1, EndLine: 5, DriftStatus: model.DriftMinor, DriftScore: &score},
	}))

	chunks, err := s.ChunksByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c1", chunks[0].ID)
	assert.Equal(t, []string{"A"}, chunks[0].HeadingPath)
	require.NotNil(t, chunks[0].DriftScore)
	assert.InDelta(t, 0.4, *chunks[0].DriftScore, 1e-9)

	require.NoError(t, s.ReplaceDocumentChunks(ctx, docID, "proj", []model.DocumentChunk{
		{ID: "c2", Content: "second", StartLine: 1, EndLine: 3},
	}))

	chunks, err = s.ChunksByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1, "stale chunks from the prior version must be gone")
	assert.Equal(t, "c2", chunks[0].ID)
}

func TestUpsertDocumentLink_KeepsHigherConfidence(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	docID, err := s.UpsertDocument(ctx, "proj", "docs/a.md", "A", "h1")
	require.NoError(t, err)
	require.NoError(t, s.ReplaceDocumentChunks(ctx, docID, "proj", []model.DocumentChunk{
		{ID: "c1", Content: "x"},
	}))

	require.NoError(t, s.UpsertDocumentLink(ctx, model.DocumentLink{
		ChunkID: "c1", EntityQN: "proj.a.Foo", LinkType: model.LinkImplicit, Confidence: 0.5,
	}))
	require.NoError(t, s.UpsertDocumentLink(ctx, model.DocumentLink{
		ChunkID: "c1", EntityQN: "proj.a.Foo", LinkType: model.LinkExplicit, Confidence: 0.9,
	}))
	// A lower-confidence write for the same (chunk, entity) must not clobber the higher one.
	require.NoError(t, s.UpsertDocumentLink(ctx, model.DocumentLink{
		ChunkID: "c1", EntityQN: "proj.a.Foo", LinkType: model.LinkImplicit, Confidence: 0.2,
	}))

	links, err := s.LinksByChunk(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, model.LinkExplicit, links[0].LinkType)
	assert.InDelta(t, 0.9, links[0].Confidence, 1e-9)
}

func TestUpsertDriftAnalysis_UpdatesChunkStatus(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	docID, err := s.UpsertDocument(ctx, "proj", "docs/a.md", "A", "h1")
	require.NoError(t, err)
	require.NoError(t, s.ReplaceDocumentChunks(ctx, docID, "proj", []model.DocumentChunk{
		{ID: "c1", Content: "x"},
	}))

	require.NoError(t, s.UpsertDriftAnalysis(ctx, model.DriftAnalysis{
		ChunkID: "c1", DocPath: "docs/a.md", EntityQN: "proj.a.Foo",
		DriftDetected: true, DriftSeverity: model.SeverityMinor, DriftScore: 0.3,
	}))

	chunks, err := s.ChunksByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.DriftMinor, chunks[0].DriftStatus)

	require.NoError(t, s.UpsertDriftAnalysis(ctx, model.DriftAnalysis{
		ChunkID: "c1", DocPath: "docs/a.md", EntityQN: "proj.a.Bar",
		DriftDetected: true, DriftSeverity: model.SeverityMajor, DriftScore: 0.8,
	}))

	chunks, err = s.ChunksByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.DriftMajor, chunks[0].DriftStatus, "status must reflect the highest-scoring analysis across entities")
}

func TestProjectMetadata_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertProjectMetadata(ctx, "proj", "/repo/proj", map[string]any{"file_count": float64(12)}))

	pm, err := s.GetProjectMetadata(ctx, "proj")
	require.NoError(t, err)
	require.NotNil(t, pm)
	assert.Equal(t, "/repo/proj", pm.RootPath)
	assert.Equal(t, float64(12), pm.Metadata["file_count"])

	require.NoError(t, s.UpsertProjectMetadata(ctx, "proj", "/repo/proj", map[string]any{"file_count": float64(20)}))
	pm, err = s.GetProjectMetadata(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, float64(20), pm.Metadata["file_count"])
}

func TestGetProjectMetadata_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	pm, err := s.GetProjectMetadata(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, pm)
}

func TestDeleteProject_RemovesDocumentsAndChunks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	docID, err := s.UpsertDocument(ctx, "proj", "docs/a.md", "A", "h1")
	require.NoError(t, err)
	require.NoError(t, s.ReplaceDocumentChunks(ctx, docID, "proj", []model.DocumentChunk{{ID: "c1", Content: "x"}}))
	require.NoError(t, s.UpsertProjectMetadata(ctx, "proj", "/repo/proj", nil))

	require.NoError(t, s.DeleteProject(ctx, "proj"))

	_, _, found, err := s.DocumentByPath(ctx, "proj", "docs/a.md")
	require.NoError(t, err)
	assert.False(t, found)

	pm, err := s.GetProjectMetadata(ctx, "proj")
	require.NoError(t, err)
	assert.Nil(t, pm)

	chunks, err := s.ChunksByDocument(ctx, docID)
	require.NoError(t, err)
	assert.Empty(t, chunks, "chunks must cascade-delete with their parent document")
}

func TestMetadataGenerationLog_AppendsAndLists(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.LogMetadataGeneration(ctx, "proj", "summarize", "ok", "12 entities"))
	require.NoError(t, s.LogMetadataGeneration(ctx, "proj", "embed", "failed", "rate limited"))

	entries, err := s.MetadataGenerationLog(ctx, "proj")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "embed", entries[0].Stage, "log must return newest first")
}

func TestListProjects_OrdersByName(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertProjectMetadata(ctx, "zeta", "/srv/zeta", map[string]any{"language": "go"}))
	require.NoError(t, s.UpsertProjectMetadata(ctx, "alpha", "/srv/alpha", nil))

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "alpha", projects[0].ProjectName)
	assert.Equal(t, "zeta", projects[1].ProjectName)
	assert.Equal(t, "go", projects[1].Metadata["language"])
}

func TestListDocuments_FiltersByProjectAndOrdersByPath(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.UpsertDocument(ctx, "proj", "docs/b.md", "B", "hb")
	require.NoError(t, err)
	_, err = s.UpsertDocument(ctx, "proj", "docs/a.md", "A", "ha")
	require.NoError(t, err)
	_, err = s.UpsertDocument(ctx, "other", "docs/c.md", "C", "hc")
	require.NoError(t, err)

	docs, err := s.ListDocuments(ctx, "proj")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "docs/a.md", docs[0].FilePath)
	assert.Equal(t, "docs/b.md", docs[1].FilePath)
}

func TestListDriftAnalyses_FiltersByProjectAndDriftDetected(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	docID, err := s.UpsertDocument(ctx, "proj", "docs/a.md", "A", "h1")
	require.NoError(t, err)
	require.NoError(t, s.ReplaceDocumentChunks(ctx, docID, "proj", []model.DocumentChunk{
		{ID: "c1", Content: "x"},
		{ID: "c2", Content: "y"},
	}))

	require.NoError(t, s.UpsertDriftAnalysis(ctx, model.DriftAnalysis{
		ChunkID: "c1", DocPath: "docs/a.md", EntityQN: "proj.a.Foo",
		DriftDetected: true, DriftSeverity: model.SeverityMinor, DriftScore: 0.3,
	}))
	require.NoError(t, s.UpsertDriftAnalysis(ctx, model.DriftAnalysis{
		ChunkID: "c2", DocPath: "docs/a.md", EntityQN: "proj.a.Bar",
		DriftDetected: false, DriftSeverity: model.SeverityNone, DriftScore: 0,
	}))

	all, err := s.ListDriftAnalyses(ctx, "proj", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyDrifted, err := s.ListDriftAnalyses(ctx, "proj", true)
	require.NoError(t, err)
	require.Len(t, onlyDrifted, 1)
	assert.Equal(t, "proj.a.Foo", onlyDrifted[0].EntityQN)

	none, err := s.ListDriftAnalyses(ctx, "nonexistent", false)
	require.NoError(t, err)
	assert.Empty(t, none)
}
