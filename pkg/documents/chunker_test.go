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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTitle_FindsLevelOneHeading(t *testing.T) {
	content := "intro line\n\n# My Title\n\nmore text\n"
	assert.Equal(t, "My Title", ExtractTitle(content))
}

func TestExtractTitle_NoHeadingReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractTitle("just some text\nno heading here\n"))
}

func TestChunk_SplitsByHeadingWithPath(t *testing.T) {
	content := "# Auth\n\nToken issuance overview.\n\n## TokenManager\n\nRotates keys every 24h.\n"
	c := NewChunker(1000, 100)
	chunks := c.Chunk(content, "doc-1", "proj")

	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"Auth"}, chunks[0].HeadingPath)
	assert.Equal(t, []string{"Auth", "TokenManager"}, chunks[1].HeadingPath)
	assert.Contains(t, chunks[1].Content, "Rotates keys")
}

func TestChunk_PreambleBeforeFirstHeadingKeptSeparate(t *testing.T) {
	content := "Some preamble text.\n\n# First Heading\n\nbody\n"
	c := NewChunker(1000, 100)
	chunks := c.Chunk(content, "doc-1", "proj")

	require.Len(t, chunks, 2)
	assert.Empty(t, chunks[0].HeadingPath)
	assert.Contains(t, chunks[0].Content, "preamble")
}

func TestChunk_NoHeadingsProducesSingleChunk(t *testing.T) {
	content := "just plain text\nacross a couple lines\n"
	c := NewChunker(1000, 100)
	chunks := c.Chunk(content, "doc-1", "proj")

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
}

func TestChunk_SiblingHeadingsDoNotNest(t *testing.T) {
	content := "# A\n\nbody a\n\n# B\n\nbody b\n"
	c := NewChunker(1000, 100)
	chunks := c.Chunk(content, "doc-1", "proj")

	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"A"}, chunks[0].HeadingPath)
	assert.Equal(t, []string{"B"}, chunks[1].HeadingPath)
}

func TestChunk_LongSectionSplitsWithOverlapAndSharedHeadingPath(t *testing.T) {
	var lines []string
	for i := 0; i < 500; i++ {
		lines = append(lines, "this is a moderately long line of documentation text that consumes several tokens")
	}
	content := "# Big Section\n\n" + strings.Join(lines, "\n") + "\n"
	c := NewChunker(200, 20)
	chunks := c.Chunk(content, "doc-1", "proj")

	require.True(t, len(chunks) > 1)
	for _, ch := range chunks {
		assert.Equal(t, []string{"Big Section"}, ch.HeadingPath)
	}
}

func TestChunk_EachChunkHasFreshIDAndContentHash(t *testing.T) {
	content := "# A\n\nbody a\n\n# B\n\nbody b\n"
	c := NewChunker(1000, 100)
	chunks := c.Chunk(content, "doc-1", "proj")

	require.Len(t, chunks, 2)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
	assert.NotEmpty(t, chunks[0].ContentHash)
}
