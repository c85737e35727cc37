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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lattice/pkg/model"
)

func TestStore_UpsertAndFileNeedsUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMockEmbeddingProvider(32))
	coll := CollectionName("proj")

	needs, err := s.FileNeedsUpdate(ctx, coll, "a.py", "hash1")
	require.NoError(t, err)
	assert.True(t, needs)

	chunks := []model.Chunk{
		{Content: "def bar(): pass", FilePath: "a.py", EntityType: "method", EntityName: "bar", ContentHash: "hash1", ProjectName: "proj", GraphNodeID: "proj.a.Foo.bar"},
	}
	require.NoError(t, s.UpsertChunks(ctx, coll, chunks))

	needs, err = s.FileNeedsUpdate(ctx, coll, "a.py", "hash1")
	require.NoError(t, err)
	assert.False(t, needs)

	needs, err = s.FileNeedsUpdate(ctx, coll, "a.py", "hash2")
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestStore_UpsertReplacesPriorPointsForFile(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMockEmbeddingProvider(32))
	coll := CollectionName("proj")

	require.NoError(t, s.UpsertChunks(ctx, coll, []model.Chunk{
		{Content: "old", FilePath: "a.py", ContentHash: "old_hash", ProjectName: "proj"},
	}))
	require.NoError(t, s.UpsertChunks(ctx, coll, []model.Chunk{
		{Content: "new", FilePath: "a.py", ContentHash: "new_hash", ProjectName: "proj"},
	}))

	needs, err := s.FileNeedsUpdate(ctx, coll, "a.py", "old_hash")
	require.NoError(t, err)
	assert.True(t, needs, "stale point for the old hash must have been deleted")

	needs, err = s.FileNeedsUpdate(ctx, coll, "a.py", "new_hash")
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestStore_Query(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMockEmbeddingProvider(32))
	coll := CollectionName("proj")

	require.NoError(t, s.UpsertChunks(ctx, coll, []model.Chunk{
		{Content: "parses python files", FilePath: "a.py", ContentHash: "h1", ProjectName: "proj"},
		{Content: "writes graph batches", FilePath: "b.py", ContentHash: "h2", ProjectName: "proj"},
	}))

	results, err := s.Query(ctx, coll, "parses python files", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
