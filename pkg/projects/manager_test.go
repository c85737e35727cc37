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

package projects

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lattice/pkg/graph"
	"github.com/kraklabs/lattice/pkg/store"
	"github.com/kraklabs/lattice/pkg/vector"
)

type fakeBackend struct {
	files    map[string]int64 // project_id -> file count
	entities map[string]int64
	deleted  []string
}

func (b *fakeBackend) Query(ctx context.Context, cypher string, params map[string]any) (*graph.QueryResult, error) {
	if containsStr(cypher, "RETURN f.project_id AS project_id, count(f)") {
		res := &graph.QueryResult{}
		for name, c := range b.files {
			res.Rows = append(res.Rows, []any{name, c})
		}
		return res, nil
	}
	if containsStr(cypher, "RETURN n.project_id AS project_id, count(n)") {
		res := &graph.QueryResult{}
		for name, c := range b.entities {
			res.Rows = append(res.Rows, []any{name, c})
		}
		return res, nil
	}
	if containsStr(cypher, "RETURN DISTINCT f.project_id") {
		res := &graph.QueryResult{}
		for name := range b.files {
			res.Rows = append(res.Rows, []any{name})
		}
		return res, nil
	}
	return &graph.QueryResult{}, nil
}

func (b *fakeBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	if containsStr(cypher, "DETACH DELETE n") {
		if id, ok := params["project_id"].(string); ok {
			b.deleted = append(b.deleted, id)
			delete(b.files, id)
			delete(b.entities, id)
		}
	}
	return nil
}

func (b *fakeBackend) Close() error { return nil }

func containsStr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T) (*Manager, *fakeBackend, *store.Store) {
	t.Helper()
	backend := &fakeBackend{
		files:    map[string]int64{"proj": 3},
		entities: map[string]int64{"proj": 7},
	}
	rel, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { rel.Close() })
	vectors := vector.NewStore(vector.NewMockEmbeddingProvider(16))
	return New(backend, vectors, rel, nil), backend, rel
}

func TestManager_ListMergesMetadataAndGraphCounts(t *testing.T) {
	mgr, _, rel := newTestManager(t)
	require.NoError(t, rel.UpsertProjectMetadata(context.Background(), "proj", "/srv/proj", map[string]any{"language": "python"}))

	summaries, err := mgr.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "proj", summaries[0].Name)
	assert.Equal(t, "/srv/proj", summaries[0].RootPath)
	assert.EqualValues(t, 3, summaries[0].FileCount)
	assert.EqualValues(t, 7, summaries[0].EntityCount)
}

func TestManager_ListIncludesGraphOnlyProjectsWithoutMetadata(t *testing.T) {
	mgr, backend, _ := newTestManager(t)
	backend.files["orphaned-in-graph"] = 1
	backend.entities["orphaned-in-graph"] = 2

	summaries, err := mgr.List(context.Background())
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, s := range summaries {
		names[s.Name] = true
	}
	assert.True(t, names["proj"])
	assert.True(t, names["orphaned-in-graph"])
}

func TestManager_DeleteRemovesGraphVectorAndRelationalState(t *testing.T) {
	mgr, backend, rel := newTestManager(t)
	require.NoError(t, rel.UpsertProjectMetadata(context.Background(), "proj", "/srv/proj", nil))

	require.NoError(t, mgr.Delete(context.Background(), "proj"))

	assert.Contains(t, backend.deleted, "proj")
	meta, err := rel.GetProjectMetadata(context.Background(), "proj")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestManager_SweepOrphansRemovesRelationalRowsWithNoGraphPresence(t *testing.T) {
	mgr, backend, rel := newTestManager(t)
	require.NoError(t, rel.UpsertProjectMetadata(context.Background(), "proj", "/srv/proj", nil))
	require.NoError(t, rel.UpsertProjectMetadata(context.Background(), "ghost", "/srv/ghost", nil))
	delete(backend.files, "ghost") // never existed in the graph to begin with

	swept, err := mgr.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Contains(t, swept, "ghost")
	assert.NotContains(t, swept, "proj")

	meta, err := rel.GetProjectMetadata(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, meta)

	meta, err = rel.GetProjectMetadata(context.Background(), "proj")
	require.NoError(t, err)
	assert.NotNil(t, meta)
}
