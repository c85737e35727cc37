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

package graph

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lattice/pkg/model"
)

type execCall struct {
	cypher string
	params map[string]any
}

type fakeBackend struct {
	mu      sync.Mutex
	execs   []execCall
	queryFn func(cypher string, params map[string]any) (*QueryResult, error)
}

func (f *fakeBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, execCall{cypher: cypher, params: params})
	return nil
}

func (f *fakeBackend) Query(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	if f.queryFn != nil {
		return f.queryFn(cypher, params)
	}
	return &QueryResult{}, nil
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.execs)
}

func (f *fakeBackend) findExec(substr string) *execCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.execs {
		if strings.Contains(f.execs[i].cypher, substr) {
			return &f.execs[i]
		}
	}
	return nil
}

// Two files importing a same-named symbol from different source modules
// must land on two distinct Import nodes, keyed on (name, file_path,
// project_id) rather than name alone.
func TestFlushAll_ImportMergeKeyIsComposite(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, 500, nil)

	w.entities.Imports = []Row{
		{"name": "json", "file_path": "a.py", "project_id": "proj1", "source_module": "json"},
		{"name": "json", "file_path": "b.py", "project_id": "proj1", "source_module": "mymodule"},
	}

	require.NoError(t, w.FlushAll(context.Background()))

	call := fb.findExec(":Import {")
	require.NotNil(t, call, "expected an Import flush statement")
	assert.Contains(t, call.cypher, "name: row.name")
	assert.Contains(t, call.cypher, "file_path: row.file_path")
	assert.Contains(t, call.cypher, "project_id: row.project_id")

	rows, ok := call.params["rows"].([]Row)
	require.True(t, ok)
	assert.Len(t, rows, 2, "both same-named imports must be flushed as distinct rows")
}

func TestFlushAll_SingleKeyLabelsUnaffected(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, 500, nil)
	w.entities.Classes = []Row{{"qualified_name": "proj.a.Foo"}}

	require.NoError(t, w.FlushAll(context.Background()))

	call := fb.findExec(":Class {")
	require.NotNil(t, call)
	assert.Contains(t, call.cypher, "qualified_name: row.qualified_name")
	assert.NotContains(t, call.cypher, ",")
}

// FlushAll must be a no-op once the buffers it flushed are empty; calling
// it again without new data should not re-issue any Execute call.
func TestFlushAll_IdempotentOnEmptyBuffers(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, 500, nil)
	w.entities.Files = []Row{{"path": "a.py"}}

	require.NoError(t, w.FlushAll(context.Background()))
	first := fb.execCount()
	require.Greater(t, first, 0)

	require.NoError(t, w.FlushAll(context.Background()))
	assert.Equal(t, first, fb.execCount(), "flushing empty buffers must not issue new statements")
}

func TestAddParsedFile_AutoFlushesAtBatchSize(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, 1, nil)

	pf := model.ParsedFile{
		FileInfo: model.FileInfo{RelativePath: "a.py", Language: model.LangPython},
		Imports:  []model.ImportRecord{{Name: "os"}},
	}
	require.NoError(t, w.AddParsedFile(context.Background(), "proj1", pf))

	assert.Greater(t, fb.execCount(), 0, "exceeding batchSize should trigger an automatic flush")
}

func TestAddParsedFile_BelowBatchSizeDoesNotFlush(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, 500, nil)

	pf := model.ParsedFile{
		FileInfo: model.FileInfo{RelativePath: "a.py", Language: model.LangPython},
	}
	require.NoError(t, w.AddParsedFile(context.Background(), "proj1", pf))

	assert.Equal(t, 0, fb.execCount())
}

func TestImportsRelationship_MatchesImportNodeByFilePathToo(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, 500, nil)

	w.relationships.Imports = []Row{{"file_path": "a.py", "name": "json", "project_id": "proj1"}}
	require.NoError(t, w.FlushAll(context.Background()))

	call := fb.findExec("[:IMPORTS]")
	require.NotNil(t, call)
	assert.Contains(t, call.cypher, "file_path: row.file_path")
}

func TestDeleteFileEntities_IssuesDetachDelete(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, 500, nil)

	require.NoError(t, w.DeleteFileEntities(context.Background(), "a.py"))
	call := fb.findExec("DETACH DELETE")
	require.NotNil(t, call)
	assert.Equal(t, "a.py", call.params["path"])
}

func TestDeleteCallsForFile_MatchesEitherEndpoint(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, 500, nil)

	require.NoError(t, w.DeleteCallsForFile(context.Background(), "a.py"))
	call := fb.findExec("r:CALLS")
	require.NotNil(t, call)
	assert.Contains(t, call.cypher, "a.file_path = $path OR b.file_path = $path")
}

func TestFlushCalls_SeparatesResolvedFromUnresolved(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, 500, nil)
	w.relationships.Calls = []Row{
		{"caller_qn": "proj.a.f", "callee_qn": "proj.b.g"},
		{"caller_qn": "proj.a.f", "callee_raw": "unknown_fn"},
	}

	require.NoError(t, w.FlushAll(context.Background()))

	stats := w.UnresolvedCallStats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Unresolved)

	call := fb.findExec("[:CALLS]")
	require.NotNil(t, call)
	rows, ok := call.params["rows"].([]Row)
	require.True(t, ok)
	assert.Len(t, rows, 1, "only the resolved call edge should reach the backend")
}
