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

// Package projects implements the project manager: listing indexed
// projects with their graph/vector footprint, deleting a project's
// state across all three stores, and sweeping orphaned data left behind
// by a partial or interrupted delete.
package projects

import (
	"context"
	"log/slog"
	"strings"
	"time"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/pkg/graph"
	"github.com/kraklabs/lattice/pkg/store"
	"github.com/kraklabs/lattice/pkg/vector"
)

// Summary describes one indexed project, merging the relational
// project_metadata row with live counts from the graph.
type Summary struct {
	Name          string
	RootPath      string
	FileCount     int64
	EntityCount   int64
	LastIndexedAt time.Time
	Metadata      map[string]any
}

// Manager implements list/get/delete/sweep over the graph, vector, and
// relational stores that make up a project's indexed state.
type Manager struct {
	backend graph.Backend
	vectors *vector.Store
	rel     *store.Store
	logger  *slog.Logger
}

// New creates a Manager over the given backends.
func New(backend graph.Backend, vectors *vector.Store, rel *store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{backend: backend, vectors: vectors, rel: rel, logger: logger}
}

// List returns every project with relational metadata, enriched with
// live file/entity counts from the graph. Projects present in the graph
// but never registered in project_metadata (e.g. indexed before the
// metadata stage existed) are included with zero-value metadata fields.
func (m *Manager) List(ctx context.Context) ([]Summary, error) {
	metas, err := m.rel.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*Summary, len(metas))
	order := make([]string, 0, len(metas))
	for _, meta := range metas {
		s := &Summary{
			Name:          meta.ProjectName,
			RootPath:      meta.RootPath,
			LastIndexedAt: meta.LastIndexedAt,
			Metadata:      meta.Metadata,
		}
		byName[meta.ProjectName] = s
		order = append(order, meta.ProjectName)
	}

	counts, err := m.projectCounts(ctx)
	if err != nil {
		return nil, err
	}
	for name, c := range counts {
		s, ok := byName[name]
		if !ok {
			s = &Summary{Name: name}
			byName[name] = s
			order = append(order, name)
		}
		s.FileCount = c.files
		s.EntityCount = c.entities
	}

	out := make([]Summary, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

// Get returns a single project's summary, or nil if it is unknown to
// both the relational store and the graph.
func (m *Manager) Get(ctx context.Context, name string) (*Summary, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.Name == name {
			return &s, nil
		}
	}
	return nil, nil
}

type projectCount struct {
	files    int64
	entities int64
}

func (m *Manager) projectCounts(ctx context.Context) (map[string]projectCount, error) {
	out := make(map[string]projectCount)

	fileRes, err := m.backend.Query(ctx,
		"MATCH (f:File) RETURN f.project_id AS project_id, count(f) AS c", nil)
	if err != nil {
		return nil, &lerrors.GraphError{Op: "count_files_by_project", Err: err}
	}
	for _, row := range fileRes.Rows {
		if len(row) < 2 {
			continue
		}
		name, _ := row[0].(string)
		count, _ := row[1].(int64)
		c := out[name]
		c.files = count
		out[name] = c
	}

	entityRes, err := m.backend.Query(ctx,
		"MATCH (n) WHERE n:Class OR n:Function OR n:Method RETURN n.project_id AS project_id, count(n) AS c", nil)
	if err != nil {
		return nil, &lerrors.GraphError{Op: "count_entities_by_project", Err: err}
	}
	for _, row := range entityRes.Rows {
		if len(row) < 2 {
			continue
		}
		name, _ := row[0].(string)
		count, _ := row[1].(int64)
		c := out[name]
		c.entities = count
		out[name] = c
	}

	return out, nil
}

// Delete removes every trace of a project: its graph nodes and
// relationships, its vector collection, and its relational rows
// (documents, project_metadata, metadata_generation_log).
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := m.backend.Execute(ctx,
		"MATCH (n {project_id: $project_id}) DETACH DELETE n",
		map[string]any{"project_id": name}); err != nil {
		return &lerrors.GraphError{Op: "delete_project_nodes", Err: err}
	}
	if m.vectors != nil {
		m.vectors.DeleteProject(vector.CollectionName(name))
	}
	if err := m.rel.DeleteProject(ctx, name); err != nil {
		return err
	}
	return nil
}

// SweepOrphans removes vector collections and relational rows whose
// project no longer has any File node in the graph — state left behind
// by an interrupted Delete or a direct graph wipe. It returns the names
// of the projects it cleaned up.
func (m *Manager) SweepOrphans(ctx context.Context) ([]string, error) {
	live, err := m.liveProjectSet(ctx)
	if err != nil {
		return nil, err
	}

	var swept []string

	if m.vectors != nil {
		for _, coll := range m.vectors.ListCollections() {
			name := strings.TrimPrefix(coll, "project_")
			if name == coll || live[name] {
				continue
			}
			m.vectors.DeleteProject(coll)
			swept = append(swept, name)
		}
	}

	metas, err := m.rel.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, meta := range metas {
		if live[meta.ProjectName] {
			continue
		}
		if err := m.rel.DeleteProject(ctx, meta.ProjectName); err != nil {
			m.logger.Error("projects.sweep_orphan_failed", "project", meta.ProjectName, "err", err)
			continue
		}
		swept = append(swept, meta.ProjectName)
	}

	return swept, nil
}

func (m *Manager) liveProjectSet(ctx context.Context) (map[string]bool, error) {
	res, err := m.backend.Query(ctx, "MATCH (f:File) RETURN DISTINCT f.project_id AS project_id", nil)
	if err != nil {
		return nil, &lerrors.GraphError{Op: "list_live_projects", Err: err}
	}
	live := make(map[string]bool, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		if name, ok := row[0].(string); ok {
			live[name] = true
		}
	}
	return live, nil
}
