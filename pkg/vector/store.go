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
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/pkg/model"
)

// Store wraps a chromem-go database: one collection per project, upsert
// semantics that delete-then-reinsert by file_path, and a retrying
// EmbeddingProvider-backed embedding function shared by every collection.
type Store struct {
	mu          sync.Mutex
	db          *chromem.DB
	provider    EmbeddingProvider
	retry       RetryConfig
	collections map[string]*chromem.Collection
}

// NewStore creates an in-memory Store backed by provider for embeddings.
func NewStore(provider EmbeddingProvider) *Store {
	return &Store{
		db:          chromem.NewDB(),
		provider:    provider,
		retry:       DefaultRetryConfig(),
		collections: make(map[string]*chromem.Collection),
	}
}

// NewPersistentStore creates a Store backed by an on-disk chromem-go
// database rooted at path.
func NewPersistentStore(path string, provider EmbeddingProvider) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, &lerrors.VectorStoreError{Op: "open", Err: err}
	}
	return &Store{
		db:          db,
		provider:    provider,
		retry:       DefaultRetryConfig(),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// collection returns the named collection, creating it (with an
// embedding function backed by provider) on first use.
func (s *Store) collection(name string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc())
	if err != nil {
		return nil, &lerrors.VectorStoreError{Op: "get_or_create_collection", Err: err}
	}
	s.collections[name] = c
	return c, nil
}

// embeddingFunc adapts the EmbeddingProvider into chromem-go's
// EmbeddingFunc, retrying on rate-limit errors with exponential back-off.
func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		var lastErr error
		for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
			vec, err := s.provider.Embed(ctx, text)
			if err == nil {
				return vec, nil
			}
			lastErr = err
			if !lerrors.IsRateLimit(err) || attempt == s.retry.MaxRetries {
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(computeBackoff(s.retry, attempt)):
			}
		}
		return nil, &lerrors.VectorStoreError{Op: "embed", Err: lastErr}
	}
}

// UpsertChunks implements the vector indexer's upsert contract for code
// chunks: delete existing points for every distinct file_path among
// chunks, then insert fresh points with new UUIDs.
func (s *Store) UpsertChunks(ctx context.Context, collectionName string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	c, err := s.collection(collectionName)
	if err != nil {
		return err
	}

	filePaths := make(map[string]bool)
	for _, ch := range chunks {
		filePaths[ch.FilePath] = true
	}
	for path := range filePaths {
		if err := deleteByFilePath(ctx, c, path); err != nil {
			return err
		}
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		docs = append(docs, chromem.Document{
			ID:      uuid.NewString(),
			Content: ch.Content,
			Metadata: map[string]string{
				"content_hash": ch.ContentHash,
				"file_path":    ch.FilePath,
				"project_name": ch.ProjectName,
				"entity_type":  ch.EntityType,
				"entity_name":  ch.EntityName,
				"language":     string(ch.Language),
				"graph_node_id": ch.GraphNodeID,
				"start_line":   strconv.Itoa(ch.StartLine),
				"end_line":     strconv.Itoa(ch.EndLine),
			},
		})
	}
	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return &lerrors.VectorStoreError{Op: "add_documents", Err: err}
	}
	return nil
}

// UpsertDocumentChunks upserts Markdown document chunks for documentPath,
// tagging each point with document_path/document_type so the document
// pipeline's implicit-link search can scope queries to a document type.
func (s *Store) UpsertDocumentChunks(ctx context.Context, collectionName, documentPath, documentType, projectName string, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	c, err := s.collection(collectionName)
	if err != nil {
		return err
	}
	if err := deleteByFilePath(ctx, c, documentPath); err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		docs = append(docs, chromem.Document{
			ID:      uuid.NewString(),
			Content: ch.Content,
			Metadata: map[string]string{
				"content_hash":  ch.ContentHash,
				"file_path":     documentPath,
				"document_path": documentPath,
				"document_type": documentType,
				"project_name":  projectName,
				"chunk_id":      ch.ID,
			},
		})
	}
	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return &lerrors.VectorStoreError{Op: "add_documents", Err: err}
	}
	return nil
}

func deleteByFilePath(ctx context.Context, c *chromem.Collection, filePath string) error {
	if c.Count() == 0 {
		return nil
	}
	if err := c.Delete(ctx, map[string]string{"file_path": filePath}, nil); err != nil {
		return &lerrors.VectorStoreError{Op: "delete", Err: err}
	}
	return nil
}

// DeleteFile removes every point tagged with filePath, with no
// replacement — used by the watcher's file-deleted handler, where
// UpsertChunks' delete-then-reinsert isn't applicable because there are
// no new chunks to insert.
func (s *Store) DeleteFile(ctx context.Context, collectionName, filePath string) error {
	c, err := s.collection(collectionName)
	if err != nil {
		return err
	}
	return deleteByFilePath(ctx, c, filePath)
}

// FileNeedsUpdate reports whether the collection has no existing point
// for (filePath, hash) — true iff the file needs (re)embedding.
func (s *Store) FileNeedsUpdate(ctx context.Context, collectionName, filePath, hash string) (bool, error) {
	c, err := s.collection(collectionName)
	if err != nil {
		return false, err
	}
	if c.Count() == 0 {
		return true, nil
	}
	n := c.Count()
	if n > 50 {
		n = 50
	}
	docs, err := c.Query(ctx, filePath, n, map[string]string{"file_path": filePath, "content_hash": hash}, nil)
	if err != nil {
		return false, &lerrors.VectorStoreError{Op: "query", Err: err}
	}
	return len(docs) == 0, nil
}

// Query runs a semantic search over collectionName, optionally filtered
// by metadata equality.
func (s *Store) Query(ctx context.Context, collectionName, queryText string, topK int, where map[string]string) ([]chromem.Result, error) {
	c, err := s.collection(collectionName)
	if err != nil {
		return nil, err
	}
	n := c.Count()
	if n == 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}
	if topK < 1 {
		return nil, nil
	}
	docs, err := c.Query(ctx, queryText, topK, where, nil)
	if err != nil {
		return nil, &lerrors.VectorStoreError{Op: "query", Err: err}
	}
	return docs, nil
}

// DeleteProject drops every point belonging to projectName's collection
// (used by the project manager's delete and orphan-sweep operations).
func (s *Store) DeleteProject(collectionName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.DeleteCollection(collectionName)
	delete(s.collections, collectionName)
}

// ListCollections returns the name of every collection chromem-go
// currently holds, used by the orphan sweep to find vector data whose
// project no longer exists.
func (s *Store) ListCollections() []string {
	all := s.db.ListCollections()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	return names
}

// CollectionName derives the chromem-go collection name for a project.
func CollectionName(projectName string) string {
	return fmt.Sprintf("project_%s", projectName)
}
