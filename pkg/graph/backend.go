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

// Package graph provides the property-graph backend abstraction and the
// batched entity/relationship writer. The backend speaks openCypher over
// a neo4j-protocol driver, matching the external-interfaces contract
// (transactional MERGE, UNWIND, variable-length paths, OPTIONAL MATCH).
package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Backend is the interface every graph store implementation satisfies.
// It mirrors the storage-backend abstraction pattern: a narrow surface
// (Query/Execute/Close) that the rest of the pipeline programs against,
// so the concrete driver can be swapped without touching callers.
type Backend interface {
	// Query runs a read-only Cypher statement and returns its rows.
	Query(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error)

	// Execute runs a write Cypher statement (MERGE/CREATE/DELETE) inside
	// a write transaction.
	Execute(ctx context.Context, cypher string, params map[string]any) error

	// Close releases the underlying driver/session resources.
	Close() error
}

// QueryResult is a Cypher result set flattened to header/row pairs.
type QueryResult struct {
	Headers []string
	Rows    [][]any
}

// DriverBackend implements Backend over neo4j-go-driver.
type DriverBackend struct {
	driver   neo4j.DriverWithContext
	database string
}

// Config configures a DriverBackend connection.
type Config struct {
	URI      string
	Username string
	Password string
	Database string // empty uses the server default database
}

// NewDriverBackend dials the configured graph store and verifies
// connectivity.
func NewDriverBackend(ctx context.Context, cfg Config) (*DriverBackend, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}
	return &DriverBackend{driver: driver, database: cfg.Database}, nil
}

func (b *DriverBackend) session(ctx context.Context) neo4j.SessionWithContext {
	cfg := neo4j.SessionConfig{}
	if b.database != "" {
		cfg.DatabaseName = b.database
	}
	return b.driver.NewSession(ctx, cfg)
}

// Query runs cypher as a read transaction.
func (b *DriverBackend) Query(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	session := b.session(ctx)
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}

	records := res.([]*neo4j.Record)
	qr := &QueryResult{}
	if len(records) > 0 {
		qr.Headers = records[0].Keys
	}
	for _, rec := range records {
		qr.Rows = append(qr.Rows, rec.Values)
	}
	return qr, nil
}

// Execute runs cypher as a write transaction.
func (b *DriverBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	session := b.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, cypher, params)
		return nil, err
	})
	return err
}

// Close shuts down the underlying driver.
func (b *DriverBackend) Close() error {
	return b.driver.Close(context.Background())
}
