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

package model

import "runtime"

// Config aggregates every recognized configuration key enumerated by the
// external-interfaces contract. It is constructed by the caller (CLI,
// TOML loader, tests) and passed by value into the pipeline; this package
// never reads a config file itself.
type Config struct {
	Indexing      IndexingConfig
	Caching       CachingConfig
	Watcher       WatcherConfig
	Summarization SummarizationConfig
	Documents     DocumentsConfig
	Drift         DriftConfig
	Ranking       RankingConfig
	Query         QueryConfig
	Secrets       SecretsConfig
}

// IndexingConfig controls scan/parse/embed concurrency and chunk sizing.
type IndexingConfig struct {
	MaxWorkers            int
	MaxConcurrentRequests int
	ChunkMaxTokens        int
	ChunkOverlapTokens    int
}

// CachingConfig bounds the AST cache.
type CachingConfig struct {
	MaxEntries             int
	MaxMemoryMB            int
	EvictionFraction       int
	MemoryPressureThreshold float64
}

// WatcherConfig controls the filesystem watcher.
type WatcherConfig struct {
	DebounceDelaySeconds float64
	RecalculateCalls     bool
	QueueCapacity        int
}

// SummarizationConfig controls the summarizer component.
type SummarizationConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// DocumentsConfig controls the document pipeline.
type DocumentsConfig struct {
	ChunkMaxTokens   int
	LinkCandidateTopN int
}

// DriftConfig controls the drift detector.
type DriftConfig struct {
	MaxParallel int
	MaxRetries  int
}

// RankingConfig controls the (out-of-scope) query engine's ranking weights.
// Retained only as pass-through configuration surface.
type RankingConfig struct {
	VectorWeight float64
	GraphWeight  float64
}

// QueryConfig controls the (out-of-scope) query engine.
type QueryConfig struct {
	MaxResults int
}

// SecretsConfig names the environment variables holding provider
// credentials; values are read by the caller, never logged.
type SecretsConfig struct {
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	GoogleAPIKey      string
	PostgresPassword  string
	MemgraphURI       string
	MemgraphUser      string
	MemgraphPassword  string
	QdrantURL         string
	QdrantAPIKey      string
}

// DefaultConfig returns a Config populated with the defaults enumerated in
// the external-interfaces contract.
func DefaultConfig() Config {
	return Config{
		Indexing: IndexingConfig{
			MaxWorkers:            runtime.NumCPU(),
			MaxConcurrentRequests: 5,
			ChunkMaxTokens:        1000,
			ChunkOverlapTokens:    100,
		},
		Caching: CachingConfig{
			MaxEntries:              1000,
			MaxMemoryMB:             500,
			EvictionFraction:        10,
			MemoryPressureThreshold: 0.8,
		},
		Watcher: WatcherConfig{
			DebounceDelaySeconds: 0.5,
			RecalculateCalls:     true,
			QueueCapacity:        1024,
		},
		Summarization: SummarizationConfig{
			Model:       "",
			MaxTokens:   512,
			Temperature: 0.2,
		},
		Documents: DocumentsConfig{
			ChunkMaxTokens:    1000,
			LinkCandidateTopN: 10,
		},
		Drift: DriftConfig{
			MaxParallel: 1,
			MaxRetries:  5,
		},
	}
}
