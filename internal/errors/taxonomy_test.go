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

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaxonomyErrors_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("boom")

	cases := []struct {
		name string
		err  error
	}{
		{"scan", &ScanError{Path: "/tmp/repo", Err: cause}},
		{"parse", &ParseError{Path: "a.py", Err: cause}},
		{"graph", &GraphError{Op: "flush", Err: cause}},
		{"vector", &VectorStoreError{Op: "query", Err: cause}},
		{"relational", &PostgresError{Op: "list_projects", Err: cause}},
		{"rate_limit", &RateLimitError{Provider: "ollama", Err: cause}},
		{"llm", &LLMError{Provider: "openai", Err: cause}},
		{"indexing", &IndexingError{Stage: "graph", Err: cause}},
		{"query", &QueryError{Err: cause}},
		{"metadata", &MetadataError{Err: cause}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, cause)
			assert.Contains(t, tc.err.Error(), "boom")
		})
	}
}

func TestIsRateLimit(t *testing.T) {
	assert.True(t, IsRateLimit(&RateLimitError{Provider: "openai", Err: errors.New("nope")}))
	assert.True(t, IsRateLimit(errors.New("HTTP 429 Too Many Requests")))
	assert.True(t, IsRateLimit(errors.New("the service is overloaded")))
	assert.False(t, IsRateLimit(errors.New("not found")))
	assert.False(t, IsRateLimit(nil))
}
