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

package summarize

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/pkg/llm"
	"github.com/kraklabs/lattice/pkg/model"
)

type stubProvider struct {
	calls     int32
	failTimes int32
	resp      string
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	n := atomic.AddInt32(&s.calls, 1)
	if n <= s.failTimes {
		return nil, &lerrors.RateLimitError{Provider: "stub", Err: errors.New("429 too many requests")}
	}
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: s.resp}}, nil
}

func fastRetry() llm.RetryConfig {
	return llm.RetryConfig{MaxRetries: 3, MaxBackoff: 0}
}

func TestSummarizeEntity_FunctionSuccess(t *testing.T) {
	p := &stubProvider{resp: "Computes the sum of two numbers."}
	sm := New(p, semaphore.NewWeighted(1), nil)
	sm.retry = fastRetry()

	entity := &model.CodeEntity{Kind: model.KindFunction, QualifiedName: "proj.math.add", Signature: "add(a, b)", Code: "def add(a, b):\n    return a + b"}
	out := sm.SummarizeEntity(context.Background(), entity)
	assert.Equal(t, "Computes the sum of two numbers.", out)
}

func TestSummarizeEntity_ClassPrompt(t *testing.T) {
	p := &stubProvider{resp: "Represents a widget with a render method."}
	sm := New(p, semaphore.NewWeighted(1), nil)
	sm.retry = fastRetry()

	entity := &model.CodeEntity{
		Kind: model.KindClass, QualifiedName: "proj.ui.Widget",
		Children: []*model.CodeEntity{{Kind: model.KindMethod, Name: "render"}},
	}
	out := sm.SummarizeEntity(context.Background(), entity)
	assert.Equal(t, "Represents a widget with a render method.", out)
}

func TestSummarizeFile_RendersPrompt(t *testing.T) {
	p := &stubProvider{resp: "Implements request routing."}
	sm := New(p, semaphore.NewWeighted(1), nil)
	sm.retry = fastRetry()

	out := sm.SummarizeFile(context.Background(), "routes.py", []string{"Router", "dispatch"}, "class Router: ...")
	assert.Equal(t, "Implements request routing.", out)
}

func TestComplete_RetriesThenSucceeds(t *testing.T) {
	p := &stubProvider{resp: "ok", failTimes: 2}
	sm := New(p, semaphore.NewWeighted(1), nil)
	sm.retry = fastRetry()

	out := sm.complete(context.Background(), "function", "proj.x", "prompt")
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), p.calls)
}

func TestComplete_PermanentFailureYieldsEmptySummary(t *testing.T) {
	p := &stubProvider{resp: "unused", failTimes: 100}
	sm := New(p, semaphore.NewWeighted(1), nil)
	sm.retry = fastRetry()

	out := sm.complete(context.Background(), "function", "proj.x", "prompt")
	assert.Empty(t, out, "permanent rate-limit failure must yield an empty summary, not an error")
}

func TestComplete_NonRateLimitErrorFailsFast(t *testing.T) {
	p := &failOnceProvider{err: errors.New("invalid request")}
	sm := New(p, semaphore.NewWeighted(1), nil)
	sm.retry = fastRetry()

	out := sm.complete(context.Background(), "function", "proj.x", "prompt")
	assert.Empty(t, out)
	assert.Equal(t, int32(1), p.calls, "a non-rate-limit error must not be retried")
}

type failOnceProvider struct {
	calls int32
	err   error
}

func (f *failOnceProvider) Name() string { return "stub" }
func (f *failOnceProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, f.err
}

func TestSemaphore_BoundsConcurrency(t *testing.T) {
	p := &stubProvider{resp: "ok"}
	sem := semaphore.NewWeighted(1)
	sm := New(p, sem, nil)
	sm.retry = fastRetry()

	require.True(t, sem.TryAcquire(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := sm.SummarizeEntity(ctx, &model.CodeEntity{Kind: model.KindFunction, QualifiedName: "proj.x"})
	assert.Empty(t, out, "acquire must fail fast when the shared semaphore is exhausted and ctx is already canceled")
}
