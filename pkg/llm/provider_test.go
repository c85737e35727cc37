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

package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	lerrors "github.com/kraklabs/lattice/internal/errors"
)

func TestNewProvider_MockType(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Type: "mock"})
	if err != nil {
		t.Fatalf("NewProvider(mock) error = %v", err)
	}
	if p == nil {
		t.Fatal("NewProvider(mock) returned nil")
	}
	if p.Name() != "mock" {
		t.Errorf("expected name 'mock', got %q", p.Name())
	}
}

func TestNewProvider_OllamaType(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Type: "ollama"})
	if err != nil {
		t.Fatalf("NewProvider(ollama) error = %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("expected name 'ollama', got %q", p.Name())
	}
}

func TestNewProvider_OpenAIType(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Type: "openai"})
	if err != nil {
		t.Fatalf("NewProvider(openai) error = %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", p.Name())
	}
}

func TestNewProvider_AnthropicType(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Type: "anthropic"})
	if err != nil {
		t.Fatalf("NewProvider(anthropic) error = %v", err)
	}
	if p.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got %q", p.Name())
	}
}

func TestNewProvider_UnknownType(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Type: "unknown"})
	if err == nil {
		t.Fatal("expected error for unknown provider type")
	}
	if !strings.Contains(err.Error(), "unknown LLM provider type") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestMockProvider_Chat(t *testing.T) {
	p := &MockProvider{}

	ctx := context.Background()
	resp, err := p.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: "user", Content: "Hello!"},
		},
	})
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}

	if resp == nil {
		t.Fatal("Chat returned nil response")
	}
	if resp.Message.Role != "assistant" {
		t.Errorf("expected role 'assistant', got %q", resp.Message.Role)
	}
	if !strings.Contains(resp.Message.Content, "[mock]") {
		t.Errorf("expected mock response, got %q", resp.Message.Content)
	}
}

func TestMockProvider_CustomChatFunc(t *testing.T) {
	p := &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{
				Message: Message{Role: "assistant", Content: "custom reply"},
				Model:   "custom-model",
				Done:    true,
			}, nil
		},
	}

	ctx := context.Background()
	resp, err := p.Chat(ctx, ChatRequest{Messages: []Message{{Role: "user", Content: "test"}}})
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}
	if resp.Message.Content != "custom reply" {
		t.Errorf("unexpected response: %q", resp.Message.Content)
	}
}

func TestOllamaProvider_Chat_WithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chat" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"message": {"role": "assistant", "content": "Hello! How can I help?"},
				"model": "test-model",
				"done": true,
				"prompt_eval_count": 15,
				"eval_count": 8
			}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	p, err := NewProvider(ProviderConfig{
		Type:         "ollama",
		BaseURL:      server.URL,
		DefaultModel: "test-model",
	})
	if err != nil {
		t.Fatalf("NewProvider error = %v", err)
	}

	ctx := context.Background()
	resp, err := p.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: "user", Content: "Hi!"},
		},
	})
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}

	if resp.Message.Content != "Hello! How can I help?" {
		t.Errorf("unexpected content: %q", resp.Message.Content)
	}
	if resp.Message.Role != "assistant" {
		t.Errorf("unexpected role: %q", resp.Message.Role)
	}
}

func TestOpenAIProvider_Chat_WithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chat/completions" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"choices": [{
					"message": {"role": "assistant", "content": "OpenAI response"},
					"finish_reason": "stop"
				}],
				"model": "gpt-4",
				"usage": {
					"prompt_tokens": 20,
					"completion_tokens": 10,
					"total_tokens": 30
				}
			}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	p, err := NewProvider(ProviderConfig{
		Type:    "openai",
		BaseURL: server.URL,
		APIKey:  "test-key",
	})
	if err != nil {
		t.Fatalf("NewProvider error = %v", err)
	}

	ctx := context.Background()
	resp, err := p.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: "user", Content: "Test"},
		},
	})
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}

	if resp.Message.Content != "OpenAI response" {
		t.Errorf("unexpected content: %q", resp.Message.Content)
	}
	if resp.TotalTokens != 30 {
		t.Errorf("unexpected total tokens: %d", resp.TotalTokens)
	}
}

func TestOpenAIProvider_Chat_RateLimitClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limit exceeded"}`))
	}))
	defer server.Close()

	p, err := NewProvider(ProviderConfig{Type: "openai", BaseURL: server.URL, APIKey: "k", MaxRetries: 1})
	if err != nil {
		t.Fatalf("NewProvider error = %v", err)
	}

	_, err = p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	var rl *lerrors.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected *lerrors.RateLimitError, got %T: %v", err, err)
	}
	if !lerrors.IsRateLimit(err) {
		t.Error("IsRateLimit should recognize RateLimitError")
	}
}

func TestOllamaProvider_Chat_SuccessMakesSingleCall(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": {"role": "assistant", "content": "ok"}, "model": "m", "done": true}`))
	}))
	defer server.Close()

	p, err := NewProvider(ProviderConfig{Type: "ollama", BaseURL: server.URL, DefaultModel: "m", MaxRetries: 2})
	if err != nil {
		t.Fatalf("NewProvider error = %v", err)
	}

	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}
	if resp.Message.Content != "ok" {
		t.Errorf("unexpected content: %q", resp.Message.Content)
	}
	if calls != 1 {
		t.Errorf("expected exactly one call on success, got %d", calls)
	}
}

func TestOllamaProvider_Chat_TransportFailureExhaustsRetries(t *testing.T) {
	p, err := NewProvider(ProviderConfig{
		Type:       "ollama",
		BaseURL:    "http://127.0.0.1:1", // nothing listening, dial fails immediately
		Timeout:    500 * time.Millisecond,
		MaxRetries: 1,
	})
	if err != nil {
		t.Fatalf("NewProvider error = %v", err)
	}

	_, err = p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	var le *lerrors.LLMError
	if !errors.As(err, &le) {
		t.Fatalf("expected *lerrors.LLMError, got %T: %v", err, err)
	}
}

func TestChatWithRetry_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	p := &MockProvider{ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
		calls++
		if calls < 3 {
			return nil, &lerrors.RateLimitError{Provider: "mock", Err: context.DeadlineExceeded}
		}
		return &ChatResponse{Message: Message{Content: "done"}}, nil
	}}

	cfg := RetryConfig{MaxRetries: 5, MaxBackoff: 0}
	resp, err := ChatWithRetry(context.Background(), p, ChatRequest{}, cfg, nil)
	if err != nil {
		t.Fatalf("ChatWithRetry error = %v", err)
	}
	if resp.Message.Content != "done" {
		t.Errorf("unexpected response: %q", resp.Message.Content)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestChatWithRetry_NonRateLimitErrorFailsFast(t *testing.T) {
	var calls int32
	p := &MockProvider{ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
		calls++
		return nil, &lerrors.LLMError{Provider: "mock", Err: context.DeadlineExceeded}
	}}

	_, err := ChatWithRetry(context.Background(), p, ChatRequest{}, DefaultRetryConfig(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected no retries for a non-rate-limit error, got %d calls", calls)
	}
}

func TestChatWithRetry_PermanentRateLimitReturnsLastError(t *testing.T) {
	var calls int32
	p := &MockProvider{ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
		calls++
		return nil, &lerrors.RateLimitError{Provider: "mock", Err: context.DeadlineExceeded}
	}}

	cfg := RetryConfig{MaxRetries: 2, MaxBackoff: 0}
	_, err := ChatWithRetry(context.Background(), p, ChatRequest{}, cfg, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected MaxRetries+1 attempts, got %d", calls)
	}
}

func TestComputeBackoff_CapsAtMaxBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, MaxBackoff: 3 * time.Second}
	for attempt := 0; attempt < 10; attempt++ {
		d := computeBackoff(cfg, attempt)
		if d > cfg.MaxBackoff+cfg.MaxBackoff/5+time.Second {
			t.Errorf("attempt %d: backoff %v exceeded cap+jitter bound", attempt, d)
		}
	}
}
