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

// Package llm provides the chat-completion interface the summarizer, link
// finder, and drift detector use to reach an LLM backend.
//
// # Supported Providers
//
//   - Ollama: local models, no API key required (default)
//   - OpenAI: GPT-4, GPT-4o-mini, and OpenAI-compatible APIs
//   - Anthropic: Claude models
//   - Mock: for testing without real API calls
//
// # Quick Start
//
//	provider, err := llm.NewProvider(llm.ProviderConfig{
//	    Type:   "openai",
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := provider.Chat(ctx, llm.ChatRequest{
//	    Messages: []llm.Message{{Role: "user", Content: "..."}},
//	})
//
// # Retrying rate limits
//
// Callers that need to survive a provider's rate limit wrap the Chat call
// in ChatWithRetry, which backs off exponentially and gives up after
// RetryConfig.MaxRetries retries (MaxRetries+1 calls in all):
//
//	resp, err := llm.ChatWithRetry(ctx, provider, req, llm.DefaultRetryConfig(), logger)
//
// Any non-rate-limit error from Chat is returned immediately; ChatWithRetry
// only absorbs the rate-limit case, since retrying a malformed request or
// an unreachable host never helps.
//
// # Environment Variables
//
// Ollama (local, free):
//   - OLLAMA_HOST: server URL (default: http://localhost:11434)
//   - OLLAMA_MODEL: model name (e.g., "llama2", "codellama")
//
// OpenAI:
//   - OPENAI_API_KEY: API key (required)
//   - OPENAI_BASE_URL: API URL for compatible services (e.g., Azure)
//   - OPENAI_MODEL: model name (default: gpt-4o-mini)
//
// Anthropic:
//   - ANTHROPIC_API_KEY: API key (required)
//   - ANTHROPIC_MODEL: model name (default: claude-3-5-sonnet-20241022)
//
// # Error Handling
//
// Chat wraps transport failures and non-2xx responses into the taxonomy
// defined by internal/errors: a 429 becomes a *errors.RateLimitError,
// anything else becomes a *errors.LLMError. ProviderConfig.MaxRetries
// bounds how many times a single Chat call retries a transport-level
// failure (connection refused, dial timeout) before giving up — it does
// not cover rate limits, which are the caller's responsibility via
// ChatWithRetry.
package llm
